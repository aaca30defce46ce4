package queue

import (
	"time"

	"github.com/kursadbilgin/toast-engine/internal/domain"
)

// DefaultMaxNotifications caps the queue when no limit is configured.
const DefaultMaxNotifications = 5

// State is the full notification list, oldest first.
type State struct {
	Notifications []domain.Notification
}

// Len returns the number of held notifications.
func (s State) Len() int { return len(s.Notifications) }

// Find returns a copy of the notification with the given id.
func (s State) Find(id string) (domain.Notification, bool) {
	for _, n := range s.Notifications {
		if n.ID == id {
			return n, true
		}
	}
	return domain.Notification{}, false
}

// Result describes the effect of a single Reduce call.
type Result struct {
	// Added is set when a new record was appended.
	Added bool
	// Deduped holds the ID of the record whose count was incremented.
	Deduped string
	// Evicted holds the record dropped to make room for the new one.
	Evicted *domain.Notification
	// Removed lists records dropped by Remove or ClearAll.
	Removed []domain.Notification
}

// Reduce applies action to state and returns the next state. It never mutates
// the input and has no side effects. Unknown actions leave the state unchanged.
func Reduce(state State, action Action, max int) (State, Result) {
	if max <= 0 {
		max = DefaultMaxNotifications
	}

	switch a := action.(type) {
	case Add:
		return reduceAdd(state, a.Notification, max)
	case *Add:
		if a == nil {
			return state, Result{}
		}
		return reduceAdd(state, a.Notification, max)
	case Remove:
		return reduceRemove(state, a.ID)
	case *Remove:
		if a == nil {
			return state, Result{}
		}
		return reduceRemove(state, a.ID)
	case ClearAll, *ClearAll:
		if len(state.Notifications) == 0 {
			return state, Result{}
		}
		removed := clone(state.Notifications)
		return State{}, Result{Removed: removed}
	default:
		return state, Result{}
	}
}

func reduceAdd(state State, incoming domain.Notification, max int) (State, Result) {
	for i := range state.Notifications {
		if !domain.Equivalent(&state.Notifications[i], &incoming) {
			continue
		}

		next := clone(state.Notifications)
		next[i].Count++
		next[i].CreatedAt = incoming.CreatedAt
		return State{Notifications: next}, Result{Deduped: next[i].ID}
	}

	var result Result
	current := state.Notifications
	if len(current) >= max {
		victim := evictionIndex(current, incoming.Position)
		evicted := current[victim]
		result.Evicted = &evicted
		current = withoutIndex(current, victim)
	}

	incoming.Count = 1
	next := make([]domain.Notification, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, incoming)

	result.Added = true
	return State{Notifications: next}, result
}

func reduceRemove(state State, id string) (State, Result) {
	for i := range state.Notifications {
		if state.Notifications[i].ID != id {
			continue
		}
		removed := state.Notifications[i]
		return State{Notifications: withoutIndex(state.Notifications, i)}, Result{
			Removed: []domain.Notification{removed},
		}
	}
	return state, Result{}
}

// evictionIndex picks the oldest record sharing position, or the globally
// oldest record when the position is empty. Equal timestamps resolve to the
// earlier insertion. The caller guarantees a non-empty list.
func evictionIndex(list []domain.Notification, position domain.Position) int {
	victim := oldest(list, func(n *domain.Notification) bool { return n.Position == position })
	if victim >= 0 {
		return victim
	}
	return oldest(list, func(*domain.Notification) bool { return true })
}

func oldest(list []domain.Notification, match func(*domain.Notification) bool) int {
	idx := -1
	var at time.Time
	for i := range list {
		if !match(&list[i]) {
			continue
		}
		if idx == -1 || list[i].CreatedAt.Before(at) {
			idx = i
			at = list[i].CreatedAt
		}
	}
	return idx
}

func withoutIndex(list []domain.Notification, i int) []domain.Notification {
	out := make([]domain.Notification, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

func clone(list []domain.Notification) []domain.Notification {
	if list == nil {
		return nil
	}
	out := make([]domain.Notification, len(list))
	copy(out, list)
	return out
}

// PositionGroup is the set of notifications rendered in one screen bucket.
type PositionGroup struct {
	Position      domain.Position
	Notifications []domain.Notification
}

// GroupByPosition buckets notifications by position, keeping insertion order
// inside each bucket. Empty positions are omitted.
func GroupByPosition(state State) []PositionGroup {
	groups := make([]PositionGroup, 0, len(domain.Positions()))
	for _, position := range domain.Positions() {
		var members []domain.Notification
		for _, n := range state.Notifications {
			if n.Position == position {
				members = append(members, n)
			}
		}
		if len(members) == 0 {
			continue
		}
		groups = append(groups, PositionGroup{Position: position, Notifications: members})
	}
	return groups
}
