package queue

import "github.com/kursadbilgin/toast-engine/internal/domain"

// Action is a state transition applied by Reduce. The set of actions is closed:
// only Add, Remove and ClearAll implement it.
type Action interface {
	action()
}

// Add inserts a notification, collapsing it into an equivalent one if present.
type Add struct {
	Notification domain.Notification
}

// Remove drops the notification with the given ID.
type Remove struct {
	ID string
}

// ClearAll empties the queue.
type ClearAll struct{}

func (Add) action()      {}
func (Remove) action()   {}
func (ClearAll) action() {}
