package domain

import (
	"fmt"
	"strings"
	"time"
)

// Type represents the severity of a notification.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

func (t Type) String() string { return string(t) }

func (t Type) IsValid() bool {
	switch t {
	case TypeSuccess, TypeError, TypeWarning, TypeInfo:
		return true
	}
	return false
}

func ParseTypeFromString(s string) (Type, error) {
	tp := Type(strings.ToLower(strings.TrimSpace(s)))
	if !tp.IsValid() {
		return "", fmt.Errorf("%w: invalid type %q", ErrValidation, s)
	}
	return tp, nil
}

// Types returns every notification type in a stable order.
func Types() []Type {
	return []Type{TypeSuccess, TypeError, TypeWarning, TypeInfo}
}

// Position is the screen grouping bucket a notification is rendered in.
type Position string

const (
	PositionTopLeft      Position = "top-left"
	PositionTopRight     Position = "top-right"
	PositionTopCenter    Position = "top-center"
	PositionBottomLeft   Position = "bottom-left"
	PositionBottomRight  Position = "bottom-right"
	PositionBottomCenter Position = "bottom-center"
)

func (p Position) String() string { return string(p) }

func (p Position) IsValid() bool {
	switch p {
	case PositionTopLeft, PositionTopRight, PositionTopCenter,
		PositionBottomLeft, PositionBottomRight, PositionBottomCenter:
		return true
	}
	return false
}

func ParsePositionFromString(s string) (Position, error) {
	pos := Position(strings.ToLower(strings.TrimSpace(s)))
	if !pos.IsValid() {
		return "", fmt.Errorf("%w: invalid position %q", ErrValidation, s)
	}
	return pos, nil
}

// Positions returns every position in a stable order.
func Positions() []Position {
	return []Position{
		PositionTopLeft, PositionTopCenter, PositionTopRight,
		PositionBottomLeft, PositionBottomCenter, PositionBottomRight,
	}
}

// Theme is a display tag. The queue never interprets it.
type Theme string

const DefaultTheme Theme = "light"

// Defaults applied when show options leave a field unset.
const (
	DefaultType          = TypeInfo
	DefaultPosition      = PositionTopRight
	DefaultDuration      = 5000 * time.Millisecond
	DefaultActionVariant = "primary"
)

// Action is a button attached to a notification.
type Action struct {
	Label        string
	Variant      string
	OnClick      func()
	Disabled     bool
	CloseOnClick bool
}

func (a Action) matches(other Action) bool {
	return a.Label == other.Label && a.Variant == other.Variant && a.Disabled == other.Disabled
}

// Notification is one transient message held by the queue.
type Notification struct {
	ID        string
	Type      Type
	Message   string
	Duration  time.Duration
	AutoClose bool
	Theme     Theme
	Position  Position
	Actions   []Action
	Count     int
	CreatedAt time.Time
}

func (n *Notification) HasActions() bool {
	return len(n.Actions) > 0
}

// Countdown reports whether the notification dismisses itself after Duration.
// Any attached action suppresses the countdown.
func (n *Notification) Countdown() bool {
	return n.AutoClose && !n.HasActions() && n.Duration > 0
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("%w: invalid type %q", ErrValidation, n.Type)
	}
	if !n.Position.IsValid() {
		return fmt.Errorf("%w: invalid position %q", ErrValidation, n.Position)
	}
	if n.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative (got %s)", ErrValidation, n.Duration)
	}
	for i, action := range n.Actions {
		if strings.TrimSpace(action.Label) == "" {
			return fmt.Errorf("%w: action %d label is required", ErrValidation, i)
		}
	}
	return nil
}

// Equivalent reports whether b would be collapsed into a. Actions are compared
// pairwise on label, variant and disabled; click handlers are ignored.
func Equivalent(a, b *Notification) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Type != b.Type || a.Message != b.Message || a.Position != b.Position || a.Theme != b.Theme {
		return false
	}
	if len(a.Actions) != len(b.Actions) {
		return false
	}
	for i := range a.Actions {
		if !a.Actions[i].matches(b.Actions[i]) {
			return false
		}
	}
	return true
}
