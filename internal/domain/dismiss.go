package domain

// DismissReason records why a notification left the queue.
type DismissReason string

const (
	DismissManual  DismissReason = "manual"
	DismissExpired DismissReason = "expired"
	DismissAction  DismissReason = "action"
	DismissCleared DismissReason = "cleared"
	DismissEvicted DismissReason = "evicted"
)

func (r DismissReason) String() string { return string(r) }

func (r DismissReason) IsValid() bool {
	switch r {
	case DismissManual, DismissExpired, DismissAction, DismissCleared, DismissEvicted:
		return true
	}
	return false
}
