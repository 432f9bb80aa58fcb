package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the closed set of PurchaseIntent lifecycle states (spec §3/§4.4).
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusExpired    Status = "EXPIRED"
)

// IsTerminal reports whether s is a sink state of the intent DAG.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

const (
	// MinQuantity/MaxIntakeQuantity bound what Intake will accept (spec §4.1).
	MinQuantity       = 1
	MaxIntakeQuantity = 10
	// MaxStorageQuantity is the storage-layer headroom noted in spec §9 —
	// one policy, two enforcement points, not two policies.
	MaxStorageQuantity = 100

	MaxSessionIDLen = 255
)

// PurchaseIntent is a persisted request to buy Quantity tickets for an
// event, ordered for fairness by Arrival (spec §3).
type PurchaseIntent struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	SessionID string
	Quantity  int
	Arrival   int64
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPurchaseIntent validates intake-time constraints and stamps arrival.
// It does not persist anything; the caller (Intent Intake) owns storage.
func NewPurchaseIntent(eventID uuid.UUID, sessionID string, quantity int, arrival int64, now time.Time) (*PurchaseIntent, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || len(sessionID) > MaxSessionIDLen {
		return nil, ErrInvalidRequestMeta("session_id must be 1-255 chars", map[string]string{"field": "session_id"})
	}
	if quantity < MinQuantity || quantity > MaxIntakeQuantity {
		return nil, ErrInvalidRequestMeta("quantity must be between 1 and 10", map[string]string{"field": "quantity"})
	}
	if eventID == uuid.Nil {
		return nil, ErrInvalidRequestMeta("event_id is required", map[string]string{"field": "event_id"})
	}

	t := now.UTC()
	return &PurchaseIntent{
		ID:        uuid.New(),
		EventID:   eventID,
		SessionID: sessionID,
		Quantity:  quantity,
		Arrival:   arrival,
		Status:    StatusWaiting,
		CreatedAt: t,
		UpdatedAt: t,
	}, nil
}

// transitions enumerates the DAG from spec §4.4. The claim, cancel and
// expiry paths do not consult it: their repositories encode the same
// transitions as conditional SQL updates.
var transitions = map[Status]map[Status]bool{
	StatusWaiting: {
		StatusProcessing: true,
		StatusExpired:    true,
	},
	StatusProcessing: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusExpired:   true,
	},
}

// CanTransitionTo reports whether the DAG permits from->to directly.
func CanTransitionTo(from, to Status) bool {
	return transitions[from][to]
}
