package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is a scheduled event with a fixed ticket inventory (spec §3).
//
// Invariants: 0 <= AvailableTickets <= TotalTickets; Version strictly
// increases on every mutation. Both invariants are enforced a second time
// at the storage layer (CHECK constraints / guarded UPDATE) so a bug here
// cannot silently corrupt persisted state.
type Event struct {
	ID                uuid.UUID
	Name              string
	StartsAt          time.Time
	TotalTickets      int
	AvailableTickets  int
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewEvent validates and constructs a fresh Event with full availability
// and version 1, as created by an administrator (spec §4.7).
func NewEvent(name string, startsAt time.Time, totalTickets int, now time.Time) (*Event, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return nil, ErrInvalidRequest("name is required and must be <= 200 chars")
	}
	if totalTickets < 0 {
		return nil, ErrInvalidRequest("total_tickets must be >= 0")
	}
	if startsAt.IsZero() {
		return nil, ErrInvalidRequest("starts_at is required")
	}

	t := now.UTC()
	return &Event{
		ID:               uuid.New(),
		Name:             name,
		StartsAt:         startsAt.UTC(),
		TotalTickets:     totalTickets,
		AvailableTickets: totalTickets,
		Version:          1,
		CreatedAt:        t,
		UpdatedAt:        t,
	}, nil
}

// IsPurchasable reports whether intake may still accept intents against
// this event: it must not have started yet and must show availability.
// This is the best-effort fast path of spec §4.1; the Allocator re-checks
// both conditions authoritatively inside its transaction.
func (e *Event) IsPurchasable(now time.Time) bool {
	return now.Before(e.StartsAt) && e.AvailableTickets > 0
}

// HasStarted reports whether now is at or past the event's start, the
// authoritative check the Allocator performs under lock (spec §4.2 step 4).
func (e *Event) HasStarted(now time.Time) bool {
	return !now.Before(e.StartsAt)
}
