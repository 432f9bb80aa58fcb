package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventRepo is the narrow storage port for events (spec §9).
type EventRepo interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// GetForUpdate locks the event row for the duration of the caller's
	// transaction (spec §4.2 step 1: events.get_for_update).
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Event, error)
	// ConditionalDecrement applies events.conditional_decrement: it
	// decrements AvailableTickets by qty and bumps Version, but only if
	// the row still matches expectVersion and enough tickets remain.
	// ok=false with err=nil means the guard failed (stale version or
	// insufficient stock), distinguishing that case from a transport error.
	ConditionalDecrement(ctx context.Context, id uuid.UUID, qty int, expectVersion int64) (ok bool, err error)
	List(ctx context.Context, limit int) ([]Event, error)
}

// TicketRepo is the narrow storage port for tickets (spec §9).
type TicketRepo interface {
	// InsertBulk implements tickets.insert_bulk: one purchase intent's
	// award is always written as a single batch insert.
	InsertBulk(ctx context.Context, tickets []Ticket) error
	ListByPurchaseID(ctx context.Context, purchaseID uuid.UUID) ([]Ticket, error)
}

// IntentRepo is the narrow storage port for purchase intents (spec §9).
// Method names mirror the spec's operation list so the grounding between
// spec and code stays legible.
type IntentRepo interface {
	Insert(ctx context.Context, i *PurchaseIntent) error

	// Claim implements intents.claim: WAITING->PROCESSING, conditioned on
	// the row still being WAITING. ok=false with err=nil means someone
	// else claimed it first.
	Claim(ctx context.Context, id uuid.UUID) (ok bool, err error)

	SetStatus(ctx context.Context, id uuid.UUID, status Status) error

	// CancelIfWaiting implements the conditional WAITING->EXPIRED update
	// Cancellation needs (spec §4.5): it succeeds only if the row is still
	// WAITING at the moment of the update. ok=false with err=nil means the
	// intent already left WAITING (claimed by the Processor, or already
	// cancelled), which the caller reports as NOT_CANCELLABLE.
	CancelIfWaiting(ctx context.Context, id uuid.UUID) (ok bool, err error)

	// FindExistingActive implements intents.find_existing_active, the
	// dedup check Intake performs before inserting (spec §4.1).
	FindExistingActive(ctx context.Context, eventID uuid.UUID, sessionID string) (*PurchaseIntent, error)

	FindByID(ctx context.Context, id uuid.UUID) (*PurchaseIntent, error)

	// NextWaitingForEvent implements intents.next_waiting_for_event(limit):
	// the oldest-arrival WAITING intents for one event, up to limit.
	NextWaitingForEvent(ctx context.Context, eventID uuid.UUID, limit int) ([]PurchaseIntent, error)

	// ExpireOlderThan implements intents.expire_older_than: bulk
	// WAITING->EXPIRED for intents created before cutoff. Returns the
	// number of rows transitioned.
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// CountAhead implements intents.count_ahead: the number of WAITING or
	// PROCESSING intents for the same event with a strictly earlier arrival
	// ordinal (spec §4.6 queue position counts in-flight intents too).
	CountAhead(ctx context.Context, eventID uuid.UUID, arrival int64) (int64, error)

	// StatsByEvent implements intents.stats_by_event, backing the Query
	// Surface's per-status Stats operation (spec §4.6).
	StatsByEvent(ctx context.Context, eventID uuid.UUID) (EventStats, error)

	// FailStalePROCESSING implements the crash-recovery reconciliation
	// (spec §4.3 "Failure semantics"): PROCESSING intents left behind by a
	// crashed worker, whose updated_at predates cutoff, transition straight
	// to FAILED on startup — they are never handed back to WAITING.
	FailStalePROCESSING(ctx context.Context, cutoff time.Time) (int64, error)
}

// CacheRepo is the narrow best-effort availability cache port Intake
// consults before ever reaching Postgres (spec §4.1's fast path). A cache
// miss or error never blocks intake — callers fall through to the
// authoritative repository read.
type CacheRepo interface {
	GetAvailability(ctx context.Context, eventID uuid.UUID) (int, error)
}

// EventStats is the per-status intent count projection behind the Query
// Surface's Stats operation (spec §4.6).
type EventStats struct {
	EventID    uuid.UUID
	Waiting    int64
	Processing int64
	Completed  int64
	Failed     int64
	Expired    int64
}
