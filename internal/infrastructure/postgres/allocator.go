package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Allocator runs the transactional ticket award described in spec §4.2:
// lock the event row, re-check it hasn't started and has availability,
// conditionally decrement, insert the awarded tickets, write an outbox
// row, commit. It is the direct structural analogue of the teacher's
// JoinEvent (lock capacity row, mutate under lock, insert, outbox, commit).
type Allocator struct {
	pool *pgxpool.Pool
}

func NewAllocator(pool *pgxpool.Pool) *Allocator {
	return &Allocator{pool: pool}
}

// Allocate attempts to award qty tickets for event eventID against
// purchase intent purchaseID, returning a tagged AllocOutcome rather than
// an error hierarchy (spec §9).
func (a *Allocator) Allocate(ctx context.Context, eventID, purchaseID uuid.UUID, qty int, now time.Time) domain.AllocOutcome {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return classifyTxErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1) Lock the event row first (events.get_for_update, spec §4.2 step 1).
	ev, err := GetForUpdateTx(ctx, tx, eventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AllocInternalOutcome(domain.ErrNotFound("event not found"))
		}
		return classifyTxErr(err)
	}

	// 2) Authoritative past-start check under lock (spec §4.2 step 4).
	if ev.HasStarted(now) {
		return domain.AllocEventPastOutcome()
	}

	// 3) Authoritative availability check under lock.
	if ev.AvailableTickets < qty {
		return domain.AllocInsufficientOutcome()
	}

	// 4) events.conditional_decrement, guarded on the version we just read.
	ok, err := ConditionalDecrementTx(ctx, tx, eventID, qty, ev.Version)
	if err != nil {
		return classifyTxErr(err)
	}
	if !ok {
		// Someone else mutated the row between our read and our write
		// despite the lock (shouldn't happen under FOR UPDATE, but the
		// version guard is the second line of defense spec §9 asks for).
		return domain.AllocConflictOutcome(domain.ErrConflict("event row changed under us"))
	}

	// 5) tickets.insert_bulk: award is always one batch, atomic with the
	// decrement above.
	tickets := make([]domain.Ticket, qty)
	issuedAt := now.UTC()
	for i := range tickets {
		tickets[i] = domain.Ticket{
			ID:         uuid.New(),
			EventID:    eventID,
			PurchaseID: purchaseID,
			IssuedAt:   issuedAt,
		}
	}
	if err := InsertBulkTx(ctx, tx, tickets); err != nil {
		return classifyTxErr(err)
	}

	// 6) Outbox: notify downstream collaborators (spec §1's external
	// notification delivery) in the same transaction as the award.
	payload, _ := json.Marshal(map[string]any{
		"event_id":    eventID,
		"purchase_id": purchaseID,
		"quantity":    qty,
	})
	if _, err := tx.Exec(ctx,
		`INSERT INTO outbox (message_id, routing_key, payload, occurred_at, status) VALUES ($1, $2, $3, NOW(), 'pending')`,
		uuid.New(), "purchase.completed", payload,
	); err != nil {
		return classifyTxErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyTxErr(err)
	}
	return domain.AllocSuccessOutcome(tickets)
}

func classifyTxErr(err error) domain.AllocOutcome {
	var pgErr interface{ Timeout() bool }
	if errors.As(err, &pgErr) && pgErr.Timeout() {
		return domain.AllocTimeoutOutcome(err)
	}
	if ctxErr := context.DeadlineExceeded; errors.Is(err, ctxErr) {
		return domain.AllocTimeoutOutcome(err)
	}
	return domain.AllocInternalOutcome(err)
}
