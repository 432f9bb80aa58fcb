// Package postgres is the pgx-backed implementation of domain's storage
// ports, grounded on the sibling services' repository pattern: named SQL
// constants, FOR UPDATE row locks, conditional updates gated on rows
// affected rather than pre-checking then writing.
package postgres

import (
	"context"
	"errors"

	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	insertEventSQL = `
		INSERT INTO events (id, name, starts_at, total_tickets, available_tickets, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	getEventSQL = `
		SELECT id, name, starts_at, total_tickets, available_tickets, version, created_at, updated_at
		FROM events WHERE id = $1
	`
	getEventForUpdateSQL = `
		SELECT id, name, starts_at, total_tickets, available_tickets, version, created_at, updated_at
		FROM events WHERE id = $1 FOR UPDATE
	`
	conditionalDecrementSQL = `
		UPDATE events
		SET available_tickets = available_tickets - $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND version = $3 AND available_tickets >= $2
	`
	listEventsSQL = `
		SELECT id, name, starts_at, total_tickets, available_tickets, version, created_at, updated_at
		FROM events ORDER BY starts_at ASC LIMIT $1
	`
)

// EventRepository is the Postgres implementation of domain.EventRepo.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Create(ctx context.Context, e *domain.Event) error {
	_, err := r.pool.Exec(ctx, insertEventSQL,
		e.ID, e.Name, e.StartsAt, e.TotalTickets, e.AvailableTickets, e.Version, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return r.scanOne(ctx, r.pool.QueryRow(ctx, getEventSQL, id))
}

// GetForUpdate implements events.get_for_update (spec §4.2 step 1). The
// caller must hold a transaction for the lock to have any effect.
func (r *EventRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return r.scanOne(ctx, r.pool.QueryRow(ctx, getEventForUpdateSQL, id))
}

// GetForUpdateTx is the transaction-scoped variant used by the Allocator.
func GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Event, error) {
	return scanEventRow(tx.QueryRow(ctx, getEventForUpdateSQL, id))
}

// ConditionalDecrementTx implements events.conditional_decrement inside an
// already-open transaction: it only applies if the row still matches
// expectVersion and has enough availability, mirroring the
// lock-then-conditionally-update shape of the teacher's JoinEvent.
func ConditionalDecrementTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty int, expectVersion int64) (bool, error) {
	tag, err := tx.Exec(ctx, conditionalDecrementSQL, id, qty, expectVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EventRepository) ConditionalDecrement(ctx context.Context, id uuid.UUID, qty int, expectVersion int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, conditionalDecrementSQL, id, qty, expectVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EventRepository) List(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, listEventsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.StartsAt, &e.TotalTickets, &e.AvailableTickets, &e.Version, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EventRepository) scanOne(ctx context.Context, row pgx.Row) (*domain.Event, error) {
	e, err := scanEventRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound("event not found")
	}
	return e, err
}

func scanEventRow(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.Name, &e.StartsAt, &e.TotalTickets, &e.AvailableTickets, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
