package postgres

import (
	"context"

	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	insertTicketSQL = `
		INSERT INTO tickets (id, event_id, purchase_id, issued_at)
		VALUES ($1, $2, $3, $4)
	`
	listTicketsByPurchaseSQL = `
		SELECT id, event_id, purchase_id, issued_at FROM tickets WHERE purchase_id = $1
	`
)

type TicketRepository struct {
	pool *pgxpool.Pool
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

// InsertBulk implements tickets.insert_bulk outside of a transaction; the
// Allocator calls InsertBulkTx instead so the insert shares its lock scope.
func (r *TicketRepository) InsertBulk(ctx context.Context, tickets []domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := InsertBulkTx(ctx, tx, tickets); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InsertBulkTx writes every ticket in one batch inside tx, used by the
// Allocator so the whole award is atomic with the event decrement.
func InsertBulkTx(ctx context.Context, tx pgx.Tx, tickets []domain.Ticket) error {
	batch := &pgx.Batch{}
	for _, t := range tickets {
		batch.Queue(insertTicketSQL, t.ID, t.EventID, t.PurchaseID, t.IssuedAt)
	}
	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for range tickets {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *TicketRepository) ListByPurchaseID(ctx context.Context, purchaseID uuid.UUID) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, listTicketsByPurchaseSQL, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.ID, &t.EventID, &t.PurchaseID, &t.IssuedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
