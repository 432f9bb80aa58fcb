package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	insertIntentSQL = `
		INSERT INTO purchase_intents (id, event_id, session_id, quantity, arrival, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	claimIntentSQL = `
		UPDATE purchase_intents
		SET status = 'PROCESSING', updated_at = NOW()
		WHERE id = $1 AND status = 'WAITING'
	`
	cancelIfWaitingSQL = `
		UPDATE purchase_intents
		SET status = 'EXPIRED', updated_at = NOW()
		WHERE id = $1 AND status = 'WAITING'
	`
	setIntentStatusSQL = `
		UPDATE purchase_intents SET status = $2, updated_at = NOW() WHERE id = $1
	`
	findExistingActiveSQL = `
		SELECT id, event_id, session_id, quantity, arrival, status, created_at, updated_at
		FROM purchase_intents
		WHERE event_id = $1 AND session_id = $2 AND status IN ('WAITING', 'PROCESSING')
		LIMIT 1
	`
	findIntentByIDSQL = `
		SELECT id, event_id, session_id, quantity, arrival, status, created_at, updated_at
		FROM purchase_intents WHERE id = $1
	`
	nextWaitingForEventSQL = `
		SELECT id, event_id, session_id, quantity, arrival, status, created_at, updated_at
		FROM purchase_intents
		WHERE event_id = $1 AND status = 'WAITING'
		ORDER BY arrival ASC
		LIMIT $2
	`
	expireOlderThanSQL = `
		UPDATE purchase_intents SET status = 'EXPIRED', updated_at = NOW()
		WHERE status = 'WAITING' AND created_at < $1
	`
	countAheadSQL = `
		SELECT COUNT(*) FROM purchase_intents
		WHERE event_id = $1 AND status IN ('WAITING', 'PROCESSING') AND arrival < $2
	`
	statsByEventSQL = `
		SELECT status, COUNT(*) FROM purchase_intents WHERE event_id = $1 GROUP BY status
	`
	failStaleProcessingSQL = `
		UPDATE purchase_intents SET status = 'FAILED', updated_at = NOW()
		WHERE status = 'PROCESSING' AND updated_at < $1
	`
)

// IntentRepository is the Postgres implementation of domain.IntentRepo.
// Method names mirror the spec's operation names directly.
type IntentRepository struct {
	pool *pgxpool.Pool
}

func NewIntentRepository(pool *pgxpool.Pool) *IntentRepository {
	return &IntentRepository{pool: pool}
}

func (r *IntentRepository) Insert(ctx context.Context, i *domain.PurchaseIntent) error {
	_, err := r.pool.Exec(ctx, insertIntentSQL,
		i.ID, i.EventID, i.SessionID, i.Quantity, i.Arrival, string(i.Status), i.CreatedAt, i.UpdatedAt)
	return err
}

// Claim implements intents.claim: a conditional WAITING->PROCESSING update.
// ok=false with err=nil means another worker claimed it first, which the
// Processor treats as "skip, not an error" (spec §4.3).
func (r *IntentRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, claimIntentSQL, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *IntentRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	_, err := r.pool.Exec(ctx, setIntentStatusSQL, id, string(status))
	return err
}

// CancelIfWaiting implements intents.cancel: a conditional WAITING->EXPIRED
// update, the same precondition-guarded shape as Claim but for the
// Cancellation operation (spec §4.5).
func (r *IntentRepository) CancelIfWaiting(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, cancelIfWaitingSQL, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *IntentRepository) FindExistingActive(ctx context.Context, eventID uuid.UUID, sessionID string) (*domain.PurchaseIntent, error) {
	row := r.pool.QueryRow(ctx, findExistingActiveSQL, eventID, sessionID)
	i, err := scanIntentRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return i, err
}

func (r *IntentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseIntent, error) {
	row := r.pool.QueryRow(ctx, findIntentByIDSQL, id)
	i, err := scanIntentRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound("purchase intent not found")
	}
	return i, err
}

func (r *IntentRepository) NextWaitingForEvent(ctx context.Context, eventID uuid.UUID, limit int) ([]domain.PurchaseIntent, error) {
	if limit <= 0 || limit > 500 {
		limit = 25
	}
	rows, err := r.pool.Query(ctx, nextWaitingForEventSQL, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PurchaseIntent
	for rows.Next() {
		i, err := scanIntentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (r *IntentRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, expireOlderThanSQL, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *IntentRepository) CountAhead(ctx context.Context, eventID uuid.UUID, arrival int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, countAheadSQL, eventID, arrival).Scan(&n)
	return n, err
}

func (r *IntentRepository) StatsByEvent(ctx context.Context, eventID uuid.UUID) (domain.EventStats, error) {
	rows, err := r.pool.Query(ctx, statsByEventSQL, eventID)
	if err != nil {
		return domain.EventStats{}, err
	}
	defer rows.Close()

	stats := domain.EventStats{EventID: eventID}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return domain.EventStats{}, err
		}
		switch domain.Status(status) {
		case domain.StatusWaiting:
			stats.Waiting = count
		case domain.StatusProcessing:
			stats.Processing = count
		case domain.StatusCompleted:
			stats.Completed = count
		case domain.StatusFailed:
			stats.Failed = count
		case domain.StatusExpired:
			stats.Expired = count
		}
	}
	return stats, rows.Err()
}

// FailStalePROCESSING implements the crash-recovery reconciliation run once
// at startup (spec §4.3 "Failure semantics"): intents left in PROCESSING by
// a worker that died mid-claim transition straight to FAILED.
func (r *IntentRepository) FailStalePROCESSING(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, failStaleProcessingSQL, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanIntentRow(row scannable) (*domain.PurchaseIntent, error) {
	var i domain.PurchaseIntent
	var status string
	err := row.Scan(&i.ID, &i.EventID, &i.SessionID, &i.Quantity, &i.Arrival, &status, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.Status = domain.Status(status)
	return &i, nil
}

func scanIntentRows(rows pgx.Rows) (*domain.PurchaseIntent, error) {
	return scanIntentRow(rows)
}
