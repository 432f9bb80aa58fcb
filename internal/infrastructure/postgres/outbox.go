package postgres

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/baechuer/ticketqueue/internal/pkg/logger"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	outboxBatchSize   = 20
	outboxMaxAttempts = 12
	confirmWait       = 300 * time.Millisecond
)

// computeNextRetry is exponential backoff whose base delay is bounded
// between 5s and 30m, then jittered by up to ±10%.
func computeNextRetry(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	sec := math.Pow(2, float64(attempt))
	if sec < 5 {
		sec = 5
	}
	if sec > 1800 {
		sec = 1800
	}
	d := time.Duration(sec) * time.Second
	j := time.Duration(rand.Int63n(int64(d/5))) - d/10
	return d + j
}

type outboxMsg struct {
	ID         int64
	MessageID  uuid.UUID
	RoutingKey string
	Payload    []byte
	Attempt    int
}

// OutboxWorker drains the transactional outbox and publishes notifications
// to RabbitMQ, grounded directly on the teacher's outbox worker: claim via
// FOR UPDATE SKIP LOCKED, push next_retry_at into the near future to mark
// rows in-flight, publish with confirms, dead-letter after max attempts.
type OutboxWorker struct {
	pool *pgxpool.Pool
}

func NewOutboxWorker(pool *pgxpool.Pool) *OutboxWorker {
	return &OutboxWorker{pool: pool}
}

// Start runs the worker loop until ctx is canceled.
func (w *OutboxWorker) Start(ctx context.Context, rabbitURL, exchange string) {
	go func() {
		log := logger.Logger.With().Str("component", "outbox_worker").Logger()

		conn, err := amqp.Dial(rabbitURL)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect rabbitmq for outbox publishing")
			return
		}
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			log.Error().Err(err).Msg("failed to open rabbitmq channel for outbox publishing")
			return
		}
		defer ch.Close()

		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			log.Error().Err(err).Str("exchange", exchange).Msg("exchange declare failed")
			return
		}

		if err := ch.Confirm(false); err != nil {
			log.Error().Err(err).Msg("publisher confirm enable failed")
			return
		}
		confirmCh := ch.NotifyPublish(make(chan amqp.Confirmation, 100))
		returnCh := ch.NotifyReturn(make(chan amqp.Return, 100))

		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		var lastErr string
		var lastAt time.Time

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopped")
				return
			case <-ticker.C:
				if err := w.processBatch(ctx, ch, exchange, confirmCh, returnCh); err != nil {
					if err.Error() != lastErr || time.Since(lastAt) > 10*time.Second {
						log.Warn().Err(err).Msg("outbox batch failed")
						lastErr = err.Error()
						lastAt = time.Now()
					}
				} else {
					lastErr = ""
				}
			}
		}
	}()
}

func (w *OutboxWorker) processBatch(
	ctx context.Context,
	ch *amqp.Channel,
	exchange string,
	confirmCh <-chan amqp.Confirmation,
	returnCh <-chan amqp.Return,
) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, message_id, routing_key, payload, attempt
		FROM outbox
		WHERE status = 'pending'
		  AND next_retry_at <= NOW()
		ORDER BY next_retry_at ASC, occurred_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, outboxBatchSize)
	if err != nil {
		return err
	}

	var messages []outboxMsg
	for rows.Next() {
		var m outboxMsg
		if err := rows.Scan(&m.ID, &m.MessageID, &m.RoutingKey, &m.Payload, &m.Attempt); err == nil {
			messages = append(messages, m)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if len(messages) == 0 {
		return tx.Commit(ctx)
	}

	inFlightUntil := time.Now().Add(15 * time.Second)
	for _, m := range messages {
		_, _ = tx.Exec(ctx, `UPDATE outbox SET next_retry_at = $2 WHERE id = $1`, m.ID, inFlightUntil)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log := logger.Logger.With().Str("component", "outbox_worker").Logger()

	for _, m := range messages {
	DrainLoop:
		for {
			select {
			case <-returnCh:
				continue
			case <-confirmCh:
				continue
			default:
				break DrainLoop
			}
		}

		pub := amqp.Publishing{
			ContentType:  "application/json",
			Body:         m.Payload,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			MessageId:    m.MessageID.String(),
			AppId:        "ticketqueue",
		}

		if err := ch.PublishWithContext(ctx, exchange, m.RoutingKey, true, false, pub); err != nil {
			w.failOutbox(ctx, m, fmt.Sprintf("publish error: %v", err))
			continue
		}

		var gotReturn, gotConfirm bool
		var conf amqp.Confirmation
		deadline := time.After(confirmWait * 2)

	WaitLoop:
		for !gotConfirm {
			select {
			case ret := <-returnCh:
				gotReturn = true
				w.failOutbox(ctx, m, fmt.Sprintf("NO_ROUTE: code=%d text=%s exchange=%s rk=%s",
					ret.ReplyCode, ret.ReplyText, ret.Exchange, ret.RoutingKey))
			case c := <-confirmCh:
				gotConfirm = true
				conf = c
			case <-deadline:
				w.failOutbox(ctx, m, "confirm/return timeout")
				break WaitLoop
			}
		}

		if gotReturn || !gotConfirm {
			continue
		}
		if !conf.Ack {
			w.failOutbox(ctx, m, fmt.Sprintf("NACK: delivery_tag=%d", conf.DeliveryTag))
			continue
		}

		_, _ = w.pool.Exec(ctx, `UPDATE outbox SET status = 'sent', last_error = NULL WHERE id = $1`, m.ID)

		log.Info().
			Int64("outbox_id", m.ID).
			Str("message_id", m.MessageID.String()).
			Str("routing_key", m.RoutingKey).
			Msg("published")
	}

	return nil
}

func (w *OutboxWorker) failOutbox(ctx context.Context, m outboxMsg, errMsg string) {
	log := logger.Logger.With().Str("component", "outbox_worker").Logger()

	nextAttempt := m.Attempt + 1
	if nextAttempt >= outboxMaxAttempts {
		_, _ = w.pool.Exec(ctx, `UPDATE outbox SET status = 'dead', attempt = $2, last_error = $3 WHERE id = $1`,
			m.ID, nextAttempt, errMsg)
		log.Error().Int64("outbox_id", m.ID).Str("routing_key", m.RoutingKey).Int("attempt", nextAttempt).
			Msg("outbox moved to DEAD")
		return
	}

	delay := computeNextRetry(nextAttempt)
	_, _ = w.pool.Exec(ctx, `UPDATE outbox SET attempt = $2, next_retry_at = NOW() + $3::interval, last_error = $4 WHERE id = $1`,
		m.ID, nextAttempt, fmt.Sprintf("%f seconds", delay.Seconds()), errMsg)
	log.Warn().Int64("outbox_id", m.ID).Str("routing_key", m.RoutingKey).Int("attempt", nextAttempt).
		Dur("retry_in", delay).Msg("outbox publish failed; scheduled retry")
}
