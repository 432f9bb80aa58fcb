// Package queue implements the background Queue Processor, Expiry Sweeper,
// and crash-recovery reconciliation described in spec §4.3. Goroutine
// fan-out per tick is grounded on the teacher's outbox worker: a ticker-
// driven loop that claims and drains a bounded batch every interval.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/baechuer/ticketqueue/internal/clock"
	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/baechuer/ticketqueue/internal/metrics"
	"github.com/baechuer/ticketqueue/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Allocator is the narrow port the Processor needs from the storage layer
// — just enough to run one allocation attempt per claimed intent.
type Allocator interface {
	Allocate(ctx context.Context, eventID, purchaseID uuid.UUID, qty int, now time.Time) domain.AllocOutcome
}

// AvailabilityWriter warms the availability cache Intake's fast path reads
// (spec §4.1). A separate interface from domain.CacheRepo since only the
// Processor ever writes it; Intake only ever reads.
type AvailabilityWriter interface {
	SetAvailability(ctx context.Context, eventID uuid.UUID, available int, ttl time.Duration) error
}

// Processor drains WAITING intents for every known event in arrival order,
// claiming and resolving up to BatchSize per event on every tick (spec
// §4.3 "Queue Processor").
type Processor struct {
	Events      domain.EventRepo
	Intents     domain.IntentRepo
	Alloc       Allocator
	Clock       clock.Clock
	Ticker      clock.Ticker
	Health      *Health
	BatchSize   int
	MaxAttempts int
	// IntentTTL is E from spec §4.3: a claimed intent older than this is
	// expired rather than submitted to the Allocator.
	IntentTTL time.Duration
	// PerIntentTimeout is M from spec §4.3: the hard budget for one
	// Allocator attempt, enforced via context cancellation.
	PerIntentTimeout time.Duration
	// AvailCache, if set, is warmed with every known event's current
	// AvailableTickets on each tick. Nil disables warming; Intake's cache
	// read still degrades to the authoritative repository on a miss.
	AvailCache    AvailabilityWriter
	AvailCacheTTL time.Duration
}

// Run blocks draining on every tick until ctx is canceled.
func (p *Processor) Run(ctx context.Context) {
	log := logger.Logger.With().Str("component", "queue_processor").Logger()
	defer p.Ticker.Stop()
	p.Health.setRunning(true)
	defer p.Health.setRunning(false)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopped")
			return
		case <-p.Ticker.C():
			p.tick(ctx, log)
		}
	}
}

// tick discovers events with pending work and drains each one's WAITING
// batch concurrently. Events are independent — there is no fairness
// requirement across events, only within one event's arrival order (spec
// §4.1), so cross-event concurrency is free.
func (p *Processor) tick(ctx context.Context, log zerolog.Logger) {
	events, err := p.Events.List(ctx, 200)
	if err != nil {
		log.Error().Err(err).Msg("list events failed")
		return
	}

	var wg sync.WaitGroup
	for _, ev := range events {
		if p.AvailCache != nil {
			if err := p.AvailCache.SetAvailability(ctx, ev.ID, ev.AvailableTickets, p.availCacheTTL()); err != nil {
				log.Warn().Err(err).Str("event_id", ev.ID.String()).Msg("availability cache warm failed")
			}
		}
		if !ev.HasStarted(p.Clock.Now()) {
			wg.Add(1)
			go func(eventID uuid.UUID) {
				defer wg.Done()
				p.drainEvent(ctx, eventID, log)
			}(ev.ID)
		}
	}
	wg.Wait()
}

func (p *Processor) availCacheTTL() time.Duration {
	if p.AvailCacheTTL <= 0 {
		return 5 * time.Second
	}
	return p.AvailCacheTTL
}

func (p *Processor) drainEvent(ctx context.Context, eventID uuid.UUID, log zerolog.Logger) {
	if stats, err := p.Intents.StatsByEvent(ctx, eventID); err == nil {
		metrics.SetQueueDepth(eventID.String(), int(stats.Waiting))
	}

	batch, err := p.Intents.NextWaitingForEvent(ctx, eventID, p.BatchSize)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID.String()).Msg("list waiting intents failed")
		return
	}
	for _, intent := range batch {
		p.claimAndProcess(ctx, intent, log)
	}
}
