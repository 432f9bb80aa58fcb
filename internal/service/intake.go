// Package service implements the four operations spec §4 describes: the
// buyer-facing Intent Intake, Cancellation and Query Surface, plus event
// administration. Each file owns one operation, matching the teacher's
// one-method-group-per-concern service shape: unexported repo/cache
// fields behind domain interfaces, constructed via NewXService.
package service

import (
	"context"
	"errors"

	"github.com/baechuer/ticketqueue/internal/clock"
	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/baechuer/ticketqueue/internal/metrics"
	"github.com/baechuer/ticketqueue/internal/pkg/logger"
	"github.com/google/uuid"
)

// IntakeHandle is the caller-visible result of submitting a purchase
// intent (spec §4.1).
type IntakeHandle struct {
	IntentID             uuid.UUID
	QueuePosition        int64
	EstimatedWaitSeconds int64
	Status               domain.Status
}

// IntakeService implements Intent Intake.
type IntakeService struct {
	events  domain.EventRepo
	intents domain.IntentRepo
	cache   domain.CacheRepo
	clock   clock.Clock
	arrival *clock.Arrival

	// waitEstimatePerIntent is s from spec §4.6's wait-estimate formula,
	// shared with the Query Surface so both compute the same number.
	waitEstimatePerIntent int64 // seconds
}

func NewIntakeService(events domain.EventRepo, intents domain.IntentRepo, cache domain.CacheRepo, clk clock.Clock, arrival *clock.Arrival, waitEstimatePerIntent int64) *IntakeService {
	return &IntakeService{
		events:                events,
		intents:               intents,
		cache:                 cache,
		clock:                 clk,
		arrival:               arrival,
		waitEstimatePerIntent: waitEstimatePerIntent,
	}
}

// Submit validates and accepts one purchase intent, or returns the
// existing WAITING/PROCESSING intent for the same (event_id, session_id)
// idempotently (spec §4.1's dedup rule).
func (s *IntakeService) Submit(ctx context.Context, eventID uuid.UUID, sessionID string, quantity int) (*IntakeHandle, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if ev.HasStarted(now) {
		return nil, domain.ErrUnavailable("event has already started")
	}

	// Fast-path availability check: best-effort, never authoritative. The
	// Allocator re-checks under lock regardless, so a stale cache value
	// can only ever reject early, never oversell.
	available := ev.AvailableTickets
	if s.cache != nil {
		if cached, err := s.cache.GetAvailability(ctx, eventID); err == nil {
			available = cached
		} else if !errors.Is(err, domain.ErrCacheMiss) {
			logger.WithCtx(ctx).Warn().Err(err).Msg("availability cache read failed, falling back to repository value")
		}
	}
	if available <= 0 {
		return nil, domain.ErrUnavailable("no tickets remain")
	}

	existing, err := s.intents.FindExistingActive(ctx, eventID, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.handleFor(ctx, existing)
	}

	arrival := s.arrival.Next(now)
	intent, err := domain.NewPurchaseIntent(eventID, sessionID, quantity, arrival, now)
	if err != nil {
		return nil, err
	}
	if err := s.intents.Insert(ctx, intent); err != nil {
		return nil, err
	}

	metrics.RecordIntentSubmitted(eventID.String())
	logger.WithCtx(ctx).Debug().
		Str("intent_id", intent.ID.String()).
		Str("event_id", eventID.String()).
		Msg("intent accepted")

	return s.handleFor(ctx, intent)
}

// handleFor computes queue_position/estimated_wait_seconds the same way
// the Query Surface's Position operation does (spec §4.6), so a caller
// polling status after Submit sees a consistent number.
func (s *IntakeService) handleFor(ctx context.Context, intent *domain.PurchaseIntent) (*IntakeHandle, error) {
	if intent.Status.IsTerminal() || intent.Status == domain.StatusProcessing {
		return &IntakeHandle{
			IntentID: intent.ID,
			Status:   intent.Status,
		}, nil
	}

	ahead, err := s.intents.CountAhead(ctx, intent.EventID, intent.Arrival)
	if err != nil {
		return nil, err
	}
	position := ahead + 1
	return &IntakeHandle{
		IntentID:             intent.ID,
		QueuePosition:        position,
		EstimatedWaitSeconds: (position - 1) * s.waitEstimate(),
		Status:               intent.Status,
	}, nil
}

func (s *IntakeService) waitEstimate() int64 {
	if s.waitEstimatePerIntent <= 0 {
		return 30
	}
	return s.waitEstimatePerIntent
}
