package service

import (
	"context"

	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/google/uuid"
)

// PositionResult is the Query Surface's Position projection (spec §4.6):
// queue position for a waiting intent, or the outcome of a terminal one.
type PositionResult struct {
	Status               domain.Status
	QueuePosition        int64
	EstimatedWaitSeconds int64
	// TerminalReason carries the outcome once Status.IsTerminal(): a
	// purchase id for COMPLETED, or a human-readable reason otherwise.
	TerminalReason string
	// Event is always populated: spec §6's intent-status response carries
	// the event unconditionally, unlike the position/wait fields.
	Event domain.Event
}

// CompletionResult is the Query Surface's Completion projection (spec §4.6).
type CompletionResult struct {
	Ready    bool
	Status   domain.Status
	Tickets  []domain.Ticket
	Reason   string
}

// QueryService implements the read-only Query Surface: Position, Stats,
// Completion (spec §4.6).
type QueryService struct {
	events                domain.EventRepo
	intents               domain.IntentRepo
	tickets               domain.TicketRepo
	waitEstimatePerIntent int64 // seconds, s in spec §4.6's formula
}

func NewQueryService(events domain.EventRepo, intents domain.IntentRepo, tickets domain.TicketRepo, waitEstimatePerIntent int64) *QueryService {
	return &QueryService{events: events, intents: intents, tickets: tickets, waitEstimatePerIntent: waitEstimatePerIntent}
}

// Position reports an intent's place in line, or its terminal outcome.
func (s *QueryService) Position(ctx context.Context, intentID uuid.UUID) (*PositionResult, error) {
	intent, err := s.intents.FindByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	ev, err := s.events.GetByID(ctx, intent.EventID)
	if err != nil {
		return nil, err
	}

	if intent.Status.IsTerminal() {
		reason := terminalReason(intent.Status)
		if intent.Status == domain.StatusCompleted {
			reason = intent.ID.String()
		}
		return &PositionResult{Status: intent.Status, TerminalReason: reason, Event: *ev}, nil
	}
	if intent.Status == domain.StatusProcessing {
		return &PositionResult{Status: intent.Status, Event: *ev}, nil
	}

	ahead, err := s.intents.CountAhead(ctx, intent.EventID, intent.Arrival)
	if err != nil {
		return nil, err
	}
	position := ahead + 1
	return &PositionResult{
		Status:               intent.Status,
		QueuePosition:        position,
		EstimatedWaitSeconds: (position - 1) * s.waitEstimate(),
		Event:                *ev,
	}, nil
}

// Stats reports per-status intent counts for one event (spec §4.6).
func (s *QueryService) Stats(ctx context.Context, eventID uuid.UUID) (domain.EventStats, error) {
	return s.intents.StatsByEvent(ctx, eventID)
}

// Completion reports the terminal outcome of an intent, or Ready=false if
// it has not reached one yet.
func (s *QueryService) Completion(ctx context.Context, intentID uuid.UUID) (*CompletionResult, error) {
	intent, err := s.intents.FindByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if !intent.Status.IsTerminal() {
		return &CompletionResult{Ready: false, Status: intent.Status}, nil
	}

	result := &CompletionResult{Ready: true, Status: intent.Status}
	if intent.Status == domain.StatusCompleted {
		tickets, err := s.tickets.ListByPurchaseID(ctx, intent.ID)
		if err != nil {
			return nil, err
		}
		result.Tickets = tickets
	} else {
		result.Reason = terminalReason(intent.Status)
	}
	return result, nil
}

func terminalReason(status domain.Status) string {
	switch status {
	case domain.StatusFailed:
		return "allocation failed: insufficient tickets or the event has already started"
	case domain.StatusExpired:
		return "intent expired before it could be processed"
	default:
		return ""
	}
}

func (s *QueryService) waitEstimate() int64 {
	if s.waitEstimatePerIntent <= 0 {
		return 30
	}
	return s.waitEstimatePerIntent
}
