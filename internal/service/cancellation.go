package service

import (
	"context"

	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/google/uuid"
)

// CancellationService implements Cancellation (spec §4.5).
type CancellationService struct {
	intents domain.IntentRepo
}

func NewCancellationService(intents domain.IntentRepo) *CancellationService {
	return &CancellationService{intents: intents}
}

// Cancel attempts to withdraw a WAITING intent on behalf of its owning
// session. NOT_FOUND/FORBIDDEN are caller mistakes and surface as
// AppError; everything else is a legitimate business outcome carried in
// the returned CancelOutcome, per spec §9's tagged-variant guidance.
func (s *CancellationService) Cancel(ctx context.Context, intentID uuid.UUID, sessionID string) (domain.CancelOutcome, error) {
	intent, err := s.intents.FindByID(ctx, intentID)
	if err != nil {
		return domain.CancelOutcome{}, err
	}
	if intent.SessionID != sessionID {
		return domain.CancelOutcome{}, domain.ErrForbidden("session does not own this intent")
	}

	if intent.Status != domain.StatusWaiting {
		return domain.NotCancellableOutcome(intent.Status), nil
	}

	ok, err := s.intents.CancelIfWaiting(ctx, intentID)
	if err != nil {
		return domain.CancelOutcome{}, err
	}
	if !ok {
		// Lost the race: the Processor claimed it between our read and
		// the conditional update.
		current, err := s.intents.FindByID(ctx, intentID)
		if err != nil {
			return domain.CancelOutcome{}, err
		}
		return domain.NotCancellableOutcome(current.Status), nil
	}
	return domain.CancelledOutcome(), nil
}
