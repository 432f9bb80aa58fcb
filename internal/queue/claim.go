package queue

import (
	"context"
	"math"
	"time"

	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/baechuer/ticketqueue/internal/metrics"
	"github.com/rs/zerolog"
)

// claimAndProcess implements spec §4.3's per-intent claim-and-process:
// claim, check expiry, then up to MaxAttempts Allocator tries under a hard
// per-attempt time budget, backing off 2^attempt seconds between retryable
// failures.
func (p *Processor) claimAndProcess(ctx context.Context, intent domain.PurchaseIntent, log zerolog.Logger) {
	ok, err := p.Intents.Claim(ctx, intent.ID)
	if err != nil {
		log.Error().Err(err).Str("intent_id", intent.ID.String()).Msg("claim failed")
		return
	}
	if !ok {
		// Lost the race to another worker, or the sweeper expired it first.
		return
	}
	p.Health.claimed.Add(1)
	claimedAt := p.Clock.Now()

	now := claimedAt
	if p.IntentTTL > 0 && now.Sub(intent.CreatedAt) > p.IntentTTL {
		p.Health.observe(0, now)
		p.finish(ctx, intent, domain.StatusExpired, log)
		return
	}

	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	budget := p.PerIntentTimeout
	if budget <= 0 {
		budget = 30 * time.Second
	}

	var outcome domain.AllocOutcome
	for attempt := 0; attempt < maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, budget)
		attemptStart := p.Clock.Now()
		outcome = p.Alloc.Allocate(attemptCtx, intent.EventID, intent.ID, intent.Quantity, attemptStart)
		metrics.ObserveAllocationDuration(p.Clock.Now().Sub(attemptStart))
		cancel()

		if !outcome.Retryable() {
			break
		}
		p.Health.conflicts.Add(1)
		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(claimBackoff(attempt)):
		}
	}

	finishedAt := p.Clock.Now()
	p.Health.observe(finishedAt.Sub(claimedAt), finishedAt)
	p.resolve(ctx, intent, outcome, log)
}

// claimBackoff is 2^attempt seconds, per spec §4.3 step 3.
func claimBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func (p *Processor) resolve(ctx context.Context, intent domain.PurchaseIntent, outcome domain.AllocOutcome, log zerolog.Logger) {
	switch outcome.Kind {
	case domain.AllocSuccess:
		p.Health.completed.Add(1)
		p.finish(ctx, intent, domain.StatusCompleted, log)
	case domain.AllocInsufficient, domain.AllocEventPast:
		p.Health.failed.Add(1)
		p.finish(ctx, intent, domain.StatusFailed, log)
	default:
		// Conflict/Timeout still failing on the last attempt, or Internal,
		// which is not retried.
		p.Health.failed.Add(1)
		log.Warn().
			Str("intent_id", intent.ID.String()).
			Str("kind", string(outcome.Kind)).
			Err(outcome.Err).
			Msg("allocation exhausted retries")
		p.finish(ctx, intent, domain.StatusFailed, log)
	}
}

func (p *Processor) finish(ctx context.Context, intent domain.PurchaseIntent, final domain.Status, log zerolog.Logger) {
	if err := p.Intents.SetStatus(ctx, intent.ID, final); err != nil {
		log.Error().Err(err).Str("intent_id", intent.ID.String()).Msg("set status failed")
		return
	}
	if final == domain.StatusExpired {
		p.Health.expired.Add(1)
	}
	metrics.RecordIntentResolved(string(final))
}
