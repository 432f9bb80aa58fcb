package queue

import (
	"context"
	"time"

	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/baechuer/ticketqueue/internal/pkg/logger"
)

// Reconcile transitions intents stranded in PROCESSING by a worker that
// crashed mid-claim straight to FAILED, run once at startup before the
// Processor begins ticking (spec §4.3 "Failure semantics"). staleAfter
// bounds how long a PROCESSING intent is allowed to sit since its last
// update before it's considered abandoned rather than merely slow.
func Reconcile(ctx context.Context, intents domain.IntentRepo, now time.Time, staleAfter time.Duration) (int64, error) {
	cutoff := now.Add(-staleAfter)
	n, err := intents.FailStalePROCESSING(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Logger.Warn().Int64("failed", n).Msg("failed stale processing intents on startup")
	}
	return n, nil
}
