package queue

import (
	"context"
	"time"

	"github.com/baechuer/ticketqueue/internal/clock"
	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/baechuer/ticketqueue/internal/pkg/logger"
)

// Sweeper bulk-transitions stale WAITING intents to EXPIRED on a slow tick
// (spec §4.3 "Expiry sweeper"), independently of the per-intent Processor.
type Sweeper struct {
	Intents domain.IntentRepo
	Clock   clock.Clock
	Ticker  clock.Ticker
	TTL     time.Duration
}

func (s *Sweeper) Run(ctx context.Context) {
	log := logger.Logger.With().Str("component", "expiry_sweeper").Logger()
	defer s.Ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopped")
			return
		case <-s.Ticker.C():
			cutoff := s.Clock.Now().Add(-s.TTL)
			n, err := s.Intents.ExpireOlderThan(ctx, cutoff)
			if err != nil {
				log.Error().Err(err).Msg("expire sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("expired", n).Msg("swept stale waiting intents")
			}
		}
	}
}
