package queue

import (
	"sync/atomic"
	"time"
)

// Health exposes the Processor Health query surface operation (spec §6):
// cumulative counters and timing a caller can snapshot without touching
// the database.
type Health struct {
	running           atomic.Bool
	claimed           atomic.Int64
	completed         atomic.Int64
	failed            atomic.Int64
	expired           atomic.Int64
	conflicts         atomic.Int64
	lastProcessedUnix atomic.Int64
	totalNanos        atomic.Int64
	totalProcessed    atomic.Int64
}

type HealthSnapshot struct {
	IsRunning              bool
	LastProcessedAt        time.Time
	TotalProcessed         int64
	TotalFailed            int64
	AverageProcessingTimeMS float64
	Claimed                int64
	Completed              int64
	Failed                 int64
	Expired                int64
	Conflicts              int64
}

func (h *Health) setRunning(running bool) { h.running.Store(running) }

// observe records one claim-to-resolution duration, feeding the
// average_processing_time_ms figure in the Processor Health response.
func (h *Health) observe(d time.Duration, now time.Time) {
	h.lastProcessedUnix.Store(now.UnixNano())
	h.totalNanos.Add(d.Nanoseconds())
	h.totalProcessed.Add(1)
}

func (h *Health) Snapshot() HealthSnapshot {
	total := h.totalProcessed.Load()
	var avgMS float64
	if total > 0 {
		avgMS = float64(h.totalNanos.Load()) / float64(total) / float64(time.Millisecond)
	}
	var lastAt time.Time
	if ns := h.lastProcessedUnix.Load(); ns > 0 {
		lastAt = time.Unix(0, ns)
	}
	return HealthSnapshot{
		IsRunning:               h.running.Load(),
		LastProcessedAt:         lastAt,
		TotalProcessed:          total,
		TotalFailed:             h.failed.Load(),
		AverageProcessingTimeMS: avgMS,
		Claimed:                 h.claimed.Load(),
		Completed:               h.completed.Load(),
		Failed:                  h.failed.Load(),
		Expired:                 h.expired.Load(),
		Conflicts:               h.conflicts.Load(),
	}
}
