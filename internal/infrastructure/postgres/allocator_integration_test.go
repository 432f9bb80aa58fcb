//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/baechuer/ticketqueue/internal/infrastructure/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	WipeDB(t, pool)
	ApplyMigrations(t, pool, "../../../migrations")
	return pool
}

// TestAllocator_ConcurrentAllocation_NeverOversells is the property test
// spec §8 calls out explicitly: concurrent allocation attempts against one
// event never oversell its total_tickets.
func TestAllocator_ConcurrentAllocation_NeverOversells(t *testing.T) {
	pool := newTestPool(t)
	defer pool.Close()

	events := postgres.NewEventRepository(pool)
	alloc := postgres.NewAllocator(pool)

	ev, err := domain.NewEvent("Concurrency Stress", time.Now().Add(time.Hour), 10, time.Now())
	require.NoError(t, err)
	require.NoError(t, events.Create(context.Background(), ev))

	const attempts = 30

	// tickets.purchase_id references purchase_intents(id), so each attempt
	// allocates against its own persisted intent.
	intents := postgres.NewIntentRepository(pool)
	intentIDs := make([]uuid.UUID, attempts)
	for i := range intentIDs {
		intent, err := domain.NewPurchaseIntent(ev.ID, fmt.Sprintf("session-%d", i), 1, int64(i+1), time.Now())
		require.NoError(t, err)
		require.NoError(t, intents.Insert(context.Background(), intent))
		intentIDs[i] = intent.ID
	}

	var wg sync.WaitGroup
	successes := make([]bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			outcome := alloc.Allocate(context.Background(), ev.ID, intentIDs[idx], 1, time.Now())
			successes[idx] = outcome.Kind == domain.AllocSuccess
		}(i)
	}
	wg.Wait()

	var successCount int
	for _, ok := range successes {
		if ok {
			successCount++
		}
	}
	require.Equal(t, 10, successCount, "exactly total_tickets allocations should succeed")

	got, err := events.GetByID(context.Background(), ev.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.AvailableTickets)
	require.GreaterOrEqual(t, got.Version, int64(11))
}

func TestAllocator_EventPast_Rejected(t *testing.T) {
	pool := newTestPool(t)
	defer pool.Close()

	events := postgres.NewEventRepository(pool)
	alloc := postgres.NewAllocator(pool)

	ev, err := domain.NewEvent("Already Started", time.Now().Add(time.Hour), 5, time.Now())
	require.NoError(t, err)
	require.NoError(t, events.Create(context.Background(), ev))

	outcome := alloc.Allocate(context.Background(), ev.ID, uuid.New(), 1, time.Now().Add(2*time.Hour))
	require.Equal(t, domain.AllocEventPast, outcome.Kind)
}

func TestAllocator_Insufficient_Rejected(t *testing.T) {
	pool := newTestPool(t)
	defer pool.Close()

	events := postgres.NewEventRepository(pool)
	alloc := postgres.NewAllocator(pool)

	ev, err := domain.NewEvent("Tiny Event", time.Now().Add(time.Hour), 2, time.Now())
	require.NoError(t, err)
	require.NoError(t, events.Create(context.Background(), ev))

	outcome := alloc.Allocate(context.Background(), ev.ID, uuid.New(), 5, time.Now())
	require.Equal(t, domain.AllocInsufficient, outcome.Kind)
}
