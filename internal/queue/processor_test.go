package queue_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/baechuer/ticketqueue/internal/clock"
	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/baechuer/ticketqueue/internal/queue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventRepo struct {
	mu     sync.Mutex
	events map[uuid.UUID]domain.Event
}

func newFakeEventRepo(evs ...domain.Event) *fakeEventRepo {
	m := map[uuid.UUID]domain.Event{}
	for _, e := range evs {
		m[e.ID] = e
	}
	return &fakeEventRepo{events: m}
}

func (f *fakeEventRepo) Create(ctx context.Context, e *domain.Event) error { return nil }
func (f *fakeEventRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.events[id]
	return &e, nil
}
func (f *fakeEventRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return f.GetByID(ctx, id)
}
func (f *fakeEventRepo) ConditionalDecrement(ctx context.Context, id uuid.UUID, qty int, expectVersion int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.events[id]
	if e.Version != expectVersion || e.AvailableTickets < qty {
		return false, nil
	}
	e.AvailableTickets -= qty
	e.Version++
	f.events[id] = e
	return true, nil
}
func (f *fakeEventRepo) List(ctx context.Context, limit int) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Event
	for _, e := range f.events {
		out = append(out, e)
	}
	return out, nil
}

type fakeIntentRepo struct {
	mu      sync.Mutex
	intents map[uuid.UUID]domain.PurchaseIntent
}

func newFakeIntentRepo(intents ...domain.PurchaseIntent) *fakeIntentRepo {
	m := map[uuid.UUID]domain.PurchaseIntent{}
	for _, i := range intents {
		m[i.ID] = i
	}
	return &fakeIntentRepo{intents: m}
}

func (f *fakeIntentRepo) Insert(ctx context.Context, i *domain.PurchaseIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[i.ID] = *i
	return nil
}

func (f *fakeIntentRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.intents[id]
	if !ok || i.Status != domain.StatusWaiting {
		return false, nil
	}
	i.Status = domain.StatusProcessing
	f.intents[id] = i
	return true, nil
}

func (f *fakeIntentRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.intents[id]
	i.Status = status
	f.intents[id] = i
	return nil
}

func (f *fakeIntentRepo) FindExistingActive(ctx context.Context, eventID uuid.UUID, sessionID string) (*domain.PurchaseIntent, error) {
	return nil, nil
}

func (f *fakeIntentRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.intents[id]
	if !ok {
		return nil, domain.ErrNotFound("not found")
	}
	return &i, nil
}

func (f *fakeIntentRepo) NextWaitingForEvent(ctx context.Context, eventID uuid.UUID, limit int) ([]domain.PurchaseIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PurchaseIntent
	for _, i := range f.intents {
		if i.EventID == eventID && i.Status == domain.StatusWaiting {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Arrival < out[b].Arrival })
	return out, nil
}

func (f *fakeIntentRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeIntentRepo) CountAhead(ctx context.Context, eventID uuid.UUID, arrival int64) (int64, error) {
	return 0, nil
}

func (f *fakeIntentRepo) StatsByEvent(ctx context.Context, eventID uuid.UUID) (domain.EventStats, error) {
	return domain.EventStats{}, nil
}

func (f *fakeIntentRepo) FailStalePROCESSING(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeIntentRepo) CancelIfWaiting(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.intents[id]
	if !ok || i.Status != domain.StatusWaiting {
		return false, nil
	}
	i.Status = domain.StatusExpired
	f.intents[id] = i
	return true, nil
}

type fakeAllocator struct {
	events *fakeEventRepo
}

func (a *fakeAllocator) Allocate(ctx context.Context, eventID, purchaseID uuid.UUID, qty int, now time.Time) domain.AllocOutcome {
	ev, _ := a.events.GetByID(ctx, eventID)
	if ev.HasStarted(now) {
		return domain.AllocEventPastOutcome()
	}
	ok, _ := a.events.ConditionalDecrement(ctx, eventID, qty, ev.Version)
	if !ok {
		return domain.AllocInsufficientOutcome()
	}
	return domain.AllocSuccessOutcome([]domain.Ticket{{ID: uuid.New(), EventID: eventID, PurchaseID: purchaseID}})
}

type manualTicker struct {
	c chan time.Time
}

func newManualTicker() *manualTicker  { return &manualTicker{c: make(chan time.Time, 1)} }
func (m *manualTicker) C() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()               {}
func (m *manualTicker) fire()               { m.c <- time.Now() }

func TestProcessor_DrainsWaitingIntentsInArrivalOrder(t *testing.T) {
	now := time.Now()
	ev, err := domain.NewEvent("Concert", now.Add(time.Hour), 1, now)
	require.NoError(t, err)

	i1, err := domain.NewPurchaseIntent(ev.ID, "session-a", 1, 1, now)
	require.NoError(t, err)
	i2, err := domain.NewPurchaseIntent(ev.ID, "session-b", 1, 2, now)
	require.NoError(t, err)

	events := newFakeEventRepo(*ev)
	intents := newFakeIntentRepo(*i1, *i2)

	ticker := newManualTicker()
	p := &queue.Processor{
		Events:      events,
		Intents:     intents,
		Alloc:       &fakeAllocator{events: events},
		Clock:       clock.Real{},
		Ticker:      ticker,
		Health:      &queue.Health{},
		BatchSize:   10,
		MaxAttempts: 3,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	ticker.fire()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	got1, _ := intents.FindByID(context.Background(), i1.ID)
	got2, _ := intents.FindByID(context.Background(), i2.ID)

	// Only one ticket was available: the earlier-arrival intent wins.
	assert.Equal(t, domain.StatusCompleted, got1.Status)
	assert.Equal(t, domain.StatusFailed, got2.Status)

	snap := p.Health.Snapshot()
	assert.Equal(t, int64(2), snap.Claimed)
	assert.Equal(t, int64(1), snap.Completed)
	assert.Equal(t, int64(1), snap.Failed)
}
