package service_test

import (
	"context"
	"time"

	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockEventRepo struct{ mock.Mock }

func (m *MockEventRepo) Create(ctx context.Context, e *domain.Event) error {
	return m.Called(ctx, e).Error(0)
}
func (m *MockEventRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	args := m.Called(ctx, id)
	var e *domain.Event
	if v := args.Get(0); v != nil {
		e = v.(*domain.Event)
	}
	return e, args.Error(1)
}
func (m *MockEventRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return m.GetByID(ctx, id)
}
func (m *MockEventRepo) ConditionalDecrement(ctx context.Context, id uuid.UUID, qty int, expectVersion int64) (bool, error) {
	args := m.Called(ctx, id, qty, expectVersion)
	return args.Bool(0), args.Error(1)
}
func (m *MockEventRepo) List(ctx context.Context, limit int) ([]domain.Event, error) {
	args := m.Called(ctx, limit)
	var out []domain.Event
	if v := args.Get(0); v != nil {
		out = v.([]domain.Event)
	}
	return out, args.Error(1)
}

type MockIntentRepo struct{ mock.Mock }

func (m *MockIntentRepo) Insert(ctx context.Context, i *domain.PurchaseIntent) error {
	return m.Called(ctx, i).Error(0)
}
func (m *MockIntentRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
func (m *MockIntentRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	return m.Called(ctx, id, status).Error(0)
}
func (m *MockIntentRepo) CancelIfWaiting(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
func (m *MockIntentRepo) FindExistingActive(ctx context.Context, eventID uuid.UUID, sessionID string) (*domain.PurchaseIntent, error) {
	args := m.Called(ctx, eventID, sessionID)
	var i *domain.PurchaseIntent
	if v := args.Get(0); v != nil {
		i = v.(*domain.PurchaseIntent)
	}
	return i, args.Error(1)
}
func (m *MockIntentRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseIntent, error) {
	args := m.Called(ctx, id)
	var i *domain.PurchaseIntent
	if v := args.Get(0); v != nil {
		i = v.(*domain.PurchaseIntent)
	}
	return i, args.Error(1)
}
func (m *MockIntentRepo) NextWaitingForEvent(ctx context.Context, eventID uuid.UUID, limit int) ([]domain.PurchaseIntent, error) {
	args := m.Called(ctx, eventID, limit)
	var out []domain.PurchaseIntent
	if v := args.Get(0); v != nil {
		out = v.([]domain.PurchaseIntent)
	}
	return out, args.Error(1)
}
func (m *MockIntentRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockIntentRepo) CountAhead(ctx context.Context, eventID uuid.UUID, arrival int64) (int64, error) {
	args := m.Called(ctx, eventID, arrival)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockIntentRepo) StatsByEvent(ctx context.Context, eventID uuid.UUID) (domain.EventStats, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(domain.EventStats), args.Error(1)
}
func (m *MockIntentRepo) FailStalePROCESSING(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type MockTicketRepo struct{ mock.Mock }

func (m *MockTicketRepo) InsertBulk(ctx context.Context, tickets []domain.Ticket) error {
	return m.Called(ctx, tickets).Error(0)
}
func (m *MockTicketRepo) ListByPurchaseID(ctx context.Context, purchaseID uuid.UUID) ([]domain.Ticket, error) {
	args := m.Called(ctx, purchaseID)
	var out []domain.Ticket
	if v := args.Get(0); v != nil {
		out = v.([]domain.Ticket)
	}
	return out, args.Error(1)
}

type MockCache struct{ mock.Mock }

func (m *MockCache) GetAvailability(ctx context.Context, eventID uuid.UUID) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }
