package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/baechuer/ticketqueue/internal/clock"
	"github.com/baechuer/ticketqueue/internal/domain"
	"github.com/baechuer/ticketqueue/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestIntakeService_Submit_NewIntent(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	eventID := uuid.New()
	ev := &domain.Event{ID: eventID, StartsAt: now.Add(time.Hour), AvailableTickets: 5, Version: 1}

	events := new(MockEventRepo)
	intents := new(MockIntentRepo)
	events.On("GetByID", ctx, eventID).Return(ev, nil).Once()
	intents.On("FindExistingActive", ctx, eventID, "session-a").Return(nil, nil).Once()
	intents.On("Insert", ctx, mock.Anything).Return(nil).Once()
	intents.On("CountAhead", ctx, eventID, mock.Anything).Return(int64(0), nil).Once()

	svc := service.NewIntakeService(events, intents, nil, fakeClock{now: now}, clock.NewArrival(), 30)
	handle, err := svc.Submit(ctx, eventID, "session-a", 2)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, handle.Status)
	assert.Equal(t, int64(1), handle.QueuePosition)
	events.AssertExpectations(t)
	intents.AssertExpectations(t)
}

func TestIntakeService_Submit_EventPast(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	eventID := uuid.New()
	ev := &domain.Event{ID: eventID, StartsAt: now.Add(-time.Hour), AvailableTickets: 5}

	events := new(MockEventRepo)
	intents := new(MockIntentRepo)
	events.On("GetByID", ctx, eventID).Return(ev, nil).Once()

	svc := service.NewIntakeService(events, intents, nil, fakeClock{now: now}, clock.NewArrival(), 30)
	_, err := svc.Submit(ctx, eventID, "session-a", 1)

	assert.True(t, domain.IsCode(err, domain.CodeUnavailable))
	intents.AssertNotCalled(t, "FindExistingActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestIntakeService_Submit_DedupReturnsExisting(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	eventID := uuid.New()
	ev := &domain.Event{ID: eventID, StartsAt: now.Add(time.Hour), AvailableTickets: 5}
	existing := &domain.PurchaseIntent{ID: uuid.New(), EventID: eventID, SessionID: "session-a", Arrival: 7, Status: domain.StatusWaiting}

	events := new(MockEventRepo)
	intents := new(MockIntentRepo)
	events.On("GetByID", ctx, eventID).Return(ev, nil).Once()
	intents.On("FindExistingActive", ctx, eventID, "session-a").Return(existing, nil).Once()
	intents.On("CountAhead", ctx, eventID, int64(7)).Return(int64(2), nil).Once()

	svc := service.NewIntakeService(events, intents, nil, fakeClock{now: now}, clock.NewArrival(), 30)
	handle, err := svc.Submit(ctx, eventID, "session-a", 1)

	require.NoError(t, err)
	assert.Equal(t, existing.ID, handle.IntentID)
	assert.Equal(t, int64(3), handle.QueuePosition)
	intents.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}
