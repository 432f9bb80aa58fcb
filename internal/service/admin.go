package service

import (
	"context"
	"time"

	"github.com/baechuer/ticketqueue/internal/clock"
	"github.com/baechuer/ticketqueue/internal/domain"
)

// AdminService implements event administration (spec §4.7): today that is
// just event creation, the one write operation outside the buyer-facing
// queue flow.
type AdminService struct {
	events domain.EventRepo
	clock  clock.Clock
}

func NewAdminService(events domain.EventRepo, clk clock.Clock) *AdminService {
	return &AdminService{events: events, clock: clk}
}

// CreateEvent validates and persists a new event with full availability.
func (s *AdminService) CreateEvent(ctx context.Context, name string, startsAt time.Time, totalTickets int) (*domain.Event, error) {
	ev, err := domain.NewEvent(name, startsAt, totalTickets, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.events.Create(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
