package domain

import (
	"time"

	"github.com/google/uuid"
)

// Ticket is one fungible seat issued by the Allocator. Tickets are created
// only inside the Allocator's transaction and are never mutated afterward
// (spec §3's lifecycle note) — there is deliberately no Update method here.
type Ticket struct {
	ID         uuid.UUID
	EventID    uuid.UUID
	PurchaseID uuid.UUID // equals the originating PurchaseIntent.ID
	IssuedAt   time.Time
}
