package domain

import (
	"context"
	"time"
)

// OrderStore persists orders with conditional-write semantics. Update is a
// compare-and-swap on Version: it succeeds only when the caller presents the
// currently stored version, and bumps it by exactly one. The ticket methods
// maintain the sparse venue_ticket -> order_id reverse index, populated only
// while a ticket refers to an executed order with an active position.
type OrderStore interface {
	// Create inserts the order at version 1, or returns ErrAlreadyExists.
	Create(ctx context.Context, order Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	// Update writes the order conditional on order.Version and increments it.
	// Returns ErrVersionConflict when a newer version is already stored.
	Update(ctx context.Context, order Order) error
	ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]Order, error)

	BindTicket(ctx context.Context, venueTicket, orderID string) error
	ResolveTicket(ctx context.Context, venueTicket string) (string, error)
	UnbindTicket(ctx context.Context, venueTicket string) error
}

// PositionStore persists positions under the same CAS protocol as OrderStore.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	GetByTicket(ctx context.Context, venueTicket string) (Position, error)
	Update(ctx context.Context, pos Position) error
	ListOpen(ctx context.Context) ([]Position, error)
	ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Position, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, limit int) ([]AuditEntry, error)
}
