package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderKind distinguishes market from limit execution.
type OrderKind string

const (
	OrderKindMarket OrderKind = "MARKET"
	OrderKindLimit  OrderKind = "LIMIT"
)

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusExecuting OrderStatus = "executing"
	OrderStatusExecuted  OrderStatus = "executed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusClosed    OrderStatus = "closed"
)

// statusRank orders the lifecycle states so transitions can be checked for
// forward progress. Terminal states share a rank; closed comes after executed
// because a full position close updates the originating order one last time.
var statusRank = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusExecuting: 1,
	OrderStatusExecuted:  2,
	OrderStatusFailed:    2,
	OrderStatusCancelled: 2,
	OrderStatusClosed:    3,
}

// CanTransition reports whether moving from s to next is a legal forward
// transition. Status never regresses; failed/cancelled are terminal, and only
// executed may advance to closed.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	if next == OrderStatusClosed {
		return s == OrderStatusExecuted
	}
	if s == OrderStatusFailed || s == OrderStatusCancelled || s == OrderStatusClosed {
		return false
	}
	return to > from
}

// Terminal reports whether the status admits no further venue activity.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusExecuted, OrderStatusFailed, OrderStatusCancelled, OrderStatusClosed:
		return true
	}
	return false
}

// Order represents a trade intent and its outcome. The ID is the caller's
// idempotency key; Version backs the store's conditional-write protocol.
type Order struct {
	ID             string
	Symbol         string
	Side           OrderSide
	Volume         decimal.Decimal
	Kind           OrderKind
	RequestedEntry *decimal.Decimal
	StopLoss       *decimal.Decimal
	TakeProfit     *decimal.Decimal
	Status         OrderStatus
	VenueTicket    string // set once the venue confirms execution
	FillPrice      *decimal.Decimal
	FailureReason  string
	RequestedBy    string
	Version        int64
	CreatedAt      time.Time
	ExecutedAt     *time.Time
}
