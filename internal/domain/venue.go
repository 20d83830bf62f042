package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OpenRequest carries the parameters for placing an order at the venue.
type OpenRequest struct {
	Symbol         string
	Side           OrderSide
	Volume         decimal.Decimal
	Kind           OrderKind
	RequestedEntry *decimal.Decimal
	StopLoss       *decimal.Decimal
	TakeProfit     *decimal.Decimal
}

// CloseRequest closes all or part of the holding behind a venue ticket.
type CloseRequest struct {
	VenueTicket string
	Symbol      string
	Volume      decimal.Decimal
}

// ExecutionResult is the venue's answer to an open or close request. Success
// false with a nil transport error means the venue definitively rejected the
// request.
type ExecutionResult struct {
	Success     bool
	VenueTicket string
	FillPrice   decimal.Decimal
	FillTime    time.Time
	Message     string
}

// Venue abstracts the external execution counterparty. Calls are NOT
// idempotent: invoking Open twice for the same intent may open two positions.
// The adapter performs no retries; idempotency is the command processor's
// job.
type Venue interface {
	Name() string
	Open(ctx context.Context, req OpenRequest) (ExecutionResult, error)
	Close(ctx context.Context, req CloseRequest) (ExecutionResult, error)
}

// Quote is a price tick for a symbol, used to refresh open positions.
type Quote struct {
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Time   time.Time
}
