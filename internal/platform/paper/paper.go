// Package paper provides an in-memory simulated venue for dry runs and
// tests. Fills happen instantly at the last seeded price; nothing ever
// touches a real terminal.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
)

type holding struct {
	symbol string
	side   domain.OrderSide
	volume decimal.Decimal
	entry  decimal.Decimal
}

// Venue simulates execution with per-symbol mutable prices.
type Venue struct {
	mu       sync.Mutex
	prices   map[string]decimal.Decimal
	holdings map[string]*holding // ticket -> holding
	seq      int64
}

// NewVenue creates an empty paper venue. Symbols without a seeded price fill
// at 1.0.
func NewVenue() *Venue {
	return &Venue{
		prices:   make(map[string]decimal.Decimal),
		holdings: make(map[string]*holding),
	}
}

// Name identifies the venue in logs and metrics.
func (v *Venue) Name() string { return "paper" }

// SetPrice seeds or moves the simulated price for a symbol.
func (v *Venue) SetPrice(symbol string, price decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prices[symbol] = price
}

func (v *Venue) priceLocked(symbol string) decimal.Decimal {
	if p, ok := v.prices[symbol]; ok {
		return p
	}
	return decimal.NewFromInt(1)
}

// Open fills immediately at the current simulated price (or the requested
// entry, for limit orders) and registers a holding under a fresh ticket.
func (v *Venue) Open(ctx context.Context, req domain.OpenRequest) (domain.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExecutionResult{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	fill := v.priceLocked(req.Symbol)
	if req.Kind == domain.OrderKindLimit && req.RequestedEntry != nil {
		fill = *req.RequestedEntry
	}

	v.seq++
	ticket := fmt.Sprintf("P-%06d", v.seq)
	v.holdings[ticket] = &holding{
		symbol: req.Symbol,
		side:   req.Side,
		volume: req.Volume,
		entry:  fill,
	}

	return domain.ExecutionResult{
		Success:     true,
		VenueTicket: ticket,
		FillPrice:   fill,
		FillTime:    time.Now().UTC(),
	}, nil
}

// Close removes up to req.Volume from the holding and fills at the current
// price. An unknown ticket is a definitive rejection, not a transport error.
func (v *Venue) Close(ctx context.Context, req domain.CloseRequest) (domain.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExecutionResult{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	h, ok := v.holdings[req.VenueTicket]
	if !ok {
		return domain.ExecutionResult{
			Success:     false,
			VenueTicket: req.VenueTicket,
			Message:     "unknown ticket",
		}, nil
	}
	if req.Volume.GreaterThan(h.volume) {
		return domain.ExecutionResult{
			Success:     false,
			VenueTicket: req.VenueTicket,
			Message:     "close volume exceeds holding",
		}, nil
	}

	fill := v.priceLocked(h.symbol)
	h.volume = h.volume.Sub(req.Volume)
	if h.volume.IsZero() {
		delete(v.holdings, req.VenueTicket)
	}

	return domain.ExecutionResult{
		Success:     true,
		VenueTicket: req.VenueTicket,
		FillPrice:   fill,
		FillTime:    time.Now().UTC(),
	}, nil
}

// Compile-time interface check.
var _ domain.Venue = (*Venue)(nil)
