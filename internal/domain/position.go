package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus tracks whether a position is open, mid-close, or closed.
type PositionStatus string

const (
	PositionStatusOpen    PositionStatus = "open"
	PositionStatusClosing PositionStatus = "closing"
	PositionStatusClosed  PositionStatus = "closed"
)

// Position represents a holding created by a successfully executed order. It
// links back to that order through VenueTicket (1:1). Closing is the transient
// state held while a close is in flight at the venue; a failed close rolls the
// position back to open, which is the only permitted status rollback.
type Position struct {
	ID           string
	VenueTicket  string
	OrderID      string
	Symbol       string
	Side         OrderSide
	Volume       decimal.Decimal
	EntryPrice   decimal.Decimal
	CurrentPrice decimal.Decimal
	StopLoss     *decimal.Decimal
	TakeProfit   *decimal.Decimal
	Status       PositionStatus
	RealizedPnL  decimal.Decimal
	Version      int64
	OpenedAt     time.Time
	ClosedAt     *time.Time
}

// StopAllowed reports whether stop sits on the losing side of entry: strictly
// below for a BUY, strictly above for a SELL. A stop on the wrong side would
// be an immediate self-trigger and must never be attached to a position.
func StopAllowed(side OrderSide, stop, entry decimal.Decimal) bool {
	if side == OrderSideSell {
		return stop.GreaterThan(entry)
	}
	return stop.LessThan(entry)
}

// RealizedOn computes the profit realized by closing volume units at
// exitPrice against the position's entry price. Buys profit when price rises,
// sells when it falls.
func (p Position) RealizedOn(exitPrice, volume decimal.Decimal) decimal.Decimal {
	diff := exitPrice.Sub(p.EntryPrice)
	if p.Side == OrderSideSell {
		diff = diff.Neg()
	}
	return diff.Mul(volume)
}
