package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CommandAction selects which side effect a command requests.
type CommandAction string

const (
	ActionOpen  CommandAction = "OPEN"
	ActionClose CommandAction = "CLOSE"
)

// Command is the inbound trade intent pulled from the queue. It is a tagged
// union over Action: OPEN commands carry the full order parameters keyed by
// OrderID, CLOSE commands reference an existing position by VenueTicket.
type Command struct {
	Action         CommandAction    `json:"action"`
	OrderID        string           `json:"order_id"`
	VenueTicket    string           `json:"venue_ticket,omitempty"`
	Symbol         string           `json:"symbol"`
	Side           OrderSide        `json:"side"`
	Volume         decimal.Decimal  `json:"volume"`
	Kind           OrderKind        `json:"kind"`
	RequestedEntry *decimal.Decimal `json:"requested_entry,omitempty"`
	StopLoss       *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit     *decimal.Decimal `json:"take_profit,omitempty"`
	CloseVolume    *decimal.Decimal `json:"close_volume,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	RequestedBy    string           `json:"requested_by,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// Validate rejects malformed commands before any side effect. Violations are
// terminal: they wrap ErrInvalidCommand and are never redelivered.
func (c Command) Validate() error {
	switch c.Action {
	case ActionOpen:
		return c.validateOpen()
	case ActionClose:
		return c.validateClose()
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, c.Action)
	}
}

func (c Command) validateOpen() error {
	if c.OrderID == "" {
		return fmt.Errorf("%w: order_id is required for OPEN", ErrInvalidCommand)
	}
	if c.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidCommand)
	}
	if c.Side != OrderSideBuy && c.Side != OrderSideSell {
		return fmt.Errorf("%w: side must be BUY or SELL, got %q", ErrInvalidCommand, c.Side)
	}
	if !c.Volume.IsPositive() {
		return fmt.Errorf("%w: volume must be positive, got %s", ErrInvalidCommand, c.Volume)
	}
	switch c.Kind {
	case OrderKindLimit:
		if c.RequestedEntry == nil {
			return fmt.Errorf("%w: requested_entry is required for LIMIT orders", ErrInvalidCommand)
		}
		if !c.RequestedEntry.IsPositive() {
			return fmt.Errorf("%w: requested_entry must be positive", ErrInvalidCommand)
		}
	case OrderKindMarket:
		if c.RequestedEntry != nil {
			return fmt.Errorf("%w: requested_entry must be absent for MARKET orders", ErrInvalidCommand)
		}
	default:
		return fmt.Errorf("%w: kind must be MARKET or LIMIT, got %q", ErrInvalidCommand, c.Kind)
	}
	if c.StopLoss != nil && c.RequestedEntry != nil {
		// For limit orders the stop must sit on the losing side of the entry.
		if c.Side == OrderSideBuy && !c.StopLoss.LessThan(*c.RequestedEntry) {
			return fmt.Errorf("%w: stop_loss must be below entry for BUY", ErrInvalidCommand)
		}
		if c.Side == OrderSideSell && !c.StopLoss.GreaterThan(*c.RequestedEntry) {
			return fmt.Errorf("%w: stop_loss must be above entry for SELL", ErrInvalidCommand)
		}
	}
	return nil
}

func (c Command) validateClose() error {
	if c.VenueTicket == "" {
		return fmt.Errorf("%w: venue_ticket is required for CLOSE", ErrInvalidCommand)
	}
	if c.CloseVolume != nil && !c.CloseVolume.IsPositive() {
		return fmt.Errorf("%w: close_volume must be positive when set", ErrInvalidCommand)
	}
	return nil
}

// NewOrder builds the pending Order record for an OPEN command. The store
// assigns version 1 on create.
func NewOrder(c Command, now time.Time) Order {
	return Order{
		ID:             c.OrderID,
		Symbol:         c.Symbol,
		Side:           c.Side,
		Volume:         c.Volume,
		Kind:           c.Kind,
		RequestedEntry: c.RequestedEntry,
		StopLoss:       c.StopLoss,
		TakeProfit:     c.TakeProfit,
		Status:         OrderStatusPending,
		RequestedBy:    c.RequestedBy,
		CreatedAt:      now,
	}
}
