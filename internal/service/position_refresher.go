// Package service holds the long-running maintenance loops that sit next to
// the command pipeline: the position price refresher and the state archiver.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
)

// PositionRefresher consumes price ticks and periodically writes the latest
// mark price onto open positions. It is a best-effort loop: a missed update
// only delays the next mark, so conflicts with the command processor are
// resolved by skipping, never by fighting over the version.
type PositionRefresher struct {
	positions domain.PositionStore
	quotes    <-chan domain.Quote
	interval  time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

// NewPositionRefresher builds a refresher that flushes marks every interval.
func NewPositionRefresher(positions domain.PositionStore, quotes <-chan domain.Quote, interval time.Duration, logger *slog.Logger) *PositionRefresher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &PositionRefresher{
		positions: positions,
		quotes:    quotes,
		interval:  interval,
		logger:    logger.With(slog.String("component", "refresher")),
		prices:    make(map[string]decimal.Decimal),
	}
}

// Run blocks until ctx is cancelled, absorbing ticks and flushing marks on
// the configured interval.
func (r *PositionRefresher) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "position refresher starting",
		slog.Duration("interval", r.interval),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case q, ok := <-r.quotes:
			if !ok {
				return errors.New("quote stream closed")
			}
			r.absorb(q)
		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

// absorb records the mid price of a tick as the symbol's latest mark.
func (r *PositionRefresher) absorb(q domain.Quote) {
	mid := q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
	r.mu.Lock()
	r.prices[q.Symbol] = mid
	r.mu.Unlock()
}

// flush writes the latest marks onto every open position that has one.
func (r *PositionRefresher) flush(ctx context.Context) {
	marks := r.snapshot()
	if len(marks) == 0 {
		return
	}

	open, err := r.positions.ListOpen(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "could not list open positions",
			slog.String("error", err.Error()),
		)
		return
	}

	for _, pos := range open {
		mark, ok := marks[pos.Symbol]
		if !ok || mark.Equal(pos.CurrentPrice) {
			continue
		}
		if err := r.refreshOne(ctx, pos, mark); err != nil {
			r.logger.WarnContext(ctx, "mark update failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// refreshOne applies one mark via a conditional write. A version conflict
// means the command processor got there first; reload once and retry only if
// the position is still plain open.
func (r *PositionRefresher) refreshOne(ctx context.Context, pos domain.Position, mark decimal.Decimal) error {
	pos.CurrentPrice = mark
	err := r.positions.Update(ctx, pos)
	if !errors.Is(err, domain.ErrVersionConflict) {
		return err
	}

	current, gerr := r.positions.GetByID(ctx, pos.ID)
	if gerr != nil {
		return gerr
	}
	if current.Status != domain.PositionStatusOpen {
		// Close in flight; the mark no longer matters.
		return nil
	}
	current.CurrentPrice = mark
	return r.positions.Update(ctx, current)
}

func (r *PositionRefresher) snapshot() map[string]decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(r.prices))
	for sym, price := range r.prices {
		out[sym] = price
	}
	return out
}
