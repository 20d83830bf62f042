package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts the order at version 1. A duplicate primary key maps to
// domain.ErrAlreadyExists so the processor can resolve redelivered commands
// from existing state.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	const query = `
		INSERT INTO orders (
			id, symbol, side, volume, kind,
			requested_entry, stop_loss, take_profit,
			status, venue_ticket, fill_price, failure_reason, requested_by,
			version, created_at, executed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12, $13,
			1, $14, $15, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.Symbol, string(o.Side), o.Volume, string(o.Kind),
		nullDec(o.RequestedEntry), nullDec(o.StopLoss), nullDec(o.TakeProfit),
		string(o.Status), nullStr(o.VenueTicket), nullDec(o.FillPrice),
		o.FailureReason, o.RequestedBy,
		o.CreatedAt, o.ExecutedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}
	return nil
}

// Update writes the order conditional on o.Version and bumps the stored
// version by one. It returns domain.ErrVersionConflict when another writer
// got there first.
func (s *OrderStore) Update(ctx context.Context, o domain.Order) error {
	const query = `
		UPDATE orders SET
			status = $1, venue_ticket = $2, fill_price = $3,
			failure_reason = $4, executed_at = $5,
			version = version + 1, updated_at = NOW()
		WHERE id = $6 AND version = $7`

	tag, err := s.pool.Exec(ctx, query,
		string(o.Status), nullStr(o.VenueTicket), nullDec(o.FillPrice),
		o.FailureReason, o.ExecutedAt,
		o.ID, o.Version,
	)
	if err != nil {
		return fmt.Errorf("postgres: update order %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a stale version from a missing row.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", o.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: check order %s: %w", o.ID, err)
		}
		if exists {
			return domain.ErrVersionConflict
		}
		return domain.ErrNotFound
	}
	return nil
}

const orderSelectCols = `id, symbol, side, volume, kind,
	requested_entry, stop_loss, take_profit,
	status, venue_ticket, fill_price, failure_reason, requested_by,
	version, created_at, executed_at`

func scanOrderFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Order, error) {
	var o domain.Order
	var side, kind, status string
	var ticket *string
	var entry, stop, take, fill decimal.NullDecimal

	err := scanner.Scan(
		&o.ID, &o.Symbol, &side, &o.Volume, &kind,
		&entry, &stop, &take,
		&status, &ticket, &fill, &o.FailureReason, &o.RequestedBy,
		&o.Version, &o.CreatedAt, &o.ExecutedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Side = domain.OrderSide(side)
	o.Kind = domain.OrderKind(kind)
	o.Status = domain.OrderStatus(status)
	o.RequestedEntry = decPtr(entry)
	o.StopLoss = decPtr(stop)
	o.TakeProfit = decPtr(take)
	o.FillPrice = decPtr(fill)
	if ticket != nil {
		o.VenueTicket = *ticket
	}
	return o, nil
}

// GetByID retrieves a single order by ID.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1`, id)

	o, err := scanOrderFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

// ListTerminalBefore returns orders that reached a terminal state before the
// cutoff, oldest first. Used by the cold-audit archiver.
func (s *OrderStore) ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE status IN ('executed', 'failed', 'cancelled', 'closed')
		   AND created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan terminal order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// BindTicket records the venue ticket -> order id mapping in the sparse
// reverse index. Re-binding the same pair is a no-op so the post-venue
// persistence step stays idempotent.
func (s *OrderStore) BindTicket(ctx context.Context, venueTicket, orderID string) error {
	const query = `
		INSERT INTO order_tickets (venue_ticket, order_id)
		VALUES ($1, $2)
		ON CONFLICT (venue_ticket) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, venueTicket, orderID); err != nil {
		return fmt.Errorf("postgres: bind ticket %s: %w", venueTicket, err)
	}
	return nil
}

// ResolveTicket looks up the order id behind a venue ticket.
func (s *OrderStore) ResolveTicket(ctx context.Context, venueTicket string) (string, error) {
	var orderID string
	err := s.pool.QueryRow(ctx,
		`SELECT order_id FROM order_tickets WHERE venue_ticket = $1`, venueTicket,
	).Scan(&orderID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("postgres: resolve ticket %s: %w", venueTicket, err)
	}
	return orderID, nil
}

// UnbindTicket drops the reverse-index entry once a position fully closes.
// Missing entries are fine: the unbind runs inside an idempotent retry loop.
func (s *OrderStore) UnbindTicket(ctx context.Context, venueTicket string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM order_tickets WHERE venue_ticket = $1`, venueTicket,
	); err != nil {
		return fmt.Errorf("postgres: unbind ticket %s: %w", venueTicket, err)
	}
	return nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
