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

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Create inserts the position at version 1. Both the primary key and the
// venue_ticket unique constraint map to domain.ErrAlreadyExists, which the
// processor treats as an already-applied idempotent write.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, venue_ticket, order_id, symbol, side, volume,
			entry_price, current_price, stop_loss, take_profit,
			status, realized_pnl, version, opened_at, closed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, 1, $13, $14, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.VenueTicket, p.OrderID, p.Symbol, string(p.Side), p.Volume,
		p.EntryPrice, p.CurrentPrice, nullDec(p.StopLoss), nullDec(p.TakeProfit),
		string(p.Status), p.RealizedPnL,
		p.OpenedAt, p.ClosedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create position %s: %w", p.ID, err)
	}
	return nil
}

// Update writes the position conditional on p.Version and bumps the stored
// version by one.
func (s *PositionStore) Update(ctx context.Context, p domain.Position) error {
	const query = `
		UPDATE positions SET
			volume = $1, current_price = $2, status = $3,
			realized_pnl = $4, closed_at = $5,
			version = version + 1, updated_at = NOW()
		WHERE id = $6 AND version = $7`

	tag, err := s.pool.Exec(ctx, query,
		p.Volume, p.CurrentPrice, string(p.Status),
		p.RealizedPnL, p.ClosedAt,
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("postgres: update position %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM positions WHERE id = $1)", p.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: check position %s: %w", p.ID, err)
		}
		if exists {
			return domain.ErrVersionConflict
		}
		return domain.ErrNotFound
	}
	return nil
}

const positionSelectCols = `id, venue_ticket, order_id, symbol, side, volume,
	entry_price, current_price, stop_loss, take_profit,
	status, realized_pnl, version, opened_at, closed_at`

func scanPositionFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Position, error) {
	var p domain.Position
	var side, status string
	var stop, take decimal.NullDecimal

	err := scanner.Scan(
		&p.ID, &p.VenueTicket, &p.OrderID, &p.Symbol, &side, &p.Volume,
		&p.EntryPrice, &p.CurrentPrice, &stop, &take,
		&status, &p.RealizedPnL, &p.Version, &p.OpenedAt, &p.ClosedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}

	p.Side = domain.OrderSide(side)
	p.Status = domain.PositionStatus(status)
	p.StopLoss = decPtr(stop)
	p.TakeProfit = decPtr(take)
	return p, nil
}

// GetByID retrieves a single position by ID.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPositionFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// GetByTicket retrieves the position opened under the given venue ticket.
func (s *PositionStore) GetByTicket(ctx context.Context, venueTicket string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE venue_ticket = $1`, venueTicket)

	p, err := scanPositionFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position by ticket %s: %w", venueTicket, err)
	}
	return p, nil
}

// ListOpen returns every position that is not yet closed.
func (s *PositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE status IN ('open', 'closing')
		 ORDER BY opened_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	defer rows.Close()

	return scanPositionRows(rows)
}

// ListClosedBefore returns positions closed before the cutoff, oldest first.
func (s *PositionStore) ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE status = 'closed' AND closed_at < $1
		 ORDER BY closed_at ASC
		 LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	defer rows.Close()

	return scanPositionRows(rows)
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPositionFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
