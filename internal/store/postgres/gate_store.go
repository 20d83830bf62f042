package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
)

// GateStore implements domain.GateStore on the single-row safety_gate table.
// Reads go straight to PostgreSQL and are therefore strongly consistent;
// writes are conditional on the version the caller last read.
type GateStore struct {
	pool *pgxpool.Pool
}

// NewGateStore creates a new GateStore backed by the given connection pool.
func NewGateStore(pool *pgxpool.Pool) *GateStore {
	return &GateStore{pool: pool}
}

// Read returns the current gate record.
func (s *GateStore) Read(ctx context.Context) (domain.SafetyGate, error) {
	var g domain.SafetyGate
	var changedAt time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT active, reason, changed_by, version, changed_at
		 FROM safety_gate WHERE id = 1`,
	).Scan(&g.Active, &g.Reason, &g.ChangedBy, &g.Version, &changedAt)
	if err != nil {
		return domain.SafetyGate{}, fmt.Errorf("postgres: read safety gate: %w", err)
	}
	g.ChangedAt = changedAt
	return g, nil
}

// IsActive is the strongly consistent activity check. Callers that can
// tolerate staleness should go through the cache layer instead.
func (s *GateStore) IsActive(ctx context.Context) (bool, error) {
	g, err := s.Read(ctx)
	if err != nil {
		return false, err
	}
	return g.Active, nil
}

// Write toggles the gate conditional on gate.Version. A stale version yields
// domain.ErrVersionConflict; there is deliberately no retry here, since a
// conflicting operator change must surface rather than be overridden.
func (s *GateStore) Write(ctx context.Context, gate domain.SafetyGate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE safety_gate SET
			active = $1, reason = $2, changed_by = $3,
			version = version + 1, changed_at = NOW()
		 WHERE id = 1 AND version = $4`,
		gate.Active, gate.Reason, gate.ChangedBy, gate.Version,
	)
	if err != nil {
		return fmt.Errorf("postgres: write safety gate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// Compile-time interface check.
var _ domain.GateStore = (*GateStore)(nil)
