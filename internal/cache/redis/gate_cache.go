package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
)

const gateKey = "axia:gate:active"

// GateCache layers a short-TTL Redis cache over a strongly consistent
// domain.GateStore. IsActive serves the cached flag and is only suitable for
// high-frequency polling (metrics, status displays); Read always hits the
// backing store and refreshes the cache, which is what the command processor
// must use immediately before a side effect.
type GateCache struct {
	store domain.GateStore
	rdb   *redis.Client
	ttl   time.Duration
}

// NewGateCache creates a GateCache over store with the given cache TTL.
func NewGateCache(store domain.GateStore, c *Client, ttl time.Duration) *GateCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &GateCache{store: store, rdb: c.Underlying(), ttl: ttl}
}

// Read performs a strongly consistent read and refreshes the cached flag.
func (g *GateCache) Read(ctx context.Context) (domain.SafetyGate, error) {
	gate, err := g.store.Read(ctx)
	if err != nil {
		return domain.SafetyGate{}, err
	}
	g.cache(ctx, gate.Active)
	return gate, nil
}

// IsActive returns the cached flag when present, falling back to (and
// caching) a consistent read on a miss.
func (g *GateCache) IsActive(ctx context.Context) (bool, error) {
	val, err := g.rdb.Get(ctx, gateKey).Result()
	switch {
	case err == nil:
		return val == "1", nil
	case err != redis.Nil:
		// Cache trouble degrades to a consistent read rather than an error.
	}

	gate, err := g.store.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("gate cache: fallback read: %w", err)
	}
	g.cache(ctx, gate.Active)
	return gate.Active, nil
}

// Write passes through to the backing store and invalidates the cache so the
// next poll observes the toggle promptly.
func (g *GateCache) Write(ctx context.Context, gate domain.SafetyGate) error {
	if err := g.store.Write(ctx, gate); err != nil {
		return err
	}
	_ = g.rdb.Del(ctx, gateKey).Err()
	return nil
}

func (g *GateCache) cache(ctx context.Context, active bool) {
	val := "0"
	if active {
		val = "1"
	}
	_ = g.rdb.Set(ctx, gateKey, val, g.ttl).Err()
}

// Compile-time interface check.
var _ domain.GateStore = (*GateCache)(nil)
