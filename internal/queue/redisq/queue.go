// Package redisq implements the at-least-once command queue on Redis Streams
// with a consumer group. A received entry stays in the group's pending list
// until acknowledged; entries idle past the visibility timeout are reclaimed
// and handed to the next Receive, which is what makes redelivery work.
package redisq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
)

// Config holds queue parameters.
type Config struct {
	Stream     string
	Group      string
	Consumer   string        // defaults to a random per-process name
	Visibility time.Duration // idle time before an unacked entry is redelivered
	Block      time.Duration // max time a single Receive blocks on the stream
	MaxLen     int64         // approximate stream cap, enforced on enqueue
}

// Queue implements domain.CommandQueue.
type Queue struct {
	rdb *redis.Client
	cfg Config
}

// New creates a Queue and ensures the consumer group exists.
func New(ctx context.Context, rdb *redis.Client, cfg Config) (*Queue, error) {
	if cfg.Stream == "" {
		cfg.Stream = "axia:commands"
	}
	if cfg.Group == "" {
		cfg.Group = "executors"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "axia-" + uuid.New().String()[:8]
	}
	if cfg.Visibility <= 0 {
		cfg.Visibility = 60 * time.Second
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 10000
	}

	err := rdb.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("redisq: create group %s: %w", cfg.Group, err)
	}

	return &Queue{rdb: rdb, cfg: cfg}, nil
}

// Enqueue appends a command payload to the stream and returns its entry ID.
func (q *Queue) Enqueue(ctx context.Context, payload []byte) (string, error) {
	id, err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.Stream,
		MaxLen: q.cfg.MaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"payload":     payload,
			"enqueued_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("redisq: enqueue: %w", err)
	}
	return id, nil
}

// Receive returns the next command delivery. Reclaimed entries (abandoned by
// a worker that missed its deadline) take priority over fresh ones. It blocks
// up to the configured block interval per attempt and keeps polling until a
// message arrives or ctx is done.
func (q *Queue) Receive(ctx context.Context) (domain.QueueMessage, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.QueueMessage{}, err
		}

		if msg, ok, err := q.claimStalled(ctx); err != nil {
			return domain.QueueMessage{}, err
		} else if ok {
			return msg, nil
		}

		streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.cfg.Group,
			Consumer: q.cfg.Consumer,
			Streams:  []string{q.cfg.Stream, ">"},
			Count:    1,
			Block:    q.cfg.Block,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue // block interval elapsed with nothing to read
			}
			if ctx.Err() != nil {
				return domain.QueueMessage{}, ctx.Err()
			}
			return domain.QueueMessage{}, fmt.Errorf("redisq: read group: %w", err)
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				return q.toMessage(ctx, entry), nil
			}
		}
	}
}

// claimStalled transfers ownership of one entry that has been pending longer
// than the visibility timeout.
func (q *Queue) claimStalled(ctx context.Context) (domain.QueueMessage, bool, error) {
	entries, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.cfg.Stream,
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		MinIdle:  q.cfg.Visibility,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return domain.QueueMessage{}, false, nil
		}
		return domain.QueueMessage{}, false, fmt.Errorf("redisq: autoclaim: %w", err)
	}
	if len(entries) == 0 {
		return domain.QueueMessage{}, false, nil
	}
	return q.toMessage(ctx, entries[0]), true, nil
}

func (q *Queue) toMessage(ctx context.Context, entry redis.XMessage) domain.QueueMessage {
	msg := domain.QueueMessage{ID: entry.ID, Deliveries: 1}

	if raw, ok := entry.Values["payload"]; ok {
		switch v := raw.(type) {
		case string:
			msg.Payload = []byte(v)
		case []byte:
			msg.Payload = v
		}
	}
	if raw, ok := entry.Values["enqueued_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			msg.EnqueuedAt = t
		}
	}

	// Delivery count lives in the pending entry list, not the entry itself.
	pending, err := q.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.cfg.Stream,
		Group:  q.cfg.Group,
		Start:  entry.ID,
		End:    entry.ID,
		Count:  1,
	}).Result()
	if err == nil && len(pending) == 1 {
		msg.Deliveries = pending[0].RetryCount
	}

	return msg
}

// Ack acknowledges and deletes a handled entry. Both steps are idempotent, so
// acking an already-removed entry is harmless.
func (q *Queue) Ack(ctx context.Context, id string) error {
	if err := q.rdb.XAck(ctx, q.cfg.Stream, q.cfg.Group, id).Err(); err != nil {
		return fmt.Errorf("redisq: ack %s: %w", id, err)
	}
	if err := q.rdb.XDel(ctx, q.cfg.Stream, id).Err(); err != nil {
		return fmt.Errorf("redisq: del %s: %w", id, err)
	}
	return nil
}

// Depth reports the current stream length, for the status display.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.XLen(ctx, q.cfg.Stream).Result()
	if err != nil {
		return 0, fmt.Errorf("redisq: stream len: %w", err)
	}
	return n, nil
}

// Compile-time interface check.
var _ domain.CommandQueue = (*Queue)(nil)
