package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
)

// Consumer pulls commands from the queue and dispatches them to the
// processor with N parallel workers. Workers share nothing in memory; all
// coordination goes through the state store's conditional writes.
type Consumer struct {
	queue    domain.CommandQueue
	proc     *Processor
	workers  int
	deadline time.Duration
	logger   *slog.Logger
}

// NewConsumer creates a Consumer with the given parallelism and per-command
// deadline.
func NewConsumer(queue domain.CommandQueue, proc *Processor, workers int, deadline time.Duration, logger *slog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	return &Consumer{
		queue:    queue,
		proc:     proc,
		workers:  workers,
		deadline: deadline,
		logger:   logger.With(slog.String("component", "consumer")),
	}
}

// Run blocks until ctx is cancelled, running the configured number of
// workers.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "consumer starting",
		slog.Int("workers", c.workers),
		slog.Duration("command_deadline", c.deadline),
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workers; i++ {
		worker := i
		g.Go(func() error {
			return c.runWorker(ctx, worker)
		})
	}
	return g.Wait()
}

func (c *Consumer) runWorker(ctx context.Context, worker int) error {
	log := c.logger.With(slog.Int("worker", worker))

	for {
		msg, err := c.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.ErrorContext(ctx, "queue receive failed",
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		c.handleMessage(ctx, msg, log)
	}
}

// handleMessage decodes and processes one delivery. Only OutcomeAck removes
// the message; everything else is left for the transport's visibility-timeout
// redelivery.
func (c *Consumer) handleMessage(ctx context.Context, msg domain.QueueMessage, log *slog.Logger) {
	var cmd domain.Command
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		// Undecodable payloads can never succeed; ack them away.
		log.WarnContext(ctx, "dropping undecodable command",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		c.ack(ctx, msg.ID, log)
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, c.deadline)
	outcome, err := c.proc.HandleDelivery(cmdCtx, cmd, msg.Deliveries)
	cancel()

	attrs := []any{
		slog.String("message_id", msg.ID),
		slog.String("action", string(cmd.Action)),
		slog.String("order_id", cmd.OrderID),
		slog.Int64("deliveries", msg.Deliveries),
		slog.String("outcome", outcome.String()),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		log.WarnContext(ctx, "command finished with error", attrs...)
	} else {
		log.InfoContext(ctx, "command finished", attrs...)
	}

	if outcome == OutcomeAck {
		c.ack(ctx, msg.ID, log)
	}
}

func (c *Consumer) ack(ctx context.Context, id string, log *slog.Logger) {
	// Use a detached context so shutdown does not strand an already handled
	// message in the pending list.
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := c.queue.Ack(ackCtx, id); err != nil {
		log.ErrorContext(ctx, "ack failed, message will be redelivered",
			slog.String("message_id", id),
			slog.String("error", fmt.Sprintf("%v", err)),
		)
	}
}
