package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
	"github.com/Riki-22/axia-tss-sub000/internal/executor"
	"github.com/Riki-22/axia-tss-sub000/internal/metrics"
	"github.com/Riki-22/axia-tss-sub000/internal/service"
)

// RunMode is the long-running controller: the consumer loop, the position
// price refresher, the metrics endpoint and the gate gauge poller, all tied
// to one errgroup.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	proc := executor.NewProcessor(
		deps.Orders,
		deps.Positions,
		deps.GateStore,
		deps.Venue,
		deps.Audit,
		deps.Alerter,
		executor.RetryPolicy{
			MaxAttempts: a.cfg.Executor.RetryAttempts,
			BaseDelay:   a.cfg.Executor.RetryBaseDelay.Duration,
		},
		a.logger,
	)
	consumer := executor.NewConsumer(
		deps.Queue, proc,
		a.cfg.Executor.Workers,
		a.cfg.Executor.CommandDeadline.Duration,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return consumer.Run(ctx) })

	if deps.QuoteStream != nil {
		quotes := make(chan domain.Quote, 64)
		refresher := service.NewPositionRefresher(
			deps.Positions, quotes,
			a.cfg.Executor.RefreshInterval.Duration,
			a.logger,
		)
		g.Go(func() error { return deps.QuoteStream.Run(ctx, quotes) })
		g.Go(func() error { return refresher.Run(ctx) })
	}

	g.Go(func() error { return a.pollGateGauge(ctx, deps.Gate) })

	if a.cfg.Metrics.Enabled {
		srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: metricsMux()}
		g.Go(func() error {
			a.logger.InfoContext(ctx, "metrics listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
			return ctx.Err()
		})
	}

	return g.Wait()
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// pollGateGauge mirrors the gate state into the metrics gauge through the
// cached read path.
func (a *App) pollGateGauge(ctx context.Context, gate domain.GateReader) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			active, err := gate.IsActive(ctx)
			if err != nil {
				a.logger.WarnContext(ctx, "gate poll failed", slog.String("error", err.Error()))
				continue
			}
			metrics.SetGateActive(active)
		}
	}
}

// HaltMode activates the safety gate.
func (a *App) HaltMode(ctx context.Context, deps *Dependencies) error {
	reason := strings.Join(a.args, " ")
	if reason == "" {
		reason = "manual halt"
	}
	return a.setGate(ctx, deps, true, reason)
}

// ResumeMode deactivates the safety gate.
func (a *App) ResumeMode(ctx context.Context, deps *Dependencies) error {
	return a.setGate(ctx, deps, false, "")
}

// setGate toggles the gate with one conditional write. A version conflict
// means another operator changed it concurrently; it is surfaced, never
// retried, so nobody's halt is silently overridden.
func (a *App) setGate(ctx context.Context, deps *Dependencies, active bool, reason string) error {
	gate, err := deps.Gate.Read(ctx)
	if err != nil {
		return fmt.Errorf("read safety gate: %w", err)
	}
	if gate.Active == active {
		a.logger.InfoContext(ctx, "safety gate already in requested state",
			slog.Bool("active", active),
		)
		return nil
	}

	gate.Active = active
	gate.Reason = reason
	gate.ChangedBy = operator()

	if err := deps.Gate.Write(ctx, gate); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return fmt.Errorf("safety gate changed concurrently, re-check and retry: %w", err)
		}
		return fmt.Errorf("write safety gate: %w", err)
	}

	a.logger.InfoContext(ctx, "safety gate updated",
		slog.Bool("active", active),
		slog.String("reason", reason),
	)
	if active {
		if err := a.auditAndAlert(ctx, deps, "gate_halted", fmt.Sprintf("Trading halted: %s", reason)); err != nil {
			return err
		}
	} else {
		if err := a.auditAndAlert(ctx, deps, "gate_resumed", "Trading resumed"); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) auditAndAlert(ctx context.Context, deps *Dependencies, event, message string) error {
	if err := deps.Audit.Log(ctx, event, map[string]any{
		"changed_by": operator(),
		"message":    message,
	}); err != nil {
		a.logger.WarnContext(ctx, "audit write failed", slog.String("error", err.Error()))
	}
	if err := deps.Alerter.Notify(ctx, event, "Safety gate", message); err != nil {
		a.logger.WarnContext(ctx, "gate alert failed", slog.String("error", err.Error()))
	}
	return nil
}

func operator() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

// statusReport is the JSON printed by status mode.
type statusReport struct {
	Gate struct {
		Active    bool      `json:"active"`
		Reason    string    `json:"reason,omitempty"`
		ChangedBy string    `json:"changed_by,omitempty"`
		ChangedAt time.Time `json:"changed_at"`
	} `json:"gate"`
	QueueDepth    int64 `json:"queue_depth"`
	OpenPositions int   `json:"open_positions"`
}

// StatusMode prints the controller's state as one JSON document on stdout.
func (a *App) StatusMode(ctx context.Context, deps *Dependencies) error {
	var report statusReport

	gate, err := deps.GateStore.Read(ctx)
	if err != nil {
		return fmt.Errorf("read safety gate: %w", err)
	}
	report.Gate.Active = gate.Active
	report.Gate.Reason = gate.Reason
	report.Gate.ChangedBy = gate.ChangedBy
	report.Gate.ChangedAt = gate.ChangedAt

	report.QueueDepth, err = deps.Queue.Depth(ctx)
	if err != nil {
		return fmt.Errorf("queue depth: %w", err)
	}

	open, err := deps.Positions.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}
	report.OpenPositions = len(open)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// EnqueueMode reads one JSON command from stdin, validates it, and publishes
// it to the command stream.
func (a *App) EnqueueMode(ctx context.Context, deps *Dependencies) error {
	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read command from stdin: %w", err)
	}

	var cmd domain.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	id, err := deps.Queue.Enqueue(ctx, payload)
	if err != nil {
		return fmt.Errorf("enqueue command: %w", err)
	}
	a.logger.InfoContext(ctx, "command enqueued",
		slog.String("message_id", id),
		slog.String("action", string(cmd.Action)),
		slog.String("order_id", cmd.OrderID),
	)
	fmt.Println(id)
	return nil
}

// ArchiveMode runs one cold-state export for records older than the
// configured retention window.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
	count, err := deps.Archiver.Run(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	a.logger.InfoContext(ctx, "archive complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("records", count),
	)
	return nil
}
