// Package app owns the process lifecycle: it wires the stores, queue, venue
// and alert channels from configuration and runs the selected operating
// mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Riki-22/axia-tss-sub000/internal/config"
)

// App is the root object. It owns the configuration, logger, and the cleanup
// functions registered while wiring.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	args    []string
	closers []func()
}

// New creates an App. args are the positional CLI arguments left after flag
// parsing; halt and resume read the operator's reason from them.
func New(cfg *config.Config, logger *slog.Logger, args []string) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		args:   args,
	}
}

// Run wires dependencies for the configured mode, runs it, and blocks until
// the mode finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	a.logger.InfoContext(ctx, "starting",
		slog.String("mode", mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger, mode)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch mode {
	case "run":
		return a.RunMode(ctx, deps)
	case "halt":
		return a.HaltMode(ctx, deps)
	case "resume":
		return a.ResumeMode(ctx, deps)
	case "status":
		return a.StatusMode(ctx, deps)
	case "enqueue":
		return a.EnqueueMode(ctx, deps)
	case "archive":
		return a.ArchiveMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down resources in reverse registration order. Safe to call
// more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
