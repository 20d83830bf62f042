// Package notify delivers operator alerts raised by the command pipeline:
// critical inconsistencies, safety-gate changes, execution failures. Alerts
// fan out to every configured channel; the pipeline never blocks on a
// channel being down.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is one delivery channel for operator alerts.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans an alert out to all senders, filtered by event name. It
// satisfies the executor's Alerter interface.
type Notifier struct {
	senders []Sender
	allowed map[string]struct{} // empty means every event passes
	logger  *slog.Logger
}

// New builds a Notifier. events lists the event names to forward; leave it
// empty to forward everything.
func New(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = struct{}{}
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers one alert to every sender whose filter admits the event.
// Individual sender failures are joined so one dead channel does not silence
// the rest.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allowed) > 0 {
		if _, ok := n.allowed[event]; !ok {
			return nil
		}
	}
	if len(n.senders) == 0 {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "alert delivery failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert delivered",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}
	return errors.Join(errs...)
}

// Noop is the Alerter used when no channels are configured.
type Noop struct{}

func (Noop) Notify(context.Context, string, string, string) error { return nil }
