package mt5

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
)

// QuoteStream subscribes to the bridge's tick websocket and republishes
// quotes on a channel. It reconnects with a fixed delay on disconnect and
// stops when its context is cancelled.
type QuoteStream struct {
	wsURL    string
	apiToken string
	symbols  []string
	logger   *slog.Logger
}

// NewQuoteStream creates a stream for the given symbols. wsURL is the bridge
// tick endpoint, e.g. "ws://127.0.0.1:8787/ticks".
func NewQuoteStream(wsURL, apiToken string, symbols []string, logger *slog.Logger) *QuoteStream {
	return &QuoteStream{
		wsURL:    wsURL,
		apiToken: apiToken,
		symbols:  symbols,
		logger:   logger.With(slog.String("component", "mt5_quote_stream")),
	}
}

// Run connects and pushes quotes into out until ctx is cancelled. The out
// channel is closed on return.
func (s *QuoteStream) Run(ctx context.Context, out chan<- domain.Quote) error {
	defer close(out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.runConnection(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("tick stream disconnected, reconnecting",
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *QuoteStream) runConnection(ctx context.Context, out chan<- domain.Quote) error {
	header := http.Header{}
	if s.apiToken != "" {
		header.Set("Authorization", "Bearer "+s.apiToken)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, header)
	if err != nil {
		return fmt.Errorf("mt5: dial tick stream: %w", err)
	}
	defer conn.Close()

	sub := map[string]any{"op": "subscribe", "symbols": s.symbols}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("mt5: subscribe ticks: %w", err)
	}
	s.logger.Info("tick stream subscribed", slog.Int("symbols", len(s.symbols)))

	// Unblock ReadMessage when the context ends.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("mt5: read tick: %w", err)
		}

		var tick tickMessage
		if err := json.Unmarshal(data, &tick); err != nil {
			s.logger.Debug("skipping malformed tick", slog.String("error", err.Error()))
			continue
		}
		if tick.Symbol == "" {
			continue
		}

		quote := domain.Quote{
			Symbol: tick.Symbol,
			Bid:    tick.Bid,
			Ask:    tick.Ask,
			Time:   time.UnixMilli(tick.TimeMs).UTC(),
		}

		select {
		case out <- quote:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
