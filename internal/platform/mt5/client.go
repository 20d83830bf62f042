// Package mt5 talks to a MetaTrader 5 bridge sidecar over HTTP and
// websocket. The bridge owns the terminal session; this client only maps
// trade requests and tick subscriptions onto it.
package mt5

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
)

// Client is the REST client for the MT5 bridge.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a bridge client. baseURL is the bridge root, e.g.
// "http://127.0.0.1:8787".
func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name identifies the venue in logs and metrics.
func (c *Client) Name() string { return "mt5" }

// Open places an order at the terminal. The call is not idempotent: the
// bridge has no notion of client order IDs, so the caller must never invoke
// it twice for the same intent.
func (c *Client) Open(ctx context.Context, req domain.OpenRequest) (domain.ExecutionResult, error) {
	body := openRequest{
		Symbol:     req.Symbol,
		Side:       string(req.Side),
		Volume:     req.Volume,
		Kind:       string(req.Kind),
		Price:      req.RequestedEntry,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	}

	var resp tradeResponse
	if err := c.doRequest(ctx, http.MethodPost, "/trade/open", body, &resp); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("mt5: open %s: %w", req.Symbol, err)
	}
	return toResult(resp), nil
}

// Close closes volume units of the holding behind the given ticket.
func (c *Client) Close(ctx context.Context, req domain.CloseRequest) (domain.ExecutionResult, error) {
	body := closeRequest{
		Ticket: req.VenueTicket,
		Symbol: req.Symbol,
		Volume: req.Volume,
	}

	var resp tradeResponse
	if err := c.doRequest(ctx, http.MethodPost, "/trade/close", body, &resp); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("mt5: close ticket %s: %w", req.VenueTicket, err)
	}
	return toResult(resp), nil
}

func toResult(resp tradeResponse) domain.ExecutionResult {
	res := domain.ExecutionResult{
		VenueTicket: resp.Ticket,
		FillPrice:   resp.Price,
		FillTime:    time.UnixMilli(resp.Time).UTC(),
		Message:     resp.Comment,
	}
	switch resp.Retcode {
	case retcodeDone, retcodeDonePartial:
		res.Success = true
	default:
		res.Success = false
		if res.Message == "" {
			res.Message = fmt.Sprintf("retcode %d", resp.Retcode)
		}
	}
	return res
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bridge returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Compile-time interface check.
var _ domain.Venue = (*Client)(nil)
