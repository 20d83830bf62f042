package mt5

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestOpenDone(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade/open", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req openRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "EURUSD", req.Symbol)
		assert.Equal(t, "BUY", req.Side)

		_ = json.NewEncoder(w).Encode(tradeResponse{
			Retcode: retcodeDone,
			Ticket:  "123456",
			Price:   dec("1.1001"),
			Time:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second)
	res, err := c.Open(context.Background(), domain.OpenRequest{
		Symbol: "EURUSD",
		Side:   domain.OrderSideBuy,
		Volume: dec("1"),
		Kind:   domain.OrderKindMarket,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "123456", res.VenueTicket)
	assert.True(t, res.FillPrice.Equal(dec("1.1001")))
	assert.Equal(t, 2026, res.FillTime.Year())
}

func TestOpenRejectedRetcode(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(tradeResponse{
			Retcode: 10019, // no money
			Comment: "No money",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	res, err := c.Open(context.Background(), domain.OpenRequest{
		Symbol: "EURUSD",
		Side:   domain.OrderSideBuy,
		Volume: dec("100"),
		Kind:   domain.OrderKindMarket,
	})
	require.NoError(t, err, "a definitive rejection is not a transport error")
	assert.False(t, res.Success)
	assert.Equal(t, "No money", res.Message)
}

func TestCloseBridgeErrorIsTransport(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "terminal disconnected", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.Close(context.Background(), domain.CloseRequest{
		VenueTicket: "123456",
		Volume:      dec("1"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestRejectionWithoutCommentGetsRetcode(t *testing.T) {
	t.Parallel()
	res := toResult(tradeResponse{Retcode: 10013})
	assert.False(t, res.Success)
	assert.Equal(t, "retcode 10013", res.Message)
}
