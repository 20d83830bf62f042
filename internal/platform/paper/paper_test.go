package paper

import (
	"context"
	"testing"

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

func TestOpenFillsAtSeededPrice(t *testing.T) {
	t.Parallel()
	v := NewVenue()
	v.SetPrice("EURUSD", dec("1.0950"))

	res, err := v.Open(context.Background(), domain.OpenRequest{
		Symbol: "EURUSD",
		Side:   domain.OrderSideBuy,
		Volume: dec("1"),
		Kind:   domain.OrderKindMarket,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "P-000001", res.VenueTicket)
	assert.True(t, res.FillPrice.Equal(dec("1.0950")))
}

func TestOpenLimitFillsAtRequestedEntry(t *testing.T) {
	t.Parallel()
	v := NewVenue()
	v.SetPrice("EURUSD", dec("1.1000"))
	entry := dec("1.0900")

	res, err := v.Open(context.Background(), domain.OpenRequest{
		Symbol:         "EURUSD",
		Side:           domain.OrderSideBuy,
		Volume:         dec("1"),
		Kind:           domain.OrderKindLimit,
		RequestedEntry: &entry,
	})
	require.NoError(t, err)
	assert.True(t, res.FillPrice.Equal(entry))
}

func TestCloseFullAndUnknownTicket(t *testing.T) {
	t.Parallel()
	v := NewVenue()
	v.SetPrice("EURUSD", dec("1.1000"))

	open, err := v.Open(context.Background(), domain.OpenRequest{
		Symbol: "EURUSD",
		Side:   domain.OrderSideSell,
		Volume: dec("2"),
		Kind:   domain.OrderKindMarket,
	})
	require.NoError(t, err)

	v.SetPrice("EURUSD", dec("1.0800"))
	res, err := v.Close(context.Background(), domain.CloseRequest{
		VenueTicket: open.VenueTicket,
		Symbol:      "EURUSD",
		Volume:      dec("2"),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.FillPrice.Equal(dec("1.0800")))

	// The ticket is gone after a full close.
	res, err = v.Close(context.Background(), domain.CloseRequest{
		VenueTicket: open.VenueTicket,
		Volume:      dec("1"),
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "unknown ticket", res.Message)
}

func TestClosePartialKeepsHolding(t *testing.T) {
	t.Parallel()
	v := NewVenue()

	open, err := v.Open(context.Background(), domain.OpenRequest{
		Symbol: "EURUSD",
		Side:   domain.OrderSideBuy,
		Volume: dec("1"),
		Kind:   domain.OrderKindMarket,
	})
	require.NoError(t, err)

	res, err := v.Close(context.Background(), domain.CloseRequest{
		VenueTicket: open.VenueTicket,
		Volume:      dec("0.4"),
	})
	require.NoError(t, err)
	assert.True(t, res.Success)

	// Closing more than remains is rejected.
	res, err = v.Close(context.Background(), domain.CloseRequest{
		VenueTicket: open.VenueTicket,
		Volume:      dec("0.7"),
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "close volume exceeds holding", res.Message)
}

func TestOpenHonorsCancelledContext(t *testing.T) {
	t.Parallel()
	v := NewVenue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Open(ctx, domain.OpenRequest{
		Symbol: "EURUSD",
		Side:   domain.OrderSideBuy,
		Volume: dec("1"),
		Kind:   domain.OrderKindMarket,
	})
	assert.ErrorIs(t, err, context.Canceled)
}
