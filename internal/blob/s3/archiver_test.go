package s3blob

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
)

type captureUploader struct {
	keys   []string
	bodies [][]byte
}

func (u *captureUploader) Put(_ context.Context, key string, data io.Reader, _ string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	u.keys = append(u.keys, key)
	u.bodies = append(u.bodies, body)
	return nil
}

type staticOrders []domain.Order

func (s staticOrders) ListTerminalBefore(context.Context, time.Time, int) ([]domain.Order, error) {
	return s, nil
}

type staticPositions []domain.Position

func (s staticPositions) ListClosedBefore(context.Context, time.Time, int) ([]domain.Position, error) {
	return s, nil
}

type nopAudit struct{}

func (nopAudit) Log(context.Context, string, map[string]any) error    { return nil }
func (nopAudit) List(context.Context, int) ([]domain.AuditEntry, error) { return nil, nil }

func TestArchiverRun(t *testing.T) {
	t.Parallel()
	up := &captureUploader{}
	orders := staticOrders{
		{ID: "O1", Symbol: "EURUSD", Status: domain.OrderStatusFailed, Volume: decimal.NewFromInt(1)},
		{ID: "O2", Symbol: "EURUSD", Status: domain.OrderStatusClosed, Volume: decimal.NewFromInt(2)},
	}
	positions := staticPositions{
		{ID: "P1", VenueTicket: "T1", Status: domain.PositionStatusClosed},
	}
	arch := NewArchiver(up, orders, positions, nopAudit{}, 0,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	cutoff := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	n, err := arch.Run(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.Equal(t, []string{
		"archive/orders/2026-08.jsonl",
		"archive/positions/2026-08.jsonl",
	}, up.keys)

	// JSONL: one line per record.
	assert.Equal(t, 2, bytes.Count(up.bodies[0], []byte("\n")))
	assert.True(t, strings.Contains(string(up.bodies[0]), `"O1"`))
	assert.Equal(t, 1, bytes.Count(up.bodies[1], []byte("\n")))
}

func TestArchiverEmptyRunUploadsNothing(t *testing.T) {
	t.Parallel()
	up := &captureUploader{}
	arch := NewArchiver(up, staticOrders{}, staticPositions{}, nopAudit{}, 0,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := arch.Run(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, up.keys)
}
