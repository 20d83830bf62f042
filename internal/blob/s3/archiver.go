package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
)

// Narrow read surfaces the archiver needs from the stores. The Postgres
// stores satisfy them implicitly.

// OrderArchiveSource lists orders that reached a terminal status before a
// cutoff.
type OrderArchiveSource interface {
	ListTerminalBefore(ctx context.Context, before time.Time, limit int) ([]domain.Order, error)
}

// PositionArchiveSource lists positions closed before a cutoff.
type PositionArchiveSource interface {
	ListClosedBefore(ctx context.Context, before time.Time, limit int) ([]domain.Position, error)
}

// Uploader is the object-store surface the archiver writes through. *Client
// satisfies it.
type Uploader interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
}

// Archiver copies terminal orders and closed positions to the object store
// as JSONL, partitioned by the cutoff month. It never deletes from the
// primary store; pruning is a separate, deliberate step taken after an
// archive has been verified.
type Archiver struct {
	uploader  Uploader
	orders    OrderArchiveSource
	positions PositionArchiveSource
	audit     domain.AuditStore
	batch     int
	logger    *slog.Logger
}

// NewArchiver builds an Archiver. batch caps how many records one run
// exports per kind.
func NewArchiver(uploader Uploader, orders OrderArchiveSource, positions PositionArchiveSource, audit domain.AuditStore, batch int, logger *slog.Logger) *Archiver {
	if batch <= 0 {
		batch = 10000
	}
	return &Archiver{
		uploader:  uploader,
		orders:    orders,
		positions: positions,
		audit:     audit,
		batch:     batch,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Run archives both kinds and reports the total record count.
func (a *Archiver) Run(ctx context.Context, before time.Time) (int64, error) {
	orders, err := a.ArchiveOrders(ctx, before)
	if err != nil {
		return orders, err
	}
	positions, err := a.ArchivePositions(ctx, before)
	return orders + positions, err
}

// ArchiveOrders exports orders that reached a terminal status before the
// cutoff to archive/orders/YYYY-MM.jsonl.
func (a *Archiver) ArchiveOrders(ctx context.Context, before time.Time) (int64, error) {
	orders, err := a.orders.ListTerminalBefore(ctx, before, a.batch)
	if err != nil {
		return 0, fmt.Errorf("list terminal orders: %w", err)
	}
	return a.upload(ctx, "orders", before, toJSONL(orders), int64(len(orders)))
}

// ArchivePositions exports positions closed before the cutoff to
// archive/positions/YYYY-MM.jsonl.
func (a *Archiver) ArchivePositions(ctx context.Context, before time.Time) (int64, error) {
	positions, err := a.positions.ListClosedBefore(ctx, before, a.batch)
	if err != nil {
		return 0, fmt.Errorf("list closed positions: %w", err)
	}
	return a.upload(ctx, "positions", before, toJSONL(positions), int64(len(positions)))
}

func (a *Archiver) upload(ctx context.Context, kind string, before time.Time, body []byte, count int64) (int64, error) {
	if count == 0 {
		a.logger.InfoContext(ctx, "nothing to archive", slog.String("kind", kind))
		return 0, nil
	}

	key := archiveKey(kind, before)
	if err := a.uploader.Put(ctx, key, bytes.NewReader(body), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("upload %s archive: %w", kind, err)
	}

	a.logger.InfoContext(ctx, "archive uploaded",
		slog.String("kind", kind),
		slog.String("key", key),
		slog.Int64("records", count),
	)
	if err := a.audit.Log(ctx, "archive_"+kind, map[string]any{
		"key":    key,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		a.logger.WarnContext(ctx, "archive audit write failed",
			slog.String("error", err.Error()),
		)
	}
	return count, nil
}

// archiveKey partitions archives by the cutoff's year-month, e.g.
// archive/orders/2026-08.jsonl.
func archiveKey(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// toJSONL renders records as newline-delimited JSON.
func toJSONL[T any](records []T) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		// Encoding a plain struct cannot fail here.
		_ = enc.Encode(rec)
	}
	return buf.Bytes()
}
