// Package executor contains the command processor and consumer loop: the part
// of the controller that turns queued trade intents into venue calls and
// durable order/position state under at-least-once delivery.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
	"github.com/Riki-22/axia-tss-sub000/internal/metrics"
)

// Audit / notification event names emitted by the processor.
const (
	EventOrderExecuted         = "order_executed"
	EventOrderFailed           = "order_failed"
	EventOrderCancelled        = "order_cancelled"
	EventOrderStuck            = "order_stuck_executing"
	EventPositionStuck         = "position_stuck_closing"
	EventStopDropped           = "stop_loss_dropped"
	EventPositionClosed        = "position_closed"
	EventPositionReduced       = "position_reduced"
	EventGateBlocked           = "gate_blocked"
	EventCommandRejected       = "command_rejected"
	EventCriticalInconsistency = "critical_inconsistency"
)

// Outcome tells the consumer loop what to do with the delivery.
type Outcome int

const (
	// OutcomeAck deletes the message: the command reached a terminal state,
	// or an inconsistency was already logged and redelivery would only risk a
	// duplicate venue execution.
	OutcomeAck Outcome = iota
	// OutcomeRetry leaves the message for redelivery; no venue side effect
	// has been confirmed yet.
	OutcomeRetry
)

func (o Outcome) String() string {
	if o == OutcomeRetry {
		return "retry"
	}
	return "ack"
}

// Alerter is the operator notification surface. *notify.Notifier satisfies
// it.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Processor executes one command at a time: safety gate, venue call, state
// persistence. It holds no mutable state of its own; all coordination between
// concurrent workers happens through the stores' conditional writes.
type Processor struct {
	orders    domain.OrderStore
	positions domain.PositionStore
	gate      domain.GateReader
	venue     domain.Venue
	audit     domain.AuditStore
	alerter   Alerter
	retry     RetryPolicy
	logger    *slog.Logger
}

// NewProcessor wires a Processor. audit and alerter may be nil-free no-op
// implementations but must not be nil.
func NewProcessor(
	orders domain.OrderStore,
	positions domain.PositionStore,
	gate domain.GateReader,
	venue domain.Venue,
	audit domain.AuditStore,
	alerter Alerter,
	retry RetryPolicy,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		orders:    orders,
		positions: positions,
		gate:      gate,
		venue:     venue,
		audit:     audit,
		alerter:   alerter,
		retry:     retry,
		logger:    logger.With(slog.String("component", "processor")),
	}
}

// stuckCloseDeliveries is how many deliveries a CLOSE may observe a position
// in closing before the claim is presumed orphaned by a dead worker. Each
// redelivery only comes after the queue's visibility timeout, so three
// sightings mean the claim has sat untouched for multiple timeout windows.
const stuckCloseDeliveries = 3

// Handle processes the first delivery of a command. Redeliveries should go
// through HandleDelivery so the transport's delivery count is visible.
func (p *Processor) Handle(ctx context.Context, cmd domain.Command) (Outcome, error) {
	return p.HandleDelivery(ctx, cmd, 1)
}

// HandleDelivery processes a single command delivery and reports whether the
// consumer should acknowledge it. deliveries is the transport's count of how
// many times this message has been handed out, including this one. The
// returned error is informational: the Outcome alone decides acknowledgment.
func (p *Processor) HandleDelivery(ctx context.Context, cmd domain.Command, deliveries int64) (Outcome, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveCommand(string(cmd.Action), time.Since(start))
	}()

	if err := cmd.Validate(); err != nil {
		p.logger.WarnContext(ctx, "rejecting malformed command",
			slog.String("action", string(cmd.Action)),
			slog.String("order_id", cmd.OrderID),
			slog.String("error", err.Error()),
		)
		p.auditLog(ctx, EventCommandRejected, map[string]any{
			"action":   string(cmd.Action),
			"order_id": cmd.OrderID,
			"error":    err.Error(),
		})
		metrics.CommandHandled(string(cmd.Action), "rejected")
		return OutcomeAck, err
	}

	var (
		outcome Outcome
		err     error
	)
	switch cmd.Action {
	case domain.ActionOpen:
		outcome, err = p.handleOpen(ctx, cmd)
	case domain.ActionClose:
		outcome, err = p.handleClose(ctx, cmd, deliveries)
	}

	metrics.CommandHandled(string(cmd.Action), outcome.String())
	return outcome, err
}

// handleOpen walks the OPEN state machine:
// PENDING -> EXECUTING -> {EXECUTED, FAILED}, or PENDING -> CANCELLED when
// the gate is active. The order id is the idempotency key; an order that
// already left PENDING is a duplicate delivery and is resolved from state
// without touching the venue.
func (p *Processor) handleOpen(ctx context.Context, cmd domain.Command) (Outcome, error) {
	log := p.logger.With(slog.String("order_id", cmd.OrderID))

	// Step 1: create-if-absent.
	order := domain.NewOrder(cmd, time.Now().UTC())
	err := p.orders.Create(ctx, order)
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		existing, gerr := p.orders.GetByID(ctx, cmd.OrderID)
		if gerr != nil {
			return OutcomeRetry, fmt.Errorf("load existing order: %w", gerr)
		}
		if existing.Status != domain.OrderStatusPending {
			return p.resolveDuplicateOpen(ctx, existing, log)
		}
		// A previous attempt crashed between create and the EXECUTING
		// transition; no venue call happened, resume from here.
		order = existing
	case err != nil:
		// Transient store trouble before any side effect: redeliver.
		return OutcomeRetry, fmt.Errorf("create order: %w", err)
	default:
		order.Version = 1
	}

	// Step 2: strongly consistent gate check.
	gate, err := p.gate.Read(ctx)
	if err != nil {
		return OutcomeRetry, fmt.Errorf("read safety gate: %w", err)
	}
	if gate.Active {
		return p.cancelForGate(ctx, order, gate, log)
	}

	// Step 3: claim the order by moving it to EXECUTING. Losing the CAS race
	// means another worker owns this delivery.
	order.Status = domain.OrderStatusExecuting
	if err := p.orders.Update(ctx, order); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.StoreConflict()
			log.InfoContext(ctx, "order claimed by another worker, leaving for redelivery")
			return OutcomeRetry, nil
		}
		return OutcomeRetry, fmt.Errorf("mark order executing: %w", err)
	}
	order.Version++

	// Step 4: the single, irreversible venue call.
	res, verr := p.venue.Open(ctx, domain.OpenRequest{
		Symbol:         cmd.Symbol,
		Side:           cmd.Side,
		Volume:         cmd.Volume,
		Kind:           cmd.Kind,
		RequestedEntry: cmd.RequestedEntry,
		StopLoss:       cmd.StopLoss,
		TakeProfit:     cmd.TakeProfit,
	})
	metrics.VenueCall("open", verr == nil && res.Success)

	// Past this point the handler must not be abandoned mid-flight, so the
	// remaining persistence runs detached from the caller's deadline.
	pctx := context.WithoutCancel(ctx)

	if verr != nil || !res.Success {
		return p.failOpen(pctx, order, res, verr, log)
	}
	return p.completeOpen(pctx, order, cmd, res, log)
}

// resolveDuplicateOpen finishes a redelivered OPEN from existing state, never
// calling the venue again.
func (p *Processor) resolveDuplicateOpen(ctx context.Context, order domain.Order, log *slog.Logger) (Outcome, error) {
	switch order.Status {
	case domain.OrderStatusExecuting:
		// Either another worker is mid-flight right now, or a previous worker
		// died after the venue call with the outcome unknown. Re-invoking the
		// venue could double-execute, so flag it and hand the order to manual
		// reconciliation.
		log.WarnContext(ctx, "duplicate delivery for order stuck in executing, manual reconciliation may be required")
		p.auditLog(ctx, EventOrderStuck, map[string]any{"order_id": order.ID})
		return OutcomeAck, nil

	case domain.OrderStatusExecuted:
		// Heal any partially applied post-venue persistence, then ack.
		if err := p.retry.Run(ctx, func(ctx context.Context) error {
			return p.ensurePositionFor(ctx, order)
		}); err != nil {
			p.criticalInconsistency(ctx, order.ID, order.VenueTicket, err)
			return OutcomeAck, err
		}
		log.InfoContext(ctx, "duplicate delivery resolved from executed order",
			slog.String("venue_ticket", order.VenueTicket),
		)
		return OutcomeAck, nil

	default:
		log.InfoContext(ctx, "duplicate delivery for terminal order",
			slog.String("status", string(order.Status)),
		)
		return OutcomeAck, nil
	}
}

// cancelForGate terminally cancels an order blocked by the safety gate. No
// side effect has happened, so a persistence failure here is redeliverable.
func (p *Processor) cancelForGate(ctx context.Context, order domain.Order, gate domain.SafetyGate, log *slog.Logger) (Outcome, error) {
	metrics.GateBlocked()

	order.Status = domain.OrderStatusCancelled
	order.FailureReason = "safety gate active: " + gate.Reason

	if err := p.retry.Run(ctx, func(ctx context.Context) error {
		return p.persistOrder(ctx, order)
	}); err != nil {
		return OutcomeRetry, fmt.Errorf("persist cancelled order: %w", err)
	}

	log.InfoContext(ctx, "order cancelled by safety gate",
		slog.String("reason", gate.Reason),
		slog.String("changed_by", gate.ChangedBy),
	)
	p.auditLog(ctx, EventGateBlocked, map[string]any{
		"order_id": order.ID,
		"reason":   gate.Reason,
	})
	p.auditLog(ctx, EventOrderCancelled, map[string]any{"order_id": order.ID})
	return OutcomeAck, nil
}

// failOpen records a definitive venue failure. The venue confirmed no side
// effect, so if even the bounded retries cannot persist FAILED the command is
// safe to redeliver.
func (p *Processor) failOpen(ctx context.Context, order domain.Order, res domain.ExecutionResult, verr error, log *slog.Logger) (Outcome, error) {
	reason := res.Message
	if verr != nil {
		reason = verr.Error()
	}

	order.Status = domain.OrderStatusFailed
	order.FailureReason = reason

	if err := p.retry.Run(ctx, func(ctx context.Context) error {
		return p.persistOrder(ctx, order)
	}); err != nil {
		log.ErrorContext(ctx, "could not persist failed order, leaving for redelivery",
			slog.String("error", err.Error()),
		)
		return OutcomeRetry, err
	}

	log.WarnContext(ctx, "venue rejected order", slog.String("reason", reason))
	p.auditLog(ctx, EventOrderFailed, map[string]any{
		"order_id": order.ID,
		"reason":   reason,
	})
	return OutcomeAck, nil
}

// completeOpen persists the executed order and its new position. These writes
// are idempotent, so they retry with backoff; if they still fail after the
// venue has executed, the inconsistency is logged and the command is
// acknowledged anyway, because redelivery would re-invoke the venue.
func (p *Processor) completeOpen(ctx context.Context, order domain.Order, cmd domain.Command, res domain.ExecutionResult, log *slog.Logger) (Outcome, error) {
	fillTime := res.FillTime
	if fillTime.IsZero() {
		fillTime = time.Now().UTC()
	}
	fill := res.FillPrice

	order.Status = domain.OrderStatusExecuted
	order.VenueTicket = res.VenueTicket
	order.FillPrice = &fill
	order.ExecutedAt = &fillTime

	// Limit stops are validated against the requested entry up front, but a
	// market order's stop can only be judged against the actual fill. The
	// venue call is already irreversible here, so a stop that landed on the
	// wrong side of the fill is dropped rather than rejected.
	stop := cmd.StopLoss
	if stop != nil && !domain.StopAllowed(cmd.Side, *stop, fill) {
		log.WarnContext(ctx, "dropping stop_loss on wrong side of fill",
			slog.String("stop_loss", stop.String()),
			slog.String("fill_price", fill.String()),
		)
		p.auditLog(ctx, EventStopDropped, map[string]any{
			"order_id":   order.ID,
			"stop_loss":  stop.String(),
			"fill_price": fill.String(),
		})
		stop = nil
	}

	pos := domain.Position{
		ID:           uuid.New().String(),
		VenueTicket:  res.VenueTicket,
		OrderID:      order.ID,
		Symbol:       cmd.Symbol,
		Side:         cmd.Side,
		Volume:       cmd.Volume,
		EntryPrice:   fill,
		CurrentPrice: fill,
		StopLoss:     stop,
		TakeProfit:   cmd.TakeProfit,
		Status:       domain.PositionStatusOpen,
		OpenedAt:     fillTime,
	}

	err := p.retry.Run(ctx, func(ctx context.Context) error {
		if err := p.persistOrder(ctx, order); err != nil {
			return err
		}
		if err := p.orders.BindTicket(ctx, res.VenueTicket, order.ID); err != nil {
			return err
		}
		if err := p.positions.Create(ctx, pos); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		return nil
	})
	if err != nil {
		p.criticalInconsistency(ctx, order.ID, res.VenueTicket, err)
		return OutcomeAck, err
	}

	log.InfoContext(ctx, "order executed",
		slog.String("venue_ticket", res.VenueTicket),
		slog.String("fill_price", fill.String()),
	)
	p.auditLog(ctx, EventOrderExecuted, map[string]any{
		"order_id":     order.ID,
		"venue_ticket": res.VenueTicket,
		"fill_price":   fill.String(),
	})
	return OutcomeAck, nil
}

// handleClose walks the CLOSE machine: OPEN -> CLOSING -> {CLOSED, back to
// OPEN on failure}. The venue ticket is the idempotency key, resolved through
// the sparse reverse index; a miss means the position is gone or already
// closed and the delivery is acknowledged as a duplicate.
func (p *Processor) handleClose(ctx context.Context, cmd domain.Command, deliveries int64) (Outcome, error) {
	log := p.logger.With(slog.String("venue_ticket", cmd.VenueTicket))

	orderID, err := p.orders.ResolveTicket(ctx, cmd.VenueTicket)
	if errors.Is(err, domain.ErrNotFound) {
		log.InfoContext(ctx, "no index entry for ticket, treating as already closed")
		return OutcomeAck, nil
	}
	if err != nil {
		return OutcomeRetry, fmt.Errorf("resolve ticket: %w", err)
	}

	pos, err := p.positions.GetByTicket(ctx, cmd.VenueTicket)
	if errors.Is(err, domain.ErrNotFound) {
		log.InfoContext(ctx, "index entry without position, treating as already closed")
		return OutcomeAck, nil
	}
	if err != nil {
		return OutcomeRetry, fmt.Errorf("load position: %w", err)
	}

	switch pos.Status {
	case domain.PositionStatusClosed:
		log.InfoContext(ctx, "position already closed, duplicate delivery")
		return OutcomeAck, nil
	case domain.PositionStatusClosing:
		// Normally another worker is mid-close and the redelivery will find
		// the position closed. But a worker that died after claiming the
		// close leaves it in closing forever; once enough redeliveries have
		// seen the same claim, stop looping and hand the position to manual
		// reconciliation, as the OPEN path does for a stuck executing order.
		if deliveries >= stuckCloseDeliveries {
			log.WarnContext(ctx, "close claim appears orphaned, manual reconciliation may be required",
				slog.String("position_id", pos.ID),
				slog.Int64("deliveries", deliveries),
			)
			p.auditLog(ctx, EventPositionStuck, map[string]any{
				"position_id":  pos.ID,
				"venue_ticket": pos.VenueTicket,
				"deliveries":   deliveries,
			})
			return OutcomeAck, nil
		}
		log.InfoContext(ctx, "close already in flight, leaving for redelivery")
		return OutcomeRetry, nil
	}

	closeVol := pos.Volume
	if cmd.CloseVolume != nil {
		closeVol = *cmd.CloseVolume
		if closeVol.GreaterThan(pos.Volume) {
			p.auditLog(ctx, EventCommandRejected, map[string]any{
				"venue_ticket": cmd.VenueTicket,
				"error":        "close_volume exceeds position volume",
			})
			return OutcomeAck, fmt.Errorf("%w: close_volume %s exceeds position volume %s",
				domain.ErrInvalidCommand, closeVol, pos.Volume)
		}
	}
	partial := closeVol.LessThan(pos.Volume)

	gate, err := p.gate.Read(ctx)
	if err != nil {
		return OutcomeRetry, fmt.Errorf("read safety gate: %w", err)
	}
	if gate.Active {
		metrics.GateBlocked()
		log.InfoContext(ctx, "close blocked by safety gate", slog.String("reason", gate.Reason))
		p.auditLog(ctx, EventGateBlocked, map[string]any{
			"venue_ticket": cmd.VenueTicket,
			"reason":       gate.Reason,
		})
		return OutcomeAck, nil
	}

	// Claim the close via CAS before touching the venue.
	pos.Status = domain.PositionStatusClosing
	if err := p.positions.Update(ctx, pos); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.StoreConflict()
			log.InfoContext(ctx, "position claimed by another worker, leaving for redelivery")
			return OutcomeRetry, nil
		}
		return OutcomeRetry, fmt.Errorf("mark position closing: %w", err)
	}
	pos.Version++

	res, verr := p.venue.Close(ctx, domain.CloseRequest{
		VenueTicket: cmd.VenueTicket,
		Symbol:      pos.Symbol,
		Volume:      closeVol,
	})
	metrics.VenueCall("close", verr == nil && res.Success)

	pctx := context.WithoutCancel(ctx)

	if verr != nil || !res.Success {
		reason := res.Message
		if verr != nil {
			reason = verr.Error()
		}
		// No confirmed side effect: release the claim and redeliver.
		pos.Status = domain.PositionStatusOpen
		if perr := p.retry.Run(pctx, func(ctx context.Context) error {
			return p.persistPosition(ctx, pos)
		}); perr != nil {
			log.ErrorContext(pctx, "could not release closing claim",
				slog.String("error", perr.Error()),
			)
		}
		log.WarnContext(pctx, "venue close failed, leaving for redelivery",
			slog.String("reason", reason),
		)
		return OutcomeRetry, fmt.Errorf("venue close: %s", reason)
	}

	return p.completeClose(pctx, pos, orderID, closeVol, partial, res, log)
}

// completeClose persists the close outcome under the same log-and-acknowledge
// discipline as completeOpen.
func (p *Processor) completeClose(ctx context.Context, pos domain.Position, orderID string, closeVol decimal.Decimal, partial bool, res domain.ExecutionResult, log *slog.Logger) (Outcome, error) {
	fillTime := res.FillTime
	if fillTime.IsZero() {
		fillTime = time.Now().UTC()
	}

	pnl := pos.RealizedOn(res.FillPrice, closeVol)
	pos.RealizedPnL = pos.RealizedPnL.Add(pnl)
	pos.Volume = pos.Volume.Sub(closeVol)
	pos.CurrentPrice = res.FillPrice
	if partial {
		pos.Status = domain.PositionStatusOpen
	} else {
		pos.Status = domain.PositionStatusClosed
		pos.ClosedAt = &fillTime
	}

	err := p.retry.Run(ctx, func(ctx context.Context) error {
		if err := p.persistPosition(ctx, pos); err != nil {
			return err
		}
		if partial {
			return nil
		}
		if err := p.closeOrder(ctx, orderID); err != nil {
			return err
		}
		return p.orders.UnbindTicket(ctx, pos.VenueTicket)
	})
	if err != nil {
		p.criticalInconsistency(ctx, orderID, pos.VenueTicket, err)
		return OutcomeAck, err
	}

	event := EventPositionClosed
	if partial {
		event = EventPositionReduced
	}
	log.InfoContext(ctx, "position close persisted",
		slog.String("position_id", pos.ID),
		slog.Bool("partial", partial),
		slog.String("realized_pnl", pos.RealizedPnL.String()),
	)
	p.auditLog(ctx, event, map[string]any{
		"position_id":  pos.ID,
		"venue_ticket": pos.VenueTicket,
		"close_volume": closeVol.String(),
		"realized_pnl": pos.RealizedPnL.String(),
	})
	return OutcomeAck, nil
}

// persistOrder performs one conditional write of the order. On a version
// conflict it reloads and reapplies, which is safe because post-venue writes
// carry the same final values regardless of who writes them.
func (p *Processor) persistOrder(ctx context.Context, order domain.Order) error {
	err := p.orders.Update(ctx, order)
	if !errors.Is(err, domain.ErrVersionConflict) {
		return err
	}
	metrics.StoreConflict()

	current, gerr := p.orders.GetByID(ctx, order.ID)
	if gerr != nil {
		return gerr
	}
	if current.Status == order.Status {
		return nil // already applied by a concurrent writer
	}
	if !current.Status.CanTransition(order.Status) {
		return fmt.Errorf("%w: order %s cannot move %s -> %s",
			domain.ErrVersionConflict, order.ID, current.Status, order.Status)
	}
	order.Version = current.Version
	return p.orders.Update(ctx, order)
}

// persistPosition is the position-side counterpart of persistOrder. The
// realistic conflict source is the price refresher bumping CurrentPrice.
func (p *Processor) persistPosition(ctx context.Context, pos domain.Position) error {
	err := p.positions.Update(ctx, pos)
	if !errors.Is(err, domain.ErrVersionConflict) {
		return err
	}
	metrics.StoreConflict()

	current, gerr := p.positions.GetByID(ctx, pos.ID)
	if gerr != nil {
		return gerr
	}
	if current.Status == pos.Status && current.Version > pos.Version {
		return nil // already applied
	}
	pos.Version = current.Version
	return p.positions.Update(ctx, pos)
}

// closeOrder advances the originating order to its final closed state.
func (p *Processor) closeOrder(ctx context.Context, orderID string) error {
	order, err := p.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == domain.OrderStatusClosed {
		return nil
	}
	if !order.Status.CanTransition(domain.OrderStatusClosed) {
		// The order never reached executed; nothing to advance.
		return nil
	}
	order.Status = domain.OrderStatusClosed
	return p.persistOrder(ctx, order)
}

// ensurePositionFor recreates the position for an executed order whose
// post-venue persistence was interrupted.
func (p *Processor) ensurePositionFor(ctx context.Context, order domain.Order) error {
	if err := p.orders.BindTicket(ctx, order.VenueTicket, order.ID); err != nil {
		return err
	}

	_, err := p.positions.GetByTicket(ctx, order.VenueTicket)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	entry := decimal.Zero
	if order.FillPrice != nil {
		entry = *order.FillPrice
	}
	openedAt := order.CreatedAt
	if order.ExecutedAt != nil {
		openedAt = *order.ExecutedAt
	}
	stop := order.StopLoss
	if stop != nil && !domain.StopAllowed(order.Side, *stop, entry) {
		stop = nil
	}

	pos := domain.Position{
		ID:           uuid.New().String(),
		VenueTicket:  order.VenueTicket,
		OrderID:      order.ID,
		Symbol:       order.Symbol,
		Side:         order.Side,
		Volume:       order.Volume,
		EntryPrice:   entry,
		CurrentPrice: entry,
		StopLoss:     stop,
		TakeProfit:   order.TakeProfit,
		Status:       domain.PositionStatusOpen,
		OpenedAt:     openedAt,
	}
	if err := p.positions.Create(ctx, pos); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return err
	}
	return nil
}

// criticalInconsistency records the one failure class that crosses into
// operator alerting: the venue confirmed a side effect but the store never
// accepted the matching state.
func (p *Processor) criticalInconsistency(ctx context.Context, orderID, venueTicket string, cause error) {
	metrics.CriticalInconsistency()

	p.logger.ErrorContext(ctx, "CRITICAL_INCONSISTENCY: venue executed but state persistence failed",
		slog.String("order_id", orderID),
		slog.String("venue_ticket", venueTicket),
		slog.String("error", cause.Error()),
	)
	p.auditLog(ctx, EventCriticalInconsistency, map[string]any{
		"order_id":     orderID,
		"venue_ticket": venueTicket,
		"error":        cause.Error(),
	})

	msg := fmt.Sprintf("order %s (ticket %s) executed at the venue but could not be persisted: %v\nManual reconciliation required.",
		orderID, venueTicket, cause)
	if err := p.alerter.Notify(ctx, EventCriticalInconsistency, "CRITICAL INCONSISTENCY", msg); err != nil {
		p.logger.ErrorContext(ctx, "failed to deliver inconsistency alert",
			slog.String("error", err.Error()),
		)
	}
}

// auditLog is best-effort: the audit trail must never turn a handled command
// into a failure.
func (p *Processor) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := p.audit.Log(ctx, event, detail); err != nil {
		p.logger.WarnContext(ctx, "audit log write failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
