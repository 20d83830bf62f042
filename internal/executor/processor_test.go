package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riki-22/axia-tss-sub000/internal/domain"
)

// ---------------------------------------------------------------------------
// In-memory fakes implementing the store CAS protocol.
// ---------------------------------------------------------------------------

type memOrders struct {
	mu      sync.Mutex
	orders  map[string]domain.Order
	tickets map[string]string

	failUpdates  int  // remaining Update calls that fail with a transient error
	conflictNext int  // remaining Update calls that fail with a version conflict
	allowUpdates int  // with failRest: Updates let through before failing
	failRest     bool // fail every Update once allowUpdates is spent
}

// failAfter lets n Updates through, then fails the rest.
func (m *memOrders) failAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowUpdates = n
	m.failRest = true
}

func (m *memOrders) heal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRest = false
}

func newMemOrders() *memOrders {
	return &memOrders{
		orders:  make(map[string]domain.Order),
		tickets: make(map[string]string),
	}
}

func (m *memOrders) Create(_ context.Context, o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return domain.ErrAlreadyExists
	}
	o.Version = 1
	m.orders[o.ID] = o
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (m *memOrders) Update(_ context.Context, o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdates > 0 {
		m.failUpdates--
		return errors.New("store unavailable")
	}
	if m.conflictNext > 0 {
		m.conflictNext--
		return domain.ErrVersionConflict
	}
	if m.failRest {
		if m.allowUpdates == 0 {
			return errors.New("store unavailable")
		}
		m.allowUpdates--
	}
	current, ok := m.orders[o.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != o.Version {
		return domain.ErrVersionConflict
	}
	o.Version++
	m.orders[o.ID] = o
	return nil
}

func (m *memOrders) ListTerminalBefore(context.Context, time.Time, int) ([]domain.Order, error) {
	return nil, nil
}

func (m *memOrders) BindTicket(_ context.Context, ticket, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[ticket] = orderID
	return nil
}

func (m *memOrders) ResolveTicket(_ context.Context, ticket string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tickets[ticket]
	if !ok {
		return "", domain.ErrNotFound
	}
	return id, nil
}

func (m *memOrders) UnbindTicket(_ context.Context, ticket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tickets, ticket)
	return nil
}

type memPositions struct {
	mu        sync.Mutex
	positions map[string]domain.Position

	failUpdates  int  // remaining Update calls that fail with a transient error
	allowUpdates int  // with failRest: Updates let through before failing
	failRest     bool // fail every Update once allowUpdates is spent
}

// failAfter lets n Updates through, then fails the rest.
func (m *memPositions) failAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowUpdates = n
	m.failRest = true
}

func newMemPositions() *memPositions {
	return &memPositions{positions: make(map[string]domain.Position)}
}

func (m *memPositions) Create(_ context.Context, p domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.positions {
		if existing.VenueTicket == p.VenueTicket {
			return domain.ErrAlreadyExists
		}
	}
	p.Version = 1
	m.positions[p.ID] = p
	return nil
}

func (m *memPositions) GetByID(_ context.Context, id string) (domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memPositions) GetByTicket(_ context.Context, ticket string) (domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.positions {
		if p.VenueTicket == ticket {
			return p, nil
		}
	}
	return domain.Position{}, domain.ErrNotFound
}

func (m *memPositions) Update(_ context.Context, p domain.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdates > 0 {
		m.failUpdates--
		return errors.New("store unavailable")
	}
	if m.failRest {
		if m.allowUpdates == 0 {
			return errors.New("store unavailable")
		}
		m.allowUpdates--
	}
	current, ok := m.positions[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != p.Version {
		return domain.ErrVersionConflict
	}
	p.Version++
	m.positions[p.ID] = p
	return nil
}

func (m *memPositions) ListOpen(context.Context) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Position
	for _, p := range m.positions {
		if p.Status != domain.PositionStatusClosed {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPositions) ListClosedBefore(context.Context, time.Time, int) ([]domain.Position, error) {
	return nil, nil
}

type fakeGate struct {
	active bool
	reason string
	err    error
}

func (g *fakeGate) Read(context.Context) (domain.SafetyGate, error) {
	if g.err != nil {
		return domain.SafetyGate{}, g.err
	}
	return domain.SafetyGate{Active: g.active, Reason: g.reason, Version: 1}, nil
}

func (g *fakeGate) IsActive(ctx context.Context) (bool, error) {
	gate, err := g.Read(ctx)
	return gate.Active, err
}

type fakeVenue struct {
	mu         sync.Mutex
	openCalls  int
	closeCalls int

	openRes  domain.ExecutionResult
	openErr  error
	closeRes domain.ExecutionResult
	closeErr error
}

func (v *fakeVenue) Name() string { return "fake" }

func (v *fakeVenue) Open(context.Context, domain.OpenRequest) (domain.ExecutionResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.openCalls++
	return v.openRes, v.openErr
}

func (v *fakeVenue) Close(context.Context, domain.CloseRequest) (domain.ExecutionResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeCalls++
	return v.closeRes, v.closeErr
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, int) ([]domain.AuditEntry, error) { return nil, nil }

func (a *memAudit) has(event string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e == event {
			return true
		}
	}
	return false
}

type fakeAlerter struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAlerter) Notify(_ context.Context, event, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type fixture struct {
	proc      *Processor
	orders    *memOrders
	positions *memPositions
	gate      *fakeGate
	venue     *fakeVenue
	audit     *memAudit
	alerter   *fakeAlerter
}

func newFixture() *fixture {
	f := &fixture{
		orders:    newMemOrders(),
		positions: newMemPositions(),
		gate:      &fakeGate{},
		venue: &fakeVenue{
			openRes: domain.ExecutionResult{
				Success:     true,
				VenueTicket: "T1",
				FillPrice:   dec("1.1000"),
				FillTime:    time.Now().UTC(),
			},
			closeRes: domain.ExecutionResult{
				Success:     true,
				VenueTicket: "T1",
				FillPrice:   dec("1.1500"),
				FillTime:    time.Now().UTC(),
			},
		},
		audit:   &memAudit{},
		alerter: &fakeAlerter{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.proc = NewProcessor(
		f.orders, f.positions, f.gate, f.venue, f.audit, f.alerter,
		RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		logger,
	)
	return f
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func openCmd(orderID string) domain.Command {
	return domain.Command{
		Action:    domain.ActionOpen,
		OrderID:   orderID,
		Symbol:    "EURUSD",
		Side:      domain.OrderSideBuy,
		Volume:    dec("1"),
		Kind:      domain.OrderKindMarket,
		Timestamp: time.Now().UTC(),
	}
}

func closeCmd(ticket string) domain.Command {
	return domain.Command{
		Action:      domain.ActionClose,
		VenueTicket: ticket,
		Timestamp:   time.Now().UTC(),
	}
}

// ---------------------------------------------------------------------------
// OPEN
// ---------------------------------------------------------------------------

func TestOpenSuccess(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	outcome, err := f.proc.Handle(ctx, openCmd("O1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)
	assert.Equal(t, 1, f.venue.openCalls)

	order, err := f.orders.GetByID(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusExecuted, order.Status)
	assert.Equal(t, "T1", order.VenueTicket)
	require.NotNil(t, order.FillPrice)
	assert.True(t, order.FillPrice.Equal(dec("1.1000")))
	// create(1) -> executing(2) -> executed(3)
	assert.Equal(t, int64(3), order.Version)

	pos, err := f.positions.GetByTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusOpen, pos.Status)
	assert.True(t, pos.EntryPrice.Equal(dec("1.1000")))
	assert.Equal(t, "O1", pos.OrderID)
	assert.Equal(t, int64(1), pos.Version)

	orderID, err := f.orders.ResolveTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "O1", orderID)
}

func TestOpenDuplicateAfterSuccess(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	_, err := f.proc.Handle(ctx, openCmd("O1"))
	require.NoError(t, err)

	outcome, err := f.proc.Handle(ctx, openCmd("O1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)
	assert.Equal(t, 1, f.venue.openCalls, "duplicate delivery must not re-invoke the venue")
}

func TestOpenGateActive(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.gate.active = true
	f.gate.reason = "manual halt"
	ctx := context.Background()

	outcome, err := f.proc.Handle(ctx, openCmd("O2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)
	assert.Equal(t, 0, f.venue.openCalls, "gate-blocked command must never reach the venue")

	order, err := f.orders.GetByID(ctx, "O2")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.Contains(t, order.FailureReason, "manual halt")
	assert.True(t, f.audit.has(EventGateBlocked))
}

func TestOpenVenueRejected(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.venue.openRes = domain.ExecutionResult{Success: false, Message: "not enough margin"}
	ctx := context.Background()

	outcome, err := f.proc.Handle(ctx, openCmd("O1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)

	order, err := f.orders.GetByID(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, order.Status)
	assert.Equal(t, "not enough margin", order.FailureReason)
	assert.Empty(t, order.VenueTicket)

	_, err = f.positions.GetByTicket(ctx, "T1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpenVenueTransportError(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.venue.openErr = errors.New("bridge timeout")
	f.venue.openRes = domain.ExecutionResult{}
	ctx := context.Background()

	outcome, err := f.proc.Handle(ctx, openCmd("O1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)

	order, err := f.orders.GetByID(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, order.Status)
	assert.Contains(t, order.FailureReason, "bridge timeout")
}

func TestOpenExecutingConflictRedelivers(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.orders.conflictNext = 1
	ctx := context.Background()

	outcome, err := f.proc.Handle(ctx, openCmd("O1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRetry, outcome)
	assert.Equal(t, 0, f.venue.openCalls, "losing the EXECUTING race must not call the venue")
}

func TestOpenPersistExhaustedScenarioE(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	// The EXECUTING claim is the first Update; every post-venue order write
	// after it fails.
	f.orders.failAfter(1)

	outcome, err := f.proc.Handle(ctx, openCmd("O3"))
	require.Error(t, err)
	assert.Equal(t, OutcomeAck, outcome, "inconsistency must be acknowledged, not redelivered")
	assert.Equal(t, 1, f.venue.openCalls)
	assert.True(t, f.audit.has(EventCriticalInconsistency))
	assert.Contains(t, f.alerter.events, EventCriticalInconsistency)

	// The order is left in executing, flagged for manual repair.
	f.orders.heal()
	order, err := f.orders.GetByID(ctx, "O3")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusExecuting, order.Status)

	// Redelivery must not trigger a second venue call.
	outcome, err = f.proc.Handle(ctx, openCmd("O3"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)
	assert.Equal(t, 1, f.venue.openCalls, "no double execution under redelivery")
	assert.True(t, f.audit.has(EventOrderStuck))
}

func TestOpenGateReadFailureRedelivers(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.gate.err = errors.New("store down")
	ctx := context.Background()

	outcome, err := f.proc.Handle(ctx, openCmd("O1"))
	require.Error(t, err)
	assert.Equal(t, OutcomeRetry, outcome)
	assert.Equal(t, 0, f.venue.openCalls)
}

func TestMalformedCommandIsTerminal(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	cmd := openCmd("O1")
	cmd.Volume = dec("0")

	outcome, err := f.proc.Handle(ctx, cmd)
	assert.ErrorIs(t, err, domain.ErrInvalidCommand)
	assert.Equal(t, OutcomeAck, outcome)
	assert.Equal(t, 0, f.venue.openCalls)
	assert.True(t, f.audit.has(EventCommandRejected))
}

// ---------------------------------------------------------------------------
// CLOSE
// ---------------------------------------------------------------------------

// openPosition runs a successful OPEN so close tests start from real state.
func openPosition(t *testing.T, f *fixture, orderID string) {
	t.Helper()
	outcome, err := f.proc.Handle(context.Background(), openCmd(orderID))
	require.NoError(t, err)
	require.Equal(t, OutcomeAck, outcome)
}

func TestCloseSuccessScenarioD(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	openPosition(t, f, "O1")

	outcome, err := f.proc.Handle(ctx, closeCmd("T1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)
	assert.Equal(t, 1, f.venue.closeCalls)

	pos, err := f.positions.GetByTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusClosed, pos.Status)
	require.NotNil(t, pos.ClosedAt)
	// BUY 1 @ 1.1000 closed @ 1.1500
	assert.True(t, pos.RealizedPnL.Equal(dec("0.05")), "got %s", pos.RealizedPnL)
	assert.True(t, pos.Volume.IsZero())

	order, err := f.orders.GetByID(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusClosed, order.Status)

	// The sparse index entry is gone once the position closes.
	_, err = f.orders.ResolveTicket(ctx, "T1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClosePartial(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	openPosition(t, f, "O1")

	cmd := closeCmd("T1")
	cmd.CloseVolume = decPtr("0.4")

	outcome, err := f.proc.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)

	pos, err := f.positions.GetByTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusOpen, pos.Status)
	assert.True(t, pos.Volume.Equal(dec("0.6")))
	assert.True(t, pos.RealizedPnL.Equal(dec("0.02")), "got %s", pos.RealizedPnL)
	assert.Nil(t, pos.ClosedAt)

	// Ticket stays bound while the position is open.
	_, err = f.orders.ResolveTicket(ctx, "T1")
	assert.NoError(t, err)

	order, err := f.orders.GetByID(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusExecuted, order.Status)
}

func TestCloseUnknownTicketIsDuplicate(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	outcome, err := f.proc.Handle(ctx, closeCmd("T-unknown"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)
	assert.Equal(t, 0, f.venue.closeCalls)
}

func TestCloseDuplicateAfterClosed(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	openPosition(t, f, "O1")

	_, err := f.proc.Handle(ctx, closeCmd("T1"))
	require.NoError(t, err)

	outcome, err := f.proc.Handle(ctx, closeCmd("T1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)
	assert.Equal(t, 1, f.venue.closeCalls, "duplicate close must not re-invoke the venue")
}

func TestCloseVenueFailureRollsBack(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	openPosition(t, f, "O1")

	f.venue.closeRes = domain.ExecutionResult{Success: false, Message: "market closed"}

	outcome, err := f.proc.Handle(ctx, closeCmd("T1"))
	require.Error(t, err)
	assert.Equal(t, OutcomeRetry, outcome)

	pos, perr := f.positions.GetByTicket(ctx, "T1")
	require.NoError(t, perr)
	assert.Equal(t, domain.PositionStatusOpen, pos.Status, "failed close must release the claim")
	assert.True(t, pos.RealizedPnL.IsZero())
}

func TestCloseGateActive(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	openPosition(t, f, "O1")

	f.gate.active = true
	f.gate.reason = "drawdown limit"

	outcome, err := f.proc.Handle(ctx, closeCmd("T1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)
	assert.Equal(t, 0, f.venue.closeCalls)

	pos, perr := f.positions.GetByTicket(ctx, "T1")
	require.NoError(t, perr)
	assert.Equal(t, domain.PositionStatusOpen, pos.Status)
}

func TestCloseVolumeExceedsPosition(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	openPosition(t, f, "O1")

	cmd := closeCmd("T1")
	cmd.CloseVolume = decPtr("5")

	outcome, err := f.proc.Handle(ctx, cmd)
	assert.ErrorIs(t, err, domain.ErrInvalidCommand)
	assert.Equal(t, OutcomeAck, outcome)
	assert.Equal(t, 0, f.venue.closeCalls)
}

func TestClosePersistExhausted(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	openPosition(t, f, "O1")

	// The CLOSING claim is the first Update; everything after the venue
	// call fails.
	f.positions.failAfter(1)

	outcome, err := f.proc.Handle(ctx, closeCmd("T1"))
	require.Error(t, err)
	assert.Equal(t, OutcomeAck, outcome, "post-venue persistence failure must not redeliver")
	assert.Equal(t, 1, f.venue.closeCalls)
	assert.True(t, f.audit.has(EventCriticalInconsistency))
	assert.Contains(t, f.alerter.events, EventCriticalInconsistency)
}

// ---------------------------------------------------------------------------
// Version monotonicity
// ---------------------------------------------------------------------------

func TestVersionMonotonicity(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	openPosition(t, f, "O1")
	order, err := f.orders.GetByID(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), order.Version)

	// A writer presenting a stale version is rejected.
	stale := order
	stale.Version = 1
	assert.ErrorIs(t, f.orders.Update(ctx, stale), domain.ErrVersionConflict)

	_, err = f.proc.Handle(ctx, closeCmd("T1"))
	require.NoError(t, err)

	order, err = f.orders.GetByID(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), order.Version, "each successful write bumps the version by exactly one")
}

// ---------------------------------------------------------------------------
// Stop placement against the actual fill
// ---------------------------------------------------------------------------

func TestOpenMarketStopOnWrongSideIsDropped(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	// Market BUY fills at 1.1000; a stop above the fill would self-trigger.
	cmd := openCmd("O1")
	cmd.StopLoss = decPtr("2")

	outcome, err := f.proc.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)

	pos, err := f.positions.GetByTicket(ctx, "T1")
	require.NoError(t, err)
	assert.Nil(t, pos.StopLoss, "stop above a BUY fill must not be attached")
	assert.True(t, f.audit.has(EventStopDropped))
}

func TestOpenMarketStopOnLosingSideIsKept(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	cmd := openCmd("O1")
	cmd.StopLoss = decPtr("1.0500")

	outcome, err := f.proc.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)

	pos, err := f.positions.GetByTicket(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, pos.StopLoss)
	assert.True(t, pos.StopLoss.Equal(dec("1.0500")))
	assert.False(t, f.audit.has(EventStopDropped))
}

// ---------------------------------------------------------------------------
// Orphaned close claims
// ---------------------------------------------------------------------------

func TestCloseOrphanedClaimIsFlagged(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	openPosition(t, f, "O1")

	// Wedge the position the way a worker crash mid-close would: the CLOSING
	// claim is persisted but the close never finishes.
	pos, err := f.positions.GetByTicket(ctx, "T1")
	require.NoError(t, err)
	pos.Status = domain.PositionStatusClosing
	require.NoError(t, f.positions.Update(ctx, pos))

	// Early redeliveries assume another worker is mid-flight and wait.
	for deliveries := int64(1); deliveries < stuckCloseDeliveries; deliveries++ {
		outcome, err := f.proc.HandleDelivery(ctx, closeCmd("T1"), deliveries)
		require.NoError(t, err)
		assert.Equal(t, OutcomeRetry, outcome)
		assert.False(t, f.audit.has(EventPositionStuck))
	}

	// By the third sighting the claim is presumed orphaned: ack, flag for
	// manual reconciliation, and never touch the venue.
	outcome, err := f.proc.HandleDelivery(ctx, closeCmd("T1"), stuckCloseDeliveries)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAck, outcome)
	assert.True(t, f.audit.has(EventPositionStuck))
	assert.Equal(t, 0, f.venue.closeCalls)
}
