package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonyboom3d/exact-view-framework/internal/models"
	"github.com/tonyboom3d/exact-view-framework/pkg/clock"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

type pollAnswer struct {
	status models.PaymentStatusResult
	err    error
}

type fakeGateway struct {
	mu        sync.Mutex
	answers   []pollAnswer
	polls     int
	cancels   []string
	whatsapps []string
	cancelErr error
	// gate, when set, blocks each poll until a value is sent or the
	// context ends.
	gate chan pollAnswer
}

func (g *fakeGateway) PollPaymentStatus(ctx context.Context, _ string) (models.PaymentStatusResult, error) {
	g.mu.Lock()
	g.polls++
	gate := g.gate
	var a pollAnswer
	if len(g.answers) > 0 {
		a = g.answers[0]
		g.answers = g.answers[1:]
	} else {
		a = pollAnswer{status: models.PaymentStatusResult{Status: models.PaymentStatusPending}}
	}
	g.mu.Unlock()

	if gate != nil {
		select {
		case a = <-gate:
		case <-ctx.Done():
			return models.PaymentStatusResult{}, ctx.Err()
		}
	}
	return a.status, a.err
}

func (g *fakeGateway) CancelPendingPayment(_ context.Context, paymentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, paymentID)
	return g.cancelErr
}

func (g *fakeGateway) SendPendingWhatsapp(_ context.Context, phone, _, orderNumber string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.whatsapps = append(g.whatsapps, phone+"/"+orderNumber)
	return nil
}

func (g *fakeGateway) pollCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.polls
}

func (g *fakeGateway) whatsappCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.whatsapps)
}

type outcomes struct {
	mu        sync.Mutex
	confirmed []string
	failed    int
	timeout   int
	cancelled int
}

func (o *outcomes) callbacks() PollerCallbacks {
	return PollerCallbacks{
		OnConfirmed: func(order, pdf string) {
			o.mu.Lock()
			defer o.mu.Unlock()
			o.confirmed = append(o.confirmed, order+"|"+pdf)
		},
		OnFailed:    func() { o.mu.Lock(); o.failed++; o.mu.Unlock() },
		OnTimeout:   func() { o.mu.Lock(); o.timeout++; o.mu.Unlock() },
		OnCancelled: func() { o.mu.Lock(); o.cancelled++; o.mu.Unlock() },
	}
}

func (o *outcomes) total() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.confirmed) + o.failed + o.timeout + o.cancelled
}

var testPollerConfig = PollerConfig{
	Interval:     5 * time.Second,
	MaxDuration:  60 * time.Second,
	ConfirmDelay: 2 * time.Second,
	FailDelay:    3 * time.Second,
}

func testPending() models.PendingPaymentData {
	return models.PendingPaymentData{
		OrderNumber:    "10050",
		PaymentID:      "pay_50",
		BuyerPhone:     "+972501112233",
		BuyerFirstName: "Yael",
		Amount:         9000,
		Currency:       "ILS",
		CreatedAt:      testEpoch,
	}
}

type pollerHarness struct {
	p   *Poller
	gw  *fakeGateway
	out *outcomes
	clk *clock.FakeClock
}

func newPollerHarness(t *testing.T, gw *fakeGateway, pending models.PendingPaymentData) *pollerHarness {
	t.Helper()
	clk := clock.NewFake(testEpoch)
	out := &outcomes{}
	p := NewPoller(gw, pending, out.callbacks(), testPollerConfig, logger.NewNop(), clk)
	require.NoError(t, p.Start())
	t.Cleanup(p.Stop)
	return &pollerHarness{p: p, gw: gw, out: out, clk: clk}
}

// tick advances one poll interval and waits for that poll to finish and
// re-arm, or to resolve.
func (h *pollerHarness) tick(t *testing.T) {
	t.Helper()
	before := h.gw.pollCount()
	h.clk.Advance(testPollerConfig.Interval)
	require.Eventually(t, func() bool { return h.gw.pollCount() == before+1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return h.p.Snapshot().Phase != PhasePolling || h.clk.Pending() == 2
	}, time.Second, time.Millisecond)
}

func TestPollerConfirmsAfterDisplayDelay(t *testing.T) {
	gw := &fakeGateway{answers: []pollAnswer{
		{status: models.PaymentStatusResult{Status: "pending"}},
		{status: models.PaymentStatusResult{Status: "paid", TicketsPdf: "https://t/pdf"}},
	}}
	h := newPollerHarness(t, gw, testPending())

	h.tick(t)
	assert.Equal(t, PhasePolling, h.p.Snapshot().Phase)
	assert.Equal(t, 5, h.p.Snapshot().ElapsedSeconds)

	h.tick(t)
	assert.Equal(t, PhaseConfirmed, h.p.Snapshot().Phase)
	assert.Zero(t, h.out.total(), "confirmation waits for the display delay")

	h.clk.Advance(2 * time.Second)
	assert.Equal(t, []string{"10050|https://t/pdf"}, h.out.confirmed)
	assert.Equal(t, 1, h.out.total())

	h.clk.Advance(time.Minute)
	assert.Equal(t, 2, gw.pollCount())
	assert.Zero(t, h.clk.Pending(), "no timers survive resolution")
}

func TestPollerTerminalFailureStatuses(t *testing.T) {
	for _, status := range []string{"cancelled", "failed", "declined"} {
		t.Run(status, func(t *testing.T) {
			gw := &fakeGateway{answers: []pollAnswer{{status: models.PaymentStatusResult{Status: status}}}}
			h := newPollerHarness(t, gw, testPending())

			h.tick(t)
			assert.Equal(t, PhaseFailed, h.p.Snapshot().Phase)
			h.clk.Advance(2 * time.Second)
			assert.Zero(t, h.out.failed)
			h.clk.Advance(time.Second)
			assert.Equal(t, 1, h.out.failed)
			assert.Equal(t, 1, h.out.total())
		})
	}
}

func TestPollerKeepsPollingThroughErrors(t *testing.T) {
	gw := &fakeGateway{answers: []pollAnswer{
		{err: errors.New("network down")},
		{status: models.PaymentStatusResult{Status: "in_progress"}},
		{status: models.PaymentStatusResult{Status: "weird"}},
	}}
	h := newPollerHarness(t, gw, testPending())

	for range 3 {
		h.tick(t)
		assert.Equal(t, PhasePolling, h.p.Snapshot().Phase)
	}
	assert.Equal(t, 3, gw.pollCount())
	assert.Zero(t, h.out.total())
}

func TestPollerTimesOutOnceAndNotifiesBuyer(t *testing.T) {
	gw := &fakeGateway{}
	h := newPollerHarness(t, gw, testPending())

	for range 11 {
		h.tick(t)
		require.Equal(t, PhasePolling, h.p.Snapshot().Phase)
	}
	h.tick(t)

	snap := h.p.Snapshot()
	assert.Equal(t, PhaseTimeout, snap.Phase)
	assert.InDelta(t, 100, snap.ProgressPercent, 0)
	require.Eventually(t, func() bool { return h.out.total() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, h.out.timeout)
	require.Eventually(t, func() bool { return gw.whatsappCount() == 1 }, time.Second, time.Millisecond)

	h.clk.Advance(5 * time.Minute)
	assert.Equal(t, 12, gw.pollCount())
	assert.Equal(t, 1, gw.whatsappCount())
	assert.Equal(t, 1, h.out.total())
}

func TestPollerTimeoutWithoutPhoneSkipsNotification(t *testing.T) {
	gw := &fakeGateway{}
	pending := testPending()
	pending.BuyerPhone = ""
	h := newPollerHarness(t, gw, pending)

	for range 12 {
		h.tick(t)
	}
	assert.Equal(t, PhaseTimeout, h.p.Snapshot().Phase)
	require.Eventually(t, func() bool { return h.out.total() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, h.out.timeout)
	assert.Zero(t, gw.whatsappCount())
}

func TestPollerManualCancel(t *testing.T) {
	gw := &fakeGateway{cancelErr: errors.New("host unreachable")}
	h := newPollerHarness(t, gw, testPending())
	h.tick(t)

	require.NoError(t, h.p.Cancel(context.Background()))
	assert.Equal(t, PhaseCancelled, h.p.Snapshot().Phase)
	assert.Equal(t, []string{"pay_50"}, gw.cancels)
	assert.Equal(t, 1, h.out.cancelled, "cancel succeeds for the user even when the host call fails")

	assert.ErrorIs(t, h.p.Cancel(context.Background()), ErrAlreadyResolved)
	h.clk.Advance(5 * time.Minute)
	assert.Equal(t, 1, gw.pollCount())
	assert.Zero(t, gw.whatsappCount())
	assert.Equal(t, 1, h.out.total())
}

func TestPollerCancelWinsOverInFlightPaid(t *testing.T) {
	gate := make(chan pollAnswer)
	gw := &fakeGateway{gate: gate}
	h := newPollerHarness(t, gw, testPending())

	h.clk.Advance(testPollerConfig.Interval)
	require.Eventually(t, func() bool { return gw.pollCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.p.Cancel(context.Background()))
	select {
	case gate <- pollAnswer{status: models.PaymentStatusResult{Status: "paid"}}:
	case <-time.After(100 * time.Millisecond):
	}
	h.clk.Advance(time.Minute)

	assert.Equal(t, PhaseCancelled, h.p.Snapshot().Phase)
	assert.Equal(t, 1, h.out.cancelled)
	assert.Empty(t, h.out.confirmed)
	assert.Equal(t, 1, h.out.total())
}

func TestPollerCancelAfterResolutionIsRejected(t *testing.T) {
	gw := &fakeGateway{answers: []pollAnswer{{status: models.PaymentStatusResult{Status: "paid"}}}}
	h := newPollerHarness(t, gw, testPending())
	h.tick(t)

	assert.ErrorIs(t, h.p.Cancel(context.Background()), ErrAlreadyResolved)
	assert.Empty(t, gw.cancels)
	h.clk.Advance(2 * time.Second)
	assert.Len(t, h.out.confirmed, 1)
	assert.Equal(t, 1, h.out.total())
}

func TestPollerStopClearsEveryTimer(t *testing.T) {
	gw := &fakeGateway{answers: []pollAnswer{{status: models.PaymentStatusResult{Status: "paid"}}}}
	h := newPollerHarness(t, gw, testPending())
	h.tick(t)
	require.Equal(t, PhaseConfirmed, h.p.Snapshot().Phase)

	h.p.Stop()
	assert.Zero(t, h.clk.Pending())
	h.clk.Advance(time.Minute)
	assert.Zero(t, h.out.total(), "stopped poller suppresses pending display callbacks")
}

func TestPollerStopWhilePolling(t *testing.T) {
	gw := &fakeGateway{}
	h := newPollerHarness(t, gw, testPending())
	h.tick(t)

	h.p.Stop()
	assert.Zero(t, h.clk.Pending())
	h.clk.Advance(5 * time.Minute)
	assert.Equal(t, 1, gw.pollCount())
	assert.ErrorIs(t, h.p.Cancel(context.Background()), ErrAlreadyResolved)
}

func TestPollerStartTwice(t *testing.T) {
	h := newPollerHarness(t, &fakeGateway{}, testPending())
	assert.ErrorIs(t, h.p.Start(), ErrPollerRunning)
}
