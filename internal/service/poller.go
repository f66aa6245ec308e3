package service

import (
	"context"
	"sync"
	"time"

	"github.com/tonyboom3d/exact-view-framework/internal/models"
	"github.com/tonyboom3d/exact-view-framework/pkg/clock"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

// PaymentGateway is what the poller needs from the orchestrator.
type PaymentGateway interface {
	PollPaymentStatus(ctx context.Context, paymentID string) (models.PaymentStatusResult, error)
	CancelPendingPayment(ctx context.Context, paymentID string) error
	SendPendingWhatsapp(ctx context.Context, phone, firstName, orderNumber string) error
}

type PollPhase string

const (
	PhaseIdle      PollPhase = "idle"
	PhasePolling   PollPhase = "polling"
	PhaseConfirmed PollPhase = "confirmed"
	PhaseFailed    PollPhase = "failed"
	PhaseTimeout   PollPhase = "timeout"
	PhaseCancelled PollPhase = "cancelled"
)

type PollerConfig struct {
	Interval     time.Duration
	MaxDuration  time.Duration
	ConfirmDelay time.Duration
	FailDelay    time.Duration
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 60 * time.Second
	}
	return c
}

// PollerCallbacks are invoked at most once in total: exactly one of them
// fires per poller, unless it is stopped first.
type PollerCallbacks struct {
	OnConfirmed func(orderNumber, ticketsPdf string)
	OnFailed    func()
	OnTimeout   func()
	OnCancelled func()
}

type PollSnapshot struct {
	Phase           PollPhase `json:"phase"`
	ElapsedSeconds  int       `json:"elapsedSeconds"`
	ProgressPercent float64   `json:"progressPercent"`
	OrderNumber     string    `json:"orderNumber"`
}

// Poller waits for one pending payment to settle.
type Poller struct {
	gw      PaymentGateway
	pending models.PendingPaymentData
	cb      PollerCallbacks
	cfg     PollerConfig
	l       logger.Logger
	clk     clock.Clock

	ctx    context.Context
	cancel context.CancelFunc

	mu                sync.Mutex
	phase             PollPhase
	startedAt         time.Time
	elapsed           time.Duration
	resolved          bool
	stopped           bool
	manuallyCancelled bool
	whatsappSent      bool

	pollTimer    *clock.Timer
	elapsedTimer *clock.Timer
	displayTimer *clock.Timer
}

func NewPoller(gw PaymentGateway, pending models.PendingPaymentData, cb PollerCallbacks, cfg PollerConfig, l logger.Logger, clk clock.Clock) *Poller {
	if clk == nil {
		clk = clock.Real()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		gw:      gw,
		pending: pending,
		cb:      cb,
		cfg:     cfg.withDefaults(),
		l:       l,
		clk:     clk,
		ctx:     l.With(ctx, "order_number", pending.OrderNumber, "payment_id", pending.PaymentID),
		cancel:  cancel,
		phase:   PhaseIdle,
	}
}

// Start schedules the first status check one interval from now.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhaseIdle || p.stopped {
		return ErrPollerRunning
	}

	p.phase = PhasePolling
	p.startedAt = p.clk.Now()
	p.pollTimer = p.clk.AfterFunc(p.cfg.Interval, p.onPollTimer)
	p.elapsedTimer = p.clk.AfterFunc(time.Second, p.onElapsedTimer)
	p.l.Infof(p.ctx, "service.Poller.Start: polling every %s for up to %s", p.cfg.Interval, p.cfg.MaxDuration)
	return nil
}

func (p *Poller) onElapsedTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved || p.stopped {
		return
	}
	p.elapsed = p.clk.Now().Sub(p.startedAt)
	p.elapsedTimer = p.clk.AfterFunc(time.Second, p.onElapsedTimer)
}

func (p *Poller) onPollTimer() {
	p.mu.Lock()
	if p.resolved || p.stopped {
		p.mu.Unlock()
		return
	}
	elapsed := p.clk.Now().Sub(p.startedAt)
	p.mu.Unlock()

	go p.poll(elapsed)
}

func (p *Poller) poll(elapsed time.Duration) {
	status, err := p.gw.PollPaymentStatus(p.ctx, p.pending.PaymentID)

	p.mu.Lock()
	if p.resolved || p.stopped {
		p.mu.Unlock()
		return
	}

	if err != nil {
		p.l.Warnf(p.ctx, "service.Poller.poll: %v", err)
	} else {
		switch {
		case status.Status == models.PaymentStatusPaid:
			p.resolveLocked(PhaseConfirmed)
			p.deferLocked(p.cfg.ConfirmDelay, func() {
				if p.cb.OnConfirmed != nil {
					p.cb.OnConfirmed(p.pending.OrderNumber, status.TicketsPdf)
				}
			})
			return
		case models.IsTerminalFailure(status.Status):
			p.resolveLocked(PhaseFailed)
			p.deferLocked(p.cfg.FailDelay, func() {
				if p.cb.OnFailed != nil {
					p.cb.OnFailed()
				}
			})
			return
		}
	}

	if elapsed < p.cfg.MaxDuration {
		p.pollTimer = p.clk.AfterFunc(p.cfg.Interval, p.onPollTimer)
		p.mu.Unlock()
		return
	}

	p.resolveLocked(PhaseTimeout)
	notify := !p.whatsappSent && !p.manuallyCancelled && p.pending.BuyerPhone != ""
	if notify {
		p.whatsappSent = true
	}
	p.mu.Unlock()

	p.l.Infof(p.ctx, "service.Poller.poll: no final status after %s", elapsed)
	if notify {
		go p.sendWhatsapp()
	}
	if p.cb.OnTimeout != nil {
		p.cb.OnTimeout()
	}
}

// sendWhatsapp outlives the poller.
func (p *Poller) sendWhatsapp() {
	ctx := context.WithoutCancel(p.ctx)
	if err := p.gw.SendPendingWhatsapp(ctx, p.pending.BuyerPhone, p.pending.BuyerFirstName, p.pending.OrderNumber); err != nil {
		p.l.Warnf(ctx, "service.Poller.sendWhatsapp: %v", err)
	}
}

// resolveLocked ends polling. Caller holds p.mu.
func (p *Poller) resolveLocked(phase PollPhase) {
	p.resolved = true
	p.phase = phase
	p.elapsed = p.clk.Now().Sub(p.startedAt)
	p.pollTimer.Stop()
	p.elapsedTimer.Stop()
	p.l.Infof(p.ctx, "service.Poller: %s", phase)
}

// deferLocked releases p.mu and runs f after d unless the poller is
// stopped first.
func (p *Poller) deferLocked(d time.Duration, f func()) {
	if d <= 0 {
		p.mu.Unlock()
		f()
		return
	}
	p.displayTimer = p.clk.AfterFunc(d, func() {
		p.mu.Lock()
		stopped := p.stopped
		p.mu.Unlock()
		if !stopped {
			f()
		}
	})
	p.mu.Unlock()
}

// Cancel is the user's escape hatch. It wins against any poll response
// that has not been applied yet. Host cancellation errors are only logged.
func (p *Poller) Cancel(ctx context.Context) error {
	p.mu.Lock()
	if p.resolved || p.stopped {
		p.mu.Unlock()
		return ErrAlreadyResolved
	}
	p.manuallyCancelled = true
	p.resolveLocked(PhaseCancelled)
	p.mu.Unlock()
	p.cancel()

	if err := p.gw.CancelPendingPayment(ctx, p.pending.PaymentID); err != nil {
		p.l.Warnf(p.ctx, "service.Poller.Cancel: %v", err)
	}
	if p.cb.OnCancelled != nil {
		p.cb.OnCancelled()
	}
	return nil
}

// Stop tears the poller down, clearing every timer and suppressing any
// callback that has not fired yet.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.pollTimer.Stop()
	p.elapsedTimer.Stop()
	p.displayTimer.Stop()
	p.mu.Unlock()
	p.cancel()
}

func (p *Poller) Snapshot() PollSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	secs := int(p.elapsed / time.Second)
	progress := float64(p.elapsed) / float64(p.cfg.MaxDuration) * 100
	if progress > 100 {
		progress = 100
	}
	return PollSnapshot{
		Phase:           p.phase,
		ElapsedSeconds:  secs,
		ProgressPercent: progress,
		OrderNumber:     p.pending.OrderNumber,
	}
}

func (p *Poller) Pending() models.PendingPaymentData { return p.pending }
