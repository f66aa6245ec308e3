package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tonyboom3d/exact-view-framework/internal/models"
	repository "github.com/tonyboom3d/exact-view-framework/internal/repository/redis"
	"github.com/tonyboom3d/exact-view-framework/internal/wizard"
	"github.com/tonyboom3d/exact-view-framework/pkg/clock"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

const (
	noticeTimeout   = "Payment confirmation is taking longer than usual. We will message you once it is confirmed."
	noticeCancelled = "The pending payment was cancelled."
)

type CheckoutConfig struct {
	Orchestrator  OrchestratorConfig
	Poller        PollerConfig
	EnsureTimeout time.Duration
	IdleTTL       time.Duration
}

// session is the per-browser runtime. Lock order: session.mu before any
// orchestrator or poller lock; poller callbacks must be invoked without
// session.mu held.
type session struct {
	id       string
	deviceID string
	ctx      context.Context
	cancel   context.CancelFunc

	mu         sync.Mutex
	wizard     *wizard.Wizard
	orch       *PaymentOrchestrator
	poller     *Poller
	offer      *models.PendingPaymentData
	submitting bool
	notice     string
	lastSeen   time.Time
}

type checkoutService struct {
	msg     Messenger
	catalog CatalogSource
	repo    repository.PendingPaymentRepository
	tokens  *TokenIssuer
	cfg     CheckoutConfig
	l       logger.Logger
	clk     clock.Clock
	rec     Recorder
	valid   *validator.Validate

	mu       sync.RWMutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

type CheckoutOption func(*checkoutService)

func WithClock(c clock.Clock) CheckoutOption { return func(s *checkoutService) { s.clk = c } }

func WithRecorder(r Recorder) CheckoutOption { return func(s *checkoutService) { s.rec = r } }

func NewCheckoutService(
	msg Messenger,
	cat CatalogSource,
	repo repository.PendingPaymentRepository,
	tokens *TokenIssuer,
	cfg CheckoutConfig,
	l logger.Logger,
	opts ...CheckoutOption,
) CheckoutService {
	s := &checkoutService{
		msg:      msg,
		catalog:  cat,
		repo:     repo,
		tokens:   tokens,
		cfg:      cfg,
		l:        l,
		clk:      clock.Real(),
		rec:      nopRecorder{},
		valid:    validator.New(),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSession creates a session for deviceID (a fresh device id when
// empty) and runs pending-payment recovery for it.
func (s *checkoutService) OpenSession(ctx context.Context, deviceID string) (*OpenSessionOutput, error) {
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	ss := &session{
		id:       uuid.NewString(),
		deviceID: deviceID,
		wizard:   wizard.New(s.catalog, s.valid),
		lastSeen: s.clk.Now(),
	}
	ss.ctx, ss.cancel = context.WithCancel(s.l.With(context.Background(), "session_id", ss.id, "device_id", deviceID))
	ss.orch = NewPaymentOrchestrator(s.msg, s.repo, deviceID, s.l, s.clk, s.cfg.Orchestrator)

	rec := ss.orch.Recover(ctx)
	s.rec.Recovered(string(rec.Kind))
	switch rec.Kind {
	case RecoveryCompleted:
		ss.wizard.Complete(rec.OrderNumber, rec.TicketsPdf)
	case RecoveryResumable:
		ss.offer = rec.Pending
	}

	token, expAt, err := s.tokens.Issue(ss.id, deviceID)
	if err != nil {
		s.teardown(ss)
		return nil, err
	}

	s.mu.Lock()
	s.sessions[ss.id] = ss
	n := len(s.sessions)
	s.mu.Unlock()
	s.rec.ActiveSessions(n)

	s.l.Infof(ss.ctx, "service.checkoutService.OpenSession: recovery=%s", rec.Kind)
	return &OpenSessionOutput{
		SessionID: ss.id,
		DeviceID:  deviceID,
		Token:     token,
		ExpiresAt: expAt,
		View:      s.view(ss),
	}, nil
}

func (s *checkoutService) get(sessionID string) (*session, error) {
	s.mu.RLock()
	ss, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	ss.mu.Lock()
	ss.lastSeen = s.clk.Now()
	ss.mu.Unlock()
	return ss, nil
}

func (s *checkoutService) view(ss *session) *SessionView {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return s.viewLocked(ss)
}

func (s *checkoutService) viewLocked(ss *session) *SessionView {
	v := &SessionView{
		SessionID:  ss.id,
		Wizard:     ss.wizard.View(),
		Payment:    ss.orch.State(),
		Submitting: ss.submitting,
		Notice:     ss.notice,
	}
	if ss.poller != nil {
		snap := ss.poller.Snapshot()
		v.Poll = &snap
	}
	if ss.offer != nil {
		p := *ss.offer
		v.Recovery = &Recovery{Kind: RecoveryResumable, Pending: &p}
	}
	return v
}

// mutate runs f under the session lock and returns the resulting view.
func (s *checkoutService) mutate(sessionID string, f func(ss *session) error) (*SessionView, error) {
	ss, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if err := f(ss); err != nil {
		return nil, err
	}
	return s.viewLocked(ss), nil
}

func (s *checkoutService) GetSession(_ context.Context, sessionID string) (*SessionView, error) {
	ss, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(ss), nil
}

func (s *checkoutService) Tickets(_ context.Context) []models.TicketInfo {
	return s.catalog.Tickets()
}

func (s *checkoutService) SelectTicket(_ context.Context, sessionID string, in SelectTicketInput) (*SessionView, error) {
	return s.mutate(sessionID, func(ss *session) error {
		return ss.wizard.Select(in.Type, in.Quantity)
	})
}

func (s *checkoutService) UpdateDetails(_ context.Context, sessionID string, in wizard.Details) (*SessionView, error) {
	return s.mutate(sessionID, func(ss *session) error {
		return ss.wizard.SetDetails(in)
	})
}

func (s *checkoutService) Next(_ context.Context, sessionID string) (*SessionView, error) {
	return s.mutate(sessionID, func(ss *session) error { return ss.wizard.Next() })
}

func (s *checkoutService) Back(_ context.Context, sessionID string) (*SessionView, error) {
	return s.mutate(sessionID, func(ss *session) error {
		if ss.submitting {
			return ErrCheckoutInProgress
		}
		return ss.wizard.Back()
	})
}

func (s *checkoutService) Reset(_ context.Context, sessionID string) (*SessionView, error) {
	return s.mutate(sessionID, func(ss *session) error {
		if ss.submitting {
			return ErrCheckoutInProgress
		}
		if ss.poller != nil {
			ss.poller.Stop()
			ss.poller = nil
		}
		ss.notice = ""
		ss.orch.ClearError()
		ss.wizard.Reset()
		return nil
	})
}

// SubmitPayment starts the checkout in the background and returns the
// session in its loading state.
func (s *checkoutService) SubmitPayment(_ context.Context, sessionID string) (*SessionView, error) {
	var in CheckoutInput
	ss, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	ss.mu.Lock()
	switch {
	case ss.submitting:
		ss.mu.Unlock()
		return nil, ErrCheckoutInProgress
	case ss.poller != nil && ss.poller.Snapshot().Phase == PhasePolling:
		ss.mu.Unlock()
		return nil, ErrPollerRunning
	case ss.wizard.Step() != wizard.StepPayment:
		ss.mu.Unlock()
		return nil, wizard.ErrStepLocked
	}

	d := ss.wizard.Details()
	in = CheckoutInput{
		Selections:        ss.wizard.Selections(),
		Catalog:           s.catalog.Tickets(),
		Guests:            d.Guests,
		Payer:             d.Payer,
		ShowSeparatePayer: d.SeparatePayer,
		CompanyName:       d.CompanyName,
		TotalPrice:        ss.wizard.TotalPrice(),
		EnsureCatalogReady: func(ctx context.Context) ([]models.TicketInfo, error) {
			return s.catalog.EnsureWixData(ctx, s.cfg.EnsureTimeout)
		},
	}
	if ss.poller != nil {
		ss.poller.Stop()
		ss.poller = nil
	}
	ss.submitting = true
	ss.notice = ""
	ss.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCheckout(ss, in)
	}()

	return s.view(ss), nil
}

func (s *checkoutService) runCheckout(ss *session, in CheckoutInput) {
	ctx := ss.ctx
	res, err := ss.orch.CreateOrderAndPay(ctx, in)

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.submitting = false

	if err != nil {
		s.rec.CheckoutFinished("error")
		return
	}
	s.rec.CheckoutFinished(res.Status)

	st := ss.orch.State()
	switch {
	case st.Pending != nil:
		s.startPollerLocked(ss, *st.Pending)
	case res.Status == models.CheckoutStatusSuccessful:
		ss.wizard.Complete(res.OrderNumber, res.PdfLink)
	default:
		s.l.Infof(ctx, "service.checkoutService.runCheckout: order %s ended with status %q", res.OrderNumber, res.Status)
		ss.orch.setError(msgPaymentUnfinished)
	}
}

func (s *checkoutService) startPollerLocked(ss *session, pending models.PendingPaymentData) {
	var p *Poller
	current := func() bool {
		ss.mu.Lock()
		defer ss.mu.Unlock()
		return ss.poller == p
	}

	cb := PollerCallbacks{
		OnConfirmed: func(orderNumber, ticketsPdf string) {
			s.rec.PollFinished(string(PhaseConfirmed))
			if !current() {
				return
			}
			ss.orch.ClearPendingPayment(ss.ctx)
			ss.mu.Lock()
			ss.wizard.Complete(orderNumber, ticketsPdf)
			ss.mu.Unlock()
		},
		OnFailed: func() {
			s.rec.PollFinished(string(PhaseFailed))
			if !current() {
				return
			}
			ss.orch.ClearPendingPayment(ss.ctx)
			ss.orch.setError(msgPendingFailed)
		},
		OnTimeout: func() {
			s.rec.PollFinished(string(PhaseTimeout))
			if !current() {
				return
			}
			ss.mu.Lock()
			ss.notice = noticeTimeout
			ss.mu.Unlock()
		},
		OnCancelled: func() {
			s.rec.PollFinished(string(PhaseCancelled))
			if !current() {
				return
			}
			ss.mu.Lock()
			ss.notice = noticeCancelled
			ss.mu.Unlock()
		},
	}

	p = NewPoller(ss.orch, pending, cb, s.cfg.Poller, s.l, s.clk)
	ss.poller = p
	ss.orch.SetPending(pending)
	if err := p.Start(); err != nil {
		s.l.Errorf(ss.ctx, "service.checkoutService.startPoller: %v", err)
	}
}

func (s *checkoutService) CancelPending(ctx context.Context, sessionID string) (*SessionView, error) {
	ss, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	ss.mu.Lock()
	p := ss.poller
	ss.mu.Unlock()
	if p == nil {
		return nil, ErrNoPendingPayment
	}

	if err := p.Cancel(ctx); err != nil {
		return nil, err
	}
	return s.view(ss), nil
}

func (s *checkoutService) ResumePending(_ context.Context, sessionID string) (*SessionView, error) {
	return s.mutate(sessionID, func(ss *session) error {
		if ss.offer == nil {
			return ErrNoPendingPayment
		}
		pending := *ss.offer
		ss.offer = nil
		ss.notice = ""
		s.startPollerLocked(ss, pending)
		return nil
	})
}

func (s *checkoutService) DiscardPending(ctx context.Context, sessionID string) (*SessionView, error) {
	return s.mutate(sessionID, func(ss *session) error {
		if ss.offer == nil {
			return ErrNoPendingPayment
		}
		ss.offer = nil
		ss.orch.ClearPendingPayment(ctx)
		ss.wizard.Reset()
		return nil
	})
}

func (s *checkoutService) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	ss, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.rec.ActiveSessions(n)
	s.teardown(ss)
	return nil
}

// teardown also aborts a checkout still waiting on the host.
func (s *checkoutService) teardown(ss *session) {
	ss.cancel()
	ss.mu.Lock()
	if ss.poller != nil {
		ss.poller.Stop()
	}
	ss.mu.Unlock()
	ss.orch.Close()
}

// SweepIdle closes sessions that have not been touched for IdleTTL.
// Sessions with a checkout in flight are kept.
func (s *checkoutService) SweepIdle(ctx context.Context) int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := s.clk.Now().Add(-s.cfg.IdleTTL)

	var idle []*session
	s.mu.Lock()
	for id, ss := range s.sessions {
		ss.mu.Lock()
		expired := ss.lastSeen.Before(cutoff) && !ss.submitting
		ss.mu.Unlock()
		if expired {
			idle = append(idle, ss)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, ss := range idle {
		s.teardown(ss)
	}
	if len(idle) > 0 {
		s.rec.ActiveSessions(n)
		s.l.Infof(ctx, "service.checkoutService.SweepIdle: closed %d idle sessions", len(idle))
	}
	return len(idle)
}

// Shutdown closes every session and waits for in-flight checkouts.
func (s *checkoutService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	all := make([]*session, 0, len(s.sessions))
	for id, ss := range s.sessions {
		all = append(all, ss)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, ss := range all {
		s.teardown(ss)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
