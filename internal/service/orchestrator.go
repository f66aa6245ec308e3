package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/tonyboom3d/exact-view-framework/internal/bridge"
	"github.com/tonyboom3d/exact-view-framework/internal/catalog"
	"github.com/tonyboom3d/exact-view-framework/internal/models"
	repository "github.com/tonyboom3d/exact-view-framework/internal/repository/redis"
	"github.com/tonyboom3d/exact-view-framework/pkg/clock"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

const defaultCurrency = "ILS"

// Messenger is the slice of the bridge used by the orchestrator.
type Messenger interface {
	SendMessage(ctx context.Context, t bridge.MessageType, payload any, opts ...bridge.SendOption) (json.RawMessage, error)
	OnMessage(t bridge.MessageType, h bridge.Handler) func()
}

type OrchestratorConfig struct {
	CheckoutTimeout time.Duration
	GraceDelay      time.Duration
	ErrorWindow     time.Duration
	PendingTTL      time.Duration
}

// PaymentState is what the UI renders while a checkout runs.
type PaymentState struct {
	Loading        bool                       `json:"loading"`
	LoadingMessage string                     `json:"loadingMessage,omitempty"`
	Error          string                     `json:"error,omitempty"`
	Pending        *models.PendingPaymentData `json:"pending,omitempty"`
}

// CheckoutInput is the committed wizard state for one submission.
type CheckoutInput struct {
	Selections        []models.TicketSelection
	Catalog           []models.TicketInfo
	Guests            []models.GuestInfo
	Payer             *models.BuyerInfo
	ShowSeparatePayer bool
	CompanyName       string
	TotalPrice        float64
	// EnsureCatalogReady, when set, runs first. A non-empty result
	// replaces Catalog.
	EnsureCatalogReady func(ctx context.Context) ([]models.TicketInfo, error)
}

// PaymentOrchestrator submits one checkout at a time for a device and
// owns that device's pending payment record.
type PaymentOrchestrator struct {
	msg      Messenger
	repo     repository.PendingPaymentRepository
	deviceID string
	l        logger.Logger
	clk      clock.Clock
	cfg      OrchestratorConfig

	mu            sync.RWMutex
	state         PaymentState
	checkoutReqID string
	errTimer      *clock.Timer
	unsubscribe   []func()
}

func NewPaymentOrchestrator(msg Messenger, repo repository.PendingPaymentRepository, deviceID string, l logger.Logger, clk clock.Clock, cfg OrchestratorConfig) *PaymentOrchestrator {
	if cfg.CheckoutTimeout <= 0 {
		cfg.CheckoutTimeout = 10 * time.Minute
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = repository.DefaultPendingPaymentTTL
	}
	if clk == nil {
		clk = clock.Real()
	}

	o := &PaymentOrchestrator{
		msg:      msg,
		repo:     repo,
		deviceID: deviceID,
		l:        l,
		clk:      clk,
		cfg:      cfg,
	}
	o.unsubscribe = []func(){
		msg.OnMessage(bridge.TypePaymentProcessing, o.onProcessing),
		msg.OnMessage(bridge.TypePaymentCancelled, o.onCancelled),
		msg.OnMessage(bridge.TypePaymentError, o.onHostError),
	}
	return o
}

func (o *PaymentOrchestrator) State() PaymentState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st := o.state
	if st.Pending != nil {
		p := *st.Pending
		st.Pending = &p
	}
	return st
}

// CreateOrderAndPay submits the cart. A Pending result with a payment id
// is returned immediately with the pending record stored; any other
// result is returned after the grace delay. Errors are also recorded in
// the error state.
func (o *PaymentOrchestrator) CreateOrderAndPay(ctx context.Context, in CheckoutInput) (*models.CheckoutResult, error) {
	o.mu.Lock()
	if o.state.Loading {
		o.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	o.state.Loading = true
	o.state.LoadingMessage = msgPreparing
	o.state.Error = ""
	o.checkoutReqID = ""
	o.mu.Unlock()

	res, err := o.createOrderAndPay(ctx, in)

	o.mu.Lock()
	o.state.Loading = false
	o.state.LoadingMessage = ""
	o.mu.Unlock()

	if err != nil {
		o.l.Warnf(ctx, "service.PaymentOrchestrator.CreateOrderAndPay: %v", err)
		o.setError(userMessage(err))
		return nil, err
	}
	return res, nil
}

func (o *PaymentOrchestrator) createOrderAndPay(ctx context.Context, in CheckoutInput) (*models.CheckoutResult, error) {
	tickets := in.Catalog
	if in.EnsureCatalogReady != nil {
		ready, err := in.EnsureCatalogReady(ctx)
		if err != nil {
			return nil, err
		}
		if len(ready) > 0 {
			tickets = ready
		}
	}

	req, err := buildCheckoutRequest(in, tickets)
	if err != nil {
		return nil, err
	}
	for _, st := range req.SelectedTickets {
		if !models.IsCatalogID(st.TicketID) {
			return nil, catalog.ErrNotLoaded
		}
	}

	o.setLoadingMessage(msgProcessing)
	body, err := o.msg.SendMessage(ctx, bridge.TypeStartCheckout, req,
		bridge.WithTimeout(o.cfg.CheckoutTimeout),
		bridge.WithSentHook(func(id string) {
			o.mu.Lock()
			o.checkoutReqID = id
			o.mu.Unlock()
		}),
	)
	if err != nil {
		return nil, err
	}

	resp, err := bridge.DecodeBody[bridge.CheckoutResponse](bridge.Envelope{Type: bridge.TypePaymentSuccess, Data: body})
	if err != nil {
		return nil, err
	}

	result := &models.CheckoutResult{
		OrderNumber:   resp.OrderNumber,
		Status:        resp.Status,
		PaymentID:     resp.PaymentID,
		TotalAmount:   resp.TotalAmount,
		Currency:      resp.Currency,
		CustomerEmail: resp.CustomerEmail,
		PdfLink:       resp.PdfLink,
	}

	if resp.Status == models.CheckoutStatusPending && resp.PaymentID != "" {
		pending := o.pendingFrom(resp, req, in)
		o.mu.Lock()
		o.state.Pending = &pending
		o.mu.Unlock()
		o.persist(ctx, pending)
		return result, nil
	}

	o.ClearPendingPayment(ctx)
	if err := o.sleep(ctx, o.cfg.GraceDelay); err != nil {
		return nil, err
	}
	return result, nil
}

func buildCheckoutRequest(in CheckoutInput, tickets []models.TicketInfo) (bridge.CheckoutRequest, error) {
	if len(in.Selections) == 0 {
		return bridge.CheckoutRequest{}, ErrNoSelection
	}

	req := bridge.CheckoutRequest{
		AllGuestNames: make([]string, 0, len(in.Guests)),
		Guests:        make([]bridge.Person, 0, len(in.Guests)),
		CompanyName:   in.CompanyName,
		TotalAmount:   in.TotalPrice,
	}

	for _, sel := range in.Selections {
		t, ok := findTicket(tickets, sel.Type)
		if !ok {
			return bridge.CheckoutRequest{}, ErrUnknownTicketType
		}
		req.SelectedTickets = append(req.SelectedTickets, bridge.SelectedTicket{TicketID: t.ID, Quantity: sel.Quantity})
	}

	for _, g := range in.Guests {
		req.Guests = append(req.Guests, guestPerson(g))
		req.AllGuestNames = append(req.AllGuestNames, g.FullName())
	}

	switch {
	case len(in.Guests) > 0:
		req.MainBuyerDetails = guestPerson(in.Guests[0])
	case in.Payer != nil:
		req.MainBuyerDetails = payerPerson(*in.Payer)
	}

	if in.ShowSeparatePayer && in.Payer != nil {
		p := payerPerson(*in.Payer)
		req.Payer = &p
	}
	return req, nil
}

func findTicket(tickets []models.TicketInfo, typ string) (models.TicketInfo, bool) {
	for _, t := range tickets {
		if t.Matches(typ) {
			return t, true
		}
	}
	return models.TicketInfo{}, false
}

func guestPerson(g models.GuestInfo) bridge.Person {
	return bridge.Person{FirstName: g.FirstName, LastName: g.LastName, Email: g.Email, Phone: g.Phone, IDNumber: g.IDNumber}
}

func payerPerson(p models.BuyerInfo) bridge.Person {
	return bridge.Person{FirstName: p.FirstName, LastName: p.LastName, Email: p.Email, Phone: p.Phone, IDNumber: p.IDNumber}
}

func (o *PaymentOrchestrator) pendingFrom(resp bridge.CheckoutResponse, req bridge.CheckoutRequest, in CheckoutInput) models.PendingPaymentData {
	p := models.PendingPaymentData{
		OrderNumber:    resp.OrderNumber,
		PaymentID:      resp.PaymentID,
		BuyerPhone:     firstNonEmpty(resp.BuyerPhone, req.MainBuyerDetails.Phone),
		BuyerFirstName: firstNonEmpty(resp.BuyerFirstName, req.MainBuyerDetails.FirstName),
		Amount:         resp.TotalAmount,
		Currency:       firstNonEmpty(resp.Currency, defaultCurrency),
		Email:          firstNonEmpty(resp.CustomerEmail, req.MainBuyerDetails.Email),
		CreatedAt:      o.clk.Now(),
	}
	if p.Amount == 0 {
		p.Amount = in.TotalPrice
	}
	return p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (o *PaymentOrchestrator) persist(ctx context.Context, p models.PendingPaymentData) {
	if err := o.repo.Save(ctx, o.deviceID, p); err != nil {
		o.l.Warnf(ctx, "service.PaymentOrchestrator.persist: %v", err)
	}
}

func (o *PaymentOrchestrator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	done := make(chan struct{})
	t := o.clk.AfterFunc(d, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	}
}

func userMessage(err error) string {
	var hostErr *bridge.HostError
	switch {
	case errors.As(err, &hostErr):
		return hostErr.Message
	case errors.Is(err, catalog.ErrNotLoaded):
		return catalog.ErrNotLoaded.Error()
	case errors.Is(err, bridge.ErrTimeout):
		return "The payment page did not respond in time, please try again"
	case errors.Is(err, ErrNoSelection), errors.Is(err, ErrUnknownTicketType), errors.Is(err, ErrCheckoutInProgress):
		return err.Error()
	}
	return msgSomethingWentWrong
}

func (o *PaymentOrchestrator) setLoadingMessage(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.LoadingMessage = msg
}

// setError records msg, releases loading and clears msg again after the
// display window.
func (o *PaymentOrchestrator) setError(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Loading = false
	o.state.LoadingMessage = ""
	o.state.Error = msg

	o.errTimer.Stop()
	if o.cfg.ErrorWindow <= 0 {
		o.errTimer = nil
		return
	}
	o.errTimer = o.clk.AfterFunc(o.cfg.ErrorWindow, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.state.Error == msg {
			o.state.Error = ""
		}
	})
}

// ClearError dismisses the current error immediately.
func (o *PaymentOrchestrator) ClearError() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errTimer.Stop()
	o.state.Error = ""
}

// concerns reports whether an unsolicited notification belongs to the
// checkout this orchestrator has in flight.
func (o *PaymentOrchestrator) concerns(env bridge.Envelope) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if env.RequestID != "" {
		return env.RequestID == o.checkoutReqID
	}
	return o.state.Loading
}

func (o *PaymentOrchestrator) onProcessing(env bridge.Envelope) {
	if !o.concerns(env) {
		return
	}
	notice, err := bridge.DecodeBody[bridge.ProcessingNotice](env)
	if err != nil || notice.Message == "" {
		notice.Message = msgHostProcessing
	}
	o.setLoadingMessage(notice.Message)
}

func (o *PaymentOrchestrator) onCancelled(env bridge.Envelope) {
	if !o.concerns(env) {
		return
	}
	o.setError(firstNonEmpty(env.Error, msgCancelled))
}

func (o *PaymentOrchestrator) onHostError(env bridge.Envelope) {
	if !o.concerns(env) {
		return
	}
	o.setError(firstNonEmpty(env.Error, msgPaymentFailed))
}

// PollPaymentStatus asks the host for the current status of paymentID.
func (o *PaymentOrchestrator) PollPaymentStatus(ctx context.Context, paymentID string) (models.PaymentStatusResult, error) {
	body, err := o.msg.SendMessage(ctx, bridge.TypeCheckPaymentStatus, bridge.PaymentStatusRequest{PaymentID: paymentID})
	if err != nil {
		return models.PaymentStatusResult{}, err
	}
	resp, err := bridge.DecodeBody[bridge.PaymentStatusResponse](bridge.Envelope{Type: bridge.TypePaymentStatus, Data: body})
	if err != nil {
		return models.PaymentStatusResult{}, err
	}
	return models.PaymentStatusResult{Status: resp.Status, OrderNumber: resp.OrderNumber, TicketsPdf: resp.TicketsPdf}, nil
}

// CancelPendingPayment asks the host to cancel paymentID. The local
// pending record is dropped whatever the host answers.
func (o *PaymentOrchestrator) CancelPendingPayment(ctx context.Context, paymentID string) error {
	_, err := o.msg.SendMessage(ctx, bridge.TypeCancelPendingPayment, bridge.CancelPaymentRequest{PaymentID: paymentID})
	o.ClearPendingPayment(ctx)
	return err
}

func (o *PaymentOrchestrator) SendPendingWhatsapp(ctx context.Context, phone, firstName, orderNumber string) error {
	_, err := o.msg.SendMessage(ctx, bridge.TypeSendPendingWhatsapp, bridge.PendingWhatsappRequest{
		Phone:       phone,
		FirstName:   firstName,
		OrderNumber: orderNumber,
	})
	return err
}

// LoadPendingPayment returns the stored record for this device, or nil
// when there is none, it is stale, or storage is unavailable.
func (o *PaymentOrchestrator) LoadPendingPayment(ctx context.Context) *models.PendingPaymentData {
	p, err := o.repo.Get(ctx, o.deviceID)
	if err != nil {
		if !errors.Is(err, repository.ErrPendingPaymentNotFound) {
			o.l.Warnf(ctx, "service.PaymentOrchestrator.LoadPendingPayment: %v", err)
		}
		return nil
	}
	if p.Expired(o.clk.Now(), o.cfg.PendingTTL) {
		o.l.Infof(ctx, "service.PaymentOrchestrator.LoadPendingPayment: discarding stale order %s", p.OrderNumber)
		o.ClearPendingPayment(ctx)
		return nil
	}
	return p
}

// SetPending makes p the active pending payment without persisting it.
func (o *PaymentOrchestrator) SetPending(p models.PendingPaymentData) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Pending = &p
}

func (o *PaymentOrchestrator) ClearPendingPayment(ctx context.Context) {
	o.mu.Lock()
	o.state.Pending = nil
	o.mu.Unlock()

	if err := o.repo.Delete(ctx, o.deviceID); err != nil {
		o.l.Warnf(ctx, "service.PaymentOrchestrator.ClearPendingPayment: %v", err)
	}
}

// Close drops the host notification subscriptions.
func (o *PaymentOrchestrator) Close() {
	o.mu.Lock()
	o.errTimer.Stop()
	unsub := o.unsubscribe
	o.unsubscribe = nil
	o.mu.Unlock()

	for _, u := range unsub {
		u()
	}
}
