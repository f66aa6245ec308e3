package hostsim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tonyboom3d/exact-view-framework/internal/bridge"
	"github.com/tonyboom3d/exact-view-framework/internal/models"
	"github.com/tonyboom3d/exact-view-framework/pkg/clock"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

// Scenario decides how the simulated payment page ends.
type Scenario string

const (
	ScenarioSuccessful Scenario = models.CheckoutStatusSuccessful
	ScenarioPending    Scenario = models.CheckoutStatusPending
	ScenarioCancelled  Scenario = models.CheckoutStatusCancelled
	ScenarioFailed     Scenario = models.CheckoutStatusFailed
)

func ParseScenario(s string) (Scenario, error) {
	for _, sc := range []Scenario{ScenarioSuccessful, ScenarioPending, ScenarioCancelled, ScenarioFailed} {
		if strings.EqualFold(s, string(sc)) {
			return sc, nil
		}
	}
	return "", fmt.Errorf("hostsim: unknown scenario %q", s)
}

const (
	msgCheckoutCancelled = "The payment process was cancelled."
	msgCheckoutFailed    = "The payment failed, please try again."
	msgCheckoutBroken    = "Something went wrong with the order, please try again."
	defaultTicketName    = "Ticket"
	firstOrderNumber     = 10001
)

// Tier is one ticket type the simulated host sells.
type Tier struct {
	Key         string
	ID          string
	Name        string
	Price       float64
	SoldPercent float64
	SoldOut     bool
}

type Config struct {
	EventID  string
	Tiers    []Tier
	Scenario Scenario
	// DowngradePending rewrites a Pending payment result to Cancelled,
	// as one card provider's flow does.
	DowngradePending bool
	// SettleAfter is how many status checks a pending payment answers
	// "pending" before reporting SettleStatus.
	SettleAfter  int
	SettleStatus string
	// AnnounceProcessing pushes PAYMENT_PROCESSING before answering
	// START_CHECKOUT.
	AnnounceProcessing bool
	// PaymentDelay is how long the simulated payment page stays open
	// before the checkout is answered.
	PaymentDelay time.Duration
	Currency     string
}

// DefaultTiers mirrors the fallback catalog with real identifiers.
func DefaultTiers() []Tier {
	return []Tier{
		{Key: "general", ID: uuid.NewString(), Name: "General Admission", Price: 2900, SoldPercent: 85},
		{Key: "premier", ID: uuid.NewString(), Name: "Premier", Price: 3450, SoldPercent: 72},
		{Key: "vip", ID: uuid.NewString(), Name: "VIP Experience", Price: 4500, SoldPercent: 96},
	}
}

func (c Config) withDefaults() Config {
	if c.EventID == "" {
		c.EventID = uuid.NewString()
	}
	if len(c.Tiers) == 0 {
		c.Tiers = DefaultTiers()
	}
	if c.Scenario == "" {
		c.Scenario = ScenarioSuccessful
	}
	if c.SettleStatus == "" {
		c.SettleStatus = models.PaymentStatusPaid
	}
	if c.Currency == "" {
		c.Currency = "ILS"
	}
	return c
}

type Item struct {
	Name     string
	Price    float64
	Quantity int
}

// Order is everything the simulated host remembers about one checkout.
type Order struct {
	Number     string
	PaymentID  string
	Status     string
	Amount     float64
	Items      []Item
	Buyer      bridge.Person
	TicketsPdf string
	checks     int
}

type Notification struct {
	Phone       string
	FirstName   string
	OrderNumber string
}

// Host plays the embedding page on the far end of a bridge port.
type Host struct {
	port bridge.Port
	l    logger.Logger
	clk  clock.Clock

	mu        sync.Mutex
	cfg       Config
	orders    map[string]*Order
	nextOrder int
	notified  []Notification
}

type Option func(*Host)

func WithClock(c clock.Clock) Option { return func(h *Host) { h.clk = c } }

func New(port bridge.Port, l logger.Logger, cfg Config, opts ...Option) *Host {
	h := &Host{
		port:      port,
		l:         l,
		clk:       clock.Real(),
		cfg:       cfg.withDefaults(),
		orders:    make(map[string]*Order),
		nextOrder: firstOrderNumber,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run pushes the catalog once and then serves frames until ctx ends or
// the port stops delivering.
func (h *Host) Run(ctx context.Context) error {
	if err := h.pushCatalog(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-h.port.Frames():
			if !ok {
				return nil
			}
			h.handle(ctx, frame)
		}
	}
}

func (h *Host) handle(ctx context.Context, frame []byte) {
	env, err := bridge.Decode(frame)
	if err != nil {
		h.l.Warnf(ctx, "hostsim.Host.handle: %v", err)
		return
	}

	switch env.Type {
	case bridge.TypeRequestInit:
		err = h.pushCatalog(ctx)
	case bridge.TypeStartCheckout:
		err = h.startCheckout(ctx, env)
	case bridge.TypeCheckPaymentStatus:
		err = h.checkStatus(ctx, env)
	case bridge.TypeCancelPendingPayment:
		err = h.cancelPayment(ctx, env)
	case bridge.TypeSendPendingWhatsapp:
		err = h.sendWhatsapp(ctx, env)
	default:
		h.l.Debugf(ctx, "hostsim.Host.handle: ignoring %s", env.Type)
	}
	if err != nil {
		h.l.Errorf(ctx, "hostsim.Host.handle: %s: %v", env.Type, err)
	}
}

func (h *Host) pushCatalog(ctx context.Context) error {
	h.mu.Lock()
	data := bridge.InitEventData{EventID: h.cfg.EventID}
	for _, t := range h.cfg.Tiers {
		price, sold, soldOut := t.Price, t.SoldPercent, t.SoldOut
		data.Tickets = append(data.Tickets, bridge.CatalogEntry{
			Key:         t.Key,
			ID:          t.ID,
			SoldPercent: &sold,
			IsSoldOut:   &soldOut,
			Price:       &price,
		})
	}
	h.mu.Unlock()

	frame, err := bridge.Encode(bridge.TypeInitEventData, "", data)
	if err != nil {
		return err
	}
	h.l.Infof(ctx, "hostsim.Host.pushCatalog: %d tiers", len(data.Tickets))
	return h.port.Post(ctx, frame)
}

func (h *Host) reply(ctx context.Context, t bridge.MessageType, requestID string, success bool, data any, errMsg string) error {
	frame, err := bridge.EncodeReply(t, requestID, success, data, errMsg)
	if err != nil {
		return err
	}
	return h.port.Post(ctx, frame)
}

var errUnknownTicket = errors.New("unknown ticket id")

func (h *Host) startCheckout(ctx context.Context, env bridge.Envelope) error {
	req, err := bridge.DecodeBody[bridge.CheckoutRequest](env)
	if err != nil {
		return h.reply(ctx, bridge.TypePaymentError, env.RequestID, false, nil, msgCheckoutBroken)
	}

	if h.config().AnnounceProcessing {
		// A request id here would settle the pending checkout.
		notice, err := bridge.EncodeReply(bridge.TypePaymentProcessing, "", true,
			bridge.ProcessingNotice{Message: "Opening the secure payment page..."}, "")
		if err == nil {
			_ = h.port.Post(ctx, notice)
		}
	}

	order, err := h.createOrder(req)
	if err != nil {
		h.l.Warnf(ctx, "hostsim.Host.startCheckout: %v", err)
		return h.reply(ctx, bridge.TypePaymentError, env.RequestID, false, nil, msgCheckoutBroken)
	}

	h.l.Infof(ctx, "hostsim.Host.startCheckout: order %s amount %.2f -> %s", order.Number, order.Amount, order.Status)

	delay := h.config().PaymentDelay
	if delay <= 0 {
		return h.answerCheckout(ctx, env.RequestID, order)
	}
	bg := context.WithoutCancel(ctx)
	h.clk.AfterFunc(delay, func() {
		if err := h.answerCheckout(bg, env.RequestID, order); err != nil {
			h.l.Errorf(bg, "hostsim.Host.startCheckout: %v", err)
		}
	})
	return nil
}

func (h *Host) answerCheckout(ctx context.Context, requestID string, order *Order) error {
	h.mu.Lock()
	status := order.Status
	h.mu.Unlock()

	switch status {
	case models.CheckoutStatusSuccessful, models.CheckoutStatusPending:
		return h.reply(ctx, bridge.TypePaymentSuccess, requestID, true, bridge.CheckoutResponse{
			OrderNumber:    order.Number,
			Status:         status,
			PaymentID:      order.PaymentID,
			TotalAmount:    order.Amount,
			Currency:       h.config().Currency,
			CustomerEmail:  order.Buyer.Email,
			PdfLink:        order.TicketsPdf,
			BuyerPhone:     order.Buyer.Phone,
			BuyerFirstName: order.Buyer.FirstName,
		}, "")
	case models.CheckoutStatusCancelled:
		return h.reply(ctx, bridge.TypePaymentCancelled, requestID, false, nil, msgCheckoutCancelled)
	default:
		return h.reply(ctx, bridge.TypePaymentError, requestID, false, nil, msgCheckoutFailed)
	}
}

func (h *Host) createOrder(req bridge.CheckoutRequest) (*Order, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	totalQty := 0
	for _, st := range req.SelectedTickets {
		totalQty += st.Quantity
	}
	fallback := 0.0
	if req.TotalAmount > 0 && totalQty > 0 {
		fallback = math.Round(req.TotalAmount/float64(totalQty)*100) / 100
	}

	order := &Order{Buyer: req.MainBuyerDetails}
	if req.Payer != nil {
		order.Buyer = *req.Payer
	}
	for _, st := range req.SelectedTickets {
		tier, ok := h.tierLocked(st.TicketID)
		if !ok {
			return nil, fmt.Errorf("%w %q", errUnknownTicket, st.TicketID)
		}
		item := Item{Name: tier.Name, Price: tier.Price, Quantity: st.Quantity}
		if item.Name == "" {
			item.Name = defaultTicketName
		}
		if item.Price <= 0 {
			item.Price = fallback
		}
		order.Items = append(order.Items, item)
		order.Amount += item.Price * float64(item.Quantity)
	}
	if order.Amount <= 0 && req.TotalAmount > 0 {
		order.Amount = req.TotalAmount
	}

	order.Number = strconv.Itoa(h.nextOrder)
	h.nextOrder++
	order.PaymentID = uuid.NewString()
	order.TicketsPdf = "https://tickets.example.com/" + order.Number + ".pdf"

	status := string(h.cfg.Scenario)
	if status == models.CheckoutStatusPending && h.cfg.DowngradePending {
		status = models.CheckoutStatusCancelled
	}
	order.Status = status
	h.orders[order.PaymentID] = order
	return order, nil
}

func (h *Host) tierLocked(id string) (Tier, bool) {
	for _, t := range h.cfg.Tiers {
		if t.ID == id {
			return t, true
		}
	}
	return Tier{}, false
}

// paymentStatus maps the stored order state onto the polling vocabulary
// and advances pending payments towards their final status.
func (h *Host) paymentStatus(paymentID string) (bridge.PaymentStatusResponse, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	o, ok := h.orders[paymentID]
	if !ok {
		return bridge.PaymentStatusResponse{}, false
	}
	resp := bridge.PaymentStatusResponse{OrderNumber: o.Number}
	switch o.Status {
	case models.CheckoutStatusSuccessful, models.PaymentStatusPaid:
		resp.Status = models.PaymentStatusPaid
		resp.TicketsPdf = o.TicketsPdf
	case models.CheckoutStatusPending:
		o.checks++
		if o.checks <= h.cfg.SettleAfter {
			resp.Status = models.PaymentStatusPending
			return resp, true
		}
		o.Status = h.cfg.SettleStatus
		resp.Status = o.Status
		if o.Status == models.PaymentStatusPaid {
			resp.TicketsPdf = o.TicketsPdf
		}
	case models.CheckoutStatusCancelled:
		resp.Status = models.PaymentStatusCancelled
	case models.CheckoutStatusFailed:
		resp.Status = models.PaymentStatusFailed
	default:
		resp.Status = o.Status
	}
	return resp, true
}

func (h *Host) checkStatus(ctx context.Context, env bridge.Envelope) error {
	req, err := bridge.DecodeBody[bridge.PaymentStatusRequest](env)
	if err != nil {
		return h.reply(ctx, bridge.TypePaymentStatus, env.RequestID, false, nil, err.Error())
	}
	resp, ok := h.paymentStatus(req.PaymentID)
	if !ok {
		return h.reply(ctx, bridge.TypePaymentStatus, env.RequestID, false, nil, "payment not found")
	}
	return h.reply(ctx, bridge.TypePaymentStatus, env.RequestID, true, resp, "")
}

func (h *Host) cancelPayment(ctx context.Context, env bridge.Envelope) error {
	req, err := bridge.DecodeBody[bridge.CancelPaymentRequest](env)
	if err != nil {
		return h.reply(ctx, bridge.TypePaymentStatus, env.RequestID, false, nil, err.Error())
	}

	h.mu.Lock()
	o, ok := h.orders[req.PaymentID]
	if ok && o.Status == models.CheckoutStatusPending {
		o.Status = models.CheckoutStatusCancelled
	}
	h.mu.Unlock()

	if !ok {
		return h.reply(ctx, bridge.TypePaymentStatus, env.RequestID, false, nil, "payment not found")
	}
	return h.reply(ctx, bridge.TypePaymentStatus, env.RequestID, true,
		bridge.PaymentStatusResponse{Status: models.PaymentStatusCancelled, OrderNumber: o.Number}, "")
}

func (h *Host) sendWhatsapp(ctx context.Context, env bridge.Envelope) error {
	req, err := bridge.DecodeBody[bridge.PendingWhatsappRequest](env)
	if err != nil {
		return h.reply(ctx, bridge.TypePaymentStatus, env.RequestID, false, nil, err.Error())
	}

	h.mu.Lock()
	h.notified = append(h.notified, Notification(req))
	h.mu.Unlock()

	h.l.Infof(ctx, "hostsim.Host.sendWhatsapp: order %s to %s", req.OrderNumber, req.Phone)
	return h.reply(ctx, bridge.TypePaymentStatus, env.RequestID, true, nil, "")
}

func (h *Host) config() Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// SetScenario changes the outcome of the next checkouts.
func (h *Host) SetScenario(s Scenario) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg.Scenario = s
}

// SetPaymentStatus forces the stored status of paymentID.
func (h *Host) SetPaymentStatus(paymentID, status string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.orders[paymentID]
	if ok {
		o.Status = status
	}
	return ok
}

func (h *Host) Tiers() []Tier {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Tier(nil), h.cfg.Tiers...)
}

func (h *Host) Order(paymentID string) (Order, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.orders[paymentID]
	if !ok {
		return Order{}, false
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	return cp, true
}

func (h *Host) Orders() []Order {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Order, 0, len(h.orders))
	for _, o := range h.orders {
		out = append(out, *o)
	}
	return out
}

func (h *Host) Notifications() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Notification(nil), h.notified...)
}
