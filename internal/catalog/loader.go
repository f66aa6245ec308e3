package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tonyboom3d/exact-view-framework/internal/bridge"
	"github.com/tonyboom3d/exact-view-framework/internal/models"
	"github.com/tonyboom3d/exact-view-framework/pkg/clock"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
	"golang.org/x/sync/singleflight"
)

const DefaultEnsureTimeout = 8 * time.Second

// MessageBus is the part of the bridge the loader needs.
type MessageBus interface {
	Notify(ctx context.Context, t bridge.MessageType, payload any) error
	OnMessage(t bridge.MessageType, h bridge.Handler) func()
}

type Loader struct {
	bus      MessageBus
	l        logger.Logger
	clk      clock.Clock
	embedded bool

	mu      sync.RWMutex
	tickets []models.TicketInfo
	eventID string

	ready     chan struct{}
	readyOnce sync.Once
	sf        singleflight.Group

	unsubscribe func()
}

type Option func(*Loader)

func WithClock(c clock.Clock) Option { return func(ld *Loader) { ld.clk = c } }

// Embedded marks the loader as running inside the host. Outside the host
// the fallback catalog is final.
func Embedded(embedded bool) Option { return func(ld *Loader) { ld.embedded = embedded } }

// NewLoader starts from the fallback tiers and, when embedded, listens for
// INIT_EVENT_DATA right away.
func NewLoader(bus MessageBus, l logger.Logger, opts ...Option) *Loader {
	ld := &Loader{
		bus:      bus,
		l:        l,
		clk:      clock.Real(),
		embedded: true,
		tickets:  Fallback(),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ld)
	}

	if ld.embedded {
		ld.unsubscribe = bus.OnMessage(bridge.TypeInitEventData, ld.handleInit)
	} else {
		ld.markReady()
	}
	return ld
}

// Start asks the host for catalog metadata. A failed request is logged;
// EnsureWixData gets a second chance later.
func (ld *Loader) Start(ctx context.Context) {
	if !ld.embedded {
		return
	}
	if err := ld.bus.Notify(ctx, bridge.TypeRequestInit, nil); err != nil {
		ld.l.Warnf(ctx, "catalog.Loader.Start: %v", err)
	}
}

func (ld *Loader) Close() {
	if ld.unsubscribe != nil {
		ld.unsubscribe()
	}
}

func (ld *Loader) handleInit(env bridge.Envelope) {
	ctx := context.Background()
	data, err := bridge.DecodeBody[bridge.InitEventData](env)
	if err != nil {
		ld.l.Warnf(ctx, "catalog.Loader.handleInit: %v", err)
		return
	}

	ld.mu.Lock()
	ld.tickets = merge(ld.tickets, data.Tickets)
	if data.EventID != "" {
		ld.eventID = data.EventID
	}
	ld.mu.Unlock()

	ld.l.Infof(ctx, "catalog.Loader.handleInit: merged %d host entries", len(data.Tickets))
	ld.markReady()
}

// merge overwrites only the dynamic fields of tiers whose key matches.
// Tiers the host does not mention are kept as they are.
func merge(current []models.TicketInfo, entries []bridge.CatalogEntry) []models.TicketInfo {
	out := make([]models.TicketInfo, len(current))
	copy(out, current)

	for i := range out {
		for _, e := range entries {
			if !strings.EqualFold(strings.TrimSpace(e.Key), out[i].Type) {
				continue
			}
			if e.ID != "" {
				out[i].ID = e.ID
			}
			if e.IsSoldOut != nil {
				out[i].SoldOut = *e.IsSoldOut
			}
			if e.SoldPercent != nil {
				out[i].SoldPercent = clampPercent(*e.SoldPercent)
				out[i].SalesText = salesText(out[i].SoldPercent)
			}
			if e.Price != nil && *e.Price >= 0 {
				out[i].Price = *e.Price
			}
			break
		}
	}
	return out
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func (ld *Loader) markReady() {
	ld.readyOnce.Do(func() { close(ld.ready) })
}

// Ready reports whether host data has arrived, or the loader is not
// embedded.
func (ld *Loader) Ready() bool {
	select {
	case <-ld.ready:
		return true
	default:
		return false
	}
}

// ReadyC is closed once Ready becomes true.
func (ld *Loader) ReadyC() <-chan struct{} { return ld.ready }

func (ld *Loader) Tickets() []models.TicketInfo {
	ld.mu.RLock()
	defer ld.mu.RUnlock()
	out := make([]models.TicketInfo, len(ld.tickets))
	copy(out, ld.tickets)
	return out
}

func (ld *Loader) Lookup(typ string) (models.TicketInfo, bool) {
	ld.mu.RLock()
	defer ld.mu.RUnlock()
	for _, t := range ld.tickets {
		if t.Matches(typ) {
			return t, true
		}
	}
	return models.TicketInfo{}, false
}

func (ld *Loader) EventID() string {
	ld.mu.RLock()
	defer ld.mu.RUnlock()
	return ld.eventID
}

func (ld *Loader) hasCatalogIDs() bool {
	ld.mu.RLock()
	defer ld.mu.RUnlock()
	for _, t := range ld.tickets {
		if t.HasCatalogID() {
			return true
		}
	}
	return false
}

// EnsureWixData returns the catalog once host data is present. If it is
// not, it re-requests it and waits up to timeout. Concurrent callers share
// one request.
func (ld *Loader) EnsureWixData(ctx context.Context, timeout time.Duration) ([]models.TicketInfo, error) {
	if ld.Ready() {
		return ld.Tickets(), nil
	}
	if timeout <= 0 {
		timeout = DefaultEnsureTimeout
	}

	ch := ld.sf.DoChan("ensure", func() (any, error) {
		return nil, ld.awaitHostData(timeout)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return ld.Tickets(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (ld *Loader) awaitHostData(timeout time.Duration) error {
	ctx := context.Background()
	if err := ld.bus.Notify(ctx, bridge.TypeRequestInit, nil); err != nil {
		ld.l.Warnf(ctx, "catalog.Loader.EnsureWixData: %v", err)
	}

	expired := make(chan struct{})
	timer := ld.clk.AfterFunc(timeout, func() { close(expired) })
	defer timer.Stop()

	select {
	case <-ld.ready:
		return nil
	case <-expired:
	}

	if ld.hasCatalogIDs() {
		return nil
	}
	ld.l.Warnf(ctx, "catalog.Loader.EnsureWixData: no host data after %s", timeout)
	return ErrNotLoaded
}
