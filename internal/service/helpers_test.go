package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tonyboom3d/exact-view-framework/internal/bridge"
	"github.com/tonyboom3d/exact-view-framework/internal/models"
	repository "github.com/tonyboom3d/exact-view-framework/internal/repository/redis"
	"github.com/tonyboom3d/exact-view-framework/pkg/clock"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

var testEpoch = time.Date(2026, 6, 14, 19, 30, 0, 0, time.UTC)

const (
	generalID = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	premierID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

func liveCatalog() []models.TicketInfo {
	return []models.TicketInfo{
		{Type: "general", ID: generalID, Name: "General Admission", Price: 2900, SoldPercent: 85},
		{Type: "premier", ID: premierID, Name: "Premier", Price: 3450, SoldPercent: 72},
	}
}

type memRepo struct {
	mu        sync.Mutex
	items     map[string]models.PendingPaymentData
	saveErr   error
	getErr    error
	deleteErr error
	deletes   int
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[string]models.PendingPaymentData)}
}

func (r *memRepo) Save(_ context.Context, deviceID string, p models.PendingPaymentData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.items[deviceID] = p
	return nil
}

func (r *memRepo) Get(_ context.Context, deviceID string) (*models.PendingPaymentData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	p, ok := r.items[deviceID]
	if !ok {
		return nil, repository.ErrPendingPaymentNotFound
	}
	return &p, nil
}

func (r *memRepo) Delete(_ context.Context, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.items, deviceID)
	return nil
}

func (r *memRepo) stored(deviceID string) (models.PendingPaymentData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[deviceID]
	return p, ok
}

type hostHandler func(h *scriptedHost, env bridge.Envelope)

// scriptedHost answers bridge frames with per-type handlers. Requests
// without a handler are acknowledged with an empty PAYMENT_STATUS.
type scriptedHost struct {
	t   *testing.T
	end *bridge.PipeEnd

	mu       sync.Mutex
	handlers map[bridge.MessageType]hostHandler
	received []bridge.Envelope
}

func newScriptedHost(t *testing.T, end *bridge.PipeEnd) *scriptedHost {
	h := &scriptedHost{t: t, end: end, handlers: make(map[bridge.MessageType]hostHandler)}
	go h.loop()
	return h
}

func (h *scriptedHost) loop() {
	for {
		select {
		case <-h.end.Done():
			return
		case frame := <-h.end.Frames():
			env, err := bridge.Decode(frame)
			if err != nil {
				continue
			}
			h.mu.Lock()
			h.received = append(h.received, env)
			handler := h.handlers[env.Type]
			h.mu.Unlock()

			switch {
			case handler != nil:
				handler(h, env)
			case env.RequestID != "":
				h.reply(bridge.TypePaymentStatus, env.RequestID, true, nil, "")
			}
		}
	}
}

func (h *scriptedHost) on(t bridge.MessageType, handler hostHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[t] = handler
}

func (h *scriptedHost) reply(t bridge.MessageType, requestID string, success bool, data any, errMsg string) {
	frame, err := bridge.EncodeReply(t, requestID, success, data, errMsg)
	if err == nil {
		err = h.end.Post(context.Background(), frame)
	}
	if err != nil {
		h.t.Errorf("scripted host reply: %v", err)
	}
}

func (h *scriptedHost) push(t bridge.MessageType, requestID string, data any) {
	h.reply(t, requestID, true, data, "")
}

func (h *scriptedHost) count(t bridge.MessageType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, env := range h.received {
		if env.Type == t {
			n++
		}
	}
	return n
}

func (h *scriptedHost) last(t bridge.MessageType) (bridge.Envelope, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.received) - 1; i >= 0; i-- {
		if h.received[i].Type == t {
			return h.received[i], true
		}
	}
	return bridge.Envelope{}, false
}

type testEnv struct {
	b    *bridge.Bridge
	host *scriptedHost
	clk  *clock.FakeClock
	repo *memRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	app, hostEnd := bridge.NewPipe(32)
	clk := clock.NewFake(testEpoch)
	b := bridge.New(app, logger.NewNop(), bridge.WithClock(clk))
	host := newScriptedHost(t, hostEnd)
	t.Cleanup(func() {
		_ = b.Close()
		_ = hostEnd.Close()
	})
	return &testEnv{b: b, host: host, clk: clk, repo: newMemRepo()}
}

// flush completes one round trip through the host. Inbound frames are
// dispatched in order, so every frame the host sent earlier has been
// handled once it returns.
func (e *testEnv) flush(t *testing.T) {
	t.Helper()
	_, err := e.b.SendMessage(context.Background(), bridge.TypeSendPendingWhatsapp, bridge.PendingWhatsappRequest{})
	require.NoError(t, err)
}
