// Package bridge multiplexes request/response calls and unsolicited
// notifications over a single untyped frame channel to the host page.
//
// Requests are correlated by request id with a per-request timeout. A
// notification that arrives before anyone listens for its type is kept
// (newest wins) and handed to the first listener that registers.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tonyboom3d/exact-view-framework/pkg/clock"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

const DefaultTimeout = 30 * time.Second

// Handler receives a decoded frame. Handlers run on the dispatch goroutine
// and must not wait on bridge responses.
type Handler func(Envelope)

// Observer receives bridge events for metrics.
type Observer interface {
	RequestSettled(t MessageType, outcome string)
	PendingRequests(n int)
	FrameDropped(reason string)
}

type nopObserver struct{}

func (nopObserver) RequestSettled(MessageType, string) {}
func (nopObserver) PendingRequests(int)                {}
func (nopObserver) FrameDropped(string)                {}

const (
	OutcomeResolved = "resolved"
	OutcomeRejected = "rejected"
	OutcomeTimeout  = "timeout"
	OutcomeAbandon  = "abandoned"
	OutcomeClosed   = "closed"
)

type result struct {
	body json.RawMessage
	err  error
}

type pendingRequest struct {
	typ   MessageType
	done  chan result
	timer *clock.Timer
}

type listener struct {
	h       Handler
	removed bool
}

type Bridge struct {
	port           Port
	l              logger.Logger
	clk            clock.Clock
	obs            Observer
	newID          func() string
	defaultTimeout time.Duration

	mu        sync.Mutex
	pending   map[string]*pendingRequest
	listeners map[MessageType][]*listener
	buffered  map[MessageType]Envelope

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type Option func(*Bridge)

func WithClock(c clock.Clock) Option { return func(b *Bridge) { b.clk = c } }

func WithObserver(o Observer) Option { return func(b *Bridge) { b.obs = o } }

func WithDefaultTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.defaultTimeout = d
		}
	}
}

// WithIDGenerator replaces the request id source.
func WithIDGenerator(f func() string) Option { return func(b *Bridge) { b.newID = f } }

// New starts reading from port immediately so that frames pushed by the
// host before any listener exists are buffered rather than lost.
func New(port Port, l logger.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		port:           port,
		l:              l,
		clk:            clock.Real(),
		obs:            nopObserver{},
		newID:          func() string { return "req_" + uuid.NewString() },
		defaultTimeout: DefaultTimeout,
		pending:        make(map[string]*pendingRequest),
		listeners:      make(map[MessageType][]*listener),
		buffered:       make(map[MessageType]Envelope),
		stop:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.wg.Add(1)
	go b.readLoop()
	return b
}

type sendOptions struct {
	timeout time.Duration
	onSent  func(requestID string)
}

type SendOption func(*sendOptions)

func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithSentHook reports the request id just before the frame is posted,
// so the caller knows it before any reply can arrive.
func WithSentHook(f func(requestID string)) SendOption {
	return func(o *sendOptions) { o.onSent = f }
}

// SendMessage posts one request frame and waits for the correlated
// response body. It fails with ErrTimeout, a *HostError, ErrClosed or the
// context's error.
func (b *Bridge) SendMessage(ctx context.Context, t MessageType, payload any, opts ...SendOption) (json.RawMessage, error) {
	so := sendOptions{timeout: b.defaultTimeout}
	for _, opt := range opts {
		opt(&so)
	}

	id := b.newID()
	frame, err := Encode(t, id, payload)
	if err != nil {
		return nil, err
	}

	p := &pendingRequest{typ: t, done: make(chan result, 1)}
	b.mu.Lock()
	select {
	case <-b.stop:
		b.mu.Unlock()
		return nil, ErrClosed
	default:
	}
	b.pending[id] = p
	p.timer = b.clk.AfterFunc(so.timeout, func() {
		b.settle(id, result{err: fmt.Errorf("%w to %s", ErrTimeout, t)}, OutcomeTimeout)
	})
	n := len(b.pending)
	b.mu.Unlock()
	b.obs.PendingRequests(n)

	if so.onSent != nil {
		so.onSent(id)
	}
	if err := b.port.Post(ctx, frame); err != nil {
		b.settle(id, result{err: err}, OutcomeRejected)
		return nil, fmt.Errorf("bridge: post %s: %w", t, err)
	}

	select {
	case r := <-p.done:
		return r.body, r.err
	case <-ctx.Done():
		b.settle(id, result{err: ctx.Err()}, OutcomeAbandon)
		return nil, ctx.Err()
	}
}

// Notify posts a frame that expects no correlated response.
func (b *Bridge) Notify(ctx context.Context, t MessageType, payload any) error {
	frame, err := Encode(t, "", payload)
	if err != nil {
		return err
	}
	if err := b.port.Post(ctx, frame); err != nil {
		return fmt.Errorf("bridge: post %s: %w", t, err)
	}
	return nil
}

// settle removes the pending entry and completes it. Only the first
// caller for a given id has any effect.
func (b *Bridge) settle(id string, r result, outcome string) bool {
	b.mu.Lock()
	p, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	n := len(b.pending)
	b.mu.Unlock()
	if !ok {
		return false
	}

	p.timer.Stop()
	p.done <- r
	b.obs.RequestSettled(p.typ, outcome)
	b.obs.PendingRequests(n)
	return true
}

// OnMessage registers h for t and returns a function that removes exactly
// this registration. A buffered frame of type t is delivered to h on a
// separate goroutine after OnMessage has returned.
func (b *Bridge) OnMessage(t MessageType, h Handler) func() {
	ln := &listener{h: h}

	b.mu.Lock()
	b.listeners[t] = append(b.listeners[t], ln)
	env, had := b.buffered[t]
	if had {
		delete(b.buffered, t)
	}
	b.mu.Unlock()

	if had {
		registered := make(chan struct{})
		defer close(registered)

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			<-registered
			b.mu.Lock()
			removed := ln.removed
			b.mu.Unlock()
			if !removed {
				b.invoke(ln, env)
			}
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			ln.removed = true
			list := b.listeners[t]
			for i, cand := range list {
				if cand == ln {
					b.listeners[t] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(b.listeners[t]) == 0 {
				delete(b.listeners, t)
			}
		})
	}
}

func (b *Bridge) readLoop() {
	defer b.wg.Done()
	frames := b.port.Frames()
	for {
		select {
		case <-b.stop:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			b.dispatch(frame)
		}
	}
}

func (b *Bridge) dispatch(frame []byte) {
	ctx := context.Background()

	env, err := Decode(frame)
	switch {
	case errors.Is(err, ErrUnknownMessageType):
		b.l.Warnf(ctx, "bridge.Bridge.dispatch: dropping frame: %v", err)
		b.obs.FrameDropped("unknown_type")
		if env.RequestID != "" {
			b.settle(env.RequestID, result{err: err}, OutcomeRejected)
		}
		return
	case err != nil:
		b.l.Warnf(ctx, "bridge.Bridge.dispatch: dropping frame: %v", err)
		b.obs.FrameDropped("malformed")
		return
	}

	if env.RequestID != "" {
		var settled bool
		if env.Failed() {
			settled = b.settle(env.RequestID, result{err: newHostError(env)}, OutcomeRejected)
		} else {
			settled = b.settle(env.RequestID, result{body: env.Body()}, OutcomeResolved)
		}
		if !settled {
			b.l.Debugf(ctx, "bridge.Bridge.dispatch: no pending request %s for %s", env.RequestID, env.Type)
		}
	}

	b.mu.Lock()
	list := append([]*listener(nil), b.listeners[env.Type]...)
	if len(list) == 0 {
		b.buffered[env.Type] = env
	}
	b.mu.Unlock()

	for _, ln := range list {
		b.invoke(ln, env)
	}
}

func (b *Bridge) invoke(ln *listener, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.l.Errorf(context.Background(), "bridge.Bridge.invoke: %s handler panicked: %v", env.Type, r)
		}
	}()
	ln.h(env)
}

// Pending returns the number of in-flight requests.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close stops dispatch, fails every in-flight request with ErrClosed and
// closes the port.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		close(b.stop)
		ids := make([]string, 0, len(b.pending))
		for id := range b.pending {
			ids = append(ids, id)
		}
		b.mu.Unlock()

		for _, id := range ids {
			b.settle(id, result{err: ErrClosed}, OutcomeClosed)
		}
		err = b.port.Close()
		b.wg.Wait()
	})
	return err
}
