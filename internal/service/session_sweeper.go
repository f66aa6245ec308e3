package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tonyboom3d/exact-view-framework/pkg/clock"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

type SessionSweeper interface {
	Start(ctx context.Context) error
	Stop() error
	GetStatus() SweeperStatus
}

type SweeperStatus struct {
	IsRunning   bool      `json:"is_running"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	LastSweep   time.Time `json:"last_sweep,omitempty"`
	TotalClosed int64     `json:"total_closed"`
}

type sessionSweeper struct {
	svc      CheckoutService
	l        logger.Logger
	clk      clock.Clock
	interval time.Duration

	mu          sync.RWMutex
	isRunning   bool
	startedAt   time.Time
	lastSweep   time.Time
	totalClosed int64
	stopCh      chan struct{}
	ticker      *clock.Ticker
	wg          sync.WaitGroup
}

func NewSessionSweeper(svc CheckoutService, interval time.Duration, l logger.Logger, clk clock.Clock) SessionSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &sessionSweeper{
		svc:      svc,
		l:        l,
		clk:      clk,
		interval: interval,
	}
}

func (sw *sessionSweeper) Start(ctx context.Context) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.isRunning {
		return errors.New("session sweeper is already running")
	}

	sw.isRunning = true
	sw.startedAt = sw.clk.Now()
	sw.stopCh = make(chan struct{})
	sw.ticker = sw.clk.NewTicker(sw.interval)

	sw.wg.Add(1)
	go sw.loop(ctx, sw.ticker, sw.stopCh)

	sw.l.Infof(ctx, "service.sessionSweeper.Start: sweeping every %s", sw.interval)
	return nil
}

func (sw *sessionSweeper) Stop() error {
	sw.mu.Lock()
	if !sw.isRunning {
		sw.mu.Unlock()
		return errors.New("session sweeper is not running")
	}
	close(sw.stopCh)
	sw.ticker.Stop()
	sw.isRunning = false
	sw.mu.Unlock()

	sw.wg.Wait()
	return nil
}

func (sw *sessionSweeper) loop(ctx context.Context, ticker *clock.Ticker, stopCh <-chan struct{}) {
	defer sw.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			closed := sw.svc.SweepIdle(ctx)

			sw.mu.Lock()
			sw.lastSweep = sw.clk.Now()
			sw.totalClosed += int64(closed)
			sw.mu.Unlock()
		}
	}
}

func (sw *sessionSweeper) GetStatus() SweeperStatus {
	sw.mu.RLock()
	defer sw.mu.RUnlock()

	return SweeperStatus{
		IsRunning:   sw.isRunning,
		StartedAt:   sw.startedAt,
		LastSweep:   sw.lastSweep,
		TotalClosed: sw.totalClosed,
	}
}
