package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonyboom3d/exact-view-framework/pkg/clock"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

type sweepCounter struct {
	CheckoutService
	calls  atomic.Int32
	closed int
}

func (c *sweepCounter) SweepIdle(context.Context) int {
	c.calls.Add(1)
	return c.closed
}

func TestSessionSweeper(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	svc := &sweepCounter{closed: 2}
	sw := NewSessionSweeper(svc, time.Minute, logger.NewNop(), clk)

	require.NoError(t, sw.Start(context.Background()))
	assert.Error(t, sw.Start(context.Background()))

	st := sw.GetStatus()
	assert.True(t, st.IsRunning)
	assert.Equal(t, testEpoch, st.StartedAt)

	clk.Advance(time.Minute)
	require.Eventually(t, func() bool { return sw.GetStatus().TotalClosed == 2 }, time.Second, time.Millisecond)
	clk.Advance(time.Minute)
	require.Eventually(t, func() bool { return sw.GetStatus().TotalClosed == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(2), svc.calls.Load())

	require.NoError(t, sw.Stop())
	assert.False(t, sw.GetStatus().IsRunning)
	assert.Zero(t, clk.Pending())
	assert.Error(t, sw.Stop())
}

func TestSessionSweeperStopsWithContext(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	svc := &sweepCounter{}
	sw := NewSessionSweeper(svc, 0, logger.NewNop(), clk)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sw.Start(ctx))
	cancel()
	require.NoError(t, sw.Stop())
	assert.Zero(t, svc.calls.Load())
}
