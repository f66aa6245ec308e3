package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresInDeadlineOrder(t *testing.T) {
	c := NewFake(epoch)
	var order []string
	c.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	c.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, epoch.Add(3*time.Second), c.Now())
}

func TestFakeTimerStop(t *testing.T) {
	c := NewFake(epoch)
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	c.Advance(time.Minute)
	assert.False(t, fired)
	assert.Zero(t, c.Pending())
}

func TestFakeRescheduleInsideCallback(t *testing.T) {
	c := NewFake(epoch)
	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(time.Second, tick)
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(5 * time.Second)
	assert.Equal(t, 5, count)
	assert.Equal(t, 1, c.Pending())
}

func TestFakeTickerDropsWhenFull(t *testing.T) {
	c := NewFake(epoch)
	tk := c.NewTicker(time.Second)

	c.Advance(3 * time.Second)
	select {
	case at := <-tk.C:
		assert.Equal(t, epoch.Add(time.Second), at)
	default:
		t.Fatal("expected a tick")
	}
	select {
	case <-tk.C:
		t.Fatal("ticks should have been dropped")
	default:
	}

	tk.Stop()
	assert.Zero(t, c.Pending())
}

func TestFakeWaitForTimers(t *testing.T) {
	c := NewFake(epoch)
	done := make(chan struct{})
	go func() {
		c.AfterFunc(time.Second, func() { close(done) })
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)
	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "callback did not run")
	}
}
