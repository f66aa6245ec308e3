package transport

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonyboom3d/exact-view-framework/config"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

func testConfig(transport string) *config.Config {
	return &config.Config{Bridge: config.BridgeConfig{
		Transport:     transport,
		OutboundTopic: "to-host",
		InboundTopic:  "from-host",
	}}
}

func TestChannels(t *testing.T) {
	cfg := testConfig(config.TransportRedis).Bridge

	w, r := Channels(cfg, App)
	assert.Equal(t, "to-host", w)
	assert.Equal(t, "from-host", r)

	w, r = Channels(cfg, Host)
	assert.Equal(t, "from-host", w)
	assert.Equal(t, "to-host", r)
}

func TestOpenRedisConnectsBothSides(t *testing.T) {
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	cfg := testConfig(config.TransportRedis)
	app, err := Open(ctx, cfg, cli, App, logger.NewNop())
	require.NoError(t, err)
	defer app.Close()
	host, err := Open(ctx, cfg, cli, Host, logger.NewNop())
	require.NoError(t, err)
	defer host.Close()

	require.NoError(t, app.Post(ctx, []byte(`{"type":"REQUEST_INIT"}`)))
	select {
	case frame := <-host.Frames():
		assert.JSONEq(t, `{"type":"REQUEST_INIT"}`, string(frame))
	case <-time.After(2 * time.Second):
		require.FailNow(t, "host did not receive the frame")
	}

	require.NoError(t, host.Post(ctx, []byte(`{"type":"INIT_EVENT_DATA"}`)))
	select {
	case frame := <-app.Frames():
		assert.JSONEq(t, `{"type":"INIT_EVENT_DATA"}`, string(frame))
	case <-time.After(2 * time.Second):
		require.FailNow(t, "app did not receive the frame")
	}
}

func TestOpenRejects(t *testing.T) {
	_, err := Open(context.Background(), testConfig(config.TransportMemory), nil, App, logger.NewNop())
	assert.ErrorContains(t, err, "unsupported transport")

	_, err = Open(context.Background(), testConfig(config.TransportRedis), nil, App, logger.NewNop())
	assert.ErrorContains(t, err, "needs a client")
}
