package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonyboom3d/exact-view-framework/config"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cli, err := Connect(ctx, config.RedisConfig{Addr: mr.Addr(), PoolSize: 2}, logger.NewNop())
	require.NoError(t, err)
	assert.NoError(t, cli.Set(ctx, "k", "v", 0).Err())
	Disconnect(ctx, cli, logger.NewNop())
	Disconnect(ctx, nil, logger.NewNop())
}

func TestConnectFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Connect(context.Background(), config.RedisConfig{Addr: addr}, logger.NewNop())
	assert.ErrorContains(t, err, "failed to ping Redis")
}
