package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tonyboom3d/exact-view-framework/config"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
}

// Connect dials and pings Redis. The client is closed when the ping fails.
func Connect(ctx context.Context, cfg config.RedisConfig, l logger.Logger) (*redis.Client, error) {
	cli := NewClient(cfg)
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", cfg.Addr, err)
	}

	l.Infof(ctx, "redis.Connect: connected to %s db=%d", cfg.Addr, cfg.DB)
	return cli, nil
}

func Disconnect(ctx context.Context, cli *redis.Client, l logger.Logger) {
	if cli == nil {
		return
	}
	if err := cli.Close(); err != nil {
		l.Warnf(ctx, "redis.Disconnect: %v", err)
		return
	}
	l.Info(ctx, "redis.Disconnect: connection closed")
}
