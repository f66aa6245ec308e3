// Package transport opens the bridge port selected by configuration for
// either end of the conversation.
package transport

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tonyboom3d/exact-view-framework/config"
	"github.com/tonyboom3d/exact-view-framework/internal/bridge"
	kafkaDelivery "github.com/tonyboom3d/exact-view-framework/internal/delivery/kafka"
	pubsub "github.com/tonyboom3d/exact-view-framework/internal/delivery/redis"
	pkgKafka "github.com/tonyboom3d/exact-view-framework/pkg/kafka"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

type Side int

const (
	// App is the checkout service. It writes the outbound topic.
	App Side = iota
	// Host is the embedding page or its simulator. It writes the inbound
	// topic.
	Host
)

func (s Side) String() string {
	if s == Host {
		return "host"
	}
	return "app"
}

// Channels returns the (write, read) topic names for side.
func Channels(cfg config.BridgeConfig, side Side) (string, string) {
	if side == Host {
		return cfg.InboundTopic, cfg.OutboundTopic
	}
	return cfg.OutboundTopic, cfg.InboundTopic
}

// Open returns a started port for the redis or kafka transport. The
// memory transport has no remote end and is rejected here.
func Open(ctx context.Context, cfg *config.Config, redisCli *redis.Client, side Side, l logger.Logger) (bridge.Port, error) {
	write, read := Channels(cfg.Bridge, side)

	switch cfg.Bridge.Transport {
	case config.TransportRedis:
		if redisCli == nil {
			return nil, fmt.Errorf("transport.Open: redis transport needs a client")
		}
		port, err := pubsub.NewPort(ctx, redisCli, pubsub.PortConfig{
			OutboundChannel: write,
			InboundChannel:  read,
		}, l)
		if err != nil {
			return nil, err
		}
		return port, nil

	case config.TransportKafka:
		clientID := "checkout-" + side.String()
		prod, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			ClientID:     clientID,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		})
		if err != nil {
			return nil, err
		}
		consGr, err := pkgKafka.NewConsumer(pkgKafka.ConsumerConfig{
			Brokers:  cfg.Kafka.Brokers,
			GroupID:  cfg.Kafka.ConsumerGroupID + "-" + side.String(),
			ClientID: clientID,
		})
		if err != nil {
			_ = prod.Close()
			return nil, err
		}

		port := kafkaDelivery.NewPort(prod, consGr, kafkaDelivery.PortConfig{
			OutboundTopic: write,
			InboundTopic:  read,
			PartitionKey:  kafkaDelivery.DefaultPartitionKey,
		}, l)
		if err := port.Start(ctx); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("transport.Open: %w", err)
		}
		l.Infof(ctx, "transport.Open: kafka %s writes %s, reads %s", side, write, read)
		return port, nil
	}
	return nil, fmt.Errorf("transport.Open: unsupported transport %q", cfg.Bridge.Transport)
}
