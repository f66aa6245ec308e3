package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
)

type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	ClientID string
	// FromOldest replays retained frames instead of starting at the head.
	FromOldest bool
}

func NewConsumer(cfg ConsumerConfig) (sarama.ConsumerGroup, error) {
	consGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, consumerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group %s: %w", cfg.GroupID, err)
	}
	return consGroup, nil
}

func consumerConfig(cfg ConsumerConfig) *sarama.Config {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_8_0_0
	if cfg.ClientID != "" {
		saramaCfg.ClientID = cfg.ClientID
	}
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	if cfg.FromOldest {
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	saramaCfg.Consumer.Return.Errors = true
	return saramaCfg
}
