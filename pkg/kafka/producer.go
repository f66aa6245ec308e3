package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
)

type ProducerConfig struct {
	Brokers      []string
	ClientID     string
	RetryMax     int
	RequiredAcks int
}

// NewProducer returns a sync producer that hashes the message key, so
// frames sharing a key stay on one partition in order.
func NewProducer(cfg ProducerConfig) (sarama.SyncProducer, error) {
	prod, err := sarama.NewSyncProducer(cfg.Brokers, producerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return prod, nil
}

func producerConfig(cfg ProducerConfig) *sarama.Config {
	saramaCfg := sarama.NewConfig()
	if cfg.ClientID != "" {
		saramaCfg.ClientID = cfg.ClientID
	}
	saramaCfg.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	saramaCfg.Producer.Retry.Max = cfg.RetryMax
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner
	return saramaCfg
}
