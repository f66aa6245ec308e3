package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
)

func TestProducerConfig(t *testing.T) {
	cfg := producerConfig(ProducerConfig{ClientID: "checkout", RetryMax: 5, RequiredAcks: -1})

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "checkout", cfg.ClientID)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.Equal(t, 5, cfg.Producer.Retry.Max)
	assert.True(t, cfg.Producer.Return.Successes)
}

func TestConsumerConfig(t *testing.T) {
	cfg := consumerConfig(ConsumerConfig{GroupID: "g"})
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, sarama.OffsetNewest, cfg.Consumer.Offsets.Initial)
	assert.True(t, cfg.Consumer.Return.Errors)

	cfg = consumerConfig(ConsumerConfig{GroupID: "g", FromOldest: true})
	assert.Equal(t, sarama.OffsetOldest, cfg.Consumer.Offsets.Initial)
}
