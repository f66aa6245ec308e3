package kafka

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

type Producer interface {
	Publish(ctx context.Context, frame []byte) error
	Close() error
}

type implProducer struct {
	l     logger.Logger
	prod  sarama.SyncProducer
	topic string
	key   string
}

// NewProducer publishes every frame to topic under one partition key so
// the host reads them in order.
func NewProducer(prod sarama.SyncProducer, topic, key string, l logger.Logger) Producer {
	if key == "" {
		key = DefaultPartitionKey
	}
	return &implProducer{
		l:     l,
		prod:  prod,
		topic: topic,
		key:   key,
	}
}

func (p *implProducer) Publish(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(p.key),
		Value: sarama.ByteEncoder(frame),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerTimestamp), Value: []byte(time.Now().Format(time.RFC3339))},
			{Key: []byte(headerContentType), Value: []byte(contentTypeJSON)},
		},
	}

	partition, offset, err := p.prod.SendMessage(msg)
	if err != nil {
		p.l.Errorf(ctx, "delivery.kafka.producer.Publish: %v", err)
		return err
	}
	p.l.Debug(ctx, "delivery.kafka.producer.Publish: sent", "topic", p.topic, "partition", partition, "offset", offset)
	return nil
}

func (p *implProducer) Close() error {
	return p.prod.Close()
}
