package kafka

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

// FrameHandler receives the raw value of every consumed message. It must
// return once ctx is done.
type FrameHandler func(ctx context.Context, frame []byte) error

type Consumer struct {
	consGr  sarama.ConsumerGroup
	topics  []string
	handler FrameHandler
	l       logger.Logger
	wg      sync.WaitGroup
}

func NewConsumer(consGr sarama.ConsumerGroup, topics []string, handler FrameHandler, l logger.Logger) *Consumer {
	return &Consumer{
		consGr:  consGr,
		topics:  topics,
		handler: handler,
		l:       l,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Go(func() {
		for {
			if err := c.consGr.Consume(ctx, c.topics, c); err != nil {
				c.l.Errorf(ctx, "delivery.kafka.consumer.Start: %v", err)
			}

			if ctx.Err() != nil {
				c.l.Infof(ctx, "delivery.kafka.consumer.Start: %v", ctx.Err())
				return
			}
		}
	})

	c.wg.Go(func() {
		for err := range c.consGr.Errors() {
			c.l.Errorf(ctx, "delivery.kafka.consumer.Start: %v", err)
		}
	})

	c.l.Infof(ctx, "Consumer is consuming topics: %v", c.topics)
	return nil
}

func (c *Consumer) Close() error {
	if err := c.consGr.Close(); err != nil {
		return err
	}

	c.wg.Wait()
	return nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session started")
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.l.Debug(context.Background(), "Consumer group session ended")
	return nil
}

func (c *Consumer) ConsumeClaim(ss sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			if err := c.handler(ss.Context(), message.Value); err != nil {
				c.l.Error(ss.Context(), "delivery.kafka.consumer.ConsumeClaim: frame not delivered", "error", err,
					"topic", message.Topic,
					"offset", message.Offset,
				)
				return nil
			}

			ss.MarkMessage(message, "")

		case <-ss.Context().Done():
			return nil
		}
	}
}
