package kafka

import (
	"context"
	"errors"
	"sync"

	"github.com/IBM/sarama"
	"github.com/tonyboom3d/exact-view-framework/internal/bridge"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

type PortConfig struct {
	OutboundTopic string
	InboundTopic  string
	PartitionKey  string
	// Buffer is the capacity of the inbound frame channel.
	Buffer int
}

// Port carries bridge frames over two Kafka topics: one written by this
// side and one read by it. The far side uses the same topics swapped.
type Port struct {
	prod Producer
	cons *Consumer
	l    logger.Logger

	frames chan []byte
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
}

var _ bridge.Port = (*Port)(nil)

func NewPort(prod sarama.SyncProducer, consGr sarama.ConsumerGroup, cfg PortConfig, l logger.Logger) *Port {
	if cfg.OutboundTopic == "" {
		cfg.OutboundTopic = DefaultOutboundTopic
	}
	if cfg.InboundTopic == "" {
		cfg.InboundTopic = DefaultInboundTopic
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}

	p := &Port{
		prod:   NewProducer(prod, cfg.OutboundTopic, cfg.PartitionKey, l),
		l:      l,
		frames: make(chan []byte, cfg.Buffer),
		done:   make(chan struct{}),
	}
	p.cons = NewConsumer(consGr, []string{cfg.InboundTopic}, p.deliver, l)
	return p
}

// Start begins consuming the inbound topic. It returns immediately.
func (p *Port) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	return p.cons.Start(ctx)
}

func (p *Port) deliver(ctx context.Context, frame []byte) error {
	cp := append([]byte(nil), frame...)
	select {
	case p.frames <- cp:
		return nil
	case <-p.done:
		return bridge.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Port) Post(ctx context.Context, frame []byte) error {
	select {
	case <-p.done:
		return bridge.ErrClosed
	default:
	}
	return p.prod.Publish(ctx, frame)
}

func (p *Port) Frames() <-chan []byte { return p.frames }

// Close stops consuming and closes both clients. Frames is closed once
// no more deliveries can happen.
func (p *Port) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		if p.cancel != nil {
			p.cancel()
		}
		err = errors.Join(p.cons.Close(), p.prod.Close())
		close(p.frames)
	})
	return err
}
