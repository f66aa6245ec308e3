package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/tonyboom3d/exact-view-framework/internal/bridge"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

const (
	DefaultOutboundChannel = "checkout:to-host"
	DefaultInboundChannel  = "checkout:from-host"
)

type PortConfig struct {
	OutboundChannel string
	InboundChannel  string
	Buffer          int
}

// Port carries bridge frames over a pair of Redis Pub/Sub channels.
// Frames published while no subscriber listens are lost, as with any
// Pub/Sub delivery.
type Port struct {
	cli *redis.Client
	sub *redis.PubSub
	out string
	l   logger.Logger

	frames chan []byte
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ bridge.Port = (*Port)(nil)

// NewPort subscribes to the inbound channel and waits for the
// subscription to be confirmed before returning.
func NewPort(ctx context.Context, cli *redis.Client, cfg PortConfig, l logger.Logger) (*Port, error) {
	if cfg.OutboundChannel == "" {
		cfg.OutboundChannel = DefaultOutboundChannel
	}
	if cfg.InboundChannel == "" {
		cfg.InboundChannel = DefaultInboundChannel
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}

	sub := cli.Subscribe(ctx, cfg.InboundChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("delivery.redis.NewPort: subscribe %s: %w", cfg.InboundChannel, err)
	}

	p := &Port{
		cli:    cli,
		sub:    sub,
		out:    cfg.OutboundChannel,
		l:      l,
		frames: make(chan []byte, cfg.Buffer),
		done:   make(chan struct{}),
	}
	p.wg.Go(p.loop)
	l.Infof(ctx, "delivery.redis.NewPort: publishing to %s, subscribed to %s", cfg.OutboundChannel, cfg.InboundChannel)
	return p, nil
}

func (p *Port) loop() {
	defer close(p.frames)
	ch := p.sub.Channel()
	for {
		select {
		case <-p.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case p.frames <- []byte(msg.Payload):
			case <-p.done:
				return
			}
		}
	}
}

func (p *Port) Post(ctx context.Context, frame []byte) error {
	select {
	case <-p.done:
		return bridge.ErrClosed
	default:
	}
	if err := p.cli.Publish(ctx, p.out, frame).Err(); err != nil {
		return fmt.Errorf("delivery.redis.Port.Post: %w", err)
	}
	return nil
}

func (p *Port) Frames() <-chan []byte { return p.frames }

// Close unsubscribes. The client itself is left open.
func (p *Port) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		err = p.sub.Close()
		p.wg.Wait()
	})
	return err
}
