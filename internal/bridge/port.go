package bridge

import (
	"context"
	"sync"
)

// Port moves raw frames to and from the host. Frames may be closed by the
// port after Close; the bridge also stops reading on its own shutdown.
type Port interface {
	Post(ctx context.Context, frame []byte) error
	Frames() <-chan []byte
	Close() error
}

// PipeEnd is one side of an in-memory port pair.
type PipeEnd struct {
	in   chan []byte
	done chan struct{}
	once sync.Once
	peer *PipeEnd
}

// NewPipe returns two connected ends. Frames posted on one are read from
// the other's Frames channel.
func NewPipe(buffer int) (*PipeEnd, *PipeEnd) {
	a := &PipeEnd{in: make(chan []byte, buffer), done: make(chan struct{})}
	b := &PipeEnd{in: make(chan []byte, buffer), done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (p *PipeEnd) Post(ctx context.Context, frame []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	case <-p.peer.done:
		return ErrClosed
	default:
	}

	cp := append([]byte(nil), frame...)
	select {
	case p.peer.in <- cp:
		return nil
	case <-p.done:
		return ErrClosed
	case <-p.peer.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PipeEnd) Frames() <-chan []byte { return p.in }

// Done is closed once this end is closed.
func (p *PipeEnd) Done() <-chan struct{} { return p.done }

func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
