//go:build !tinygo

package serial

import (
	"context"
	"sync"
)

// LoopbackPort is an in-memory Port used by every test in this repository
// (the cmd binaries use their own stdin/stdout port instead). It pairs with
// its peer so writes on one side become reads on the other, the host-build
// analogue of a physical UART cable.
type LoopbackPort struct {
	mu   sync.Mutex
	rx   []byte
	rd   chan struct{}
	peer *LoopbackPort
}

// NewLoopbackPair returns two LoopbackPorts wired to each other: a's writes
// arrive as b's reads and vice versa.
func NewLoopbackPair() (a, b *LoopbackPort) {
	a = &LoopbackPort{rd: make(chan struct{}, 1)}
	b = &LoopbackPort{rd: make(chan struct{}, 1)}
	a.peer, b.peer = b, a
	return a, b
}

func (p *LoopbackPort) WriteByte(b byte) error {
	_, err := p.Write([]byte{b})
	return err
}

func (p *LoopbackPort) Write(data []byte) (int, error) {
	p.peer.deliver(data)
	return len(data), nil
}

func (p *LoopbackPort) deliver(data []byte) {
	p.mu.Lock()
	p.rx = append(p.rx, data...)
	p.mu.Unlock()
	select {
	case p.rd <- struct{}{}:
	default:
	}
}

func (p *LoopbackPort) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rx)
}

func (p *LoopbackPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(buf, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *LoopbackPort) Readable() <-chan struct{} { return p.rd }

func (p *LoopbackPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	if n := p.Buffered(); n > 0 {
		return p.Read(buf)
	}
	select {
	case <-p.rd:
		return p.Read(buf)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
