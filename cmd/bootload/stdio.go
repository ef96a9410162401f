package main

import (
	"bufio"
	"context"
	"os"
)

// stdioPort adapts the process's stdin/stdout to serial.Port, standing in
// for the physical serial link a real target's boot loader receives images
// over.
type stdioPort struct {
	in  *bufio.Reader
	out *os.File
	rd  chan struct{}
}

func newStdioPort() *stdioPort {
	p := &stdioPort{in: bufio.NewReader(os.Stdin), out: os.Stdout, rd: make(chan struct{}, 1)}
	go p.pump()
	return p
}

func (p *stdioPort) pump() {
	for {
		if _, err := p.in.Peek(1); err != nil {
			return
		}
		select {
		case p.rd <- struct{}{}:
		default:
		}
	}
}

func (p *stdioPort) WriteByte(b byte) error      { _, err := p.out.Write([]byte{b}); return err }
func (p *stdioPort) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *stdioPort) Buffered() int               { return p.in.Buffered() }

func (p *stdioPort) Read(b []byte) (int, error) {
	n := p.in.Buffered()
	if n == 0 {
		n = 1
	}
	if n > len(b) {
		n = len(b)
	}
	return p.in.Read(b[:n])
}

func (p *stdioPort) Readable() <-chan struct{} { return p.rd }

func (p *stdioPort) RecvSomeContext(ctx context.Context, b []byte) (int, error) {
	select {
	case <-p.rd:
		return p.Read(b)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
