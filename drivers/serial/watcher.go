package serial

import "context"

// Raiser is implemented by *kernel.Kernel: it lets Watcher stay decoupled
// from the kernel package (serial has no business importing kernel itself;
// cmd/kernel's main wires the two together by calling NewWatcher).
type Raiser interface {
	RaiseSerialInterrupt()
}

// Watcher is the asynchronous half of the serial interrupt path: a single
// goroutine, grounded on uart_worker.go's reader loop, that blocks on the
// port until bytes are available and then hands off to the kernel as a
// hardware interrupt event rather than touching kernel state itself. It
// plays the same "ISR defers the real work" role gpioirq.Worker plays for
// GPIO edges, except the payload here is "some bytes arrived," not a
// decoded edge, since the actual byte draining happens inside the
// kernel-registered serial vector handler.
type Watcher struct {
	port Port
	k    Raiser
}

// NewWatcher starts watching port for incoming bytes, raising a serial
// interrupt on k for each readable event, until ctx is cancelled.
func NewWatcher(ctx context.Context, port Port, k Raiser) *Watcher {
	w := &Watcher{port: port, k: k}
	go w.run(ctx)
	return w
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.port.Readable():
			w.k.RaiseSerialInterrupt()
		}
	}
}
