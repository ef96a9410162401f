// Package serial defines the UART abstraction shared by the console driver
// and the boot loader's XMODEM/CLI transport, and its host/mcu backends.
package serial

import "context"

// Port is the minimal UART surface both collaborators need: byte-oriented
// TX, and RX either by polling or by blocking with a context deadline. It
// is deliberately the same shape as the HAL's UARTPort interface so a
// single adaptor idiom covers both domains.
type Port interface {
	WriteByte(b byte) error
	Write(p []byte) (int, error)

	Buffered() int
	Read(p []byte) (int, error)
	Readable() <-chan struct{}
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}

// Formatter is implemented by ports that support runtime baud/format
// changes. Host loopback ports do not implement it, matching the HAL's
// "no-op on host" convention for UARTFormatter.
type Formatter interface {
	SetBaudRate(br uint32)
	SetFormat(databits, stopbits uint8, parity uint8) error
}

// Config mirrors the loader/console's fixed serial parameters. It is a
// trimmed form of the HAL's SerialSetBaud/SerialSetFormat request pair,
// collapsed into the single shape this package's two consumers need.
type Config struct {
	Baud     uint32
	DataBits uint8
	StopBits uint8
	Parity   Parity
}

// DefaultConfig is 9600 8N1, the conventional default for both the console
// driver and the boot loader's command link.
var DefaultConfig = Config{Baud: 9600, DataBits: 8, StopBits: 1, Parity: ParityNone}

// Parity enumerates the three supported parity modes.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

// Configure applies cfg to port if it supports Formatter, and is a no-op
// otherwise — the same best-effort convention the HAL's uart adaptor uses.
func Configure(port Port, cfg Config) {
	f, ok := port.(Formatter)
	if !ok {
		return
	}
	if cfg.Baud > 0 {
		f.SetBaudRate(cfg.Baud)
	}
	_ = f.SetFormat(cfg.DataBits, cfg.StopBits, uint8(cfg.Parity))
}
