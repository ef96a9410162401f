//go:build tinygo

package serial

import (
	"context"

	"github.com/jangala-dev/tinygo-uartx/uartx"
)

// HardwarePort adapts *uartx.UART to Port, the same wrapping the platform
// factory layer does for the HAL's halcore.UARTPort.
type HardwarePort struct{ u *uartx.UART }

// NewHardwarePort wraps hw (uartx.UART0 or uartx.UART1) for use as either
// the console driver's or the boot loader's transport.
func NewHardwarePort(hw *uartx.UART, cfg Config) *HardwarePort {
	_ = hw.Configure(uartx.UARTConfig{BaudRate: cfg.Baud})
	return &HardwarePort{u: hw}
}

func (r *HardwarePort) WriteByte(b byte) error      { return r.u.WriteByte(b) }
func (r *HardwarePort) Write(p []byte) (int, error) { return r.u.Write(p) }
func (r *HardwarePort) Buffered() int               { return r.u.Buffered() }
func (r *HardwarePort) Read(p []byte) (int, error)  { return r.u.Read(p) }
func (r *HardwarePort) Readable() <-chan struct{}   { return r.u.Readable() }
func (r *HardwarePort) RecvSomeContext(ctx context.Context, p []byte) (int, error) {
	return r.u.RecvSomeContext(ctx, p)
}

func (r *HardwarePort) SetBaudRate(br uint32) { r.u.SetBaudRate(br) }
func (r *HardwarePort) SetFormat(db, sb uint8, parity uint8) error {
	var p uartx.UARTParity
	switch parity {
	case 1:
		p = uartx.ParityEven
	case 2:
		p = uartx.ParityOdd
	default:
		p = uartx.ParityNone
	}
	return r.u.SetFormat(db, sb, p)
}
