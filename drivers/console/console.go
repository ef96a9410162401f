// Package console implements the console driver thread: a bridge between a
// serial.Port's RX/TX interrupts and two kernel message boxes, grounded on
// the original's consdrv.c.
package console

import (
	"kozos-go/drivers/serial"
	"kozos-go/kernel"
)

// BoxInput carries completed lines typed at the console, one kmalloc'd
// buffer per line, to whichever thread wants to read them.
// BoxOutput carries raw write requests from application threads to the
// driver, mirroring MSGBOX_ID_CONSINPUT / MSGBOX_ID_CONSOUTPUT.
const (
	BoxInput  kernel.BoxID = 0
	BoxOutput kernel.BoxID = 1
)

// bufferSize mirrors CONS_BUFFER_SIZE: the fixed line-buffer and
// kmalloc request size consdrv.c uses for both directions.
const bufferSize = 24

// Driver holds the one serial.Port this console instance bridges, and the
// in-progress receive line buffer. It corresponds to one entry of the
// original's consreg table; this repository only ever wires up one
// console, so there is no device-index array to manage.
type Driver struct {
	port    serial.Port
	recvBuf []byte
}

// NewDriver binds a console driver to port. Binding is done here, by
// construction, rather than by a runtime CONSDRV_CMD_USE message: Go
// composition already gives every driver instance its own backing port, so
// there is no need to thread a device index through the message protocol.
func NewDriver(port serial.Port) *Driver {
	return &Driver{port: port}
}

// Thread is the driver's entry point (consdrv_main): install the serial
// vector handler, then service console-output requests forever.
func (d *Driver) Thread(t *kernel.Thread, argv []string) int {
	t.SetIntr(kernel.VectorSerial, d.onSerialInterrupt(t.Kernel()))
	for {
		_, size, p := t.Recv(BoxOutput)
		d.writeRaw(p[:size])
		t.Kmfree(p)
	}
}

// writeRaw performs the CR-on-LF translation send_string does when queuing
// a string for transmission, then writes the whole buffer in one call. The
// original interrupt-feeds one byte of its send_buf per TX interrupt
// because the hardware TX register only holds one byte; this Port already
// accepts a full buffer, so that per-byte pump is collapsed into a single
// Write.
func (d *Driver) writeRaw(data []byte) {
	out := make([]byte, 0, len(data)+4)
	for _, c := range data {
		if c == '\n' {
			out = append(out, '\r')
		}
		out = append(out, c)
	}
	d.port.Write(out)
}

// onSerialInterrupt returns the handler installed on VectorSerial. It
// always runs on the kernel's event-loop goroutine (never this driver's own
// thread goroutine), so every kernel operation it performs is a service
// call: §4.3's "invoked directly by kernel code" mode, not a trap.
func (d *Driver) onSerialInterrupt(k *kernel.Kernel) kernel.Handler {
	var scratch [32]byte
	return func() {
		n, _ := d.port.Read(scratch[:])
		for _, c := range scratch[:n] {
			if c == '\r' {
				c = '\n'
			}
			d.writeRaw([]byte{c}) // echo back, same as consdrv_intrporc

			if c != '\n' {
				if len(d.recvBuf) < bufferSize {
					d.recvBuf = append(d.recvBuf, c)
				}
				continue
			}

			var alloc kernel.Param
			alloc.Kmalloc.Size = bufferSize
			k.ServiceCall(kernel.SyscallKmalloc, &alloc)
			line := alloc.Kmalloc.Ret[:len(d.recvBuf)]
			copy(line, d.recvBuf)
			d.recvBuf = d.recvBuf[:0]

			var send kernel.Param
			send.Send = kernel.SendParam{Box: BoxInput, Size: len(line), P: line}
			k.ServiceCall(kernel.SyscallSend, &send)
		}
	}
}

// Write is the client half of consdrv_command's CONSDRV_CMD_WRITE path: an
// application thread calls this to queue text for the console, exactly as
// the original sent a kz_send(MSGBOX_ID_CONSOUTPUT, ...) carrying a command
// byte followed by the text.
func Write(t *kernel.Thread, text string) {
	buf := t.Kmalloc(len(text))
	copy(buf, text)
	t.Send(BoxOutput, len(buf), buf)
}

// ReadLine is the client half of the input path: it blocks until a typed
// line arrives on BoxInput, frees the kernel buffer, and returns the text.
func ReadLine(t *kernel.Thread) string {
	_, size, p := t.Recv(BoxInput)
	line := string(p[:size])
	t.Kmfree(p)
	return line
}
