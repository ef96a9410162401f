package bootload

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/google/shlex"

	"kozos-go/drivers/serial"
	"kozos-go/x/conv"
)

// Loader is the kzload> command shell: load (XMODEM receive), dump (hex
// dump of the last received image), run (validate + load + jump).
// Unrecognized input prints "unknown.", exactly as the original REPL.
type Loader struct {
	port serial.Port
	mem  Memory

	received []byte // the most recently XMODEM-received image, for dump/run

	// OnRun is invoked with the validated, loaded image once run succeeds.
	// It stands in for "jump to entry with interrupts disabled": this
	// process has no CPU vector to transfer control to, so the caller
	// supplies what "running" means (e.g. starting the kernel).
	OnRun func(img *Image)
}

// NewLoader builds a loader that receives into a buffer of bufCap bytes and
// loads program segments into mem.
func NewLoader(port serial.Port, mem Memory, bufCap int) *Loader {
	return &Loader{port: port, mem: mem, received: make([]byte, 0, bufCap)}
}

// REPL reads newline-terminated commands from in and writes prompts and
// responses to out until ctx is cancelled or in is exhausted.
func (l *Loader) REPL(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "kzload> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		l.Execute(ctx, scanner.Text(), out)
	}
}

// Execute runs a single command line. It is exported separately from REPL
// so tests can drive commands without an io.Reader/Writer pair.
func (l *Loader) Execute(ctx context.Context, line string, out io.Writer) {
	args, err := shlex.Split(line)
	if err != nil || len(args) == 0 {
		fmt.Fprintln(out, "unknown.")
		return
	}

	switch args[0] {
	case "load":
		l.cmdLoad(ctx, out)
	case "dump":
		l.cmdDump(args[1:], out)
	case "run":
		l.cmdRun(out)
	default:
		fmt.Fprintln(out, "unknown.")
	}
}

func (l *Loader) cmdLoad(ctx context.Context, out io.Writer) {
	buf := l.received[:cap(l.received)]
	n, err := Receive(ctx, l.port, buf)
	if err != nil {
		fmt.Fprintf(out, "load failed: %v\n", err)
		return
	}
	l.received = buf[:n]
	fmt.Fprintf(out, "received %d bytes\n", n)
}

// cmdDump hex-dumps the last received image, 16 bytes per line with a
// mid-line gap at byte 8, matching the original's dump() layout. Optional
// offset/length arguments (hex or decimal) narrow the dumped range, a
// command-line ergonomics improvement the shlex-based tokenizer makes easy
// to add without touching the parser.
func (l *Loader) cmdDump(args []string, out io.Writer) {
	data := l.received
	off, length := 0, len(data)
	if len(args) > 0 {
		if v, err := parseUintArg(args[0]); err == nil {
			off = v
		}
	}
	if len(args) > 1 {
		if v, err := parseUintArg(args[1]); err == nil {
			length = v
		}
	}
	if off > len(data) {
		off = len(data)
	}
	if off+length > len(data) {
		length = len(data) - off
	}
	fmt.Fprintf(out, "size = %d\n", len(data))
	hexDump(out, data[off:off+length])
}

func (l *Loader) cmdRun(out io.Writer) {
	img, err := Load(l.received, l.mem)
	if err != nil {
		fmt.Fprintf(out, "run failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "entry = %#08x\n", img.Entry)
	if l.OnRun != nil {
		l.OnRun(img)
	}
}

func hexDump(out io.Writer, data []byte) {
	var line [16]byte
	for base := 0; base < len(data); base += 16 {
		n := copy(line[:], data[base:])
		var b [8]byte
		conv.U32Hex(b[:], uint32(base))
		fmt.Fprintf(out, "%s: ", b[:])
		for i := 0; i < 16; i++ {
			if i == 8 {
				fmt.Fprint(out, " ")
			}
			if i < n {
				fmt.Fprintf(out, "%02x ", line[i])
			} else {
				fmt.Fprint(out, "   ")
			}
		}
		fmt.Fprintln(out)
	}
}

func parseUintArg(s string) (int, error) {
	var v int
	_, err := fmt.Sscanf(s, "0x%x", &v)
	if err != nil {
		_, err = fmt.Sscanf(s, "%d", &v)
	}
	return v, err
}
