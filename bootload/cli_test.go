package bootload

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"kozos-go/drivers/serial"
)

// loopbackPairForTest gives cli_test.go a serial.Port to build a Loader
// around without needing a real transport for commands that never touch
// the wire (dump, run, unknown).
func loopbackPairForTest(t *testing.T) (serial.Port, serial.Port) {
	t.Helper()
	a, b := serial.NewLoopbackPair()
	return a, b
}

func TestExecuteUnknownCommand(t *testing.T) {
	port, _ := loopbackPairForTest(t)
	l := NewLoader(port, NewFlatMemory(0x1000, 256), 256)

	var out bytes.Buffer
	l.Execute(context.Background(), "frobnicate", &out)

	if got := out.String(); got != "unknown.\n" {
		t.Fatalf("Execute(frobnicate) wrote %q, want %q", got, "unknown.\n")
	}
}

func TestExecuteEmptyLine(t *testing.T) {
	port, _ := loopbackPairForTest(t)
	l := NewLoader(port, NewFlatMemory(0x1000, 256), 256)

	var out bytes.Buffer
	l.Execute(context.Background(), "", &out)

	if got := out.String(); got != "unknown.\n" {
		t.Fatalf("Execute(\"\") wrote %q, want %q", got, "unknown.\n")
	}
}

func TestExecuteDumpFormatsSixteenBytesPerLine(t *testing.T) {
	port, _ := loopbackPairForTest(t)
	l := NewLoader(port, NewFlatMemory(0x1000, 256), 256)
	l.received = []byte{
		0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
		0x10,
	}

	var out bytes.Buffer
	l.Execute(context.Background(), "dump", &out)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 3 { // "size = N" + two 16-byte lines
		t.Fatalf("dump produced %d lines, want 3:\n%s", len(lines), out.String())
	}
	if lines[0] != "size = 17" {
		t.Fatalf("first line = %q, want %q", lines[0], "size = 17")
	}
	if !strings.HasPrefix(lines[1], "00000000: ") {
		t.Fatalf("address column = %q, want prefix %q", lines[1], "00000000: ")
	}
	if !strings.Contains(lines[1], "0f ") {
		t.Fatalf("first line missing last byte of first row: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "00000010: ") {
		t.Fatalf("second line address = %q, want prefix %q", lines[2], "00000010: ")
	}
}

func TestExecuteDumpWithOffsetAndLength(t *testing.T) {
	port, _ := loopbackPairForTest(t)
	l := NewLoader(port, NewFlatMemory(0x1000, 256), 256)
	l.received = []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee}

	var out bytes.Buffer
	l.Execute(context.Background(), "dump 1 2", &out)

	got := out.String()
	if !strings.Contains(got, "bb ") || !strings.Contains(got, "cc ") {
		t.Fatalf("dump 1 2 should show only bytes bb,cc, got:\n%s", got)
	}
	if strings.Contains(got, "aa ") || strings.Contains(got, "dd ") {
		t.Fatalf("dump 1 2 leaked bytes outside the requested range:\n%s", got)
	}
}

func TestExecuteRunSucceedsOnValidImage(t *testing.T) {
	port, _ := loopbackPairForTest(t)
	mem := NewFlatMemory(0x00400000, 4096)
	l := NewLoader(port, mem, 4096)
	l.received = buildH8ELF(t, 46, 0x00400010, 0x00400000, []byte("go"), 0)

	var ranWith uint32
	l.OnRun = func(img *Image) { ranWith = img.Entry }

	var out bytes.Buffer
	l.Execute(context.Background(), "run", &out)

	if !strings.Contains(out.String(), "entry = 0x00400010") {
		t.Fatalf("run output = %q, missing entry address", out.String())
	}
	if ranWith != 0x00400010 {
		t.Fatalf("OnRun called with entry %#x, want %#x", ranWith, 0x00400010)
	}
}

func TestExecuteRunFailsOnInvalidImage(t *testing.T) {
	port, _ := loopbackPairForTest(t)
	l := NewLoader(port, NewFlatMemory(0x1000, 256), 256)
	l.received = []byte("not an elf file")

	var ran bool
	l.OnRun = func(img *Image) { ran = true }

	var out bytes.Buffer
	l.Execute(context.Background(), "run", &out)

	if !strings.HasPrefix(out.String(), "run failed:") {
		t.Fatalf("run output = %q, want a run failed: prefix", out.String())
	}
	if ran {
		t.Fatal("OnRun was called for an invalid image")
	}
}
