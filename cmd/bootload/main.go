// Command bootload runs the second-stage loader's kzload> shell: it
// receives an executable image over a serial link (stdin/stdout on a
// workstation build) and can validate, load, and hand off to it.
package main

import (
	"context"
	"fmt"
	"os"

	"kozos-go/bootload"
)

const (
	imageCapacity = 256 * 1024
	loadBase      = 0x00400000
)

func main() {
	ctx := context.Background()
	port := newStdioPort()
	mem := bootload.NewFlatMemory(loadBase, imageCapacity)

	loader := bootload.NewLoader(port, mem, imageCapacity)
	loader.OnRun = func(img *bootload.Image) {
		fmt.Fprintf(os.Stdout, "jumping to entry %#08x with interrupts disabled\n", img.Entry)
	}

	if err := loader.REPL(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
