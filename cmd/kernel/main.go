// Command kernel boots the teaching kernel on a workstation: stdin/stdout
// stand in for the serial console a real target would expose over UART.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"kozos-go/drivers/console"
	"kozos-go/drivers/serial"
	"kozos-go/kernel"
)

// stdoutConsole implements kernel.Console by writing straight to stdout,
// the host stand-in for the original's serial puts().
type stdoutConsole struct{}

func (stdoutConsole) WriteString(s string) { fmt.Print(s) }

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k := kernel.New(stdoutConsole{})
	port := newStdioPort()
	serial.NewWatcher(ctx, port, k)

	drv := console.NewDriver(port)

	k.Start(shellMain(drv), "shell", 1, 4096, nil)

	fmt.Println(k.Wait())
	os.Exit(1)
}

// idleMain is the lowest-priority thread: it never does anything but stay
// ready. Without it, the ready queue can legitimately be empty the instant
// both the console driver and the shell are blocked in Recv waiting on the
// next keystroke, which schedule() treats as a fatal deadlock rather than
// "waiting for an interrupt" — the standard idle-task fix for a
// priority-scheduled kernel with no other always-runnable thread.
func idleMain(t *kernel.Thread, argv []string) int {
	for {
		t.Wait()
	}
}

// shellMain builds the initial thread's entry point: it starts the console
// driver and an idle thread as siblings, then runs the echo/exit/unknown
// shell grounded on the original's bare-metal main(), but speaking through
// message boxes instead of direct serial calls.
func shellMain(drv *console.Driver) kernel.ThreadFunc {
	return func(t *kernel.Thread, argv []string) int {
		t.Run(drv.Thread, "console", 0, 4096, nil)
		t.Run(idleMain, "idle", kernel.PriorityLevels-1, 4096, nil)

		console.Write(t, "Hello World!\n")
		for {
			console.Write(t, "> ")
			line := console.ReadLine(t)
			switch {
			case strings.HasPrefix(line, "echo"):
				console.Write(t, strings.TrimPrefix(line, "echo"))
				console.Write(t, "\n")
			case line == "exit":
				return 0
			default:
				console.Write(t, "unknown.\n")
			}
		}
	}
}
