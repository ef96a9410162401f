package kernel

import (
	"fmt"

	"kozos-go/kernel/mem"
)

// Console is the minimal sink the kernel writes its fixed-text diagnostics
// to (system error!, <name> DOWN., <name> EXIT.). It is intentionally
// narrower than io.Writer: the kernel only ever writes whole strings.
type Console interface {
	WriteString(s string)
}

// eventKind distinguishes the two things that can arrive on Kernel.events:
// a thread-issued trap, or a hardware interrupt.
type eventKind int

const (
	eventSyscall eventKind = iota
	eventInterrupt
	eventSoftErr
)

type event struct {
	kind eventKind
	tcb  *TCB       // eventSyscall: the calling thread
	typ  SyscallType
	slot VectorType // eventInterrupt
}

// Kernel is the gathered kernel-state record the design notes ask for:
// every mutable structure the original kept as file-scope globals lives
// here instead, touched only from the run() goroutine.
type Kernel struct {
	threads [MaxThreads]TCB
	readyque [PriorityLevels]readyQueue
	current  *TCB
	vectors  vectorTable

	mem   *mem.Allocator
	stack *stackArena
	boxes map[BoxID]*box

	console Console

	events chan event
	down   chan string // closed-once signal that system-down fired
	halted bool
}

// New constructs a kernel with the default process-wide state: MaxThreads
// TCB slots, PriorityLevels ready queues, a three-slot vector table, the
// default pool table, and a stack arena sized for MaxThreads worst-case
// stacks.
func New(console Console) *Kernel {
	return NewWithPools(console, mem.DefaultPools)
}

// NewWithPools is New with an explicit pool table, for callers (tests,
// mostly) that need to provoke or avoid allocator exhaustion deliberately.
func NewWithPools(console Console, pools []mem.PoolSpec) *Kernel {
	k := &Kernel{
		console: console,
		events:  make(chan event),
		down:    make(chan string, 1),
		stack:   newStackArena(0x00400000, MaxThreads*4096),
	}
	k.mem = mem.NewAllocator(pools, k)
	return k
}

// SystemDown implements mem.SystemDowner and is also the kernel's own
// fatal-error path (empty ready queue at a scheduling decision, a recv on a
// box with an already-registered receiver). It prints the fixed message and
// halts: no further syscalls are ever serviced.
func (k *Kernel) SystemDown(reason string) {
	if reason == "" {
		reason = "system error!"
	}
	k.console.WriteString(reason + "\n")
	k.halted = true
	select {
	case k.down <- reason:
	default:
	}
	panic(&systemDownSignal{reason: reason})
}

// systemDownSignal unwinds the event-loop goroutine's stack via panic/recover
// instead of spinning forever on a real CPU core the way `while(1);` does on
// bare metal; run() recovers it at the top and leaves the kernel halted.
type systemDownSignal struct{ reason string }

// Halted reports whether the kernel has taken the system-down path.
func (k *Kernel) Halted() bool { return k.halted }

// Wait blocks until the kernel halts via SystemDown, returning the reason.
// Intended for tests and for cmd/kernel's main goroutine.
func (k *Kernel) Wait() string { return <-k.down }

// Start seeds the syscall and software-error vectors, creates the initial
// thread, and runs the event loop until the kernel halts. It mirrors
// kz_start: kzmem_init is done in New, so Start's job is just registering
// the fixed handlers and launching the first thread.
func (k *Kernel) Start(entry ThreadFunc, name string, priority, stackSize int, argv []string) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*systemDownSignal); ok {
				return
			}
			panic(r)
		}
	}()

	k.vectors[VectorSyscall] = func() { k.syscallIntr() }
	k.vectors[VectorSoftErr] = func() { k.softerrIntr() }

	id := k.threadRun(entry, name, priority, stackSize, argv)
	if id == nil {
		k.console.WriteString(fmt.Sprintf("kernel: failed to start initial thread %q\n", name))
		k.SystemDown("system error!")
		return
	}
	k.dispatchCurrent()
	k.run()
}

// run is the single event-loop goroutine: it is the only code in this
// package permitted to read or write ready queues, TCB contents, the
// vector table, or the allocator, which is what makes this package safe
// without any locks. It shares Start's recover, so a SystemDown panic
// raised from deep inside a later syscall unwinds the same way a SystemDown
// raised during bootstrap does.
func (k *Kernel) run() {
	for {
		ev := <-k.events
		switch ev.kind {
		case eventSyscall:
			k.current = ev.tcb
			k.vectors.invoke(VectorSyscall)
			k.schedule()
		case eventSoftErr:
			k.current = ev.tcb
			k.vectors.invoke(VectorSoftErr)
			k.schedule()
		case eventInterrupt:
			// An interrupt's handler runs as a service call (§4.3): it
			// can re-ready a blocked thread on its own, but it never
			// represents a thread itself wanting to yield. Unlike the
			// syscall/softerr cases, finding every ready queue empty
			// here is not a deadlock, just "nothing to do until the next
			// event" — every application thread legitimately idle in a
			// blocking recv while waiting on the next keystroke would
			// otherwise halt the kernel the instant it got there.
			k.vectors.invoke(ev.slot)
			k.scheduleOrIdle()
		}
		k.dispatchCurrent()
	}
}

// dispatchCurrent resumes k.current by signalling its resume channel,
// the Go analogue of "resume thread given its saved SP."
func (k *Kernel) dispatchCurrent() {
	if k.current == nil {
		return
	}
	select {
	case k.current.resume <- struct{}{}:
	default:
		// The one-slot resume buffer already holds a signal from an
		// earlier dispatch that this thread has not consumed yet; no
		// second signal is queued.
	}
}
