package kernel

import (
	"runtime"

	"kozos-go/x/mathx"
)

// selfExit unwinds the calling goroutine via runtime.Goexit after Exit has
// already told the kernel to drop this thread. It is the Go analogue of
// thread_end's call never returning to thread_init.
func selfExit() { runtime.Goexit() }

// threadRun is thread_run: find a free TCB slot, seed it, reserve a stack
// region, start the backing goroutine (parked immediately on its resume
// channel, which is this implementation's synthetic initial frame), and
// link both the caller and the new thread into their ready queues.
func (k *Kernel) threadRun(fn ThreadFunc, name string, priority, stackSize int, argv []string) ThreadID {
	var slot *TCB
	for i := range k.threads {
		if k.threads[i].free() {
			slot = &k.threads[i]
			break
		}
	}
	if slot == nil {
		k.putcurrent()
		return nil
	}

	region, err := k.stack.reserve(stackSize)
	if err != nil {
		k.putcurrent()
		return nil
	}

	*slot = TCB{
		name:     truncateName(name),
		priority: mathx.Clamp(priority, 0, PriorityLevels-1),
		stack:    region,
		resume:   make(chan struct{}, 1),
	}
	slot.init.fn = fn
	slot.init.argv = argv

	// Caller re-inserted, then the new thread linked at its priority's
	// tail, exactly mirroring thread_run's putcurrent(); current = thp;
	// putcurrent();
	k.putcurrent()
	k.current = slot
	k.putcurrent()

	go k.runThread(slot)

	return slot
}

// runThread is the goroutine body backing one thread. It blocks on resume
// before ever calling fn, which is the literal analogue of a synthetic
// initial stack frame that has not yet been dispatched.
func (k *Kernel) runThread(tcb *TCB) {
	<-tcb.resume
	t := &Thread{k: k, tcb: tcb}
	fn, argv := tcb.init.fn, tcb.init.argv
	_ = fn(t, argv)
	t.Exit()
}

// threadExit is thread_exit: print "<name> EXIT.", zero the TCB (returning
// the slot to the free pool), caller not re-inserted.
func (k *Kernel) threadExit() {
	if k.current == nil {
		return
	}
	k.console.WriteString(k.current.name + " EXIT.\n")
	*k.current = TCB{}
}

// threadWait is thread_wait: detach-then-reattach at this thread's own
// queue's tail (round-robin within priority). getcurrent already ran in
// syscallProc, so this is just a re-insert.
func (k *Kernel) threadWait() int {
	k.putcurrent()
	return 0
}

// threadSleep is thread_sleep: do nothing. The caller was already removed
// from its ready queue by getcurrent and stays out until woken.
func (k *Kernel) threadSleep() int {
	return 0
}

// threadWakeup is thread_wakeup: re-ready the caller, then re-ready id via
// the documented current-pointer aliasing in putcurrentFor.
func (k *Kernel) threadWakeup(id ThreadID) int {
	k.putcurrent()
	k.putcurrentFor(id)
	return 0
}

// threadGetID is thread_getid: re-ready the caller, return its own id.
func (k *Kernel) threadGetID() ThreadID {
	k.putcurrent()
	return k.current
}

// threadChpri is thread_chpri: update priority (ignored if negative),
// re-ready under the (possibly new) priority, return the old priority.
func (k *Kernel) threadChpri(priority int) int {
	old := k.current.priority
	if priority >= 0 {
		k.current.priority = mathx.Clamp(priority, 0, PriorityLevels-1)
	}
	k.putcurrent()
	return old
}

// threadKmalloc is thread_kzmalloc: re-ready the caller, then allocate.
// Allocation never blocks, so order only matters for scheduling fairness.
func (k *Kernel) threadKmalloc(size int) []byte {
	k.putcurrent()
	return k.mem.Alloc(size)
}

// threadKmfree is thread_kmfree: free, then re-ready the caller.
func (k *Kernel) threadKmfree(p []byte) int {
	k.mem.Free(p)
	k.putcurrent()
	return 0
}

// threadSend re-readies the caller then performs the box send.
func (k *Kernel) threadSend(id BoxID, size int, p []byte) int {
	k.putcurrent()
	return k.boxSend(k.box(id), k.current, size, p)
}

// threadRecv performs the box recv. boxRecv itself decides whether to
// re-ready the caller (message already queued) or leave it suspended
// (queue empty, caller registered as receiver).
func (k *Kernel) threadRecv(id BoxID, p *RecvParam) {
	caller := k.current
	if blocked := k.boxRecv(k.box(id), caller, p); !blocked {
		k.putcurrent()
	}
}

// threadSetIntr is setintr: install handler for slot (the common thread
// entry already plays the role of "install the thread-mode vector target"
// since every handler in this package runs from the same event loop), then
// re-ready the caller.
func (k *Kernel) threadSetIntr(slot VectorType, handler Handler) int {
	k.vectors[slot] = handler
	k.putcurrent()
	return 0
}

// box returns (lazily creating) the box named by id.
func (k *Kernel) box(id BoxID) *box {
	if k.boxes == nil {
		k.boxes = make(map[BoxID]*box)
	}
	b, ok := k.boxes[id]
	if !ok {
		b = newBox()
		k.boxes[id] = b
	}
	return b
}
