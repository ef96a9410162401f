package kernel

// Thread is a running thread's handle to the kernel, passed into its
// ThreadFunc. Its methods are this package's equivalent of the original's
// kz_run/kz_exit/... wrapper functions in syscall.c: each populates the
// matching Param sub-structure, performs the trap, and reads the result
// back out.
type Thread struct {
	k   *Kernel
	tcb *TCB
}

// ID returns this thread's own id without a round trip through the kernel.
func (t *Thread) ID() ThreadID { return t.tcb }

// Kernel exposes the owning Kernel so driver code can issue service calls
// (§4.3's non-trapping invocation mode) from inside a registered interrupt
// handler, which is not something a Thread's own trap-based methods can do
// since those always run from this thread's own goroutine, not the event
// loop.
func (t *Thread) Kernel() *Kernel { return t.k }

// syscallRoundTrip is the trap: it posts an eventSyscall event for this thread and
// blocks until the event loop signals resume again. Exactly one goroutine
// (this one) is ever parked here per thread at a time.
func (t *Thread) syscallRoundTrip(typ SyscallType, param *Param) {
	t.tcb.syscall.typ = typ
	t.tcb.syscall.param = param
	t.k.events <- event{kind: eventSyscall, tcb: t.tcb, typ: typ}
	<-t.tcb.resume
}

// Run starts a new thread at priority, with the given stack size and
// arguments, and returns its id, or nil if no TCB slot was free or the stack
// arena has no room left for stackSize bytes.
func (t *Thread) Run(fn ThreadFunc, name string, priority, stackSize int, argv []string) ThreadID {
	var p Param
	p.Run = RunParam{Func: fn, Name: name, Priority: priority, StackSize: stackSize, Argv: argv}
	t.syscallRoundTrip(SyscallRun, &p)
	return p.Run.Ret
}

// Exit ends the calling thread. It never returns: the goroutine backing
// this Thread unwinds immediately afterward via runtime.Goexit, exactly as
// thread_end's call to kz_exit never returns to thread_init.
func (t *Thread) Exit() {
	t.tcb.syscall.typ = SyscallExit
	t.tcb.syscall.param = nil
	t.k.events <- event{kind: eventSyscall, tcb: t.tcb, typ: SyscallExit}
	// No resume wait: the TCB is zeroed by thread_exit and this goroutine
	// must not touch it again.
	selfExit()
}

// RaiseSoftError delivers a software-error trap for this thread: the
// installed handler prints "<name> DOWN.", drops it from its ready queue,
// and exits it. Like Exit, it never returns.
func (t *Thread) RaiseSoftError() {
	t.k.events <- event{kind: eventSoftErr, tcb: t.tcb}
	selfExit()
}

// Wait yields the processor, rejoining the tail of this thread's own
// priority queue.
func (t *Thread) Wait() int {
	var p Param
	t.syscallRoundTrip(SyscallWait, &p)
	return p.Wait.Ret
}

// Sleep suspends the calling thread until some other thread calls Wakeup
// with its id.
func (t *Thread) Sleep() int {
	var p Param
	t.syscallRoundTrip(SyscallSleep, &p)
	return p.Sleep.Ret
}

// Wakeup re-readies the thread named by id.
func (t *Thread) Wakeup(id ThreadID) int {
	var p Param
	p.Wakeup = WakeupParam{ID: id}
	t.syscallRoundTrip(SyscallWakeup, &p)
	return p.Wakeup.Ret
}

// GetID returns the calling thread's own id via a full round trip, exactly
// mirroring thread_getid (useful mainly as a scheduling barrier in tests).
func (t *Thread) GetID() ThreadID {
	var p Param
	t.syscallRoundTrip(SyscallGetID, &p)
	return p.GetID.Ret
}

// Chpri changes the calling thread's priority (ignored if negative) and
// returns the previous priority.
func (t *Thread) Chpri(priority int) int {
	var p Param
	p.Chpri = ChpriParam{Priority: priority}
	t.syscallRoundTrip(SyscallChpri, &p)
	return p.Chpri.Ret
}

// Kmalloc allocates size bytes from the fixed-block allocator.
func (t *Thread) Kmalloc(size int) []byte {
	var p Param
	p.Kmalloc = KmallocParam{Size: size}
	t.syscallRoundTrip(SyscallKmalloc, &p)
	return p.Kmalloc.Ret
}

// Kmfree returns a block to the fixed-block allocator.
func (t *Thread) Kmfree(buf []byte) {
	var p Param
	p.Kmfree = KmfreeParam{P: buf}
	t.syscallRoundTrip(SyscallKmfree, &p)
}

// Send enqueues a message on box b, waking a blocked receiver if one is
// registered. Always returns size.
func (t *Thread) Send(b BoxID, size int, payload []byte) int {
	var p Param
	p.Send = SendParam{Box: b, Size: size, P: payload}
	t.syscallRoundTrip(SyscallSend, &p)
	return p.Send.Ret
}

// Recv receives from box b. If a message is already queued it returns
// immediately with the sender id; otherwise it blocks until a Send arrives.
// While the call is blocked the kernel leaves RecvParam.Ret untouched; the
// Send that completes the rendezvous writes the sender id before this
// thread resumes, so the returned ThreadID is the sender's in both cases
// (nil for a message sent by a service call).
func (t *Thread) Recv(b BoxID) (sender ThreadID, size int, payload []byte) {
	var p Param
	p.Recv = RecvParam{Box: b}
	t.syscallRoundTrip(SyscallRecv, &p)
	return p.Recv.Ret, p.Recv.Size, p.Recv.P
}

// SetIntr registers handler as the OS-level handler for slot.
func (t *Thread) SetIntr(slot VectorType, handler Handler) int {
	var p Param
	p.SetIntr = SetIntrParam{Type: slot, Handler: handler}
	t.syscallRoundTrip(SyscallSetIntr, &p)
	return p.SetIntr.Ret
}

// syscallProc is the common vector entry's syscall-slot body: getcurrent
// followed by dispatch, exactly as syscall_proc in the original.
func (k *Kernel) syscallProc(typ SyscallType, p *Param) {
	k.getcurrent()
	k.callFunctions(typ, p)
}

// callFunctions is the switch on the type tag described in §4.3; unknown
// tags (there are none reachable through Thread's typed wrappers) are
// silently ignored, matching the `default: break;` case.
func (k *Kernel) callFunctions(typ SyscallType, p *Param) {
	switch typ {
	case SyscallRun:
		p.Run.Ret = k.threadRun(p.Run.Func, p.Run.Name, p.Run.Priority, p.Run.StackSize, p.Run.Argv)
	case SyscallExit:
		k.threadExit()
	case SyscallWait:
		p.Wait.Ret = k.threadWait()
	case SyscallSleep:
		p.Sleep.Ret = k.threadSleep()
	case SyscallWakeup:
		p.Wakeup.Ret = k.threadWakeup(p.Wakeup.ID)
	case SyscallGetID:
		p.GetID.Ret = k.threadGetID()
	case SyscallChpri:
		p.Chpri.Ret = k.threadChpri(p.Chpri.Priority)
	case SyscallKmalloc:
		p.Kmalloc.Ret = k.threadKmalloc(p.Kmalloc.Size)
	case SyscallKmfree:
		p.Kmfree.Ret = k.threadKmfree(p.Kmfree.P)
	case SyscallSend:
		p.Send.Ret = k.threadSend(p.Send.Box, p.Send.Size, p.Send.P)
	case SyscallRecv:
		k.threadRecv(p.Recv.Box, &p.Recv)
	case SyscallSetIntr:
		p.SetIntr.Ret = k.threadSetIntr(p.SetIntr.Type, p.SetIntr.Handler)
	}
}

// serviceCall is the direct, non-trapping invocation mode named in §4.3:
// it runs typ's dispatch immediately against the event-loop goroutine
// (which must be the caller), with k.current forced to nil first so
// getcurrent/putcurrent short-circuit harmlessly, as the interrupt-mode
// current-thread convention requires. It is used by driver code that runs
// from an interrupt handler, never by thread code.
func (k *Kernel) serviceCall(typ SyscallType, p *Param) {
	k.current = nil
	k.callFunctions(typ, p)
}
