package kernel

// schedule scans priority levels from 0 upward and selects the head of the
// first non-empty ready queue as the next current thread. Called after a
// syscall or software-error trap, where an empty scan means every thread
// that could ever make progress has stopped: a genuine deadlock, and a
// kernel-fatal condition.
func (k *Kernel) schedule() {
	if !k.scheduleOrIdle() {
		k.SystemDown("system error!")
	}
}

// scheduleOrIdle is schedule's non-fatal twin, used after an interrupt:
// finding nothing ready just means no thread needs dispatching until the
// next event arrives, so k.current is cleared (dispatchCurrent no-ops on
// nil) rather than halting the kernel. Reports whether a thread was found.
func (k *Kernel) scheduleOrIdle() bool {
	for i := 0; i < PriorityLevels; i++ {
		if k.readyque[i].head != nil {
			k.current = k.readyque[i].head
			return true
		}
	}
	k.current = nil
	return false
}

// syscallIntr is the syscall vector's registered handler: it reads the
// current thread's pending syscall descriptor and dispatches it. It runs
// from inside run(), after k.current has already been set to the event's
// originating TCB.
func (k *Kernel) syscallIntr() {
	k.syscallProc(k.current.syscall.typ, k.current.syscall.param)
}

// softerrIntr is the software-error vector's registered handler: print
// "<name> DOWN.", drop the thread from its ready queue, and exit it.
func (k *Kernel) softerrIntr() {
	k.console.WriteString(k.current.name + " DOWN.\n")
	k.getcurrent()
	k.threadExit()
}

// RaiseSerialInterrupt delivers a serial-interrupt event, used by the
// serial driver's reader goroutine to hand received bytes to the console
// driver's registered handler from inside the event loop.
func (k *Kernel) RaiseSerialInterrupt() {
	k.events <- event{kind: eventInterrupt, slot: VectorSerial}
}

// ServiceCall exposes the non-trapping invocation mode (§4.3) to code that
// runs synchronously inside a registered interrupt handler (and is
// therefore already executing on the event-loop goroutine): it dispatches
// typ immediately with no current thread, rather than roundtripping through
// events the way Thread's methods do.
func (k *Kernel) ServiceCall(typ SyscallType, p *Param) {
	k.serviceCall(typ, p)
}
