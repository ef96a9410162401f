package kernel

// VectorType identifies a software vector slot. The table is small and
// fixed, mirroring SOFTVEC_TYPE_NUM / intr.h.
type VectorType int

const (
	VectorSoftErr VectorType = iota
	VectorSyscall
	VectorSerial

	vectorSlots = 3
)

func (t VectorType) String() string {
	switch t {
	case VectorSoftErr:
		return "softerr"
	case VectorSyscall:
		return "syscall"
	case VectorSerial:
		return "serial"
	default:
		return "unknown"
	}
}

// Handler is an OS-level interrupt handler, registered per vector slot and
// invoked by the common entry point with interrupts (conceptually) still
// disabled, i.e. from inside the kernel's single event-loop goroutine.
type Handler func()

// vectorTable maps each software vector slot to its registered handler.
// A missing handler is a silent no-op, exactly as the original's common
// entry checks `if (handlers[type])` before calling.
type vectorTable [vectorSlots]Handler

// invoke calls the handler registered for slot, if any. It must only ever
// be called from the kernel's event-loop goroutine.
func (v *vectorTable) invoke(slot VectorType) {
	if h := v[slot]; h != nil {
		h()
	}
}
