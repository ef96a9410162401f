// Package kernel implements the scheduler, system-call dispatcher, fixed
// priority ready queues, and message-box rendezvous of the teaching kernel.
//
// All mutable kernel state lives in a single Kernel value and is touched
// only by the goroutine running Kernel.run. Every other goroutine in the
// process (one per thread, plus interrupt sources) communicates with it by
// sending an event (kind eventSyscall, eventSoftErr or eventInterrupt) on
// Kernel.events; thread goroutines then park on their own per-thread resume
// channel. That single-writer discipline is
// this package's stand-in for "single core with interrupts disabled."
package kernel

const (
	// MaxThreads bounds the static TCB table, mirroring THREAD_NUM.
	MaxThreads = 6
	// PriorityLevels is the number of fixed-priority ready queues (P).
	PriorityLevels = 16
	// MaxNameLen bounds a thread's display name, mirroring THREAD_NAME_SIZE.
	MaxNameLen = 15
)

// ThreadFunc is a thread's entry point. t is the calling thread's handle,
// used to issue further system calls. Its return value is discarded:
// control always flows into exit afterward, exactly as thread_init calls
// thread_end once the entry function returns.
type ThreadFunc func(t *Thread, argv []string) int

// ThreadID identifies a thread across its lifetime. It is the TCB pointer
// itself, exactly as the original kernel family uses kz_thread* as an id.
type ThreadID = *TCB

// SyscallType tags which operation a syscall event/Param carries.
type SyscallType int

const (
	SyscallRun SyscallType = iota
	SyscallExit
	SyscallWait
	SyscallSleep
	SyscallWakeup
	SyscallGetID
	SyscallChpri
	SyscallKmalloc
	SyscallKmfree
	SyscallSend
	SyscallRecv
	SyscallSetIntr
)

func (t SyscallType) String() string {
	switch t {
	case SyscallRun:
		return "run"
	case SyscallExit:
		return "exit"
	case SyscallWait:
		return "wait"
	case SyscallSleep:
		return "sleep"
	case SyscallWakeup:
		return "wakeup"
	case SyscallGetID:
		return "getid"
	case SyscallChpri:
		return "chpri"
	case SyscallKmalloc:
		return "kmalloc"
	case SyscallKmfree:
		return "kmfree"
	case SyscallSend:
		return "send"
	case SyscallRecv:
		return "recv"
	case SyscallSetIntr:
		return "setintr"
	default:
		return "unknown"
	}
}

// Param is the struct-of-substructs standing in for the original
// kz_syscall_param_t tagged union: Go has no union type, and unsafe pointer
// punning across incompatible struct layouts would fight the language
// rather than use it, so each operation gets its own named field instead.
// A single system call only ever populates and reads the field named by
// its SyscallType.
type Param struct {
	Run     RunParam
	Wait    WaitParam
	Sleep   SleepParam
	Wakeup  WakeupParam
	GetID   GetIDParam
	Chpri   ChpriParam
	Kmalloc KmallocParam
	Kmfree  KmfreeParam
	Send    SendParam
	Recv    RecvParam
	SetIntr SetIntrParam
}

type RunParam struct {
	Func      ThreadFunc
	Name      string
	Priority  int
	StackSize int
	Argv      []string
	Ret       ThreadID // nil on failure (no free TCB slot, or stack arena exhausted)
}

type WaitParam struct {
	Ret int
}

type SleepParam struct {
	Ret int
}

type WakeupParam struct {
	ID  ThreadID
	Ret int
}

type GetIDParam struct {
	Ret ThreadID
}

type ChpriParam struct {
	Priority int // negative leaves priority unchanged
	Ret      int // previous priority
}

type KmallocParam struct {
	Size int
	Ret  []byte
}

type KmfreeParam struct {
	P   []byte
	Ret int
}

type SendParam struct {
	Box  BoxID
	Size int
	P    []byte
	Ret  int
}

type RecvParam struct {
	Box  BoxID
	Size int      // out
	P    []byte   // out
	Ret  ThreadID // sender id; left untouched while the call is blocked, written on delivery (see msgbox.go)
}

type SetIntrParam struct {
	Type    VectorType
	Handler Handler
	Ret     int
}
