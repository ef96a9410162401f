package kernel

// BoxID names a message box. Boxes are created up front by the kernel's
// owner (the console driver uses two: input and output) rather than
// allocated dynamically, matching the fixed MSGBOX_ID_* enumeration style
// of the original driver code.
type BoxID int

// msgBuffer is one FIFO node: sender, payload size, payload. It is
// logically drawn from the fixed-block allocator at send time in the
// original; here it is a plain Go value owned by the box queue, since the
// allocator's job (bounding memory, testable exhaustion) is already
// exercised by kmalloc/kmfree and payloads here are ordinary Go slices.
type msgBuffer struct {
	next    *msgBuffer
	sender  ThreadID
	size    int
	payload []byte
}

// box is a message box: a FIFO of pending buffers and, exclusively, at most
// one blocked receiver. Both invariants in §4.5 are enforced by boxSend and
// boxRecv below.
type box struct {
	receiver ThreadID
	head     *msgBuffer
	tail     *msgBuffer
}

func newBox() *box { return &box{} }

func (b *box) enqueue(m *msgBuffer) {
	if b.tail != nil {
		b.tail.next = m
	} else {
		b.head = m
	}
	b.tail = m
}

func (b *box) dequeue() *msgBuffer {
	m := b.head
	if m == nil {
		return nil
	}
	b.head = m.next
	if b.head == nil {
		b.tail = nil
	}
	m.next = nil
	return m
}

// boxSend implements §4.5 send: always enqueues, and if a receiver is
// already registered, immediately hands it the head message and re-readies
// it. Always returns the payload size. The registered-receiver check plus
// immediate delivery mirrors a single-subscriber, blocking variant of a
// publish/subscribe dispatch: one consumer slot per box instead of a
// fan-out subscriber list, and a required rendezvous instead of a
// best-effort drop when nobody is listening.
func (k *Kernel) boxSend(b *box, sender ThreadID, size int, payload []byte) int {
	b.enqueue(&msgBuffer{sender: sender, size: size, payload: payload})
	if b.receiver != nil {
		recv := b.receiver
		b.receiver = nil
		k.deliverHead(b, recv)
		k.putcurrentFor(recv)
	}
	return size
}

// boxRecv implements §4.5 recv. Panics the kernel (system down) if a
// receiver is already registered on b — at most one outstanding receiver
// per box is an invariant, not a queueable condition.
//
// If the queue already has a message, it is delivered immediately and the
// caller is re-readied. Otherwise the caller is registered as the box's
// receiver and left out of every ready queue; a later send will deliver the
// message and re-ready it, but recv's own immediate Ret field is left
// untouched, so (matching the preserved open question) a caller that reads
// RecvParam.Ret synchronously after a blocking recv observes stale data,
// not the eventual sender id.
// It reports whether the caller was left blocked (true) or had its message
// delivered immediately (false).
func (k *Kernel) boxRecv(b *box, caller ThreadID, p *RecvParam) (blocked bool) {
	if b.receiver != nil {
		k.SystemDown("system error!")
		return false
	}
	if b.head != nil {
		b.receiver = caller
		k.deliverHead(b, caller)
		b.receiver = nil
		return false
	}
	b.receiver = caller
	return true
}

// deliverHead dequeues the head buffer into recv's pending RecvParam and
// writes the sender id as the call's result.
func (k *Kernel) deliverHead(b *box, recv ThreadID) {
	m := b.dequeue()
	if m == nil {
		return
	}
	if recv.syscall.param != nil {
		rp := &recv.syscall.param.Recv
		rp.Size = m.size
		rp.P = m.payload
		rp.Ret = m.sender
	}
}
