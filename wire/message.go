package wire

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Message is a decoded PTP frame plus the timing metadata the core acts on.
// Instances are reference-counted: Retain acquires a reference, Release
// drops one and returns the message to the allocator's pool when the count
// reaches zero. There are no cycles — retained references live only in
// Port fields (last_sync, last_follow_up, delay_req) and in a ForeignClock's
// message queue, all rooted at the owning Port.
type Message struct {
	Header
	SourceAddr string // opaque transport address string, for logging/lookup only

	// PDU is the on-wire origin/receive timestamp carried inside the
	// message body, decoded into a single field regardless of which
	// body type carries it (Sync/DelayReq: originTimestamp,
	// FollowUp: preciseOriginTimestamp, DelayResp: receiveTimestamp).
	PDU Timestamp

	// HWTS is the hardware/software egress-ingress timestamp captured
	// by the transport at send or receive time.
	HWTS HWTimestamp

	// Body is one of *Announce, *Sync, *FollowUp, *DelayReq, *DelayResp.
	Body any

	refs int32
}

var pool = sync.Pool{New: func() any { return &Message{} }}

// Allocate hands out a zeroed Message with a single reference already held
// by the caller.
func Allocate() *Message {
	m := pool.Get().(*Message)
	*m = Message{refs: 1}
	return m
}

// Retain acquires a reference. It is the only way a Port field or a
// ForeignClock queue may hold onto a Message past the call that produced it.
func (m *Message) Retain() *Message {
	if m == nil {
		return nil
	}
	atomic.AddInt32(&m.refs, 1)
	return m
}

// Release drops a reference, returning the Message to the pool once the
// last reference is gone.
func (m *Message) Release() {
	if m == nil {
		return
	}
	if atomic.AddInt32(&m.refs, -1) == 0 {
		pool.Put(m)
	}
}

// RefCount reports the current reference count; exposed for tests only.
func (m *Message) RefCount() int32 {
	if m == nil {
		return 0
	}
	return atomic.LoadInt32(&m.refs)
}

// Announce type-asserts Body, panicking if the message is not an Announce.
// The core only calls these accessors after switching on Header.MessageType,
// so a mismatch is a codec bug, not a runtime condition to recover from.
func (m *Message) Announce() *Announce   { return m.Body.(*Announce) }
func (m *Message) Sync_() *Sync          { return m.Body.(*Sync) }
func (m *Message) FollowUp() *FollowUp   { return m.Body.(*FollowUp) }
func (m *Message) DelayReq() *DelayReq   { return m.Body.(*DelayReq) }
func (m *Message) DelayResp() *DelayResp { return m.Body.(*DelayResp) }

// IsOneStep reports whether this Sync message is one-step.
func (m *Message) IsOneStep() bool {
	return m.MessageType == Sync && m.OneStep()
}

// HostCapture is the host wall-clock time the transport captured this
// message at, used by ForeignClock.Prune's "current" test.
// It is the HWTS field converted to a time.Time; Message has no separate
// capture-time field.
func (m *Message) HostCapture() time.Time {
	return time.Unix(m.HWTS.Seconds, int64(m.HWTS.Nanoseconds))
}

func (m *Message) String() string {
	return fmt.Sprintf("%s seq=%d from=%s", m.MessageType, m.SequenceID, m.SourcePortIdentity)
}
