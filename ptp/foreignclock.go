package ptp

import (
	"time"

	"github.com/AndrewLester/ptpal/bmc"
	"github.com/AndrewLester/ptpal/wire"
)

// ForeignMasterThreshold is the qualification count a ForeignClock needs
// before it is eligible to be selected as best (IEEE 1588 clause 9.3.2.5).
const ForeignMasterThreshold = 2

// ForeignClock is one remote master candidate's bounded, time-windowed
// Announce history plus the dataset distilled from it at selection time.
type ForeignClock struct {
	Sender   wire.PortIdentity
	messages []*wire.Message // newest at head
	Dataset  bmc.Dataset

	port *Port
}

func newForeignClock(port *Port, sender wire.PortIdentity) *ForeignClock {
	return &ForeignClock{Sender: sender, port: port}
}

// NMessages reports the number of retained Announce messages.
func (f *ForeignClock) NMessages() int { return len(f.messages) }

// Clear releases every retained message and empties the queue.
func (f *ForeignClock) Clear() {
	for _, m := range f.messages {
		m.Release()
	}
	f.messages = nil
}

// isCurrent reports whether msg is within 4 * 2^logMessageInterval seconds
// of now, the PTP "four announce intervals" currency rule.
func isCurrent(msg *wire.Message, now time.Time) bool {
	window := 4 * (time.Second << uint(shiftFor(msg.LogMessageInterval)))
	return now.Sub(msg.HostCapture()) < window
}

// shiftFor turns a logMessageInterval into the left-shift 2^n it encodes,
// clamping negative values to 0 so a sub-second interval doesn't underflow
// into a negative shift.
func shiftFor(logInterval int8) uint {
	if logInterval < 0 {
		return 0
	}
	return uint(logInterval)
}

// Prune drops the oldest messages past ForeignMasterThreshold, then drops
// any remaining stale tail.
func (f *ForeignClock) Prune(now time.Time) {
	for len(f.messages) > ForeignMasterThreshold {
		tail := len(f.messages) - 1
		f.messages[tail].Release()
		f.messages = f.messages[:tail]
	}
	for len(f.messages) > 0 && !isCurrent(f.messages[len(f.messages)-1], now) {
		tail := len(f.messages) - 1
		f.messages[tail].Release()
		f.messages = f.messages[:tail]
	}
}

// Add prepends msg at the head, acquiring a reference. Callers are
// responsible for pruning before or after, depending on which admission
// path is adding the message.
func (f *ForeignClock) Add(msg *wire.Message) {
	f.messages = append([]*wire.Message{msg.Retain()}, f.messages...)
}

// Newest returns the most recently added message, or nil if the queue is
// empty.
func (f *ForeignClock) Newest() *wire.Message {
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[0]
}
