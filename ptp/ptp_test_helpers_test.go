package ptp

import (
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"

	"github.com/AndrewLester/ptpal/bmc"
	"github.com/AndrewLester/ptpal/fsm"
	"github.com/AndrewLester/ptpal/wire"
)

func init() {
	log.SetHandler(discard.Default)
}

// syncCall records one Clock.Synchronize invocation for scenario assertions.
type syncCall struct {
	t1, t2 wire.Timestamp
	c1, c2 int64
}

type delayCall struct {
	t3, t4     wire.Timestamp
	correction int64
}

// fakeClock is the Clock collaborator test double: it records every
// Synchronize/PathDelay call instead of driving a real servo.
type fakeClock struct {
	identity wire.ClockIdentity
	parent   wire.PortIdentity
	domain   uint8

	syncCalls  []syncCall
	delayCalls []delayCall
}

func (c *fakeClock) Identity() wire.ClockIdentity        { return c.identity }
func (c *fakeClock) ParentIdentity() wire.PortIdentity   { return c.parent }
func (c *fakeClock) DomainNumber() uint8                 { return c.domain }
func (c *fakeClock) InstallFDA(port *Port, fda FDA)      {}
func (c *fakeClock) Synchronize(t1, t2 wire.Timestamp, c1, c2 int64) {
	c.syncCalls = append(c.syncCalls, syncCall{t1, t2, c1, c2})
}
func (c *fakeClock) PathDelay(t3, t4 wire.Timestamp, correction int64) {
	c.delayCalls = append(c.delayCalls, delayCall{t3, t4, correction})
}

// fakeTimer is a no-op timer double: tests drive Port fields directly rather
// than through Open, so nothing here needs to touch a real timerfd.
type fakeTimer struct {
	armed   bool
	armedAt time.Duration
}

func (t *fakeTimer) FD() int { return -1 }
func (t *fakeTimer) Arm(d time.Duration) error {
	t.armed = true
	t.armedAt = d
	return nil
}
func (t *fakeTimer) Disarm() error {
	t.armed = false
	return nil
}
func (t *fakeTimer) Close() error { return nil }

// newTestPort builds a Port bypassing Open, so tests exercise the message
// processors and foreign-master table directly without a real transport or
// timerfd.
func newTestPort(state fsm.State, clock Clock) *Port {
	self := wire.PortIdentity{ClockIdentity: clock.Identity(), PortNumber: 1}
	return &Port{
		Name:                    "test0",
		PortIdentity:            self,
		state:                   state,
		clock:                   clock,
		fsmTable:                fsm.Default,
		bmcTable:                bmc.Default,
		announceTimer:           &fakeTimer{},
		delayTimer:              &fakeTimer{},
		logMinDelayReqInterval:  DefaultLogMinDelayReqInterval,
		logAnnounceInterval:     DefaultLogAnnounceInterval,
		announceReceiptTimeout:  DefaultAnnounceReceiptTimeout,
		logSyncInterval:         DefaultLogSyncInterval,
		logMinPdelayReqInterval: DefaultLogMinPdelayReqInterval,
		versionNumber:           wire.VersionPTP,
		log:                     log.WithField("port", "test0"),
	}
}

// newAnnounce builds a decoded Announce message from sender, as if just
// produced by wire.Decode, current as of hostCapture.
func newAnnounce(sender wire.PortIdentity, seq uint16, priority1 uint8, hostCapture time.Time) *wire.Message {
	m := wire.Allocate()
	m.MessageType = wire.Announce
	m.SourcePortIdentity = sender
	m.SequenceID = seq
	m.LogMessageInterval = DefaultLogAnnounceInterval
	m.HWTS = wire.HWTimestamp{Seconds: hostCapture.Unix(), Nanoseconds: int32(hostCapture.Nanosecond())}
	m.Body = &wire.Announce{
		Priority1:           priority1,
		Priority2:           128,
		GrandmasterIdentity: sender.ClockIdentity,
		StepsRemoved:        0,
		GrandmasterClockQuality: wire.ClockQuality{
			ClockClass:    248,
			ClockAccuracy: 0xfe,
		},
	}
	return m
}

func newSync(sender wire.PortIdentity, seq uint16, twoStep bool, t2Seconds int64, correction int64) *wire.Message {
	m := wire.Allocate()
	m.MessageType = wire.Sync
	m.SourcePortIdentity = sender
	m.SequenceID = seq
	m.CorrectionField = correction
	if twoStep {
		m.FlagField |= wire.FlagTwoStep
	}
	m.HWTS = wire.HWTimestamp{Seconds: t2Seconds}
	m.Body = &wire.Sync{}
	return m
}

func newFollowUp(sender wire.PortIdentity, seq uint16, t1Seconds int64, correction int64) *wire.Message {
	m := wire.Allocate()
	m.MessageType = wire.FollowUp
	m.SourcePortIdentity = sender
	m.SequenceID = seq
	m.CorrectionField = correction
	m.PDU = wire.Timestamp{SecondsField: uint64(t1Seconds)}
	m.Body = &wire.FollowUp{PreciseOriginTimestamp: m.PDU}
	return m
}

func newDelayResp(sender, requester wire.PortIdentity, seq uint16, t4Seconds int64, correction int64) *wire.Message {
	m := wire.Allocate()
	m.MessageType = wire.DelayResp
	m.SourcePortIdentity = sender
	m.SequenceID = seq
	m.CorrectionField = correction
	m.PDU = wire.Timestamp{SecondsField: uint64(t4Seconds)}
	m.Body = &wire.DelayResp{
		ReceiveTimestamp:       m.PDU,
		RequestingPortIdentity: requester,
	}
	return m
}

func newDelayReq(self wire.PortIdentity, seq uint16, t3Seconds int64) *wire.Message {
	m := wire.Allocate()
	m.MessageType = wire.DelayReq
	m.SourcePortIdentity = self
	m.SequenceID = seq
	m.HWTS = wire.HWTimestamp{Seconds: t3Seconds}
	m.Body = &wire.DelayReq{}
	return m
}
