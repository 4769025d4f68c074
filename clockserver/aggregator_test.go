package clockserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AndrewLester/ptpal/bmc"
	"github.com/AndrewLester/ptpal/fsm"
	"github.com/AndrewLester/ptpal/ptp"
	"github.com/AndrewLester/ptpal/wire"
)

// fakeTransport satisfies ptp.Transport without touching any real network
// interface, so Reconcile's port wiring can be exercised in isolation.
type fakeTransport struct{}

func (fakeTransport) Open(name string, ts ptp.TimestampMode) (ptp.FDA, error) {
	return ptp.FDA{100, 101}, nil
}
func (fakeTransport) Close(fda ptp.FDA) error { return nil }
func (fakeTransport) Send(fda ptp.FDA, eventChannel bool, msg *wire.Message) (int, error) {
	return 0, nil
}
func (fakeTransport) Recv(fd int, ts ptp.TimestampMode) (*wire.Message, error) {
	return nil, nil
}

func identity(b byte) wire.ClockIdentity {
	return wire.ClockIdentity{b, b, b, b, b, b, b, b}
}

func newQualifiedAnnounce(sender wire.PortIdentity, seq uint16, hostCapture time.Time) *wire.Message {
	m := wire.Allocate()
	m.MessageType = wire.Announce
	m.SourcePortIdentity = sender
	m.SequenceID = seq
	m.LogMessageInterval = 1
	m.HWTS = wire.HWTimestamp{Seconds: hostCapture.Unix()}
	m.Body = &wire.Announce{Priority1: 128, Priority2: 128, GrandmasterIdentity: sender.ClockIdentity}
	return m
}

func TestReconcilePicksWinnerAcrossPorts(t *testing.T) {
	clock := New(identity(1), 0)

	p1, err := ptp.Open("eth0", 1, fakeTransport{}, wire.DefaultCodec, clock, fsm.Default, bmc.Default, ptp.DelayMechanismE2E, ptp.TimestampSoftware)
	require.NoError(t, err)
	p2, err := ptp.Open("eth1", 2, fakeTransport{}, wire.DefaultCodec, clock, fsm.Default, bmc.Default, ptp.DelayMechanismE2E, ptp.TimestampSoftware)
	require.NoError(t, err)

	sender := wire.PortIdentity{ClockIdentity: identity(9), PortNumber: 1}
	m1 := newQualifiedAnnounce(sender, 1, time.Now().Add(-1*time.Second))
	m2 := newQualifiedAnnounce(sender, 2, time.Now())
	p1.AddForeignMaster(m1)
	p1.AddForeignMaster(m2)
	m1.Release()
	m2.Release()

	clock.Reconcile()

	require.Equal(t, fsm.Uncalibrated, p1.State())
	require.Equal(t, fsm.Passive, p2.State())
	require.True(t, clock.ParentIdentity().Equal(sender))
}

func TestReconcileWithNoQualifiedMasterMakesEveryPortGrandmaster(t *testing.T) {
	clock := New(identity(2), 0)

	p1, err := ptp.Open("eth0", 1, fakeTransport{}, wire.DefaultCodec, clock, fsm.Default, bmc.Default, ptp.DelayMechanismE2E, ptp.TimestampSoftware)
	require.NoError(t, err)

	clock.Reconcile()

	require.Equal(t, fsm.GrandMaster, p1.State())
	require.True(t, clock.ParentIdentity().Equal(wire.PortIdentity{ClockIdentity: identity(2), PortNumber: 0}))
}

func TestOffsetSecondsCombinesDeltaAndCorrections(t *testing.T) {
	a := wire.Timestamp{SecondsField: 90}
	b := wire.Timestamp{SecondsField: 100}
	// 500 ns + 500 ns of correction, in scaled (2^-16) nanoseconds.
	offset := offsetSeconds(a, b, 500*65536, 500*65536)
	require.InDelta(t, 10.000001, offset, 1e-9)
}
