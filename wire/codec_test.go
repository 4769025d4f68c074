package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeAnnounceRoundTrip(t *testing.T) {
	m := Allocate()
	defer m.Release()

	m.MessageType = Announce
	m.VersionPTP = VersionPTP
	m.DomainNumber = 0
	m.SourcePortIdentity = PortIdentity{ClockIdentity: ClockIdentity{1, 2, 3, 4, 5, 6, 7, 8}, PortNumber: 1}
	m.SequenceID = 5
	m.ControlField = uint8(Announce)
	m.LogMessageInterval = 1
	m.Body = &Announce{
		Priority1:           128,
		Priority2:           128,
		GrandmasterIdentity: ClockIdentity{9, 9, 9, 9, 9, 9, 9, 9},
		StepsRemoved:        2,
		GrandmasterClockQuality: ClockQuality{
			ClockClass:              6,
			ClockAccuracy:           0x20,
			OffsetScaledLogVariance: 0x4e5d,
		},
	}

	raw, err := Encode(m)
	require.NoError(t, err)

	decoded := Allocate()
	defer decoded.Release()
	require.NoError(t, Decode(raw, decoded))

	assert.Equal(t, m.SourcePortIdentity, decoded.SourcePortIdentity)
	assert.Equal(t, m.SequenceID, decoded.SequenceID)
	assert.Equal(t, m.LogMessageInterval, decoded.LogMessageInterval)

	a := decoded.Announce()
	original := m.Body.(*Announce)
	assert.Equal(t, original.Priority1, a.Priority1)
	assert.Equal(t, original.Priority2, a.Priority2)
	assert.Equal(t, original.GrandmasterIdentity, a.GrandmasterIdentity)
	assert.Equal(t, original.StepsRemoved, a.StepsRemoved)
	assert.Equal(t, original.GrandmasterClockQuality, a.GrandmasterClockQuality)
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	m := Allocate()
	defer m.Release()
	err := Decode([]byte{0, 0, 0}, m)
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	m := Allocate()
	defer m.Release()

	m.MessageType = Sync
	m.VersionPTP = VersionPTP
	m.Body = &Sync{}
	raw, err := Encode(m)
	require.NoError(t, err)
	raw[1] = 1 // versionPTP nibble

	decoded := Allocate()
	defer decoded.Release()
	assert.ErrorIs(t, Decode(raw, decoded), ErrUnsupportedVersion)
}

func TestPostRecvRejectsUndecodableFrame(t *testing.T) {
	m := Allocate()
	defer m.Release()
	m.Body = nil
	err := PostRecv(m, 34)
	assert.Error(t, err)
}

func TestPostRecvRejectsShortRead(t *testing.T) {
	m := Allocate()
	defer m.Release()
	m.Body = &Sync{}
	err := PostRecv(m, 10)
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestAnnounceChangedDetectsDatasetRelevantDelta(t *testing.T) {
	a := &Announce{Priority1: 128, GrandmasterIdentity: ClockIdentity{1}}
	b := &Announce{Priority1: 128, GrandmasterIdentity: ClockIdentity{1}}
	assert.False(t, AnnounceChanged(a, b))

	b.Priority1 = 129
	assert.True(t, AnnounceChanged(a, b))
}

func TestAnnounceChangedIgnoresOriginTimestamp(t *testing.T) {
	a := &Announce{Priority1: 128, OriginTimestamp: Timestamp{SecondsField: 1}}
	b := &Announce{Priority1: 128, OriginTimestamp: Timestamp{SecondsField: 2}}
	assert.False(t, AnnounceChanged(a, b))
}
