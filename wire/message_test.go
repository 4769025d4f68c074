package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetainReleaseRefCounting(t *testing.T) {
	m := Allocate()
	assert.EqualValues(t, 1, m.RefCount())

	m.Retain()
	assert.EqualValues(t, 2, m.RefCount())

	m.Release()
	assert.EqualValues(t, 1, m.RefCount())

	m.Release()
	assert.EqualValues(t, 0, m.RefCount())
}

func TestReleaseAndRetainAreNilSafe(t *testing.T) {
	var m *Message
	assert.NotPanics(t, func() {
		m.Release()
		assert.Nil(t, m.Retain())
	})
}

func TestAllocateResetsState(t *testing.T) {
	m := Allocate()
	m.SequenceID = 99
	m.Body = &Sync{}
	m.Release()

	fresh := Allocate()
	defer fresh.Release()
	assert.Zero(t, fresh.SequenceID)
	assert.Nil(t, fresh.Body)
}

func TestTimestampBigEndianRoundTrip(t *testing.T) {
	ts := Timestamp{SecondsField: 0x0000123456789abc & 0xffffffffffff, NanosecondsField: 999999999}
	encoded := ts.EncodeBigEndian()
	decoded := DecodeTimestampBigEndian(encoded[:])
	assert.Equal(t, ts, decoded)
}
