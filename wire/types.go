// Package wire implements the IEEE 1588-2008 (PTPv2) message codec: the
// on-wire structures, big-endian encode/decode, and a reference-counted
// message handle. It is the "message codec" collaborator the port engine
// in package ptp consumes through an interface; nothing in this package
// depends on ptp.
package wire

import (
	"encoding/binary"
	"fmt"
)

// VersionPTP is the only wire version this codec understands.
const VersionPTP = 2

// MessageType identifies the PTP message body carried after the header.
type MessageType uint8

const (
	Sync MessageType = iota
	DelayReq
	PdelayReq
	PdelayResp
	_
	_
	_
	_
	FollowUp
	DelayResp
	PdelayRespFollowUp
	Announce
	Signaling
	Management
)

func (t MessageType) String() string {
	switch t {
	case Sync:
		return "SYNC"
	case DelayReq:
		return "DELAY_REQ"
	case PdelayReq:
		return "PDELAY_REQ"
	case PdelayResp:
		return "PDELAY_RESP"
	case FollowUp:
		return "FOLLOW_UP"
	case DelayResp:
		return "DELAY_RESP"
	case PdelayRespFollowUp:
		return "PDELAY_RESP_FOLLOW_UP"
	case Announce:
		return "ANNOUNCE"
	case Signaling:
		return "SIGNALING"
	case Management:
		return "MANAGEMENT"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// ClockIdentity is the EUI-64 style identifier of a clock.
type ClockIdentity [8]byte

func (c ClockIdentity) String() string {
	return fmt.Sprintf("%02x%02x%02x.%02x%02x.%02x%02x%02x", c[0], c[1], c[2], c[3], c[4], c[5], c[6], c[7])
}

// PortIdentity names a port on a clock: clockIdentity + portNumber.
// Equality is plain field comparison.
type PortIdentity struct {
	ClockIdentity ClockIdentity
	PortNumber    uint16
}

func (p PortIdentity) Equal(o PortIdentity) bool {
	return p.ClockIdentity == o.ClockIdentity && p.PortNumber == o.PortNumber
}

func (p PortIdentity) String() string {
	return fmt.Sprintf("%s-%d", p.ClockIdentity, p.PortNumber)
}

// ClockQuality is the grandmaster/clock quality triple carried in Announce
// and used by the BMC comparator.
type ClockQuality struct {
	ClockClass              uint8
	ClockAccuracy           uint8
	OffsetScaledLogVariance uint16
}

// Timestamp is the on-wire origin/receive timestamp carried inside a
// message body: 48-bit seconds, 32-bit nanoseconds.
type Timestamp struct {
	SecondsField     uint64 // low 48 bits significant
	NanosecondsField uint32
}

// EncodeBigEndian packs the timestamp as
// seconds_msb:16 | seconds_lsb:32 | nanoseconds:32.
func (t Timestamp) EncodeBigEndian() [10]byte {
	var out [10]byte
	binary.BigEndian.PutUint16(out[0:2], uint16(t.SecondsField>>32))
	binary.BigEndian.PutUint32(out[2:6], uint32(t.SecondsField))
	binary.BigEndian.PutUint32(out[6:10], t.NanosecondsField)
	return out
}

// DecodeTimestampBigEndian is the inverse of EncodeBigEndian.
func DecodeTimestampBigEndian(b []byte) Timestamp {
	msb := uint64(binary.BigEndian.Uint16(b[0:2]))
	lsb := uint64(binary.BigEndian.Uint32(b[2:6]))
	return Timestamp{
		SecondsField:     (msb << 32) | lsb,
		NanosecondsField: binary.BigEndian.Uint32(b[6:10]),
	}
}

// HWTimestamp is the hardware/software egress-ingress timestamp captured by
// the transport, distinct from the on-wire Timestamp carried in the PDU.
type HWTimestamp struct {
	Seconds     int64
	Nanoseconds int32
}

func (h HWTimestamp) AsTimestamp() Timestamp {
	return Timestamp{SecondsField: uint64(h.Seconds), NanosecondsField: uint32(h.Nanoseconds)}
}
