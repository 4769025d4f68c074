package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const headerLength = 34

// ErrShortFrame is returned by Decode when fewer bytes were received than
// the message's declared MessageLength requires.
var ErrShortFrame = fmt.Errorf("wire: short frame")

// ErrUnsupportedVersion is returned when a frame's versionPTP does not match
// VersionPTP.
var ErrUnsupportedVersion = fmt.Errorf("wire: unsupported PTP version")

// Encode serializes a Message's header and body to wire bytes. It is the
// codec's pre_send() step folded together with the actual byte production;
// callers needing pre_send validation only should call PreSend first.
func Encode(m *Message) ([]byte, error) {
	var buf bytes.Buffer

	firstByte := (m.TransportSpecific << 4) | uint8(m.MessageType)&0x0f
	versionByte := m.VersionPTP & 0x0f

	length, bodyBytes, err := encodeBody(m)
	if err != nil {
		return nil, err
	}
	m.MessageLength = uint16(headerLength) + uint16(length)

	binary.Write(&buf, binary.BigEndian, firstByte)
	binary.Write(&buf, binary.BigEndian, versionByte)
	binary.Write(&buf, binary.BigEndian, m.MessageLength)
	binary.Write(&buf, binary.BigEndian, m.DomainNumber)
	binary.Write(&buf, binary.BigEndian, uint8(0)) // reserved
	binary.Write(&buf, binary.BigEndian, m.FlagField)
	binary.Write(&buf, binary.BigEndian, m.CorrectionField)
	binary.Write(&buf, binary.BigEndian, uint32(0)) // reserved
	binary.Write(&buf, binary.BigEndian, m.SourcePortIdentity.ClockIdentity)
	binary.Write(&buf, binary.BigEndian, m.SourcePortIdentity.PortNumber)
	binary.Write(&buf, binary.BigEndian, m.SequenceID)
	binary.Write(&buf, binary.BigEndian, m.ControlField)
	binary.Write(&buf, binary.BigEndian, m.LogMessageInterval)
	buf.Write(bodyBytes)

	return buf.Bytes(), nil
}

func encodeBody(m *Message) (int, []byte, error) {
	switch m.MessageType {
	case Announce:
		a := m.Announce()
		var b bytes.Buffer
		ts := a.OriginTimestamp.EncodeBigEndian()
		b.Write(ts[:])
		binary.Write(&b, binary.BigEndian, a.CurrentUtcOffset)
		binary.Write(&b, binary.BigEndian, uint8(0)) // reserved
		binary.Write(&b, binary.BigEndian, a.Priority1)
		binary.Write(&b, binary.BigEndian, a.GrandmasterClockQuality.ClockClass)
		binary.Write(&b, binary.BigEndian, a.GrandmasterClockQuality.ClockAccuracy)
		binary.Write(&b, binary.BigEndian, a.GrandmasterClockQuality.OffsetScaledLogVariance)
		binary.Write(&b, binary.BigEndian, a.Priority2)
		binary.Write(&b, binary.BigEndian, a.GrandmasterIdentity)
		binary.Write(&b, binary.BigEndian, a.StepsRemoved)
		binary.Write(&b, binary.BigEndian, a.TimeSource)
		return b.Len(), b.Bytes(), nil
	case Sync:
		ts := m.Sync_().OriginTimestamp.EncodeBigEndian()
		return len(ts), ts[:], nil
	case FollowUp:
		ts := m.FollowUp().PreciseOriginTimestamp.EncodeBigEndian()
		return len(ts), ts[:], nil
	case DelayReq:
		ts := m.DelayReq().OriginTimestamp.EncodeBigEndian()
		return len(ts), ts[:], nil
	case DelayResp:
		d := m.DelayResp()
		var b bytes.Buffer
		ts := d.ReceiveTimestamp.EncodeBigEndian()
		b.Write(ts[:])
		binary.Write(&b, binary.BigEndian, d.RequestingPortIdentity.ClockIdentity)
		binary.Write(&b, binary.BigEndian, d.RequestingPortIdentity.PortNumber)
		return b.Len(), b.Bytes(), nil
	default:
		return 0, nil, fmt.Errorf("wire: encode: unsupported message type %s", m.MessageType)
	}
}

// Decode parses raw wire bytes into an already-allocated Message. Callers
// obtain the Message from Allocate() so the reference count and pool
// bookkeeping stay in one place.
func Decode(raw []byte, m *Message) error {
	if len(raw) < headerLength {
		return ErrShortFrame
	}

	firstByte := raw[0]
	m.TransportSpecific = firstByte >> 4
	m.MessageType = MessageType(firstByte & 0x0f)
	m.VersionPTP = raw[1] & 0x0f
	if m.VersionPTP != VersionPTP {
		return ErrUnsupportedVersion
	}
	m.MessageLength = binary.BigEndian.Uint16(raw[2:4])
	m.DomainNumber = raw[4]
	m.FlagField = binary.BigEndian.Uint16(raw[6:8])
	m.CorrectionField = int64(binary.BigEndian.Uint64(raw[8:16]))
	copy(m.SourcePortIdentity.ClockIdentity[:], raw[20:28])
	m.SourcePortIdentity.PortNumber = binary.BigEndian.Uint16(raw[28:30])
	m.SequenceID = binary.BigEndian.Uint16(raw[30:32])
	m.ControlField = raw[32]
	m.LogMessageInterval = int8(raw[33])

	if int(m.MessageLength) > len(raw) {
		return ErrShortFrame
	}
	body := raw[headerLength:m.MessageLength]

	switch m.MessageType {
	case Announce:
		if len(body) < 30 {
			return ErrShortFrame
		}
		a := &Announce{}
		a.OriginTimestamp = DecodeTimestampBigEndian(body[0:10])
		a.CurrentUtcOffset = int16(binary.BigEndian.Uint16(body[10:12]))
		a.Priority1 = body[13]
		a.GrandmasterClockQuality.ClockClass = body[14]
		a.GrandmasterClockQuality.ClockAccuracy = body[15]
		a.GrandmasterClockQuality.OffsetScaledLogVariance = binary.BigEndian.Uint16(body[16:18])
		a.Priority2 = body[18]
		copy(a.GrandmasterIdentity[:], body[19:27])
		a.StepsRemoved = binary.BigEndian.Uint16(body[27:29])
		a.TimeSource = body[29]
		m.Body = a
		m.PDU = a.OriginTimestamp
	case Sync:
		if len(body) < 10 {
			return ErrShortFrame
		}
		ts := DecodeTimestampBigEndian(body[0:10])
		m.Body = &Sync{OriginTimestamp: ts}
		m.PDU = ts
	case FollowUp:
		if len(body) < 10 {
			return ErrShortFrame
		}
		ts := DecodeTimestampBigEndian(body[0:10])
		m.Body = &FollowUp{PreciseOriginTimestamp: ts}
		m.PDU = ts
	case DelayReq:
		if len(body) < 10 {
			return ErrShortFrame
		}
		ts := DecodeTimestampBigEndian(body[0:10])
		m.Body = &DelayReq{OriginTimestamp: ts}
		m.PDU = ts
	case DelayResp:
		if len(body) < 20 {
			return ErrShortFrame
		}
		d := &DelayResp{}
		d.ReceiveTimestamp = DecodeTimestampBigEndian(body[0:10])
		copy(d.RequestingPortIdentity.ClockIdentity[:], body[10:18])
		d.RequestingPortIdentity.PortNumber = binary.BigEndian.Uint16(body[18:20])
		m.Body = d
		m.PDU = d.ReceiveTimestamp
	default:
		// Signaling/Management/Pdelay*: outside this core's scope
		//. Leave Body nil; the dispatcher
		// treats an unrecognized type as a malformed frame.
		return fmt.Errorf("wire: decode: unsupported message type %s", m.MessageType)
	}

	return nil
}

// PreSend runs codec validation before a message is handed off to the
// transport for sending: sets VersionPTP when it is unset and rejects a
// message with no body (kept separate from Encode, which fills
// MessageLength, so the core's
// process_delay_req/port_delay_request can call it independently of an
// actual send).
func PreSend(m *Message) error {
	if m.VersionPTP == 0 {
		m.VersionPTP = VersionPTP
	}
	if m.Body == nil {
		return fmt.Errorf("wire: pre_send: message has no body")
	}
	return nil
}

// Codec adapts the package-level Allocate/PreSend/PostRecv functions to the
// ptp.Codec collaborator interface, so package ptp never needs anything
// from wire beyond that interface.
type Codec struct{}

// DefaultCodec is the Codec every cmd/ptpal wiring path uses; kept as a
// value (not a singleton var of interface type) since Codec carries no
// state.
var DefaultCodec Codec

func (Codec) Allocate() *Message                 { return Allocate() }
func (Codec) PreSend(m *Message) error           { return PreSend(m) }
func (Codec) PostRecv(m *Message, n int) error   { return PostRecv(m, n) }

// PostRecv validates a just-decoded message. n is the frame length in
// bytes (package ptp passes the header's messageLength); anything shorter
// than the common header is rejected, as are an implausible domain number
// and a message that Decode left without a body.
func PostRecv(m *Message, n int) error {
	if n < headerLength {
		return ErrShortFrame
	}
	if m.DomainNumber > 127 {
		return fmt.Errorf("wire: post_recv: implausible domain number %d", m.DomainNumber)
	}
	if m.Body == nil {
		return fmt.Errorf("wire: post_recv: undecodable frame")
	}
	return nil
}
