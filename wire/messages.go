package wire

// FlagField bits of the big-endian two-byte flagField: bits 0-5 are the
// second octet, bits 8-10 the first.
const (
	FlagLeap61 uint16 = 1 << 0
	FlagLeap59 uint16 = 1 << 1
	FlagUTCOffsetValid uint16 = 1 << 2
	FlagPTPTimescale   uint16 = 1 << 3
	FlagTimeTraceable  uint16 = 1 << 4
	FlagFrequencyTraceable uint16 = 1 << 5

	FlagAlternateMaster uint16 = 1 << 8
	FlagTwoStep         uint16 = 1 << 9
	FlagUnicast         uint16 = 1 << 10
)

// Header is the common 34-byte PTP header shared by every message type.
type Header struct {
	TransportSpecific  uint8
	MessageType        MessageType
	VersionPTP         uint8
	MessageLength      uint16
	DomainNumber       uint8
	FlagField          uint16
	CorrectionField    int64 // scaled nanoseconds
	SourcePortIdentity PortIdentity
	SequenceID         uint16
	ControlField       uint8
	LogMessageInterval int8
}

// OneStep reports whether the two-step flag is clear, i.e. this Sync
// carries its own accurate origin timestamp and no Follow_Up will arrive.
func (h Header) OneStep() bool {
	return h.FlagField&FlagTwoStep == 0
}

// Announce is the master-advertisement message body (header fields already
// live on Message/Header; this is the Announce-specific suffix).
type Announce struct {
	OriginTimestamp     Timestamp
	CurrentUtcOffset    int16
	Priority1           uint8
	GrandmasterClockQuality ClockQuality
	Priority2           uint8
	GrandmasterIdentity ClockIdentity
	StepsRemoved        uint16
	TimeSource          uint8
}

// announceCompareRegion returns the contiguous byte-comparable region used
// by AnnounceChanged: {priority1, clockQuality, priority2, grandmasterIdentity, stepsRemoved}.
// It deliberately excludes originTimestamp/currentUtcOffset/timeSource, which
// are irrelevant to "did this Announce's dataset change".
func announceCompareRegion(a *Announce) [1 + 4 + 1 + 8 + 2]byte {
	var b [1 + 4 + 1 + 8 + 2]byte
	b[0] = a.Priority1
	b[1] = a.GrandmasterClockQuality.ClockClass
	b[2] = a.GrandmasterClockQuality.ClockAccuracy
	b[3] = byte(a.GrandmasterClockQuality.OffsetScaledLogVariance >> 8)
	b[4] = byte(a.GrandmasterClockQuality.OffsetScaledLogVariance)
	b[5] = a.Priority2
	copy(b[6:14], a.GrandmasterIdentity[:])
	b[14] = byte(a.StepsRemoved >> 8)
	b[15] = byte(a.StepsRemoved)
	return b
}

// AnnounceChanged is the bytewise comparison used by callers deciding
// whether a fresh Announce actually changed anything worth reacting to:
// true iff the dataset-relevant region of two Announces from the same
// sender differs.
func AnnounceChanged(a, b *Announce) bool {
	return announceCompareRegion(a) != announceCompareRegion(b)
}

// Sync carries only an origin timestamp; the header's two-step flag decides
// whether a Follow_Up completes it.
type Sync struct {
	OriginTimestamp Timestamp
}

// FollowUp carries the accurate origin timestamp for a preceding two-step Sync.
type FollowUp struct {
	PreciseOriginTimestamp Timestamp
}

// DelayReq carries only an origin timestamp field. PreSend does not fill
// it; the local egress time is recorded in Message.HWTS by the transport.
type DelayReq struct {
	OriginTimestamp Timestamp
}

// DelayResp answers a DelayReq with the ingress timestamp and identifies
// which requester it is for.
type DelayResp struct {
	ReceiveTimestamp        Timestamp
	RequestingPortIdentity  PortIdentity
}

// LogMessageIntervalUnspecified is the Delay_Req sentinel value meaning
// "unicast negotiation does not apply, use the configured interval".
const LogMessageIntervalUnspecified int8 = 0x7f
