// Package bmc implements the dataset comparison used to rank candidate
// foreign masters (IEEE 1588-2008 clause 9.3.4, "data set comparison
// algorithm"). Package ptp calls this through the ptp.BMC interface; it
// never depends on ptp.
package bmc

import (
	"bytes"

	"github.com/AndrewLester/ptpal/wire"
)

// Dataset is the comparison key: enough of an Announce, plus context
// about who sent it and who received it, to rank one candidate master
// against another or against the local clock's own dataset.
type Dataset struct {
	Priority1               uint8
	GrandmasterIdentity     wire.ClockIdentity
	GrandmasterClockQuality wire.ClockQuality
	Priority2               uint8
	StepsRemoved            uint16
	Sender                  wire.PortIdentity
	Receiver                wire.PortIdentity
}

// FromAnnounce projects a decoded Announce message into a Dataset for use
// by port_compute_best.
func FromAnnounce(msg *wire.Message, receiver wire.PortIdentity) Dataset {
	a := msg.Announce()
	return Dataset{
		Priority1:               a.Priority1,
		GrandmasterIdentity:     a.GrandmasterIdentity,
		GrandmasterClockQuality: a.GrandmasterClockQuality,
		Priority2:               a.Priority2,
		StepsRemoved:            a.StepsRemoved,
		Sender:                  msg.SourcePortIdentity,
		Receiver:                receiver,
	}
}

// Comparator is the collaborator contract package ptp depends on.
type Comparator interface {
	// Compare returns positive when a is better than b, negative when b
	// is better, zero when neither dominates by this metric (callers
	// should then fall back to identity/steps-removed as a tiebreak,
	// which Compare already does internally).
	Compare(a, b Dataset) int
}

// Default implements the clause-9.3.4 ordering: grandmaster identity match
// first (steps-removed tiebreak within the same grandmaster), then
// priority1, clock class, clock accuracy, offsetScaledLogVariance,
// priority2, and finally grandmasterIdentity as an arbitrary total-order
// tiebreak so Compare is never zero for distinct grandmasters.
var Default Comparator = defaultComparator{}

type defaultComparator struct{}

func (defaultComparator) Compare(a, b Dataset) int {
	if a.GrandmasterIdentity == b.GrandmasterIdentity {
		// Same grandmaster: prefer fewer steps removed, then the
		// sender with the lower clock identity.
		if a.StepsRemoved != b.StepsRemoved {
			return int(b.StepsRemoved) - int(a.StepsRemoved)
		}
		return bytes.Compare(b.Sender.ClockIdentity[:], a.Sender.ClockIdentity[:])
	}

	if d := int(b.Priority1) - int(a.Priority1); d != 0 {
		return d
	}
	if d := int(b.GrandmasterClockQuality.ClockClass) - int(a.GrandmasterClockQuality.ClockClass); d != 0 {
		return d
	}
	if d := int(b.GrandmasterClockQuality.ClockAccuracy) - int(a.GrandmasterClockQuality.ClockAccuracy); d != 0 {
		return d
	}
	if d := int(b.GrandmasterClockQuality.OffsetScaledLogVariance) - int(a.GrandmasterClockQuality.OffsetScaledLogVariance); d != 0 {
		return d
	}
	if d := int(b.Priority2) - int(a.Priority2); d != 0 {
		return d
	}
	return bytes.Compare(b.GrandmasterIdentity[:], a.GrandmasterIdentity[:])
}
