package clockserver

import "math"

// servo discipline states, adapted from NSET/FSET/SPIK/FREQ/
// SYNC clock states (pkg/ntpal/ntpal.go's localClock/rstclock), generalized
// from a single scalar NTP offset sample to the PTP offset/path-delay
// samples clockserver.Clock feeds in.
type servoState int

const (
	stateNeverSet servoState = iota
	stateFreqTraining
	stateSpike
	stateSync
)

const (
	// stepThreshold is the offset magnitude (seconds) above which the
	// servo steps the clock instead of slewing it.
	stepThreshold = 0.128
	// panicThreshold aborts discipline entirely above this offset.
	panicThreshold = 1000.0
	// pllGain is the denominator of the phase-lock frequency correction.
	pllGain = 16.0
)

// servo is a minimal offset/frequency discipline loop: it tracks a
// running frequency correction and applies either a step (large offset)
// or a slew (small offset) via the platform clock-set hook.
type servo struct {
	state     servoState
	offset    float64
	freq      float64
	lastDelay float64
}

func newServo() *servo {
	return &servo{state: stateNeverSet}
}

// disciplineOffset is localClock generalized: decide whether to step or
// slew, and advance the discipline state machine.
func (s *servo) disciplineOffset(offset float64) {
	if math.Abs(offset) > panicThreshold {
		// A PTP offset this large indicates a misconfigured domain or
		// a stale parent; the supervisor layer decides whether to
		// re-run BMC, not this servo.
		return
	}

	if math.Abs(offset) > stepThreshold {
		// In SYNC, a single outlier is suppressed once before the
		// clock steps again, matching SPIK handling.
		if s.state == stateSync {
			s.state = stateSpike
			return
		}
		if s.state == stateFreqTraining {
			s.freq = offset - s.offset
		}
		stepClock(offset)
		s.offset = offset
		s.state = stateSync
		return
	}

	switch s.state {
	case stateNeverSet:
		stepClock(offset)
		s.state = stateFreqTraining
	default:
		s.freq += (offset - s.offset) / pllGain
		s.state = stateSync
		applyFrequency(s.freq)
	}
	s.offset = offset
}

// disciplinePathDelay records the most recent measured one-way path
// delay. A future asymmetry-correction hook would scale this value by a
// configurable asymmetry factor; no correction is applied here, matching
// IEEE 1588's own default of zero delay asymmetry.
func (s *servo) disciplinePathDelay(delay float64) {
	s.lastDelay = delay
}
