//go:build linux

package clockserver

import (
	"math"

	"golang.org/x/sys/unix"
)

// stepClock jumps the system clock by offset seconds immediately, adapted
// from cmd/ntp/settimeofday's wrapper (unix.Settimeofday),
// generalized to accept a signed floating-point offset instead of a
// pre-split sec/usec pair.
func stepClock(offset float64) {
	sec, usec := splitSeconds(offset)
	tv := unix.Timeval{Sec: sec, Usec: usec}

	var now unix.Timeval
	unix.Gettimeofday(&now)
	next := unix.Timeval{
		Sec:  now.Sec + tv.Sec,
		Usec: now.Usec + tv.Usec,
	}
	unix.Settimeofday(&next)
}

// applyFrequency disciplines the kernel clock's running frequency,
// adapted from cmd/ntp/adjtime wrapper (unix.Adjtimex with
// ADJ_SETOFFSET), generalized to a frequency-only correction expressed in
// seconds/second rather than a one-shot offset.
func applyFrequency(freqCorrection float64) {
	buf := &unix.Timex{
		Freq:  int64(freqCorrection * (1 << 16) * 1e6),
		Modes: unix.ADJ_FREQUENCY,
	}
	unix.Adjtimex(buf)
}

func splitSeconds(offset float64) (sec int64, usec int64) {
	sec = int64(offset)
	usec = int64(math.Round((offset - float64(sec)) * 1e6))
	return sec, usec
}
