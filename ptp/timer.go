package ptp

import "time"

// timer is a single-shot monotonic timer exposed as a pollable descriptor;
// each port owns two of them (announce, delay). Its concrete implementation
// is platform-specific (timer_linux.go uses timerfd).
type timer interface {
	FD() int
	// Arm schedules exactly one fire after d. Arming is idempotent:
	// calling Arm again before expiry replaces the pending fire.
	Arm(d time.Duration) error
	// Disarm cancels any pending fire without closing the descriptor.
	Disarm() error
	Close() error
}
