//go:build linux

package ptp

import (
	"time"

	"golang.org/x/sys/unix"
)

// timerfdTimer is the Linux timer implementation, built on the same
// golang.org/x/sys/unix dependency pkg/ntp/system.go uses for
// unix.ClockGettime, generalized to unix.TimerfdCreate/Settime for the
// single-shot announce and delay timers each port needs.
type timerfdTimer struct {
	fd int
}

func newTimer() (timer, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &timerfdTimer{fd: fd}, nil
}

func (t *timerfdTimer) FD() int { return t.fd }

func (t *timerfdTimer) Arm(d time.Duration) error {
	spec := unix.ItimerSpec{
		Value: unix.NsecToTimespec(d.Nanoseconds()),
	}
	return unix.TimerfdSettime(t.fd, 0, &spec, nil)
}

func (t *timerfdTimer) Disarm() error {
	spec := unix.ItimerSpec{}
	return unix.TimerfdSettime(t.fd, 0, &spec, nil)
}

func (t *timerfdTimer) Close() error {
	return unix.Close(t.fd)
}

// drainTimer reads the expiration count off a fired timerfd so the next
// poll doesn't immediately re-fire on stale readiness, grounded on the
// standard timerfd read-to-rearm idiom.
func drainTimer(fd int) error {
	var buf [8]byte
	_, err := unix.Read(fd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}
