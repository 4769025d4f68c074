package ptpd

import (
	"time"

	"github.com/apex/log"
	"golang.org/x/sys/unix"

	"github.com/AndrewLester/ptpal/clockserver"
	"github.com/AndrewLester/ptpal/fsm"
	"github.com/AndrewLester/ptpal/ptp"
)

// Supervisor is the single-threaded external multiplexer
// requires: one goroutine polls the union of every registered port's
// descriptor set, and for whichever descriptor becomes ready, calls
// Port.Event then Port.Dispatch — grounded on single
// setupServer goroutine reading one socket in a loop
// (pkg/ntpal/ntpal.go), generalized here to unix.Poll across many
// descriptors spanning many ports.
type Supervisor struct {
	Clock *clockserver.Clock

	pollTimeoutMillis int
	log               log.Interface
}

// NewSupervisor returns a Supervisor driving every port registered with
// clock.
func NewSupervisor(clock *clockserver.Clock) *Supervisor {
	return &Supervisor{
		Clock:             clock,
		pollTimeoutMillis: 1000,
		log:               log.WithField("component", "supervisor"),
	}
}

// Run polls until stop is closed. Each iteration rebuilds the poll set
// from the clock's currently registered ports, since ports can be added
// or transition through Close over the supervisor's lifetime.
func (s *Supervisor) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		ports := s.Clock.Ports()
		if len(ports) == 0 {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		fds, owners := s.buildPollSet(ports)

		n, err := unix.Poll(fds, s.pollTimeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			s.log.WithError(err).Error("poll failed")
			continue
		}
		if n == 0 {
			continue
		}

		for i, pfd := range fds {
			if pfd.Revents == 0 {
				continue
			}
			owner := owners[i]
			event := owner.port.Event(owner.fdIndex)
			if err := owner.port.Dispatch(event); err != nil {
				s.log.WithError(err).WithField("port", owner.port.Name).Warn("dispatch failed")
			}
			if event == fsm.StateDecisionEvent {
				s.Clock.Reconcile()
			}
		}
	}
}

type pollOwner struct {
	port    *ptp.Port
	fdIndex int
}

func (s *Supervisor) buildPollSet(ports []*ptp.Port) ([]unix.PollFd, []pollOwner) {
	var fds []unix.PollFd
	var owners []pollOwner

	for _, p := range ports {
		fda := p.FDA()
		for idx, fd := range fda {
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
			owners = append(owners, pollOwner{port: p, fdIndex: idx})
		}
	}
	return fds, owners
}
