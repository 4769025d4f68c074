// Package clockserver implements the clock aggregator that sits outside
// the per-port core: it owns system time and the discipline servo, and
// runs the Best Master Clock algorithm across every registered port. It
// is adapted from NTPalSystem/localClock's state machine
// (pkg/ntpal/ntpal.go), generalized from NTP's scalar offset sample to
// PTP's (t1,t2,c1,c2)/(t3,t4,correction) sample pairs.
package clockserver

import (
	"sync"

	"github.com/apex/log"

	"github.com/AndrewLester/ptpal/ptp"
	"github.com/AndrewLester/ptpal/wire"
)

// Clock is the concrete ptp.Clock every Port on this system shares.
type Clock struct {
	mu sync.Mutex

	identity     wire.ClockIdentity
	domainNumber uint8

	parent wire.PortIdentity
	servo  *servo

	ports map[*ptp.Port]ptp.FDA

	log log.Interface
}

// New creates a Clock identified by identity, serving the given PTP
// domain. The clock starts as its own parent (grandmaster-capable, free
// running) until BMC selects a better foreign master.
func New(identity wire.ClockIdentity, domainNumber uint8) *Clock {
	c := &Clock{
		identity:     identity,
		domainNumber: domainNumber,
		servo:        newServo(),
		ports:        make(map[*ptp.Port]ptp.FDA),
		log:          log.WithField("component", "clockserver"),
	}
	c.parent = wire.PortIdentity{ClockIdentity: identity, PortNumber: 0}
	return c
}

func (c *Clock) Identity() wire.ClockIdentity { return c.identity }

func (c *Clock) ParentIdentity() wire.PortIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parent
}

func (c *Clock) DomainNumber() uint8 { return c.domainNumber }

// InstallFDA registers a port's descriptor array with the clock so the
// external supervisor's multiplexer can poll it.
func (c *Clock) InstallFDA(port *ptp.Port, fda ptp.FDA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ports[port] = fda
}

// Ports returns a snapshot of every registered port, for the supervisor's
// poll loop and for Reconcile's cross-port BMC pass.
func (c *Clock) Ports() []*ptp.Port {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ptp.Port, 0, len(c.ports))
	for p := range c.ports {
		out = append(out, p)
	}
	return out
}

// setParent updates the clock's notion of which port identity it follows,
// called by Reconcile once BMC picks a winner.
func (c *Clock) setParent(id wire.PortIdentity) {
	c.mu.Lock()
	c.parent = id
	c.mu.Unlock()
}

// Synchronize feeds one Sync/Follow_Up sample pair to the servo.
func (c *Clock) Synchronize(t1, t2 wire.Timestamp, c1, c2 int64) {
	offset := offsetSeconds(t1, t2, c1, c2)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.servo.disciplineOffset(offset)
	c.log.WithField("offset_us", offset*1e6).Debug("synchronize")
}

// PathDelay feeds one Delay_Req/Delay_Resp round trip to the servo.
func (c *Clock) PathDelay(t3, t4 wire.Timestamp, correction int64) {
	delay := offsetSeconds(t3, t4, 0, -correction)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.servo.disciplinePathDelay(delay)
}

// offsetSeconds converts a (t1,t2,c1,c2) timestamp quadruple into a
// floating-point seconds offset: (t2 - t1) plus the accumulated
// correction fields, which are scaled nanoseconds.
func offsetSeconds(a, b wire.Timestamp, c1, c2 int64) float64 {
	da := float64(a.SecondsField) + float64(a.NanosecondsField)*1e-9
	db := float64(b.SecondsField) + float64(b.NanosecondsField)*1e-9
	correction := float64(c1+c2) * 1e-9 / 65536 // correctionField is in scaled (2^-16) ns
	return (db - da) + correction
}
