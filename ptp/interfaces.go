// Package ptp implements the per-port IEEE 1588-2008 (PTPv2) protocol
// engine: the Announce/Sync/Follow_Up/Delay_Req/Delay_Resp message
// processors, the foreign-master table, and the port state machine
// dispatch, for a single network interface ("port"). The clock
// aggregator, transport, and FSM transition table are external
// collaborators, consumed only through the interfaces in this file —
// package ptp never imports clockserver or udptransport.
package ptp

import (
	"github.com/AndrewLester/ptpal/bmc"
	"github.com/AndrewLester/ptpal/fsm"
	"github.com/AndrewLester/ptpal/wire"
)

// State and Event are re-exported so callers of package ptp don't need to
// import fsm directly just to read a Port's state or feed it an event.
type State = fsm.State
type Event = fsm.Event

// TimestampMode selects whether a transport should attempt hardware
// timestamp capture (SO_TIMESTAMPING) or fall back to a software
// timestamp taken at the syscall boundary.
type TimestampMode uint8

const (
	TimestampSoftware TimestampMode = iota
	TimestampHardware
)

// Fixed descriptor slots. Timer slots are stable across every port;
// transport slots start after them, so an external multiplexer can tell a
// timer fire from a network-ready descriptor without consulting the port.
const (
	FDAnnounceTimer = 0
	FDDelayTimer    = 1
	FDFirstTransport = 2
)

// FDA is the fixed-size descriptor array a Port owns: two timer slots,
// then whatever slots the transport fills in (typically an event socket
// and a general socket).
type FDA []int

// Transport is the collaborator that opens a named network interface and
// performs non-blocking send/recv, optionally capturing hardware egress/
// ingress timestamps.
type Transport interface {
	Open(name string, ts TimestampMode) (FDA, error)
	Close(fda FDA) error
	// Send transmits msg. eventChannel requests hardware egress timestamp
	// capture (the event port, UDP/319); general messages go out on the
	// general port (UDP/320) with no timestamp capture requested.
	Send(fda FDA, eventChannel bool, msg *wire.Message) (int, error)
	// Recv reads one frame from fd (one of fda's transport slots) into a
	// freshly allocated Message.
	Recv(fd int, ts TimestampMode) (*wire.Message, error)
}

// Codec is the message-buffer allocation/validation collaborator.
// Encode/Decode themselves live in package wire since they need no port
// state; Codec only wraps the pieces the core calls directly.
type Codec interface {
	Allocate() *wire.Message
	PreSend(msg *wire.Message) error
	PostRecv(msg *wire.Message, n int) error
}

// Clock is the clock-aggregator collaborator: owns system time and the
// servo, aggregates across every registered port.
type Clock interface {
	Identity() wire.ClockIdentity
	ParentIdentity() wire.PortIdentity
	DomainNumber() uint8
	InstallFDA(port *Port, fda FDA)
	// Synchronize feeds one Sync/Follow_Up sample pair to the servo.
	// t1 is the master's origin timestamp, t2 the local ingress
	// timestamp, c1/c2 the correction fields carried by Sync/Follow_Up
	// respectively.
	Synchronize(t1, t2 wire.Timestamp, c1, c2 int64)
	// PathDelay feeds one Delay_Req/Delay_Resp round trip to the servo.
	// t3 is the local egress timestamp of our Delay_Req, t4 the master's
	// receive timestamp carried in the Delay_Resp.
	PathDelay(t3, t4 wire.Timestamp, correction int64)
}

// BMC is the dataset comparator collaborator; package bmc supplies the
// default implementation.
type BMC interface {
	Compare(a, b bmc.Dataset) int
}

// FSMTable is the external pure transition function; package fsm supplies
// the default implementation. Kept as an interface here (rather than a
// bare function value) so tests can substitute a table that records every
// call.
type FSMTable interface {
	Next(state State, event Event) State
}
