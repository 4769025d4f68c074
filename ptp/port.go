package ptp

import (
	"fmt"
	"time"

	"github.com/apex/log"

	"github.com/AndrewLester/ptpal/bmc"
	"github.com/AndrewLester/ptpal/fsm"
	"github.com/AndrewLester/ptpal/wire"
)

// Default protocol interval knobs.
const (
	DefaultLogMinDelayReqInterval  int8 = 0
	DefaultLogAnnounceInterval    int8 = 1
	DefaultAnnounceReceiptTimeout uint8 = 3
	DefaultLogSyncInterval        int8 = 0
	DefaultLogMinPdelayReqInterval int8 = 2
)

// logMinDelayReqIntervalMin and logMinDelayReqIntervalMax bound an adopted
// logMinDelayReqInterval to a sane range before use. Adoption from an incoming Delay_Resp is otherwise
// unvalidated; this clamp keeps a hostile or buggy master from pushing the
// slave's probe interval outside a sane range.
const (
	logMinDelayReqIntervalMin int8 = -10
	logMinDelayReqIntervalMax int8 = 10
)

// DelayMechanism selects how a port measures path delay. Only End-to-end
// is implemented; peer-delay is a named Non-goal.
type DelayMechanism uint8

const (
	DelayMechanismE2E DelayMechanism = iota
)

// Port is the central per-interface aggregate: the state machine, the
// foreign-master table, the two protocol timers, and the short-lived
// two-step reconciliation memory (last_sync/last_follow_up/delay_req).
type Port struct {
	Name           string
	PortIdentity   wire.PortIdentity
	state          fsm.State

	clock     Clock
	transport Transport
	codec     Codec
	fsmTable  FSMTable
	bmcTable  BMC

	timestamping TimestampMode
	fda          FDA

	announceTimer timer
	delayTimer    timer

	logMinDelayReqInterval  int8
	logAnnounceInterval     int8
	announceReceiptTimeout  uint8
	logSyncInterval         int8
	logMinPdelayReqInterval int8
	delayMechanism          DelayMechanism
	versionNumber           uint8

	foreignMasters []*ForeignClock
	best           *ForeignClock

	lastSync      *wire.Message
	lastFollowUp  *wire.Message
	delayReq      *wire.Message
	seqnum        uint16

	stats Stats

	log log.Interface
}

// Stats are the rx/tx per-message-type counters, modeled on ptp4l's
// portStats bookkeeping.
type Stats struct {
	RxMsgType [16]uint64
	TxMsgType [16]uint64
}

// Open creates a Port in state INITIALIZING and immediately dispatches it
// through port initialization to LISTENING, so a caller never observes a
// Port sitting in INITIALIZING once Open returns. If initialization fails,
// Open returns the error and no Port.
func Open(name string, portNumber uint16, transport Transport, codec Codec, clock Clock, fsmTable FSMTable, bmcTable BMC, delayMechanism DelayMechanism, ts TimestampMode) (*Port, error) {
	p := &Port{
		Name:                    name,
		PortIdentity:            wire.PortIdentity{ClockIdentity: clock.Identity(), PortNumber: portNumber},
		state:                   fsm.Initializing,
		clock:                   clock,
		transport:               transport,
		codec:                   codec,
		fsmTable:                fsmTable,
		bmcTable:                bmcTable,
		timestamping:            ts,
		logMinDelayReqInterval:  DefaultLogMinDelayReqInterval,
		logAnnounceInterval:     DefaultLogAnnounceInterval,
		announceReceiptTimeout:  DefaultAnnounceReceiptTimeout,
		logSyncInterval:         DefaultLogSyncInterval,
		logMinPdelayReqInterval: DefaultLogMinPdelayReqInterval,
		delayMechanism:          delayMechanism,
		versionNumber:           wire.VersionPTP,
		log:                     log.WithField("port", name),
	}

	if err := p.Dispatch(fsm.Initialize); err != nil {
		return nil, err
	}
	return p, nil
}

// initialize performs port initialization: create the two
// timer descriptors, ask the transport to open the interface, install the
// fixed slots, arm the announce timer, and register the FDA with the
// clock. Any failed step unwinds everything already acquired.
func (p *Port) initialize() error {
	announceTimer, err := newTimer()
	if err != nil {
		return fmt.Errorf("ptp: create announce timer: %w", err)
	}

	delayTimer, err := newTimer()
	if err != nil {
		announceTimer.Close()
		return fmt.Errorf("ptp: create delay timer: %w", err)
	}

	fda, err := p.transport.Open(p.Name, p.timestamping)
	if err != nil {
		announceTimer.Close()
		delayTimer.Close()
		return fmt.Errorf("ptp: open transport %s: %w", p.Name, err)
	}

	full := make(FDA, FDFirstTransport+len(fda))
	full[FDAnnounceTimer] = announceTimer.FD()
	full[FDDelayTimer] = delayTimer.FD()
	copy(full[FDFirstTransport:], fda)

	p.announceTimer = announceTimer
	p.delayTimer = delayTimer
	p.fda = full

	if err := p.announceTimer.Arm(p.announceInterval()); err != nil {
		p.transport.Close(fda)
		announceTimer.Close()
		delayTimer.Close()
		return fmt.Errorf("ptp: arm announce timer: %w", err)
	}

	p.clock.InstallFDA(p, p.fda)
	return nil
}

// Close releases every resource the port owns: retained messages, timer
// descriptors, and the transport's descriptors.
func (p *Port) Close() error {
	if p.best != nil {
		p.best.Clear()
	}
	for _, f := range p.foreignMasters {
		f.Clear()
	}
	p.lastSync.Release()
	p.lastFollowUp.Release()
	p.delayReq.Release()

	if p.announceTimer != nil {
		p.announceTimer.Close()
	}
	if p.delayTimer != nil {
		p.delayTimer.Close()
	}
	if p.transport != nil && p.fda != nil {
		return p.transport.Close(p.fda)
	}
	return nil
}

// State reports the port's current FSM state.
func (p *Port) State() fsm.State { return p.state }

// Stats returns a copy of the port's rx/tx message counters.
func (p *Port) Stats() Stats { return p.stats }

// FDA exposes the port's descriptor array for the external multiplexer.
func (p *Port) FDA() FDA { return p.fda }

func (p *Port) announceInterval() time.Duration {
	return time.Duration(p.announceReceiptTimeout) * (time.Second << uint(shiftFor(p.logAnnounceInterval)))
}

func (p *Port) delayInterval() time.Duration {
	return time.Second << uint(shiftFor(p.logMinDelayReqInterval+1))
}

// Dispatch is port_dispatch: compute next state via the external FSM
// table, perform initialization on the way through INITIALIZING, and
// apply the timer policy for the target state.
func (p *Port) Dispatch(event fsm.Event) error {
	next := p.fsmTable.Next(p.state, event)

	if next == fsm.Initializing {
		if err := p.initialize(); err != nil {
			p.log.WithError(err).Error("port initialization failed")
			p.state = fsm.Faulty
			return err
		}
		next = fsm.Listening
	}

	if next == p.state {
		return nil
	}

	p.log.WithField("from", p.state).WithField("to", next).Info("port state transition")
	p.applyTimerPolicy(next)
	p.state = next
	return nil
}

// applyTimerPolicy implements the table mapping target state to
// announce/delay timer arm-or-clear.
func (p *Port) applyTimerPolicy(next fsm.State) {
	switch next {
	case fsm.Initializing, fsm.Faulty, fsm.Disabled:
		p.clearTimer(p.announceTimer)
		p.clearTimer(p.delayTimer)
	case fsm.Listening, fsm.Passive:
		p.armTimer(p.announceTimer, p.announceInterval())
		p.clearTimer(p.delayTimer)
	case fsm.PreMaster, fsm.Master, fsm.GrandMaster:
		p.clearTimer(p.announceTimer)
		p.clearTimer(p.delayTimer)
	case fsm.Uncalibrated, fsm.Slave:
		p.armTimer(p.announceTimer, p.announceInterval())
		p.armTimer(p.delayTimer, p.delayInterval())
	}
}

func (p *Port) armTimer(t timer, d time.Duration) {
	if t == nil {
		return
	}
	if err := t.Arm(d); err != nil {
		p.log.WithError(err).Warn("failed to arm timer")
	}
}

func (p *Port) clearTimer(t timer) {
	if t == nil {
		return
	}
	if err := t.Disarm(); err != nil {
		p.log.WithError(err).Warn("failed to clear timer")
	}
}

// findForeignClock returns the record keyed by sender, or nil.
func (p *Port) findForeignClock(sender wire.PortIdentity) *ForeignClock {
	for _, f := range p.foreignMasters {
		if f.Sender.Equal(sender) {
			return f
		}
	}
	return nil
}

// AddForeignMaster is add_foreign_master: the admission
// routine run when an Announce arrives in a master-candidate state.
func (p *Port) AddForeignMaster(msg *wire.Message) bool {
	sender := msg.SourcePortIdentity
	f := p.findForeignClock(sender)
	if f == nil {
		// The first Announce from a new source is stored but never
		// reported as a change on its own.
		f = newForeignClock(p, sender)
		p.foreignMasters = append([]*ForeignClock{f}, p.foreignMasters...)
		f.Add(msg)
		return false
	}

	now := time.Now()
	f.Prune(now)
	brokeThreshold := f.NMessages() == ForeignMasterThreshold-1

	prev := f.Newest()
	f.Add(msg)

	if prev == nil {
		return brokeThreshold
	}
	return brokeThreshold || wire.AnnounceChanged(prev.Announce(), msg.Announce())
}

// UpdateCurrentMaster is update_current_master, used in
// SLAVE/UNCALIBRATED when the sender matches the current best.
func (p *Port) UpdateCurrentMaster(msg *wire.Message) bool {
	if p.best == nil || !p.best.Sender.Equal(msg.SourcePortIdentity) {
		return p.AddForeignMaster(msg)
	}

	p.armTimer(p.announceTimer, p.announceInterval())

	f := p.best
	now := time.Now()
	f.Prune(now)
	prev := f.Newest()
	f.Add(msg)

	if prev == nil {
		return false
	}
	return wire.AnnounceChanged(prev.Announce(), msg.Announce())
}

// ComputeBest is port_compute_best: prune every record, skip unqualified
// ones, materialize a dataset from the newest qualifying message, and keep
// the best under the external BMC comparator. Losers have their queues
// cleared.
func (p *Port) ComputeBest() *ForeignClock {
	var best *ForeignClock
	var bestDataset bmc.Dataset
	now := time.Now()

	for _, f := range p.foreignMasters {
		f.Prune(now)
		if f.NMessages() < ForeignMasterThreshold {
			continue
		}

		ds := bmc.FromAnnounce(f.Newest(), p.clock.ParentIdentity())
		f.Dataset = ds

		if best == nil || p.bmcTable.Compare(ds, bestDataset) > 0 {
			if best != nil {
				best.Clear()
			}
			best = f
			bestDataset = ds
		} else {
			f.Clear()
		}
	}

	p.best = best
	return best
}

// BestForeign returns the dataset of the current best candidate, or false
// if none is qualified.
func (p *Port) BestForeign() (bmc.Dataset, bool) {
	if p.best == nil {
		return bmc.Dataset{}, false
	}
	return p.best.Dataset, true
}
