package ptp

import (
	"github.com/AndrewLester/ptpal/fsm"
	"github.com/AndrewLester/ptpal/wire"
)

// Event is port_event: read one ready descriptor, decode or handle a timer
// fire, run the appropriate processor, and return the event that should
// drive the FSM.
func (p *Port) Event(fdIndex int) fsm.Event {
	switch fdIndex {
	case FDAnnounceTimer:
		drainTimer(p.announceTimer.FD())
		if p.best != nil {
			p.best.Clear()
		}
		p.armTimer(p.announceTimer, p.announceInterval())
		return fsm.AnnounceReceiptTimeoutExpires
	case FDDelayTimer:
		drainTimer(p.delayTimer.FD())
		p.armTimer(p.delayTimer, p.delayInterval())
		if err := p.sendDelayRequest(); err != nil {
			p.log.WithError(err).Warn("delay request send failed")
			return fsm.FaultDetected
		}
		return fsm.None
	default:
		return p.handleNetworkReady(fdIndex)
	}
}

func (p *Port) handleNetworkReady(fd int) fsm.Event {
	msg, err := p.transport.Recv(fd, p.timestamping)
	if err != nil {
		p.log.WithError(err).Error("receive failed")
		return fsm.FaultDetected
	}

	if err := p.codec.PostRecv(msg, int(msg.MessageLength)); err != nil {
		p.log.WithError(err).Debug("malformed frame discarded")
		msg.Release()
		return fsm.None
	}

	p.stats.RxMsgType[msg.MessageType&0x0f]++

	ev := p.process(msg)
	msg.Release()
	return ev
}

// process dispatches a decoded message to its processor by message type;
// each processor applies its own per-state gate.
func (p *Port) process(msg *wire.Message) fsm.Event {
	switch msg.MessageType {
	case wire.Announce:
		return p.processAnnounce(msg)
	case wire.Sync:
		p.processSync(msg)
	case wire.FollowUp:
		p.processFollowUp(msg)
	case wire.DelayReq:
		p.processDelayReqMaster(msg)
	case wire.DelayResp:
		p.processDelayResp(msg)
	}
	return fsm.None
}

func (p *Port) processAnnounce(msg *wire.Message) fsm.Event {
	var changed bool
	switch p.state {
	case fsm.Listening, fsm.PreMaster, fsm.Master, fsm.GrandMaster, fsm.Passive:
		changed = p.AddForeignMaster(msg)
	case fsm.Uncalibrated, fsm.Slave:
		changed = p.UpdateCurrentMaster(msg)
	default:
		return fsm.None
	}
	if changed {
		return fsm.StateDecisionEvent
	}
	return fsm.None
}

// processSync is process_sync.
func (p *Port) processSync(msg *wire.Message) {
	if p.state != fsm.Uncalibrated && p.state != fsm.Slave {
		return
	}
	if !msg.SourcePortIdentity.Equal(p.clock.ParentIdentity()) {
		return
	}

	if msg.IsOneStep() {
		p.clock.Synchronize(msg.PDU, msg.HWTS.AsTimestamp(), msg.CorrectionField, 0)
		return
	}

	if p.lastFollowUp != nil && p.lastFollowUp.SequenceID == msg.SequenceID {
		p.completeSync(msg, p.lastFollowUp)
		p.lastFollowUp.Release()
		p.lastFollowUp = nil
		return
	}

	p.lastSync.Release()
	p.lastSync = msg.Retain()
}

// processFollowUp is process_follow_up.
func (p *Port) processFollowUp(msg *wire.Message) {
	if p.state != fsm.Uncalibrated && p.state != fsm.Slave {
		return
	}
	if !msg.SourcePortIdentity.Equal(p.clock.ParentIdentity()) {
		return
	}

	if p.lastSync != nil && p.lastSync.SequenceID == msg.SequenceID {
		if !p.lastSync.SourcePortIdentity.Equal(msg.SourcePortIdentity) {
			return
		}
		p.completeSync(p.lastSync, msg)
		p.lastSync.Release()
		p.lastSync = nil
		return
	}

	p.lastFollowUp.Release()
	p.lastFollowUp = msg.Retain()
}

// completeSync invokes clock.Synchronize with the reconciled Sync/Follow_Up
// pair. Both processSync and processFollowUp route through this one call
// site so the pair is synchronized exactly once regardless of arrival
// order.
func (p *Port) completeSync(sync, followUp *wire.Message) {
	p.clock.Synchronize(followUp.PDU, sync.HWTS.AsTimestamp(), sync.CorrectionField, followUp.CorrectionField)
}

// processDelayReqMaster is process_delay_req, the master-side responder.
func (p *Port) processDelayReqMaster(msg *wire.Message) {
	if p.state != fsm.Master && p.state != fsm.GrandMaster {
		return
	}

	resp := p.codec.Allocate()
	resp.MessageType = wire.DelayResp
	resp.DomainNumber = msg.DomainNumber
	resp.CorrectionField = msg.CorrectionField
	resp.SourcePortIdentity = p.PortIdentity
	resp.SequenceID = msg.SequenceID
	resp.ControlField = uint8(wire.DelayResp)
	resp.LogMessageInterval = p.logMinDelayReqInterval
	resp.Body = &wire.DelayResp{
		ReceiveTimestamp:       msg.HWTS.AsTimestamp(),
		RequestingPortIdentity: msg.SourcePortIdentity,
	}

	if err := p.codec.PreSend(resp); err != nil {
		p.log.WithError(err).Warn("delay response pre-send failed")
		resp.Release()
		return
	}
	if _, err := p.transport.Send(p.fda, false, resp); err != nil {
		p.log.WithError(err).Warn("delay response send failed")
	} else {
		p.stats.TxMsgType[wire.DelayResp&0x0f]++
	}
	resp.Release()
}

// sendDelayRequest is port_delay_request, the slave-side probe sent when
// the delay timer fires.
func (p *Port) sendDelayRequest() error {
	msg := p.codec.Allocate()
	msg.MessageType = wire.DelayReq
	msg.DomainNumber = p.clock.DomainNumber()
	msg.SourcePortIdentity = p.PortIdentity
	msg.SequenceID = p.seqnum
	p.seqnum++
	msg.ControlField = uint8(wire.DelayReq)
	msg.LogMessageInterval = wire.LogMessageIntervalUnspecified
	msg.Body = &wire.DelayReq{}

	if err := p.codec.PreSend(msg); err != nil {
		msg.Release()
		return err
	}
	if _, err := p.transport.Send(p.fda, true, msg); err != nil {
		msg.Release()
		return err
	}
	p.stats.TxMsgType[wire.DelayReq&0x0f]++

	p.delayReq.Release()
	p.delayReq = msg
	return nil
}

// processDelayResp is process_delay_resp.
func (p *Port) processDelayResp(msg *wire.Message) {
	if p.delayReq == nil {
		return
	}
	if p.state != fsm.Uncalibrated && p.state != fsm.Slave {
		return
	}

	resp := msg.DelayResp()
	if !resp.RequestingPortIdentity.Equal(p.delayReq.SourcePortIdentity) {
		return
	}
	if msg.SequenceID != p.delayReq.SequenceID {
		return
	}

	p.clock.PathDelay(p.delayReq.HWTS.AsTimestamp(), msg.PDU, msg.CorrectionField)

	if msg.LogMessageInterval != p.logMinDelayReqInterval {
		p.logMinDelayReqInterval = clampLogMinDelayReqInterval(msg.LogMessageInterval)
	}

	p.delayReq.Release()
	p.delayReq = nil
}

func clampLogMinDelayReqInterval(v int8) int8 {
	if v < logMinDelayReqIntervalMin {
		return logMinDelayReqIntervalMin
	}
	if v > logMinDelayReqIntervalMax {
		return logMinDelayReqIntervalMax
	}
	return v
}
