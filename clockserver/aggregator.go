package clockserver

import (
	"github.com/AndrewLester/ptpal/bmc"
	"github.com/AndrewLester/ptpal/fsm"
	"github.com/AndrewLester/ptpal/ptp"
	"github.com/AndrewLester/ptpal/wire"
)

// Reconcile re-runs BMC across every port registered with this clock. It
// is called once per StateDecisionEvent, the point at which each port's
// best-foreign result needs to be compared globally before any port is
// told to become MASTER, SLAVE, or PASSIVE.
func (c *Clock) Reconcile() {
	ports := c.Ports()

	var winner *ptp.Port
	var winnerDataset bmc.Dataset
	found := false

	for _, p := range ports {
		p.ComputeBest()
		ds, ok := p.BestForeign()
		if !ok {
			continue
		}
		if !found || bmc.Default.Compare(ds, winnerDataset) > 0 {
			winner = p
			winnerDataset = ds
			found = true
		}
	}

	if !found {
		// No qualified foreign master anywhere: every port is free to
		// become (or remain) a grandmaster candidate.
		for _, p := range ports {
			p.Dispatch(fsm.RSGrandMaster)
		}
		c.setParent(wire.PortIdentity{ClockIdentity: c.identity, PortNumber: 0})
		return
	}

	c.setParent(winnerDataset.Sender)
	for _, p := range ports {
		if p == winner {
			p.Dispatch(fsm.RSSlave)
			continue
		}
		p.Dispatch(fsm.RSPassive)
	}
}
