package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFaultDetectedAlwaysGoesToFaulty(t *testing.T) {
	for _, s := range []State{Listening, Master, Slave, Uncalibrated, PreMaster, Passive} {
		assert.Equal(t, Faulty, Default.Next(s, FaultDetected))
	}
}

func TestFaultClearedOnlyLeavesFaulty(t *testing.T) {
	assert.Equal(t, Initializing, Default.Next(Faulty, FaultCleared))
	assert.Equal(t, Listening, Default.Next(Listening, FaultCleared))
}

func TestInitializeAlwaysGoesToInitializing(t *testing.T) {
	assert.Equal(t, Initializing, Default.Next(Slave, Initialize))
	assert.Equal(t, Initializing, Default.Next(Faulty, PowerUp))
}

func TestDisabledIgnoresEverythingButEnable(t *testing.T) {
	assert.Equal(t, Disabled, Default.Next(Disabled, StateDecisionEvent))
	assert.Equal(t, Disabled, Default.Next(Disabled, RSMaster))
	assert.Equal(t, Initializing, Default.Next(Disabled, DesignatedEnabled))
}

func TestRecommendedStateTransitions(t *testing.T) {
	assert.Equal(t, Master, Default.Next(Listening, RSMaster))
	assert.Equal(t, PreMaster, Default.Next(Passive, RSMaster))
	assert.Equal(t, GrandMaster, Default.Next(Listening, RSGrandMaster))
	assert.Equal(t, Uncalibrated, Default.Next(Listening, RSSlave))
	assert.Equal(t, Passive, Default.Next(Master, RSPassive))
	assert.Equal(t, Listening, Default.Next(Master, RSListening))
}

func TestAnnounceTimeoutFromSlaveGoesToListening(t *testing.T) {
	assert.Equal(t, Listening, Default.Next(Slave, AnnounceReceiptTimeoutExpires))
	assert.Equal(t, Listening, Default.Next(Uncalibrated, AnnounceReceiptTimeoutExpires))
	assert.Equal(t, Master, Default.Next(Master, AnnounceReceiptTimeoutExpires))
}

func TestMasterClockSelectedCompletesCalibration(t *testing.T) {
	assert.Equal(t, Slave, Default.Next(Uncalibrated, MasterClockSelected))
	assert.Equal(t, Listening, Default.Next(Listening, MasterClockSelected))
}

func TestSynchronizationFaultDropsSlaveBackToUncalibrated(t *testing.T) {
	assert.Equal(t, Uncalibrated, Default.Next(Slave, SynchronizationFault))
}
