//go:build linux

package clockserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSecondsPositiveOffset(t *testing.T) {
	sec, usec := splitSeconds(1.5)
	assert.EqualValues(t, 1, sec)
	assert.EqualValues(t, 500000, usec)
}

func TestSplitSecondsNegativeOffset(t *testing.T) {
	sec, usec := splitSeconds(-0.25)
	assert.EqualValues(t, 0, sec)
	assert.EqualValues(t, -250000, usec)
}
