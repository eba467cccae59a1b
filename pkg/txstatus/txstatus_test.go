package txstatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert := assert.New(t)
	cases := map[TXStatus]string{
		TXStatus(73): "IDLE",
		TXStatus(84): "BEGAN",
		TXStatus(67): "COMMITTED",
		TXStatus(82): "ROLLEDBACK",
		TXStatus(0):  "invalid",
	}
	for status, except := range cases {
		assert.Equal(except, status.String())
	}
}

func TestTransitions(t *testing.T) {
	assert := assert.New(t)

	assert.True(TXIDLE.CanTransition(TXBEGAN))
	assert.False(TXIDLE.CanTransition(TXCOMMITTED))
	assert.True(TXBEGAN.CanTransition(TXCOMMITTED))
	assert.True(TXBEGAN.CanTransition(TXROLLEDBACK))
	assert.False(TXBEGAN.CanTransition(TXIDLE))

	for _, terminal := range []TXStatus{TXCOMMITTED, TXROLLEDBACK} {
		assert.True(terminal.Terminal())
		for _, next := range []TXStatus{TXIDLE, TXBEGAN, TXCOMMITTED, TXROLLEDBACK} {
			assert.False(terminal.CanTransition(next), "%v -> %v", terminal, next)
		}
	}
}
