package active

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplayWindowAcceptsInOrderPackets(t *testing.T) {
	var w ReplayWindow
	assert.True(t, w.Accept(0))
	assert.True(t, w.Accept(1))
	assert.True(t, w.Accept(2))
}

func TestReplayWindowRejectsDuplicate(t *testing.T) {
	var w ReplayWindow
	w.Accept(5)
	assert.False(t, w.Accept(5))
}

func TestReplayWindowAcceptsOutOfOrderWithinWindow(t *testing.T) {
	var w ReplayWindow
	w.Accept(10)
	assert.True(t, w.Accept(7))
	assert.True(t, w.Bit(7))
	assert.False(t, w.Accept(7))
}

func TestReplayWindowRejectsBelowFloor(t *testing.T) {
	var w ReplayWindow
	w.Accept(100)
	assert.False(t, w.Accept(100-replayWindowSize))
}

func TestReplayWindowSlidesOnNewHighest(t *testing.T) {
	var w ReplayWindow
	w.Accept(0)
	w.Accept(100)
	assert.True(t, w.Accept(99))
	assert.False(t, w.Accept(0))
}
