package active

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAckTrackerContiguousAdvancesAckThrough(t *testing.T) {
	tr := newAckTracker()
	tr.Record(0)
	tr.Record(1)
	tr.Record(2)

	block := tr.Block()
	assert.Equal(t, uint32(2), block.AckThrough)
	assert.Empty(t, block.Ranges)
}

func TestAckTrackerGapProducesRange(t *testing.T) {
	tr := newAckTracker()
	tr.Record(0)
	tr.Record(2) // gap at 1

	block := tr.Block()
	assert.Equal(t, uint32(0), block.AckThrough)
	require.Len(t, block.Ranges, 1)
	assert.Equal(t, byte(1), block.Ranges[0].NACKs)
	assert.Equal(t, byte(1), block.Ranges[0].ACKs)
}

func TestAckTrackerDueResetsAfterBlock(t *testing.T) {
	tr := newAckTracker()
	assert.False(t, tr.Due())
	tr.Record(0)
	assert.True(t, tr.Due())
	tr.Block()
	assert.False(t, tr.Due())
}
