package ssu2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendParseBlocksRoundTrip(t *testing.T) {
	var buf []byte
	buf = AppendBlock(buf, DateTimeBlock{Seconds: 123456})
	buf = AppendBlock(buf, AckBlock{AckThrough: 10, Ranges: []AckRange{{NACKs: 1, ACKs: 2}}})
	buf = AppendBlock(buf, TerminationBlock{Reason: TerminationReasonTimeOut, LastReceivedPkt: 5})

	blocks, err := ParseBlocks(buf, true)
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	dt, ok := blocks[0].(DateTimeBlock)
	require.True(t, ok)
	assert.Equal(t, uint32(123456), dt.Seconds)

	ack, ok := blocks[1].(AckBlock)
	require.True(t, ok)
	assert.Equal(t, uint32(10), ack.AckThrough)
	assert.Equal(t, []AckRange{{NACKs: 1, ACKs: 2}}, ack.Ranges)

	term, ok := blocks[2].(TerminationBlock)
	require.True(t, ok)
	assert.Equal(t, TerminationReasonTimeOut, term.Reason)
	assert.Equal(t, uint32(5), term.LastReceivedPkt)
}

func TestParseBlocksStrictRejectsUnknownType(t *testing.T) {
	buf := AppendBlock(nil, UnknownBlock{RawType: BlockType(200), Raw: []byte("x")})
	_, err := ParseBlocks(buf, true)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseBlocksTolerantSkipsUnknownType(t *testing.T) {
	var buf []byte
	buf = AppendBlock(buf, DateTimeBlock{Seconds: 1})
	buf = AppendBlock(buf, UnknownBlock{RawType: BlockType(200), Raw: []byte("x")})
	buf = AppendBlock(buf, DateTimeBlock{Seconds: 2})

	blocks, err := ParseBlocks(buf, false)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, DateTimeBlock{Seconds: 1}, blocks[0])
	assert.Equal(t, DateTimeBlock{Seconds: 2}, blocks[1])
}

func TestParseBlocksRejectsTruncatedBody(t *testing.T) {
	buf := AppendBlock(nil, DateTimeBlock{Seconds: 1})
	truncated := buf[:len(buf)-1]
	_, err := ParseBlocks(truncated, true)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestPadToReachesMinimumSize(t *testing.T) {
	buf := AppendBlock(nil, DateTimeBlock{Seconds: 1})
	padded := PadTo(buf, 64)
	assert.GreaterOrEqual(t, len(padded), 64)

	blocks, err := ParseBlocks(padded, true)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	_, ok := blocks[1].(PaddingBlock)
	assert.True(t, ok)
}

func TestAddressBlockEncodeRoundTrip(t *testing.T) {
	buf := AppendBlock(nil, AddressBlock{IP: []byte{192, 168, 1, 1}, Port: 7654})
	blocks, err := ParseBlocks(buf, true)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	addr, ok := blocks[0].(AddressBlock)
	require.True(t, ok)
	assert.Equal(t, []byte{192, 168, 1, 1}, addr.IP)
	assert.Equal(t, uint16(7654), addr.Port)
}
