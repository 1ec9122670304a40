package message

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandwidthLimitsLayout(t *testing.T) {
	out := BandwidthLimits()
	require.Len(t, out, headerSize+16*4)

	assert.Equal(t, uint32(16*4), binary.BigEndian.Uint32(out[0:4]))
	assert.Equal(t, byte(typeBandwidthLimits), out[4])

	body := out[headerSize:]
	assert.Equal(t, uint32(500), binary.BigEndian.Uint32(body[0:4]))
	assert.Equal(t, uint32(500), binary.BigEndian.Uint32(body[4:8]))
	assert.Equal(t, uint32(2000), binary.BigEndian.Uint32(body[8:12]))
	assert.Equal(t, uint32(5), binary.BigEndian.Uint32(body[24:28]))
	for i := 28; i < len(body); i += 4 {
		assert.Equal(t, uint32(0), binary.BigEndian.Uint32(body[i:i+4]))
	}
}

func TestNewMessagePayloadLayout(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef, 0x01}
	out := NewMessagePayload(7, 99, payload)

	wantBodyLen := 2 + 4 + 4 + len(payload)
	require.Len(t, out, headerSize+wantBodyLen)

	assert.Equal(t, uint32(wantBodyLen), binary.BigEndian.Uint32(out[0:4]))
	assert.Equal(t, byte(typeMessagePayload), out[4])

	body := out[headerSize:]
	assert.Equal(t, uint16(7), binary.BigEndian.Uint16(body[0:2]))
	assert.Equal(t, uint32(99), binary.BigEndian.Uint32(body[2:6]))
	assert.Equal(t, uint32(len(payload)), binary.BigEndian.Uint32(body[6:10]))
	assert.Equal(t, payload, body[10:])
}

func TestNewMessagePayloadEmptyPayload(t *testing.T) {
	out := NewMessagePayload(1, 1, nil)
	require.Len(t, out, headerSize+2+4+4)
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(out[headerSize+6:headerSize+10]))
}
