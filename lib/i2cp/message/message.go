// Package message encodes the two I2CP router-to-client messages this
// router needs to speak as a data-plane peer: BandwidthLimits and
// MessagePayload, matching the reference router's fixed body layouts
// field-for-field.
//
// Every I2CP message shares a five-byte header: a 4-byte big-endian
// body length followed by a 1-byte message type, per
// https://geti2p.net/spec/i2cp#format. encoding/binary is used directly
// for this fixed big-endian wire format (see DESIGN.md for why no
// framing library fits).
package message

import "encoding/binary"

const (
	headerSize = 5

	typeBandwidthLimits = 23
	typeMessagePayload  = 31
)

// BandwidthLimits builds a BandwidthLimits message body: 16 four-byte
// fields, matching bandwidth.rs's fixed layout (client/router
// inbound/outbound limits and burst figures, then nine reserved
// undefined fields).
func BandwidthLimits() []byte {
	const bodyLen = 16 * 4
	out := make([]byte, headerSize+bodyLen)
	binary.BigEndian.PutUint32(out[0:4], bodyLen)
	out[4] = typeBandwidthLimits

	body := out[headerSize:]
	binary.BigEndian.PutUint32(body[0:4], 500)   // client inbound limit (KBps)
	binary.BigEndian.PutUint32(body[4:8], 500)   // client outbound limit (KBps)
	binary.BigEndian.PutUint32(body[8:12], 2000) // router inbound limit (KBps)
	binary.BigEndian.PutUint32(body[12:16], 2000) // router inbound burst limit (KBps)
	binary.BigEndian.PutUint32(body[16:20], 2000) // router outbound limit (KBps)
	binary.BigEndian.PutUint32(body[20:24], 2000) // router outbound burst limit (KBps)
	binary.BigEndian.PutUint32(body[24:28], 5)    // router burst time (seconds)
	// body[28:64] left zeroed: nine reserved 4-byte fields, undefined.
	return out
}

// NewMessagePayload builds a MessagePayload message carrying one I2NP
// message destined for sessionID, matching payload.rs's layout:
// session_id(2) | message_id(4) | payload_size(4) | payload.
func NewMessagePayload(sessionID uint16, messageID uint32, payload []byte) []byte {
	bodyLen := 2 + 4 + 4 + len(payload)
	out := make([]byte, headerSize+bodyLen)
	binary.BigEndian.PutUint32(out[0:4], uint32(bodyLen))
	out[4] = typeMessagePayload

	body := out[headerSize:]
	binary.BigEndian.PutUint16(body[0:2], sessionID)
	binary.BigEndian.PutUint32(body[2:6], messageID)
	binary.BigEndian.PutUint32(body[6:10], uint32(len(payload)))
	copy(body[10:], payload)
	return out
}
