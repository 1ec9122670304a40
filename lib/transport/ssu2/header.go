package ssu2

/*
Two-layer packet header.

Long header (handshake, 32 bytes):
  dst_id (8) | pkt_num (4) | type (1) | version (1) | net_id (1) | flags (1) | src_id (8) | token (8)

Short header (data phase, 16 bytes):
  dst_id (8) | pkt_num (4) | type (1) | flags (3)

Both halves of every header are obfuscated on the wire: the first 8 bytes
with a keystream keyed on the receiver's intro key, the second 8 (or, for
the short header, bytes 8-15) with k_header_2 of the expected message.
BuildLong/BuildShort return the header in plaintext, pre-obfuscation;
ObfuscateHeader and DeobfuscateFirstHalf/DeobfuscateSecondHalf
(symmetric, XOR) apply and remove the wire masking.
*/

import (
	"encoding/binary"

	"github.com/a55uka/emissary/lib/crypto/ssu2crypto"
)

// BuildLong constructs a plaintext 32-byte long header.
func BuildLong(dstID, srcID uint64, pktNum uint32, msgType MessageType, netID, flags byte, token uint64) []byte {
	h := make([]byte, LongHeaderSize)
	binary.BigEndian.PutUint64(h[0:8], dstID)
	binary.BigEndian.PutUint32(h[8:12], pktNum)
	h[12] = byte(msgType)
	h[13] = ProtocolVersion
	h[14] = netID
	h[15] = flags
	binary.BigEndian.PutUint64(h[16:24], srcID)
	binary.BigEndian.PutUint64(h[24:32], token)
	return h
}

// BuildShort constructs a plaintext 16-byte short (data-phase) header.
// flags[0] carries the message type (Data, or SessionConfirmed, which
// also uses the short header), flags[1] the ShortHeaderFlag bits,
// flags[2] is reserved.
func BuildShort(dstID uint64, pktNum uint32, flags [3]byte) []byte {
	h := make([]byte, ShortHeaderSize)
	binary.BigEndian.PutUint64(h[0:8], dstID)
	binary.BigEndian.PutUint32(h[8:12], pktNum)
	copy(h[12:15], flags[:])
	return h
}

// ShortHeaderFlags builds the 3-byte flags field for a short header: byte
// 0 is the message type (Data or SessionConfirmed), byte 1 bit 0 is the
// immediate-ack request, byte 2 is unused.
func ShortHeaderFlags(msgType MessageType, immediateAck bool) [3]byte {
	var f [3]byte
	f[0] = byte(msgType)
	if immediateAck {
		f[1] |= 0x01
	}
	return f
}

// DeobfuscateFirstHalf reverses the first-header-half mask using the
// receiver's intro key, keyed on the ciphertext tail per MaskHeader. This
// is the only unmasking the socket multiplexer performs itself, since it
// needs dst_id before it knows which session (and therefore which
// k_header_2) the rest of the header belongs to.
func DeobfuscateFirstHalf(introKey []byte, pkt []byte) error {
	if len(pkt) < 8 {
		return ErrMalformed
	}
	var pktNum uint32
	if len(pkt) >= 12 {
		pktNum = binary.BigEndian.Uint32(pkt[8:12])
	}
	tail := ssu2crypto.TailMaterial(pkt, pktNum)
	return ssu2crypto.MaskHeader(introKey, tail, pkt[0:8])
}

// DeobfuscateSecondHalf reverses the second-header-half mask using
// k_header_2 of the expected message, keyed on the ciphertext body
// bytes immediately following the header (see BodyMaterial) rather than
// on any header field — the packet number at pkt[8:12] is itself inside
// the masked region and isn't in plaintext yet when this runs, so it
// can't be used to derive its own unmasking keystream. pkt must be the
// full received datagram (header plus body), not just the header slice.
func DeobfuscateSecondHalf(kHeader2 []byte, pkt []byte, headerLen int) error {
	if len(pkt) < headerLen || headerLen < 16 {
		return ErrMalformed
	}
	body := ssu2crypto.BodyMaterial(pkt, headerLen)
	return ssu2crypto.MaskHeader(kHeader2, body, pkt[8:16])
}

// ObfuscateHeader applies both header masks to a freshly built plaintext
// header in place, given the packet's associated ciphertext tail (used
// for the first half) and k_header_2 for the second. tailSource must be
// the full packet buffer with header already at its front (header is
// tailSource[:len(header)]) and the AEAD-protected body already sealed
// past it, since the second-half mask is keyed on the body's leading
// bytes (see BodyMaterial). It is the inverse of
// DeobfuscateFirstHalf+DeobfuscateSecondHalf.
func ObfuscateHeader(introKey, kHeader2 []byte, header []byte, pktNum uint32, tailSource []byte) error {
	headerLen := len(header)
	if headerLen != LongHeaderSize && headerLen != ShortHeaderSize {
		return ErrMalformed
	}
	tail := ssu2crypto.TailMaterial(tailSource, pktNum)
	if err := ssu2crypto.MaskHeader(introKey, tail, header[0:8]); err != nil {
		return err
	}
	body := ssu2crypto.BodyMaterial(tailSource, headerLen)
	return ssu2crypto.MaskHeader(kHeader2, body, header[8:16])
}

// HeaderKind is the parsed, type-discriminated result of Parse.
type HeaderKind interface{ isHeaderKind() }

type TokenRequestHeader struct {
	DstID, SrcID uint64
	PktNum       uint32
	NetID        byte
	Token        uint64
}

type RetryHeader struct {
	DstID, SrcID uint64
	PktNum       uint32
	Token        uint64
}

type SessionRequestHeader struct {
	DstID, SrcID uint64
	PktNum       uint32
	NetID        byte
	Token        uint64
}

type SessionCreatedHeader struct {
	DstID, SrcID uint64
	PktNum       uint32
}

type SessionConfirmedHeader struct {
	DstID  uint64
	PktNum uint32
}

type DataHeader struct {
	DstID        uint64
	PktNum       uint32
	ImmediateAck bool
}

func (TokenRequestHeader) isHeaderKind()     {}
func (RetryHeader) isHeaderKind()            {}
func (SessionRequestHeader) isHeaderKind()   {}
func (SessionCreatedHeader) isHeaderKind()   {}
func (SessionConfirmedHeader) isHeaderKind() {}
func (DataHeader) isHeaderKind()             {}

// HeaderReader parses a header whose first half has already been
// deobfuscated (by the socket, via DeobfuscateFirstHalf). Parse
// deobfuscates the second half in place using the supplied key and
// returns the typed header.
type HeaderReader struct {
	pkt []byte
}

// NewHeaderReader wraps pkt for parsing. pkt's first header half must
// already be plaintext.
func NewHeaderReader(pkt []byte) (*HeaderReader, error) {
	if len(pkt) < ShortHeaderSize {
		return nil, ErrMalformed
	}
	return &HeaderReader{pkt: pkt}, nil
}

// Parse deobfuscates the second header half with kHeader2 and decodes the
// header per the packet's message type. The caller states only whether
// the header is long or short: the type byte (pkt[12]) lies in the
// masked second half, so Parse reads it itself after unmasking.
func (r *HeaderReader) Parse(kHeader2 []byte, isLongHeader bool) (HeaderKind, error) {
	headerLen := ShortHeaderSize
	if isLongHeader {
		headerLen = LongHeaderSize
	}
	if len(r.pkt) < headerLen {
		return nil, ErrMalformed
	}
	if err := DeobfuscateSecondHalf(kHeader2, r.pkt, headerLen); err != nil {
		return nil, err
	}
	dstID := binary.BigEndian.Uint64(r.pkt[0:8])
	pktNum := binary.BigEndian.Uint32(r.pkt[8:12])

	if !isLongHeader {
		// SessionConfirmed, like Data, carries only a 16-byte header: its
		// remaining fields (the peer's static key, then the AEAD payload)
		// start immediately after, at byte 16, not at byte 32.
		if MessageType(r.pkt[12]) == MessageTypeSessionConfirmed {
			return SessionConfirmedHeader{DstID: dstID, PktNum: pktNum}, nil
		}
		return DataHeader{
			DstID:        dstID,
			PktNum:       pktNum,
			ImmediateAck: r.pkt[13]&0x01 != 0,
		}, nil
	}

	msgType := MessageType(r.pkt[12])
	version := r.pkt[13]
	netID := r.pkt[14]
	if version != ProtocolVersion {
		return nil, ErrInvalidVersion
	}
	srcID := binary.BigEndian.Uint64(r.pkt[16:24])
	token := binary.BigEndian.Uint64(r.pkt[24:32])

	switch msgType {
	case MessageTypeTokenRequest:
		return TokenRequestHeader{DstID: dstID, SrcID: srcID, PktNum: pktNum, NetID: netID, Token: token}, nil
	case MessageTypeRetry:
		return RetryHeader{DstID: dstID, SrcID: srcID, PktNum: pktNum, Token: token}, nil
	case MessageTypeSessionRequest:
		return SessionRequestHeader{DstID: dstID, SrcID: srcID, PktNum: pktNum, NetID: netID, Token: token}, nil
	case MessageTypeSessionCreated:
		return SessionCreatedHeader{DstID: dstID, SrcID: srcID, PktNum: pktNum}, nil
	default:
		return nil, ErrUnexpectedMessage
	}
}
