package ssu2crypto

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
)

// MaskHeader XORs an 8-byte header half in place with a keystream derived
// from key and an 8-byte value taken from the packet's ciphertext (the
// tail of the packet for the first half, the first 8 bytes of the body
// following the header for the second). Both IVs are drawn from bytes
// the header masks never touch, so obfuscation and deobfuscation derive
// the identical keystream regardless of which side of the mask has run.
// ivMaterial is zero-extended on the left to fill ChaCha20's 12-byte
// nonce.
func MaskHeader(key []byte, ivMaterial [8]byte, half []byte) error {
	if len(half) != 8 {
		return errInvalidHalfLength
	}
	var nonce [chacha20.NonceSize]byte
	copy(nonce[4:], ivMaterial[:])
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce[:])
	if err != nil {
		return err
	}
	keystream := make([]byte, 8)
	c.XORKeyStream(keystream, keystream)
	for i := range half {
		half[i] ^= keystream[i]
	}
	return nil
}

// TailMaterial extracts the 8 bytes of ciphertext SSU2 uses to key the
// first header-half mask: the last 8 bytes of the packet if it is at
// least 8 bytes long, or the packet number zero-extended otherwise.
func TailMaterial(pkt []byte, pktNum uint32) [8]byte {
	var out [8]byte
	if len(pkt) >= 8 {
		copy(out[:], pkt[len(pkt)-8:])
		return out
	}
	binary.BigEndian.PutUint32(out[4:], pktNum)
	return out
}

// BodyMaterial extracts the 8 bytes of ciphertext SSU2 uses to key the
// second header-half mask: the 8 bytes immediately following the header,
// i.e. the start of the AEAD-protected body (ephemeral key, encrypted
// static-key field, or block payload, whichever comes first on the
// wire). These bytes are never themselves part of either header mask,
// so they are available identically whether the header has already been
// obfuscated or not. Zero-extended on the right if the packet is
// shorter than headerLen+8 (short packets, used only in tests).
func BodyMaterial(pkt []byte, headerLen int) [8]byte {
	var out [8]byte
	if len(pkt) <= headerLen {
		return out
	}
	end := headerLen + 8
	if end > len(pkt) {
		end = len(pkt)
	}
	copy(out[:], pkt[headerLen:end])
	return out
}

var errInvalidHalfLength = headerMaskError("ssu2crypto: header half must be 8 bytes")

type headerMaskError string

func (e headerMaskError) Error() string { return string(e) }
