package ssu2crypto

import "crypto/sha256"

// Sha256 concatenates parts and returns their SHA-256 digest, the
// transcript-hash-folding primitive used by the message builder and
// pending-session key schedule (state = SHA256(state || ciphertext)).
func Sha256(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
