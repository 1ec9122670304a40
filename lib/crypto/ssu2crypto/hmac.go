package ssu2crypto

import (
	"crypto/hmac"
	"crypto/sha256"
)

// Hmac computes HMAC-SHA256(key, parts...). The key schedule chains this
// primitive rather than golang.org/x/crypto/hkdf: SSU2's extract/expand
// steps interleave chaining_key, shared-secret, and single-byte
// domain-separation bytes in an order hkdf.New's single-shot API cannot
// express directly, so the derivation is built from this primitive the
// same way the original router builds it from its own Hmac wrapper.
func Hmac(key []byte, parts ...[]byte) []byte {
	mac := hmac.New(sha256.New, key)
	for _, p := range parts {
		mac.Write(p)
	}
	return mac.Sum(nil)
}
