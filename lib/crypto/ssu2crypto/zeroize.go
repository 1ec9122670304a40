// Package ssu2crypto collects the crypto primitives the SSU2 transport
// needs: fixed-output hashing, keyed hashing, X25519 agreement, and AEAD,
// plus the zeroization helper used to wipe key material on scope exit.
package ssu2crypto

import "runtime"

// wipe overwrites p with zeros. It is marked noinline so the compiler
// cannot prove the store dead and elide it, matching the pattern used for
// scrubbing ratchet state.
//
//go:noinline
func wipe(p []byte) {
	for i := range p {
		p[i] = 0
	}
	runtime.KeepAlive(p)
}

// Wipe is the exported form of wipe, used by callers outside this package
// that hold raw key-sized byte slices (cipher keys, shared secrets).
func Wipe(p []byte) {
	wipe(p)
}
