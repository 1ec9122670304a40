package ssu2crypto

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
)

// ErrInvalidPublicKey is returned when a peer-supplied public key is not
// 32 bytes.
var ErrInvalidPublicKey = errors.New("ssu2crypto: invalid x25519 public key")

// EphemeralPrivateKey is a one-time X25519 private key used for a single
// handshake DH; it must be zeroized immediately after the DH that
// consumes it completes.
type EphemeralPrivateKey struct {
	scalar [32]byte
}

// StaticPrivateKey is a node's long-term X25519 private key.
type StaticPrivateKey struct {
	scalar [32]byte
}

// StaticPublicKey is a peer's X25519 public key, as carried on the wire
// (the SessionRequest ephemeral key field or the SessionConfirmed static
// key field).
type StaticPublicKey struct {
	point [32]byte
}

// GenerateEphemeral draws a fresh random X25519 scalar from random (or
// crypto/rand.Reader if nil).
func GenerateEphemeral(random io.Reader) (EphemeralPrivateKey, error) {
	if random == nil {
		random = rand.Reader
	}
	var k EphemeralPrivateKey
	if _, err := io.ReadFull(random, k.scalar[:]); err != nil {
		return EphemeralPrivateKey{}, err
	}
	return k, nil
}

// GenerateStatic draws a fresh random X25519 scalar, for initial router
// identity setup; long-lived static keys are otherwise loaded from disk.
func GenerateStatic(random io.Reader) (StaticPrivateKey, error) {
	if random == nil {
		random = rand.Reader
	}
	var k StaticPrivateKey
	if _, err := io.ReadFull(random, k.scalar[:]); err != nil {
		return StaticPrivateKey{}, err
	}
	return k, nil
}

// StaticPrivateKeyFromBytes loads a static private key from its 32-byte
// scalar encoding, as read from a node's persisted identity file.
func StaticPrivateKeyFromBytes(b []byte) (StaticPrivateKey, error) {
	if len(b) != 32 {
		return StaticPrivateKey{}, errors.New("ssu2crypto: invalid static private key length")
	}
	var k StaticPrivateKey
	copy(k.scalar[:], b)
	return k, nil
}

// Public derives the X25519 public point for k.
func (k EphemeralPrivateKey) Public() (StaticPublicKey, error) {
	return derivePublic(k.scalar)
}

// Public derives the X25519 public point for k.
func (k StaticPrivateKey) Public() (StaticPublicKey, error) {
	return derivePublic(k.scalar)
}

func derivePublic(scalar [32]byte) (StaticPublicKey, error) {
	pub, err := curve25519.X25519(scalar[:], curve25519.Basepoint)
	if err != nil {
		return StaticPublicKey{}, err
	}
	var out StaticPublicKey
	copy(out.point[:], pub)
	return out, nil
}

// DiffieHellman computes the shared secret between k and peer. The
// returned slice is caller-owned and must be wiped with Wipe once
// consumed by a key-schedule HMAC step.
func (k EphemeralPrivateKey) DiffieHellman(peer StaticPublicKey) ([]byte, error) {
	return diffieHellman(k.scalar, peer.point)
}

// DiffieHellman computes the shared secret between k and peer. The
// returned slice is caller-owned and must be wiped with Wipe once
// consumed by a key-schedule HMAC step.
func (k StaticPrivateKey) DiffieHellman(peer StaticPublicKey) ([]byte, error) {
	return diffieHellman(k.scalar, peer.point)
}

func diffieHellman(scalar, point [32]byte) ([]byte, error) {
	shared, err := curve25519.X25519(scalar[:], point[:])
	if err != nil {
		return nil, err
	}
	return shared, nil
}

// Zeroize wipes k's scalar. Must be called once the last DH that needs k
// has completed.
func (k *EphemeralPrivateKey) Zeroize() { wipe(k.scalar[:]) }

// Zeroize wipes k's scalar.
func (k *StaticPrivateKey) Zeroize() { wipe(k.scalar[:]) }

// Bytes returns the raw 32-byte point, the wire encoding used for the
// ephemeral-key field in SessionRequest/SessionCreated and the static-key
// field in SessionConfirmed.
func (k StaticPublicKey) Bytes() []byte { return k.point[:] }

// StaticPublicKeyFromBytes parses a peer's public point from its 32-byte
// wire encoding.
func StaticPublicKeyFromBytes(b []byte) (StaticPublicKey, error) {
	if len(b) != 32 {
		return StaticPublicKey{}, ErrInvalidPublicKey
	}
	var out StaticPublicKey
	copy(out.point[:], b)
	return out, nil
}
