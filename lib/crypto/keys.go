// Package crypto collects the concrete key types used by the I2P common
// data structures (KeysAndCert, RouterIdentity): legacy DSA signing keys,
// Ed25519 signing keys, and ElGamal encryption keys. Each concrete type
// satisfies the algorithm-agnostic interfaces in lib/crypto/types so the
// common-structures layer never needs to know which algorithm is in use.
package crypto

import (
	"github.com/a55uka/emissary/lib/crypto/dsa"
	"github.com/a55uka/emissary/lib/crypto/types"
)

// Re-exported so callers only need to import lib/crypto.
type (
	Verifier          = types.Verifier
	Signer            = types.Signer
	SigningPublicKey  = types.SigningPublicKey
	SigningPrivateKey = types.SigningPrivateKey
	PublicKey         = types.PublicKey
	PrivateKey        = types.PrivateKey
)

// DSAPublicKey is the legacy 128-byte DSA signing public key, the default
// when a KeysAndCert carries no CERT_KEY certificate.
type DSAPublicKey [128]byte

func (k DSAPublicKey) Bytes() []byte { return k[:] }
func (k DSAPublicKey) Len() int      { return len(k) }

// NewVerifier constructs a Verifier for this key, delegating to the DSA
// signature implementation in lib/crypto/dsa.
func (k DSAPublicKey) NewVerifier() (Verifier, error) {
	return dsa.DSAPublicKey(k).NewVerifier()
}
