// Package types declares the signing/encryption key interfaces shared by
// every concrete key type under lib/crypto (DSA, Ed25519, ElGamal), so
// that KeysAndCert and RouterIdentity can hold a key without knowing its
// concrete algorithm.
package types

import "errors"

// Sentinel errors returned by Verifier/Signer implementations.
var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrBadSignatureSize = errors.New("bad signature size")
	ErrInvalidKeyFormat = errors.New("invalid key format")
)

// Verifier checks signatures produced by the matching Signer.
type Verifier interface {
	Verify(data, sig []byte) error
	VerifyHash(h, sig []byte) error
}

// Signer produces signatures verifiable by the matching Verifier.
type Signer interface {
	Sign(data []byte) ([]byte, error)
	SignHash(h []byte) ([]byte, error)
}

// SigningPublicKey is a public key usable to construct a Verifier.
type SigningPublicKey interface {
	Bytes() []byte
	Len() int
	NewVerifier() (Verifier, error)
}

// SigningPrivateKey is a private key usable to construct a Signer and to
// derive its SigningPublicKey.
type SigningPrivateKey interface {
	Bytes() []byte
	Len() int
	NewSigner() (Signer, error)
	Public() (SigningPublicKey, error)
}

// PublicKey is an encryption public key (currently only ElGamal).
type PublicKey interface {
	Bytes() []byte
	Len() int
}

// PrivateKey is an encryption private key.
type PrivateKey interface {
	Bytes() []byte
	Len() int
}
