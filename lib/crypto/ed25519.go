package crypto

/*
I2P Ed25519 signing keys (KeyCertificate SPKType 7).
https://geti2p.net/spec/common-structures#key-certificates

Unlike the legacy DSA keys, Ed25519 is provided directly by the
standard library; there is no adapted ericlagergren-dr or dsa-style
wrapper needed here beyond satisfying the Signer/Verifier interfaces
the rest of lib/crypto expects.
*/

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/a55uka/emissary/lib/crypto/types"
	"github.com/go-i2p/logger"
)

var ed25519log = logger.GetGoI2PLogger()

// Ed25519PublicKey is a 32-byte Ed25519 signing public key.
type Ed25519PublicKey [32]byte

func (k Ed25519PublicKey) Bytes() []byte { return k[:] }
func (k Ed25519PublicKey) Len() int      { return len(k) }

// NewVerifier constructs a Verifier for this key.
func (k Ed25519PublicKey) NewVerifier() (Verifier, error) {
	return &Ed25519Verifier{k: ed25519.PublicKey(k[:])}, nil
}

// Ed25519PrivateKey is a 32-byte Ed25519 signing private key seed.
type Ed25519PrivateKey [32]byte

func (k Ed25519PrivateKey) Bytes() []byte { return k[:] }
func (k Ed25519PrivateKey) Len() int      { return len(k) }

// NewSigner constructs a Signer for this key.
func (k Ed25519PrivateKey) NewSigner() (Signer, error) {
	priv := ed25519.NewKeyFromSeed(k[:])
	return &Ed25519Signer{k: priv}, nil
}

// Public derives the SigningPublicKey matching this private key.
func (k Ed25519PrivateKey) Public() (SigningPublicKey, error) {
	priv := ed25519.NewKeyFromSeed(k[:])
	pub := priv.Public().(ed25519.PublicKey)
	var out Ed25519PublicKey
	copy(out[:], pub)
	return out, nil
}

// Generate produces a fresh Ed25519 private key seed.
func (k Ed25519PrivateKey) Generate() (Ed25519PrivateKey, error) {
	ed25519log.Debug("Generating Ed25519 key pair")
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		ed25519log.WithError(err).Error("Failed to generate Ed25519 key pair")
		return Ed25519PrivateKey{}, err
	}
	var out Ed25519PrivateKey
	copy(out[:], priv.Seed())
	return out, nil
}

type Ed25519Signer struct {
	k ed25519.PrivateKey
}

func (s *Ed25519Signer) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(s.k, data), nil
}

// SignHash signs a pre-hashed message. Ed25519 as used in I2P signs the
// message directly rather than a digest, so this simply delegates to Sign.
func (s *Ed25519Signer) SignHash(h []byte) ([]byte, error) {
	return s.Sign(h)
}

type Ed25519Verifier struct {
	k ed25519.PublicKey
}

func (v *Ed25519Verifier) Verify(data, sig []byte) error {
	if len(sig) != ed25519.SignatureSize {
		return types.ErrBadSignatureSize
	}
	if !ed25519.Verify(v.k, data, sig) {
		return types.ErrInvalidSignature
	}
	return nil
}

func (v *Ed25519Verifier) VerifyHash(h, sig []byte) error {
	return v.Verify(h, sig)
}
