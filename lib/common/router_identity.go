package common

/*
I2P RouterIdentity
https://geti2p.net/spec/common-structures#routeridentity

A RouterIdentity is exactly a KeysAndCert; the distinct name exists
because higher layers (RouterInfo, SSU2's peer static key lookup) treat
"the identity of a router" as its own concept even though the wire
structure is shared with destinations (which use the identical layout
under the name Destination).
*/

import (
	"crypto/sha256"

	"github.com/a55uka/emissary/lib/crypto"
)

// RouterIdentity identifies a router: its encryption key, signing key,
// and certificate.
type RouterIdentity struct {
	KeysAndCert
}

// NewRouterIdentity builds a RouterIdentity from its constituent keys and
// certificate. padding is accepted for wire-format compatibility with key
// certificates whose declared key sizes leave unused space between the
// public key and signing key fields; it is currently ignored since only
// full-size (256/128-byte) keys are constructed locally. It does not
// validate that the certificate's declared key lengths match pub/spk;
// callers constructing a local identity are expected to pass matching
// types.
func NewRouterIdentity(pub crypto.PublicKey, spk crypto.SigningPublicKey, cert Certificate, padding []byte) (*RouterIdentity, error) {
	return &RouterIdentity{
		KeysAndCert: KeysAndCert{
			PublicKey:        pub,
			SigningPublicKey: spk,
			Certificate:      cert,
		},
	}, nil
}

// ReadRouterIdentity reads a RouterIdentity from the front of data.
func ReadRouterIdentity(data []byte) (RouterIdentity, []byte, error) {
	kc, remainder, err := ReadKeysAndCert(data)
	return RouterIdentity{KeysAndCert: kc}, remainder, err
}

// Bytes serializes the RouterIdentity back to wire form.
func (r RouterIdentity) Bytes() []byte {
	out := make([]byte, 0, KEYS_AND_CERT_MIN_SIZE)
	if r.PublicKey != nil {
		pk := r.PublicKey.Bytes()
		padded := make([]byte, KEYS_AND_CERT_PUBKEY_SIZE)
		copy(padded, pk)
		out = append(out, padded...)
	} else {
		out = append(out, make([]byte, KEYS_AND_CERT_PUBKEY_SIZE)...)
	}
	if r.SigningPublicKey != nil {
		spk := r.SigningPublicKey.Bytes()
		padded := make([]byte, KEYS_AND_CERT_SPK_SIZE)
		copy(padded, spk)
		out = append(out, padded...)
	} else {
		out = append(out, make([]byte, KEYS_AND_CERT_SPK_SIZE)...)
	}
	out = append(out, r.Certificate.Bytes()...)
	return out
}

// Hash returns the SHA-256 hash of the identity's wire encoding, the
// 32-byte router identity hash SSU2 uses to address peers.
func (r RouterIdentity) Hash() [32]byte {
	return sha256.Sum256(r.Bytes())
}
