package crypto

/*
I2P ElGamal encryption keys.
https://geti2p.net/spec/common-structures#encryption

I2P fixes ElGamal to the RFC 3526 2048-bit MODP group ("Oakley Group
14") with generator 2 -- the same group used for historical Diffie-
Hellman key agreement, reused here only to pin down the algorithm's
domain parameters for test key generation. The transport core never
performs an ElGamal operation itself; this lives here only so
RouterIdentity/KeysAndCert (external collaborators the transport reads
through, never writes) can hold a structurally valid encryption key.
*/

import (
	"crypto/rand"
	"io"
	"math/big"

	"golang.org/x/crypto/openpgp/elgamal"
)

var elgamalP, _ = new(big.Int).SetString(
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD"+
		"129024E088A67CC74020BBEA63B139B22514A08798E3404DD"+
		"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245"+
		"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED"+
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D"+
		"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F"+
		"83655D23DCA3AD961C62F356208552BB9ED529077096966D"+
		"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B"+
		"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9"+
		"DE2BCBF6955817183995497CEA956AE515D2261898FA0510"+
		"15728E5A8AACAA68FFFFFFFFFFFFFFFF", 16)

var elgamalG = big.NewInt(2)

// ElgPublicKey is a 256-byte I2P ElGamal public key (Y).
type ElgPublicKey [256]byte

func (k ElgPublicKey) Bytes() []byte { return k[:] }
func (k ElgPublicKey) Len() int      { return len(k) }

// ElgPrivateKey is a 256-byte I2P ElGamal private key (X).
type ElgPrivateKey [256]byte

func (k ElgPrivateKey) Bytes() []byte { return k[:] }
func (k ElgPrivateKey) Len() int      { return len(k) }

// ElgamalGenerate generates an ElGamal key pair into priv using I2P's
// fixed domain parameters, in the shape RouterIdentity construction
// needs (see router_info_test.go).
func ElgamalGenerate(priv *elgamal.PrivateKey, random io.Reader) error {
	if random == nil {
		random = rand.Reader
	}
	x, err := rand.Int(random, elgamalP)
	if err != nil {
		return err
	}
	priv.PublicKey.P = elgamalP
	priv.PublicKey.G = elgamalG
	priv.X = x
	priv.PublicKey.Y = new(big.Int).Exp(elgamalG, x, elgamalP)
	return nil
}
