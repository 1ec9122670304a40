package common

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"testing"
	"time"

	"github.com/a55uka/emissary/lib/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/openpgp/elgamal"
)

func TestCreateRouterInfo(t *testing.T) {
	var ed25519_privkey crypto.Ed25519PrivateKey
	_, err := (&ed25519_privkey).Generate()
	require.NoError(t, err)

	ed25519_pubkey_raw, err := ed25519_privkey.Public()
	require.NoError(t, err)
	ed25519_pubkey, ok := ed25519_pubkey_raw.(crypto.Ed25519PublicKey)
	require.True(t, ok)

	var elgamal_privkey elgamal.PrivateKey
	err = crypto.ElgamalGenerate(&elgamal_privkey, rand.Reader)
	require.NoError(t, err)

	var elg_pubkey crypto.ElgPublicKey
	yBytes := elgamal_privkey.PublicKey.Y.Bytes()
	require.LessOrEqual(t, len(yBytes), 256)
	copy(elg_pubkey[256-len(yBytes):], yBytes)

	var _ crypto.PublicKey = elg_pubkey

	var payload bytes.Buffer
	signingPublicKeyType, err := NewIntegerFromInt(7, 2)
	require.NoError(t, err)
	cryptoPublicKeyType, err := NewIntegerFromInt(0, 2)
	require.NoError(t, err)
	require.NoError(t, binary.Write(&payload, binary.BigEndian, signingPublicKeyType.Bytes()))
	require.NoError(t, binary.Write(&payload, binary.BigEndian, cryptoPublicKeyType.Bytes()))

	cert, err := NewCertificateWithType(CERT_KEY, payload.Bytes())
	require.NoError(t, err)

	identity, err := NewRouterIdentity(elg_pubkey, ed25519_pubkey, *cert, nil)
	require.NoError(t, err)

	published, err := DateFromTime(time.Now())
	require.NoError(t, err)

	addr, err := NewRouterAddressFromValues(10, "SSU2", map[string]string{
		"host": "203.0.113.1",
		"port": "8887",
		"i":    "AAAAAAAAAAAAAAAAAAAAAA==",
		"s":    "BBBBBBBBBBBBBBBBBBBBBB==",
	})
	require.NoError(t, err)

	routerInfo, err := NewRouterInfo(*identity, *published, []RouterAddress{*addr}, map[string]string{"netId": "2"}, &ed25519_privkey)
	require.NoError(t, err)
	assert.NotEmpty(t, routerInfo.Signature)

	_, introKey, _, ok := routerInfo.SSU2Address()
	assert.True(t, ok)
	assert.Equal(t, "AAAAAAAAAAAAAAAAAAAAAA==", introKey)

	wire := routerInfo.Bytes()
	parsed, remainder, err := ReadRouterInfo(wire)
	require.NoError(t, err)
	assert.Empty(t, remainder)
	assert.Equal(t, routerInfo.Signature, parsed.Signature)
	assert.Len(t, parsed.Addresses, 1)
	assert.Equal(t, "SSU2", parsed.Addresses[0].TransportName())
}
