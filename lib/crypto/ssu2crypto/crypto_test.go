package ssu2crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	ad := []byte("header-bytes")
	plaintext := []byte("hello ssu2")

	ct, err := Seal(key, 7, ad, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ct)

	pt, err := Open(key, 7, ad, ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 32)
	ct, err := Seal(key, 1, []byte("ad"), []byte("payload"))
	require.NoError(t, err)

	ct[0] ^= 0xff
	_, err = Open(key, 1, []byte("ad"), ct)
	assert.ErrorIs(t, err, ErrAEAD)
}

func TestOpenRejectsWrongNonce(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 32)
	ct, err := Seal(key, 1, []byte("ad"), []byte("payload"))
	require.NoError(t, err)

	_, err = Open(key, 2, []byte("ad"), ct)
	assert.ErrorIs(t, err, ErrAEAD)
}

func TestMaskHeaderRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x07}, 32)
	var tail [8]byte
	copy(tail[:], []byte("abcdefgh"))

	original := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	half := append([]byte(nil), original...)

	require.NoError(t, MaskHeader(key, tail, half))
	assert.NotEqual(t, original, half)

	require.NoError(t, MaskHeader(key, tail, half))
	assert.Equal(t, original, half)
}

func TestMaskHeaderRejectsWrongLength(t *testing.T) {
	key := bytes.Repeat([]byte{0x07}, 32)
	var tail [8]byte
	err := MaskHeader(key, tail, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestTailMaterialUsesPacketTailWhenPresent(t *testing.T) {
	pkt := make([]byte, 40)
	copy(pkt[32:], []byte("trailing"))
	tail := TailMaterial(pkt, 99)
	assert.Equal(t, []byte("trailing"), tail[:])
}

func TestTailMaterialFallsBackToPktNum(t *testing.T) {
	tail := TailMaterial(nil, 0x01020304)
	assert.Equal(t, byte(0x01), tail[4])
	assert.Equal(t, byte(0x04), tail[7])
}

func TestBodyMaterialUsesBytesAfterHeader(t *testing.T) {
	pkt := make([]byte, 48)
	copy(pkt[32:], []byte("bodytail"))
	body := BodyMaterial(pkt, 32)
	assert.Equal(t, []byte("bodytail"), body[:])
}

func TestBodyMaterialZeroPadsShortPacket(t *testing.T) {
	pkt := make([]byte, 35)
	copy(pkt[32:], []byte("xyz"))
	body := BodyMaterial(pkt, 32)
	assert.Equal(t, []byte{'x', 'y', 'z', 0, 0, 0, 0, 0}, body[:])
}

func TestBodyMaterialEmptyWhenNoBody(t *testing.T) {
	pkt := make([]byte, 32)
	body := BodyMaterial(pkt, 32)
	assert.Equal(t, [8]byte{}, body)
}

func TestDiffieHellmanAgreement(t *testing.T) {
	alicePriv, err := GenerateStatic(nil)
	require.NoError(t, err)
	bobPriv, err := GenerateStatic(nil)
	require.NoError(t, err)

	alicePub, err := alicePriv.Public()
	require.NoError(t, err)
	bobPub, err := bobPriv.Public()
	require.NoError(t, err)

	aliceShared, err := alicePriv.DiffieHellman(bobPub)
	require.NoError(t, err)
	bobShared, err := bobPriv.DiffieHellman(alicePub)
	require.NoError(t, err)

	assert.Equal(t, aliceShared, bobShared)
}

func TestEphemeralDiffieHellmanAgreesWithStaticPeer(t *testing.T) {
	ephemeral, err := GenerateEphemeral(nil)
	require.NoError(t, err)
	peerStatic, err := GenerateStatic(nil)
	require.NoError(t, err)

	ephemeralPub, err := ephemeral.Public()
	require.NoError(t, err)
	peerStaticPub, err := peerStatic.Public()
	require.NoError(t, err)

	fromEphemeral, err := ephemeral.DiffieHellman(peerStaticPub)
	require.NoError(t, err)
	fromStatic, err := peerStatic.DiffieHellman(ephemeralPub)
	require.NoError(t, err)

	assert.Equal(t, fromEphemeral, fromStatic)
}

func TestStaticPublicKeyFromBytesRoundTrip(t *testing.T) {
	priv, err := GenerateStatic(nil)
	require.NoError(t, err)
	pub, err := priv.Public()
	require.NoError(t, err)

	decoded, err := StaticPublicKeyFromBytes(pub.Bytes())
	require.NoError(t, err)
	assert.Equal(t, pub.Bytes(), decoded.Bytes())
}

func TestHmacIsDeterministicAndKeyed(t *testing.T) {
	out1 := Hmac([]byte("key"), []byte("a"), []byte("b"))
	out2 := Hmac([]byte("key"), []byte("a"), []byte("b"))
	assert.Equal(t, out1, out2)

	out3 := Hmac([]byte("other-key"), []byte("a"), []byte("b"))
	assert.NotEqual(t, out1, out3)
}
