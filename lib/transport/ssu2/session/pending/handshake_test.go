package pending

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/a55uka/emissary/lib/common"
	"github.com/a55uka/emissary/lib/crypto"
	"github.com/a55uka/emissary/lib/crypto/ssu2crypto"
	"github.com/a55uka/emissary/lib/transport/ssu2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/openpgp/elgamal"
)

// fakeRuntime hands out strictly increasing connection IDs instead of
// crypto/rand-backed ones, so a test can predict and compare them.
type fakeRuntime struct {
	now  time.Time
	next uint64
}

func (r *fakeRuntime) Now() time.Time { return r.now }

func (r *fakeRuntime) RandUint64() uint64 {
	r.next++
	return r.next
}

// capturingSender records the most recent packet handed to TrySend, so a
// test can grab exactly the bytes a session just built and feed them to
// its peer by hand.
type capturingSender struct{ last ssu2.Packet }

func (c *capturingSender) TrySend(pkt ssu2.Packet) error {
	c.last = pkt
	return nil
}

func readDstID(pkt []byte) uint64 { return binary.BigEndian.Uint64(pkt[0:8]) }
func readSrcID(pkt []byte) uint64 {
	if len(pkt) < 24 {
		return 0
	}
	return binary.BigEndian.Uint64(pkt[16:24])
}
func readPktNum(pkt []byte) uint32 {
	if len(pkt) < 12 {
		return 0
	}
	return binary.BigEndian.Uint32(pkt[8:12])
}

// testRouterInfo builds a signed RouterInfo advertising an SSU2 address
// with the given intro and static keys, following the fixture recipe in
// lib/common's own RouterInfo test.
func testRouterInfo(t *testing.T, introKey, staticKey [32]byte) common.RouterInfo {
	t.Helper()

	var edPriv crypto.Ed25519PrivateKey
	_, err := (&edPriv).Generate()
	require.NoError(t, err)
	edPubRaw, err := edPriv.Public()
	require.NoError(t, err)
	edPub, ok := edPubRaw.(crypto.Ed25519PublicKey)
	require.True(t, ok)

	var elgPriv elgamal.PrivateKey
	require.NoError(t, crypto.ElgamalGenerate(&elgPriv, rand.Reader))
	var elgPub crypto.ElgPublicKey
	yBytes := elgPriv.PublicKey.Y.Bytes()
	copy(elgPub[256-len(yBytes):], yBytes)

	var payload bytes.Buffer
	signingType, err := common.NewIntegerFromInt(7, 2)
	require.NoError(t, err)
	cryptoType, err := common.NewIntegerFromInt(0, 2)
	require.NoError(t, err)
	_, err = payload.Write(signingType.Bytes())
	require.NoError(t, err)
	_, err = payload.Write(cryptoType.Bytes())
	require.NoError(t, err)

	cert, err := common.NewCertificateWithType(common.CERT_KEY, payload.Bytes())
	require.NoError(t, err)

	identity, err := common.NewRouterIdentity(elgPub, edPub, *cert, nil)
	require.NoError(t, err)

	published, err := common.DateFromTime(time.Now())
	require.NoError(t, err)

	addr, err := common.NewRouterAddressFromValues(10, "SSU2", map[string]string{
		"host": "127.0.0.1",
		"port": "18001",
		"i":    common.Base64Encode(introKey[:]),
		"s":    common.Base64Encode(staticKey[:]),
	})
	require.NoError(t, err)

	info, err := common.NewRouterInfo(*identity, *published, []common.RouterAddress{*addr}, map[string]string{"netId": "2"}, &edPriv)
	require.NoError(t, err)
	return *info
}

// handshakeFixture wires one inbound and one outbound session the way
// Router would, but without a real Socket: every packet one side hands to
// its Sender is captured, unmasked with the fixed key known to have
// obfuscated it, and fed straight to the peer's own unexported handlers.
type handshakeFixture struct {
	t *testing.T

	responderIntroKey [32]byte
	initiatorIntroKey [32]byte

	outbound   *OutboundSession
	outSender  *capturingSender
	inbound    *InboundSession
	inSender   *capturingSender
}

func newHandshakeFixture(t *testing.T) *handshakeFixture {
	t.Helper()

	var responderIntroKey, initiatorIntroKey [32]byte
	copy(responderIntroKey[:], bytes.Repeat([]byte{0xAA}, 32))
	copy(initiatorIntroKey[:], bytes.Repeat([]byte{0xBB}, 32))

	responderStatic, err := ssu2crypto.GenerateStatic(nil)
	require.NoError(t, err)
	responderStaticPub, err := responderStatic.Public()
	require.NoError(t, err)

	initiatorStatic, err := ssu2crypto.GenerateStatic(nil)
	require.NoError(t, err)
	initiatorStaticPub, err := initiatorStatic.Public()
	require.NoError(t, err)
	var initiatorStaticArr [32]byte
	copy(initiatorStaticArr[:], initiatorStaticPub.Bytes())

	initiatorInfo := testRouterInfo(t, initiatorIntroKey, initiatorStaticArr)

	responderAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 17890}
	initiatorAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 18001}

	runtime := &fakeRuntime{now: time.Unix(1700000000, 0)}
	outSender := &capturingSender{}

	outbound, err := NewOutboundSession(OutboundContext{
		Address:       responderAddr,
		DstID:         0x1234,
		LocalNetID:    2,
		PeerIntroKey:  responderIntroKey,
		PeerStaticKey: responderStaticPub,
		PeerRouterID:  [32]byte{0xCD},
		OurStaticKey:  initiatorStatic,
		OurRouterInfo: initiatorInfo,
		Sender:        outSender,
		Runtime:       runtime,
	})
	require.NoError(t, err)

	tokenRequest := append([]byte(nil), outSender.last.Data...)
	require.NoError(t, ssu2.DeobfuscateFirstHalf(responderIntroKey[:], tokenRequest))
	require.NoError(t, ssu2.DeobfuscateSecondHalf(responderIntroKey[:], tokenRequest, ssu2.LongHeaderSize))

	inSender := &capturingSender{}
	inbound, err := NewInboundSession(InboundContext{
		Address:    initiatorAddr,
		DstID:      readDstID(tokenRequest),
		SrcID:      readSrcID(tokenRequest),
		IntroKey:   responderIntroKey,
		LocalNetID: 2,
		Pkt:        tokenRequest,
		PktNum:     readPktNum(tokenRequest),
		Sender:     inSender,
		StaticKey:  responderStatic,
		Runtime:    runtime,
	})
	require.NoError(t, err)

	return &handshakeFixture{
		t:                 t,
		responderIntroKey: responderIntroKey,
		initiatorIntroKey: initiatorIntroKey,
		outbound:          outbound,
		outSender:         outSender,
		inbound:           inbound,
		inSender:          inSender,
	}
}

// retryPkt returns the Retry packet the responder just sent, first-half
// deobfuscated, ready for the initiator's onRetry.
func (f *handshakeFixture) retryPkt() []byte {
	f.t.Helper()
	pkt := append([]byte(nil), f.inSender.last.Data...)
	require.NoError(f.t, ssu2.DeobfuscateFirstHalf(f.responderIntroKey[:], pkt))
	return pkt
}

func (f *handshakeFixture) sessionRequestPkt() []byte {
	f.t.Helper()
	pkt := append([]byte(nil), f.outSender.last.Data...)
	require.NoError(f.t, ssu2.DeobfuscateFirstHalf(f.responderIntroKey[:], pkt))
	return pkt
}

func (f *handshakeFixture) sessionCreatedPkt() []byte {
	f.t.Helper()
	pkt := append([]byte(nil), f.inSender.last.Data...)
	require.NoError(f.t, ssu2.DeobfuscateFirstHalf(f.responderIntroKey[:], pkt))
	return pkt
}

func (f *handshakeFixture) sessionConfirmedPkt() []byte {
	f.t.Helper()
	pkt := append([]byte(nil), f.outSender.last.Data...)
	require.NoError(f.t, ssu2.DeobfuscateFirstHalf(f.responderIntroKey[:], pkt))
	return pkt
}

func TestHandshakeCompletesAndDerivesMatchingKeys(t *testing.T) {
	f := newHandshakeFixture(t)

	status, err := f.outbound.onRetry(f.retryPkt())
	require.NoError(t, err)
	assert.IsType(t, NoStatus{}, status)

	st, ok := f.inbound.state.(stateAwaitingSessionRequest)
	require.True(t, ok)
	status, err = f.inbound.onSessionRequest(f.sessionRequestPkt(), st.token)
	require.NoError(t, err)
	assert.IsType(t, NoStatus{}, status)

	stc, ok := f.outbound.state.(stateAwaitingSessionCreated)
	require.True(t, ok)
	status, err = f.outbound.onSessionCreated(f.sessionCreatedPkt(), stc)
	require.NoError(t, err)
	outPromoted, ok := status.(Promoted)
	require.True(t, ok)

	stconf, ok := f.inbound.state.(stateAwaitingSessionConfirmed)
	require.True(t, ok)
	status, err = f.inbound.onSessionConfirmed(f.sessionConfirmedPkt(), stconf)
	require.NoError(t, err)
	inPromoted, ok := status.(Promoted)
	require.True(t, ok)

	assert.Equal(t, outPromoted.Context.SendKeyCtx.DataKey, inPromoted.Context.RecvKeyCtx.DataKey)
	assert.Equal(t, outPromoted.Context.SendKeyCtx.HeaderKey, inPromoted.Context.RecvKeyCtx.HeaderKey)
	assert.Equal(t, outPromoted.Context.RecvKeyCtx.DataKey, inPromoted.Context.SendKeyCtx.DataKey)
	assert.Equal(t, outPromoted.Context.RecvKeyCtx.HeaderKey, inPromoted.Context.SendKeyCtx.HeaderKey)

	assert.Equal(t, f.initiatorIntroKey, inPromoted.Context.IntroKey)
	assert.NotEmpty(t, inPromoted.FirstPacket.Data)
	assert.Empty(t, outPromoted.FirstPacket.Data)
}

func TestSessionRequestWithWrongTokenIsRejected(t *testing.T) {
	f := newHandshakeFixture(t)

	status, err := f.outbound.onRetry(f.retryPkt())
	require.NoError(t, err)
	assert.IsType(t, NoStatus{}, status)

	st, ok := f.inbound.state.(stateAwaitingSessionRequest)
	require.True(t, ok)

	_, err = f.inbound.onSessionRequest(f.sessionRequestPkt(), st.token+1)
	assert.Error(t, err)
}

func TestSessionCreatedWithMismatchedDstIDIsRejected(t *testing.T) {
	f := newHandshakeFixture(t)

	status, err := f.outbound.onRetry(f.retryPkt())
	require.NoError(t, err)
	assert.IsType(t, NoStatus{}, status)

	st, ok := f.inbound.state.(stateAwaitingSessionRequest)
	require.True(t, ok)
	status, err = f.inbound.onSessionRequest(f.sessionRequestPkt(), st.token)
	require.NoError(t, err)
	assert.IsType(t, NoStatus{}, status)

	stc, ok := f.outbound.state.(stateAwaitingSessionCreated)
	require.True(t, ok)

	sessionCreated := f.sessionCreatedPkt()
	binary.BigEndian.PutUint64(sessionCreated[0:8], f.outbound.srcID+1) // dst_id no longer our src_id

	_, err = f.outbound.onSessionCreated(sessionCreated, stc)
	assert.Error(t, err)
}
