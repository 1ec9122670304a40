package active

import (
	"testing"
	"time"

	"github.com/a55uka/emissary/lib/transport/ssu2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRuntime is a deterministic stand-in for ssu2.StdRuntime.
type fakeRuntime struct{ now time.Time }

func (r fakeRuntime) Now() time.Time   { return r.now }
func (r fakeRuntime) RandUint64() uint64 { return 0 }

// capturingSender records the most recent packet handed to TrySend, so a
// test can grab exactly the bytes a session just built and hand them to
// its peer directly instead of routing through a socket.
type capturingSender struct{ last ssu2.Packet }

func (c *capturingSender) TrySend(pkt ssu2.Packet) error {
	c.last = pkt
	return nil
}

// loopbackPair wires two active Sessions, each configured the way a real
// promotion would leave them: A's send keys are B's recv keys and vice
// versa, and each side's IntroKey is the *other* side's own configured
// first-header-half key, mirroring what a real Socket would be keyed
// with on each end.
type loopbackPair struct {
	t *testing.T

	a, b         *Session
	senderA      *capturingSender
	senderB      *capturingSender
	introKeyA    [32]byte
	introKeyB    [32]byte
}

func newLoopbackPair(t *testing.T) *loopbackPair {
	t.Helper()

	var introKeyA, introKeyB [32]byte
	for i := range introKeyA {
		introKeyA[i] = byte(i + 1)
	}
	for i := range introKeyB {
		introKeyB[i] = byte(255 - i)
	}

	dataAB := make([]byte, 32) // A -> B data key
	headerAB := make([]byte, 32)
	dataBA := make([]byte, 32) // B -> A data key
	headerBA := make([]byte, 32)
	for i := range dataAB {
		dataAB[i] = byte(i + 10)
		headerAB[i] = byte(i + 20)
		dataBA[i] = byte(i + 30)
		headerBA[i] = byte(i + 40)
	}

	runtime := fakeRuntime{now: time.Unix(1700000000, 0)}
	senderA := &capturingSender{}
	senderB := &capturingSender{}

	a := NewSession(Context{
		DstID:      1,
		IntroKey:   introKeyB, // A obfuscates outgoing headers the way B's own socket expects
		SendKeyCtx: NewKeyContext(dataAB, headerAB),
		RecvKeyCtx: NewKeyContext(dataBA, headerBA),
		Sender:     senderA,
		Runtime:    runtime,
	})
	b := NewSession(Context{
		DstID:      2,
		IntroKey:   introKeyA,
		SendKeyCtx: NewKeyContext(dataBA, headerBA),
		RecvKeyCtx: NewKeyContext(dataAB, headerAB),
		Sender:     senderB,
		Runtime:    runtime,
	})

	return &loopbackPair{
		t:         t,
		a:         a,
		b:         b,
		senderA:   senderA,
		senderB:   senderB,
		introKeyA: introKeyA,
		introKeyB: introKeyB,
	}
}

// deliverAtoB takes whatever A's sender last captured, reverses the
// first-header-half mask with the key a real socket on B's end would be
// configured with, and hands it straight to B's packet handler.
func (p *loopbackPair) deliverAtoB() error {
	p.t.Helper()
	pkt := append([]byte(nil), p.senderA.last.Data...)
	require.NoError(p.t, ssu2.DeobfuscateFirstHalf(p.introKeyB[:], pkt))
	return p.b.handlePacket(pkt)
}

func (p *loopbackPair) deliverBtoA() error {
	p.t.Helper()
	pkt := append([]byte(nil), p.senderB.last.Data...)
	require.NoError(p.t, ssu2.DeobfuscateFirstHalf(p.introKeyA[:], pkt))
	return p.a.handlePacket(pkt)
}

func TestDataPhaseSendArrivesAsI2NPMessage(t *testing.T) {
	p := newLoopbackPair(t)

	payload := []byte("hello i2p")
	require.NoError(t, p.a.SendI2NP(7, 1234, payload))
	require.NoError(t, p.deliverAtoB())

	select {
	case got := <-p.b.Messages():
		assert.Equal(t, payload, got)
	default:
		t.Fatal("expected a message on b.Messages()")
	}
}

func TestDataPhaseAckClearsSenderOutbox(t *testing.T) {
	p := newLoopbackPair(t)

	require.NoError(t, p.a.SendI2NP(7, 1234, []byte("first")))
	require.Contains(t, p.a.outbox, uint64(0))

	require.NoError(t, p.deliverAtoB())
	assert.True(t, p.b.acks.Due())

	require.NoError(t, p.b.flushAck())
	require.NoError(t, p.deliverBtoA())

	assert.NotContains(t, p.a.outbox, uint64(0))
}

func TestDataPhaseDuplicatePacketIsIgnored(t *testing.T) {
	p := newLoopbackPair(t)

	require.NoError(t, p.a.SendI2NP(7, 1234, []byte("once")))

	// handlePacket deobfuscates the second header half in place, so each
	// delivery needs its own fresh copy of the still-obfuscated original;
	// reusing an already-decoded buffer would re-mask it instead of
	// replaying the same packet.
	firstCopy := append([]byte(nil), p.senderA.last.Data...)
	require.NoError(t, ssu2.DeobfuscateFirstHalf(p.introKeyB[:], firstCopy))
	require.NoError(t, p.b.handlePacket(firstCopy))
	<-p.b.Messages()

	secondCopy := append([]byte(nil), p.senderA.last.Data...)
	require.NoError(t, ssu2.DeobfuscateFirstHalf(p.introKeyB[:], secondCopy))
	require.NoError(t, p.b.handlePacket(secondCopy))
	select {
	case <-p.b.Messages():
		t.Fatal("duplicate packet should not be delivered twice")
	default:
	}
}

func TestTerminateDeliversReasonToPeer(t *testing.T) {
	p := newLoopbackPair(t)

	require.NoError(t, p.a.Terminate(ssu2.TerminationReasonNormalClose))
	require.NoError(t, p.deliverAtoB())

	select {
	case reason := <-p.b.closeCh:
		assert.Equal(t, ssu2.TerminationReasonNormalClose, reason)
	default:
		t.Fatal("expected the termination reason to reach b's closeCh")
	}

	select {
	case <-p.a.Done():
	default:
		t.Fatal("expected a's Done channel to be closed after Terminate")
	}
}
