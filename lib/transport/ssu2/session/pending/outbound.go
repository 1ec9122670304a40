package pending

import (
	"net"
	"time"

	"github.com/a55uka/emissary/lib/common"
	"github.com/a55uka/emissary/lib/crypto/ssu2crypto"
	"github.com/a55uka/emissary/lib/transport/ssu2"
	"github.com/a55uka/emissary/lib/transport/ssu2/session/active"
	"github.com/sirupsen/logrus"
)

// OutboundContext seeds a new outbound pending session: we are initiating
// a connection to a peer whose RouterInfo (and therefore static key,
// intro key, identity hash, and address) we already hold:
// "Outbound is the mirror image: initiator sends TokenRequest, awaits
// Retry, sends SessionRequest, awaits SessionCreated, sends
// SessionConfirmed, promotes."
type OutboundContext struct {
	Address       net.Addr
	DstID         uint64 // our chosen connection ID, echoed back to us as the peer's src_id
	LocalNetID    byte
	PeerIntroKey  [32]byte
	PeerStaticKey ssu2crypto.StaticPublicKey
	PeerRouterID  [32]byte
	OurStaticKey  ssu2crypto.StaticPrivateKey
	OurRouterInfo common.RouterInfo
	Sender        ssu2.Sender
	Rx            <-chan ssu2.Packet
	Runtime       ssu2.Runtime
}

// outboundState mirrors inboundState but for the initiator's side of the
// handshake.
type outboundState interface{ isOutboundState() }

type stateAwaitingRetry struct{}

func (stateAwaitingRetry) isOutboundState() {}

// stateAwaitingSessionCreated carries what's needed to process
// SessionCreated: our ephemeral key from SessionRequest, and the chaining
// key from the first DH so the SessionCreated reply's second header half
// (keyed on "SessCreateHeader", per keyschedule.go) can be unmasked.
type stateAwaitingSessionCreated struct {
	ephemeral   ssu2crypto.EphemeralPrivateKey
	chainingKey []byte
	kHeader2    []byte
	transcript  []byte // running transcript through the sent SessionRequest, continued when SessionCreated arrives
}

func (stateAwaitingSessionCreated) isOutboundState() {}

func (statePoisoned) isOutboundState() {}

// OutboundSession is a pending outbound SSU2 handshake.
type OutboundSession struct {
	address       net.Addr
	dstID         uint64
	srcID         uint64 // our own connection ID, sent as src_id and echoed back as the dst_id of Retry/SessionCreated
	localNetID    byte
	peerIntroKey  [32]byte
	peerStaticKey ssu2crypto.StaticPublicKey
	peerRouterID  [32]byte
	ourStaticKey  ssu2crypto.StaticPrivateKey
	ourRouterInfo common.RouterInfo
	sender        ssu2.Sender
	rx            <-chan ssu2.Packet
	runtime       ssu2.Runtime
	state         outboundState

	token         uint64
	lastSentPkt   []byte
	retryCount    int
	retryInterval time.Duration
}

// NewOutboundSession sends the initial TokenRequest and waits for Retry.
func NewOutboundSession(ctx OutboundContext) (*OutboundSession, error) {
	srcID := ctx.Runtime.RandUint64()
	header := ssu2.BuildLong(ctx.DstID, srcID, 0, ssu2.MessageTypeTokenRequest, ctx.LocalNetID, 0, 0)
	pkt, err := ssu2.NewMessageBuilder(header).
		WithKey(ctx.PeerIntroKey[:]).
		WithBlock(ssu2.DateTimeBlock{Seconds: uint32(ctx.Runtime.Now().Unix())}).
		Build()
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.NewOutboundSession", err)
	}

	s := &OutboundSession{
		address:       ctx.Address,
		dstID:         ctx.DstID,
		srcID:         srcID,
		localNetID:    ctx.LocalNetID,
		peerIntroKey:  ctx.PeerIntroKey,
		peerStaticKey: ctx.PeerStaticKey,
		peerRouterID:  ctx.PeerRouterID,
		ourStaticKey:  ctx.OurStaticKey,
		ourRouterInfo: ctx.OurRouterInfo,
		sender:        ctx.Sender,
		rx:            ctx.Rx,
		runtime:       ctx.Runtime,
		state:         stateAwaitingRetry{},
		lastSentPkt:   pkt,
		retryInterval: initialRetryInterval,
	}

	if err := s.sender.TrySend(ssu2.Packet{Address: ctx.Address, Data: pkt}); err != nil {
		log.WithFields(logrus.Fields{"dst_id": ctx.DstID, "error": err}).Warn("failed to send TokenRequest")
	}
	return s, nil
}

// onRetry echoes the token back in a SessionRequest and runs the first
// DH, mirroring the initiator side of §4.5's handshake diagram (the
// counterpart to InboundSession.onSessionRequest).
func (s *OutboundSession) onRetry(pkt []byte) (Status, error) {
	reader, err := ssu2.NewHeaderReader(pkt)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onRetry", err)
	}
	hdr, err := reader.Parse(s.peerIntroKey[:], true)
	if err != nil {
		return nil, err
	}
	retry, ok := hdr.(ssu2.RetryHeader)
	if !ok {
		return nil, ssu2.WrapUnexpected("pending.onRetry", "other", "Retry")
	}
	s.dstID = retry.SrcID
	s.token = retry.Token

	payload, err := ssu2crypto.Open(s.peerIntroKey[:], 0, pkt[:ssu2.LongHeaderSize], pkt[ssu2.LongHeaderSize:])
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onRetry", err)
	}
	if _, err := ssu2.ParseBlocks(payload, true); err != nil {
		return nil, ssu2.WrapMalformed("pending.onRetry", err)
	}

	ephemeral, err := ssu2crypto.GenerateEphemeral(nil)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onRetry", err)
	}
	ourPublic, err := ephemeral.Public()
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onRetry", err)
	}

	header := ssu2.BuildLong(s.dstID, s.srcID, 0, ssu2.MessageTypeSessionRequest, s.localNetID, 0, s.token)

	state := ssu2.FoldTranscript(nil, header)
	state = ssu2.FoldTranscript(state, ourPublic.Bytes())

	shared, err := ephemeral.DiffieHellman(s.peerStaticKey)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onRetry", err)
	}
	chainingKey, cipherKey := ssu2.ExtractAndExpand(nil, shared)
	kHeader2 := ssu2.DeriveHeaderKey(chainingKey, "SessCreateHeader")

	aeadState := &ssu2.AeadState{CipherKey: append([]byte(nil), cipherKey...), Nonce: 0, State: state}
	outPkt, err := ssu2.NewMessageBuilder(header).
		WithKeyPair(s.peerIntroKey[:], s.peerIntroKey[:]).
		WithEphemeralKey(ourPublic.Bytes()).
		WithAeadState(aeadState).
		WithBlock(ssu2.DateTimeBlock{Seconds: uint32(s.runtime.Now().Unix())}).
		Build()
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onRetry", err)
	}

	if err := s.sender.TrySend(ssu2.Packet{Address: s.address, Data: outPkt}); err != nil {
		log.WithFields(logrus.Fields{"dst_id": s.dstID, "src_id": s.srcID, "error": err}).Warn("failed to send SessionRequest")
	}
	s.lastSentPkt = outPkt
	s.retryCount = 0
	s.retryInterval = initialRetryInterval

	s.state = stateAwaitingSessionCreated{
		ephemeral:   ephemeral,
		chainingKey: chainingKey,
		kHeader2:    kHeader2,
		transcript:  aeadState.State,
	}
	return NoStatus{}, nil
}

// onSessionCreated completes the second DH, builds and sends
// SessionConfirmed carrying our RouterInfo, derives data-phase keys, and
// promotes to an active session. Mirrors InboundSession.onSessionConfirmed
// (its send side), run from the initiator.
func (s *OutboundSession) onSessionCreated(pkt []byte, st stateAwaitingSessionCreated) (Status, error) {
	reader, err := ssu2.NewHeaderReader(pkt)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionCreated", err)
	}
	hdr, err := reader.Parse(st.kHeader2, true)
	if err != nil {
		return nil, err
	}
	created, ok := hdr.(ssu2.SessionCreatedHeader)
	if !ok {
		return nil, ssu2.WrapUnexpected("pending.onSessionCreated", "other", "SessionCreated")
	}
	if created.DstID != s.srcID {
		return nil, ssu2.WrapUnexpected("pending.onSessionCreated", "mismatched dst_id", "our src_id")
	}

	peerEphemeral, err := ssu2crypto.StaticPublicKeyFromBytes(pkt[32:64])
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionCreated", err)
	}

	state := ssu2.FoldTranscript(st.transcript, pkt[:32])
	state = ssu2.FoldTranscript(state, pkt[32:64])

	shared, err := st.ephemeral.DiffieHellman(peerEphemeral)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionCreated", err)
	}
	chainingKey2, cipherKey2 := ssu2.ExtractAndExpand(st.chainingKey, shared)

	newState := ssu2.FoldTranscript(state, pkt[64:])
	payload, err := ssu2crypto.Open(cipherKey2, 0, state, pkt[64:])
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionCreated", err)
	}
	if _, err := ssu2.ParseBlocks(payload, true); err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionCreated", err)
	}

	staticPublic, err := s.ourStaticKey.Public()
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionCreated", err)
	}
	shared2, err := s.ourStaticKey.DiffieHellman(peerEphemeral)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionCreated", err)
	}
	chainingKey3, cipherKey3 := ssu2.ExtractAndExpand(chainingKey2, shared2)

	header := ssu2.BuildShort(s.dstID, 0, ssu2.ShortHeaderFlags(ssu2.MessageTypeSessionConfirmed, false))
	sealState := ssu2.FoldTranscript(newState, header)

	staticKeyField, err := ssu2crypto.Seal(cipherKey2, 1, sealState, staticPublic.Bytes())
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionCreated", err)
	}
	confirmedState := ssu2.FoldTranscript(sealState, staticKeyField)

	// kHeader2Confirmed is derived from chainingKey2, not chainingKey3: the
	// responder derives its matching key the moment it has chainingKey2
	// (onSessionRequest, before it's even seen SessionConfirmed), so the
	// initiator must key off the same point in the chain rather than the
	// later one it happens to have in hand by now.
	kHeader2Confirmed := ssu2.DeriveHeaderKey(chainingKey2, "SessionConfirmed")
	aeadState := &ssu2.AeadState{CipherKey: append([]byte(nil), cipherKey3...), Nonce: 0, State: confirmedState}
	outPkt, err := ssu2.NewMessageBuilder(header).
		WithKeyPair(s.peerIntroKey[:], kHeader2Confirmed).
		WithEncryptedField(staticPublic.Bytes(), cipherKey2, sealState).
		WithAeadState(aeadState).
		WithBlock(ssu2.RouterInfoBlock{Info: s.ourRouterInfo}).
		Build()
	ssu2crypto.Wipe(cipherKey2)
	ssu2crypto.Wipe(cipherKey3)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionCreated", err)
	}

	if err := s.sender.TrySend(ssu2.Packet{Address: s.address, Data: outPkt}); err != nil {
		log.WithFields(logrus.Fields{"dst_id": s.dstID, "src_id": s.srcID, "error": err}).Warn("failed to send SessionConfirmed")
	}

	kDataAB, kHeader2AB, kDataBA, kHeader2BA := ssu2.DeriveDataPhaseKeys(chainingKey3)

	return Promoted{
		Context: active.Context{
			Address:    s.address,
			DstID:      s.dstID,
			IntroKey:   s.peerIntroKey,
			RecvKeyCtx: active.NewKeyContext(kDataBA, kHeader2BA),
			SendKeyCtx: active.NewKeyContext(kDataAB, kHeader2AB),
			RouterID:   s.peerRouterID,
			Sender:     s.sender,
			Rx:         s.rx,
			Runtime:    s.runtime,
		},
		// Unlike the inbound side, the initiator has no handshake packet
		// left to send after SessionConfirmed; the active session's first
		// datagram is whatever traffic or keepalive it sends on its own.
		FirstPacket: ssu2.Packet{},
	}, nil
}

// OnPacket advances the handshake with one inbound packet, mirroring the
// same poisoned-state re-entrancy guard as the inbound side.
func (s *OutboundSession) OnPacket(pkt []byte) (Status, error) {
	state := s.state
	s.state = statePoisoned{}

	switch st := state.(type) {
	case stateAwaitingRetry:
		status, err := s.onRetry(pkt)
		if err != nil {
			s.state = st
			return NoStatus{}, err
		}
		return status, nil
	case stateAwaitingSessionCreated:
		status, err := s.onSessionCreated(pkt, st)
		if err != nil {
			s.state = st
			return NoStatus{}, err
		}
		return status, nil
	case statePoisoned:
		log.WithFields(logrus.Fields{"dst_id": s.dstID, "src_id": s.srcID}).Warn("outbound session state is poisoned")
		return Failed{Err: ssu2.ErrPoisoned}, nil
	default:
		return Failed{Err: ssu2.ErrUnexpectedMessage}, nil
	}
}

// Run drives the handshake's polling loop, mirroring InboundSession.Run.
func (s *OutboundSession) Run() Status {
	timer := time.NewTimer(s.retryInterval)
	defer timer.Stop()

	for {
		select {
		case pkt, open := <-s.rx:
			if !open {
				return SocketClosed{}
			}
			status, err := s.OnPacket(pkt.Data)
			if err != nil {
				log.WithFields(logrus.Fields{"dst_id": s.dstID, "src_id": s.srcID, "error": err}).Debug("failed to handle handshake packet")
				continue
			}
			if _, ok := status.(NoStatus); !ok {
				return status
			}
			timer.Reset(s.retryInterval)
		case <-timer.C:
			if s.retryCount >= MaxHandshakeRetries {
				return Failed{Err: ssu2.ErrTimeout}
			}
			s.retryCount++
			s.retryInterval = nextRetryInterval(s.retryInterval)
			if err := s.sender.TrySend(ssu2.Packet{Address: s.address, Data: s.lastSentPkt}); err != nil {
				log.WithFields(logrus.Fields{"dst_id": s.dstID, "error": err}).Warn("failed to retransmit handshake packet")
			}
			timer.Reset(s.retryInterval)
		}
	}
}
