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

// InboundContext seeds a new inbound pending session from a freshly
// received TokenRequest packet, mirroring InboundSsu2Context.
type InboundContext struct {
	Address     net.Addr
	DstID       uint64 // this node's connection ID for the session (learned from the packet's dst_id)
	SrcID       uint64 // the peer's chosen connection ID (learned from the packet's src_id)
	IntroKey    [32]byte
	LocalNetID  byte
	Pkt         []byte // the raw TokenRequest packet, both header halves already deobfuscated
	PktNum      uint32
	Sender      ssu2.Sender
	Rx          <-chan ssu2.Packet
	StaticKey   ssu2crypto.StaticPrivateKey
	Runtime     ssu2.Runtime
}

// inboundState is the tagged union of states an InboundSession can be in,
// mirroring PendingSessionState. statePoisoned guards re-entrancy: a
// Poisoned marker blocks re-entry during fallible transitions and is
// fatal if observed.
type inboundState interface{ isInboundState() }

type stateAwaitingSessionRequest struct{ token uint64 }

func (stateAwaitingSessionRequest) isInboundState() {}

type stateAwaitingSessionConfirmed struct {
	chainingKey     []byte
	ephemeralKey    ssu2crypto.EphemeralPrivateKey
	kHeader2        []byte
	kSessionCreated []byte
	state           []byte
}

func (stateAwaitingSessionConfirmed) isInboundState() {}

type statePoisoned struct{}

func (statePoisoned) isInboundState() {}

// InboundSession is a pending inbound SSU2 handshake.
type InboundSession struct {
	address    net.Addr
	aead       []byte
	chainingKey []byte
	dstID      uint64
	srcID      uint64
	introKey   [32]byte
	localNetID byte
	sender     ssu2.Sender
	rx         <-chan ssu2.Packet
	staticKey  ssu2crypto.StaticPrivateKey
	runtime    ssu2.Runtime
	state      inboundState

	lastSentPkt   []byte
	retryCount    int
	retryInterval time.Duration
}

// NewInboundSession handles the initial TokenRequest, mirroring
// InboundSsu2Session::new: decrypt with the intro key, verify the blocks
// parse, generate a token, and reply with Retry.
func NewInboundSession(ctx InboundContext) (*InboundSession, error) {
	if len(ctx.Pkt) < ssu2.LongHeaderSize {
		return nil, ssu2.WrapMalformed("pending.NewInboundSession", ssu2.ErrMalformed)
	}

	payload, err := ssu2crypto.Open(ctx.IntroKey[:], uint64(ctx.PktNum), ctx.Pkt[:ssu2.LongHeaderSize], ctx.Pkt[ssu2.LongHeaderSize:])
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.NewInboundSession", err)
	}
	if _, err := ssu2.ParseBlocks(payload, true); err != nil {
		log.WithFields(logrus.Fields{"dst_id": ctx.DstID, "src_id": ctx.SrcID}).Warn("failed to parse TokenRequest blocks")
		return nil, ssu2.WrapMalformed("pending.NewInboundSession", err)
	}

	token := ctx.Runtime.RandUint64()
	header := ssu2.BuildLong(ctx.SrcID, ctx.DstID, 0, ssu2.MessageTypeRetry, ctx.LocalNetID, 0, token)
	pkt, err := ssu2.NewMessageBuilder(header).
		WithKey(ctx.IntroKey[:]).
		WithBlock(ssu2.DateTimeBlock{Seconds: uint32(ctx.Runtime.Now().Unix())}).
		WithBlock(addrToBlock(ctx.Address)).
		Build()
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.NewInboundSession", err)
	}

	s := &InboundSession{
		address:       ctx.Address,
		dstID:         ctx.DstID,
		srcID:         ctx.SrcID,
		introKey:      ctx.IntroKey,
		localNetID:    ctx.LocalNetID,
		sender:        ctx.Sender,
		rx:            ctx.Rx,
		staticKey:     ctx.StaticKey,
		runtime:       ctx.Runtime,
		state:         stateAwaitingSessionRequest{token: token},
		lastSentPkt:   pkt,
		retryInterval: initialRetryInterval,
	}

	if err := s.sender.TrySend(ssu2.Packet{Address: ctx.Address, Data: pkt}); err != nil {
		log.WithFields(logrus.Fields{"dst_id": ctx.DstID, "src_id": ctx.SrcID, "error": err}).Warn("failed to send Retry")
	}
	return s, nil
}

// onSessionRequest verifies the echoed token and net ID, runs the first
// DH, and replies with SessionCreated, mirroring on_session_request.
func (s *InboundSession) onSessionRequest(pkt []byte, expectedToken uint64) (Status, error) {
	reader, err := ssu2.NewHeaderReader(pkt)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionRequest", err)
	}
	hdr, err := reader.Parse(s.introKey[:], true)
	if err != nil {
		return nil, err
	}
	req, ok := hdr.(ssu2.SessionRequestHeader)
	if !ok {
		return nil, ssu2.WrapUnexpected("pending.onSessionRequest", "other", "SessionRequest")
	}
	if req.Token != expectedToken {
		return nil, ssu2.WrapUnexpected("pending.onSessionRequest", "wrong token", "matching token")
	}
	if req.NetID != s.localNetID {
		return nil, ssu2.WrapInvalidNetID("pending.onSessionRequest", req.NetID, s.localNetID)
	}

	ephemeralKey, err := ssu2crypto.StaticPublicKeyFromBytes(pkt[32:64])
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionRequest", err)
	}

	state := ssu2.FoldTranscript(s.aead, pkt[:32])
	state = ssu2.FoldTranscript(state, pkt[32:64])

	shared, err := s.staticKey.DiffieHellman(ephemeralKey)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionRequest", err)
	}
	chainingKey, cipherKey := ssu2.ExtractAndExpand(s.chainingKey, shared)
	kHeader2 := ssu2.DeriveHeaderKey(chainingKey, "SessCreateHeader")

	newState := ssu2.FoldTranscript(state, pkt[64:])
	innerPlaintext, err := ssu2crypto.Open(cipherKey, 0, state, pkt[64:])
	ssu2crypto.Wipe(cipherKey)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionRequest", err)
	}
	if _, err := ssu2.ParseBlocks(innerPlaintext, true); err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionRequest", err)
	}

	ephemeral, err := ssu2crypto.GenerateEphemeral(nil)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionRequest", err)
	}
	ourPublic, err := ephemeral.Public()
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionRequest", err)
	}

	shared2, err := ephemeral.DiffieHellman(ephemeralKey)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionRequest", err)
	}
	chainingKey2, cipherKey2 := ssu2.ExtractAndExpand(chainingKey, shared2)

	header := ssu2.BuildLong(s.srcID, s.dstID, 0, ssu2.MessageTypeSessionCreated, s.localNetID, 0, 0)
	sealState := ssu2.FoldTranscript(newState, header)
	sealState = ssu2.FoldTranscript(sealState, ourPublic.Bytes())

	aeadState := &ssu2.AeadState{CipherKey: append([]byte(nil), cipherKey2...), Nonce: 0, State: sealState}
	outPkt, err := ssu2.NewMessageBuilder(header).
		WithKeyPair(s.introKey[:], kHeader2).
		WithEphemeralKey(ourPublic.Bytes()).
		WithAeadState(aeadState).
		WithBlock(ssu2.DateTimeBlock{Seconds: uint32(s.runtime.Now().Unix())}).
		WithBlock(addrToBlock(s.address)).
		Build()
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionRequest", err)
	}

	if err := s.sender.TrySend(ssu2.Packet{Address: s.address, Data: outPkt}); err != nil {
		log.WithFields(logrus.Fields{"dst_id": s.dstID, "src_id": s.srcID, "error": err}).Warn("failed to send SessionCreated")
	}
	s.lastSentPkt = outPkt
	s.retryCount = 0
	s.retryInterval = initialRetryInterval

	kHeader2Confirmed := ssu2.DeriveHeaderKey(chainingKey2, "SessionConfirmed")
	s.state = stateAwaitingSessionConfirmed{
		chainingKey:     chainingKey2,
		ephemeralKey:    ephemeral,
		kHeader2:        kHeader2Confirmed,
		kSessionCreated: cipherKey2,
		state:           aeadState.State,
	}
	return NoStatus{}, nil
}

// onSessionConfirmed verifies pkt_num==0, decrypts the peer's static key,
// derives data-phase keys, extracts the mandatory RouterInfo block, and
// returns a Promoted status carrying the first outgoing Ack packet.
// Mirrors on_session_confirmed.
func (s *InboundSession) onSessionConfirmed(pkt []byte, st stateAwaitingSessionConfirmed) (Status, error) {
	reader, err := ssu2.NewHeaderReader(pkt)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionConfirmed", err)
	}
	hdr, err := reader.Parse(st.kHeader2, false)
	if err != nil {
		return nil, err
	}
	confirmed, ok := hdr.(ssu2.SessionConfirmedHeader)
	if !ok {
		return nil, ssu2.WrapUnexpected("pending.onSessionConfirmed", "other", "SessionConfirmed")
	}
	if confirmed.PktNum != 0 {
		return nil, ssu2.WrapMalformed("pending.onSessionConfirmed", ssu2.ErrMalformed)
	}

	state := ssu2.FoldTranscript(st.state, pkt[:16])
	newState := ssu2.FoldTranscript(state, pkt[16:64])

	staticKeyPlain, err := ssu2crypto.Open(st.kSessionCreated, 1, state, pkt[16:64])
	ssu2crypto.Wipe(st.kSessionCreated)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionConfirmed", err)
	}
	peerStatic, err := ssu2crypto.StaticPublicKeyFromBytes(staticKeyPlain)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionConfirmed", err)
	}

	shared, err := st.ephemeralKey.DiffieHellman(peerStatic)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionConfirmed", err)
	}
	chainingKey, cipherKey := ssu2.ExtractAndExpand(st.chainingKey, shared)

	payload, err := ssu2crypto.Open(cipherKey, 0, newState, pkt[64:])
	ssu2crypto.Wipe(cipherKey)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionConfirmed", err)
	}

	blocks, err := ssu2.ParseBlocks(payload, true)
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionConfirmed", err)
	}

	var routerInfo *common.RouterInfo
	for _, b := range blocks {
		if rib, ok := b.(ssu2.RouterInfoBlock); ok {
			info := rib.Info
			routerInfo = &info
			break
		}
	}
	if routerInfo == nil {
		log.WithFields(logrus.Fields{"dst_id": s.dstID, "src_id": s.srcID}).Warn("SessionConfirmed missing mandatory RouterInfo block")
		return nil, ssu2.WrapMalformed("pending.onSessionConfirmed", ssu2.ErrMalformed)
	}

	_, introKeyB64, _, ok := routerInfo.SSU2Address()
	if !ok {
		return nil, ssu2.WrapMalformed("pending.onSessionConfirmed", ssu2.ErrMalformed)
	}
	peerIntroKey, err := common.Base64Decode(introKeyB64)
	if err != nil || len(peerIntroKey) != 32 {
		return nil, ssu2.WrapMalformed("pending.onSessionConfirmed", ssu2.ErrMalformed)
	}

	kDataAB, kHeader2AB, kDataBA, kHeader2BA := ssu2.DeriveDataPhaseKeys(chainingKey)

	var introKeyArr [32]byte
	copy(introKeyArr[:], peerIntroKey)

	firstHeader := ssu2.BuildShort(s.srcID, 0, ssu2.ShortHeaderFlags(ssu2.MessageTypeData, false))
	firstAck := &ssu2.AeadState{CipherKey: append([]byte(nil), kDataBA...), Nonce: 0, State: firstHeader}
	firstPkt, err := ssu2.NewMessageBuilder(firstHeader).
		WithKeyPair(introKeyArr[:], kHeader2BA).
		WithAeadState(firstAck).
		WithBlock(ssu2.AckBlock{}).
		Build()
	if err != nil {
		return nil, ssu2.WrapMalformed("pending.onSessionConfirmed", err)
	}

	identHash := routerInfo.IdentHash()
	return Promoted{
		Context: active.Context{
			Address:    s.address,
			DstID:      s.srcID,
			IntroKey:   introKeyArr,
			RecvKeyCtx: active.NewKeyContext(kDataAB, kHeader2AB),
			SendKeyCtx: active.NewKeyContext(kDataBA, kHeader2BA),
			RouterID:   identHash,
			Sender:     s.sender,
			Rx:         s.rx,
			Runtime:    s.runtime,
		},
		FirstPacket: ssu2.Packet{Address: s.address, Data: firstPkt},
	}, nil
}

// OnPacket advances the handshake with one inbound packet, mirroring
// on_packet's mem::replace-based poisoning guard.
func (s *InboundSession) OnPacket(pkt []byte) (Status, error) {
	state := s.state
	s.state = statePoisoned{}

	switch st := state.(type) {
	case stateAwaitingSessionRequest:
		status, err := s.onSessionRequest(pkt, st.token)
		if err != nil {
			s.state = st
			return NoStatus{}, err
		}
		return status, nil
	case stateAwaitingSessionConfirmed:
		status, err := s.onSessionConfirmed(pkt, st)
		if err != nil {
			s.state = st
			return NoStatus{}, err
		}
		return status, nil
	case statePoisoned:
		log.WithFields(logrus.Fields{"dst_id": s.dstID, "src_id": s.srcID}).Warn("inbound session state is poisoned")
		return Failed{Err: ssu2.ErrPoisoned}, nil
	default:
		return Failed{Err: ssu2.ErrUnexpectedMessage}, nil
	}
}

// Run drives the handshake's polling loop: awaiting the next inbound
// datagram or the retry timer. It returns once the handshake fails,
// times out, or promotes to active.
func (s *InboundSession) Run() Status {
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
