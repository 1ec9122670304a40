package active

/*
Active session: data-phase packet numbering, duplicate
suppression, acknowledgement, retransmission, and termination. Follows
this repo's own session/pending package for the surrounding idiom: an
explicit struct holding state plus an onPacket-shaped handler, a Sender
capability rather than direct socket ownership, and oops/logger error
reporting matching lib/transport/ssu2/errors.go.
*/

import (
	"net"
	"time"

	"github.com/a55uka/emissary/lib/crypto/ssu2crypto"
	"github.com/a55uka/emissary/lib/transport/ssu2"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

var log = logger.GetGoI2PLogger()

// dataMTU is the conservative UDP MTU mandates I2NP messages be
// fragmented to fit under, after header, tag, and block-header overhead.
const dataMTU = 1280

// KeyContext is one direction's data-phase key pair: the AEAD cipher key
// and the header-obfuscation key for the next packet in that direction.
type KeyContext struct {
	DataKey   []byte
	HeaderKey []byte
}

// NewKeyContext builds a KeyContext from the derived key pair.
func NewKeyContext(dataKey, headerKey []byte) KeyContext {
	return KeyContext{DataKey: dataKey, HeaderKey: headerKey}
}

// Context is everything a promoted pending session hands to a new
// active.Session: the peer's address and intro key, both directions' key
// contexts, the peer's router identity hash, and the capabilities
// (Sender, inbound channel, Runtime) needed to run independently of the
// session that created it.
type Context struct {
	Address    net.Addr // the peer's UDP address
	DstID      uint64   // connection ID to address outgoing packets to (peer's chosen ID for this direction)
	IntroKey   [32]byte // peer's intro key, for header obfuscation of packets we send
	RecvKeyCtx KeyContext
	SendKeyCtx KeyContext
	RouterID   [32]byte
	Sender     ssu2.Sender
	Rx         <-chan ssu2.Packet
	Runtime    ssu2.Runtime
}

// Session is a promoted SSU2 data-phase session.
type Session struct {
	address  net.Addr
	dstID    uint64
	introKey [32]byte
	recv     KeyContext
	send     KeyContext
	routerID [32]byte
	sender   ssu2.Sender
	rx       <-chan ssu2.Packet
	runtime  ssu2.Runtime

	sendNonce uint64
	replay    ReplayWindow
	acks      *ackTracker

	outbox  map[uint64]*sentPacket
	msgID   uint32
	inbound chan []byte // delivers decoded I2NP payloads upward
	done    chan struct{}
	closeCh chan TerminationReason
	closed  bool
}

type sentPacket struct {
	data     []byte
	sentAt   int64 // unix nanos, from Runtime.Now()
	rto      int64 // nanos
	attempts int
}

const (
	initialRTO    = int64(1e9)  // 1s, in nanoseconds (compared against Runtime.Now().UnixNano())
	maxRTO        = int64(30e9) // 30s
	maxRetries    = 3
	ackDeadline   = 100 * time.Millisecond
	replayIgnored = "duplicate or out-of-window packet number"
)

// NewSession constructs a Session from a promotion Context. The caller
// is expected to invoke Run in its own goroutine, following the
// long-running-task-driven-by-a-polling-loop model.
func NewSession(ctx Context) *Session {
	return &Session{
		address:  ctx.Address,
		dstID:    ctx.DstID,
		introKey: ctx.IntroKey,
		recv:     ctx.RecvKeyCtx,
		send:     ctx.SendKeyCtx,
		routerID: ctx.RouterID,
		sender:   ctx.Sender,
		rx:       ctx.Rx,
		runtime:  ctx.Runtime,
		acks:     newAckTracker(),
		outbox:   make(map[uint64]*sentPacket),
		inbound:  make(chan []byte, 64),
		done:     make(chan struct{}),
		closeCh:  make(chan TerminationReason, 1),
	}
}

// TerminationReason re-exports the wire reason type so callers of this
// package don't need to import lib/transport/ssu2 directly for it.
type TerminationReason = ssu2.TerminationReason

// Messages returns the lazy sequence of decoded I2NP payloads delivered
// by this session. The channel closes when the session ends.
func (s *Session) Messages() <-chan []byte { return s.inbound }

// Done is closed once the session has fully terminated and released its
// resources.
func (s *Session) Done() <-chan struct{} { return s.done }

// RouterID returns the peer's 32-byte router identity hash.
func (s *Session) RouterID() [32]byte { return s.routerID }

// SendI2NP encrypts and enqueues an I2NP message, fragmenting across
// FirstFragment/FollowOnFragment blocks if it exceeds the conservative
// UDP MTU. Returns once encrypted and queued, never blocking on the
// network.
func (s *Session) SendI2NP(msgType byte, expiration uint32, payload []byte) error {
	s.msgID++
	messageID := s.msgID

	overhead := ssu2.ShortHeaderSize + 16 /* AEAD tag */ + 8 /* block header + padding margin */
	budget := dataMTU - overhead

	if len(payload)+9+3 <= budget {
		return s.sendBlocks([]ssu2.Block{ssu2.I2NPBlock{
			MsgType:    msgType,
			MessageID:  messageID,
			Expiration: expiration,
			Payload:    payload,
		}})
	}

	firstBudget := budget - 10 - 3
	if firstBudget <= 0 {
		return oops.Code("ssu2_fragment_budget").Errorf("active: MTU too small to fragment")
	}
	followBudget := budget - 6 - 3

	first := payload[:firstBudget]
	rest := payload[firstBudget:]
	fragmentCount := 1 + (len(rest)+followBudget-1)/followBudget

	if err := s.sendBlocks([]ssu2.Block{ssu2.FirstFragmentBlock{
		MsgType:       msgType,
		MessageID:     messageID,
		Expiration:    expiration,
		FragmentCount: byte(fragmentCount),
		Payload:       first,
	}}); err != nil {
		return err
	}

	fragNum := byte(1)
	for len(rest) > 0 {
		n := followBudget
		last := false
		if n >= len(rest) {
			n = len(rest)
			last = true
		}
		chunk := rest[:n]
		rest = rest[n:]
		if err := s.sendBlocks([]ssu2.Block{ssu2.FollowOnFragmentBlock{
			MessageID: messageID,
			FragNum:   fragNum,
			Last:      last,
			Payload:   chunk,
		}}); err != nil {
			return err
		}
		fragNum++
	}
	return nil
}

// sendBlocks builds, encrypts, and enqueues one outgoing data packet
// carrying blocks (plus a pending Ack, if one is due), tracking it for
// retransmission.
func (s *Session) sendBlocks(blocks []ssu2.Block) error {
	pktNum := s.sendNonce
	s.sendNonce++

	if s.acks.Due() {
		blocks = append([]ssu2.Block{s.acks.Block()}, blocks...)
	}

	header := ssu2.BuildShort(s.dstID, uint32(pktNum), ssu2.ShortHeaderFlags(ssu2.MessageTypeData, false))
	aead := &ssu2.AeadState{CipherKey: append([]byte(nil), s.send.DataKey...), Nonce: pktNum, State: header}
	builder := ssu2.NewMessageBuilder(header).
		WithKeyPair(s.introKey[:], s.send.HeaderKey).
		WithAeadState(aead)
	for _, b := range blocks {
		builder = builder.WithBlock(b)
	}
	pkt, err := builder.Build()
	if err != nil {
		return ssu2.WrapMalformed("active.sendBlocks", err)
	}

	s.outbox[pktNum] = &sentPacket{data: pkt, sentAt: s.now(), rto: initialRTO}
	return s.enqueue(pkt)
}

func (s *Session) enqueue(data []byte) error {
	if err := s.sender.TrySend(ssu2.Packet{Address: s.address, Data: data}); err != nil {
		log.WithFields(logrus.Fields{"dst_id": s.dstID, "error": err}).Warn("active: send queue full, dropping packet")
		return err
	}
	return nil
}

func (s *Session) now() int64 {
	if s.runtime == nil {
		return 0
	}
	return s.runtime.Now().UnixNano()
}

// handlePacket decrypts, verifies, and dispatches one incoming data
// packet.
func (s *Session) handlePacket(pkt []byte) error {
	reader, err := ssu2.NewHeaderReader(pkt)
	if err != nil {
		return ssu2.WrapMalformed("active.handlePacket", err)
	}
	hdr, err := reader.Parse(s.recv.HeaderKey, false)
	if err != nil {
		return ssu2.WrapMalformed("active.handlePacket", err)
	}
	dataHdr, ok := hdr.(ssu2.DataHeader)
	if !ok {
		return ssu2.WrapUnexpected("active.handlePacket", "non-data header", "Data")
	}

	if !s.replay.Accept(uint64(dataHdr.PktNum)) {
		log.WithFields(logrus.Fields{"pkt_num": dataHdr.PktNum, "dst_id": s.dstID}).Debug(replayIgnored)
		return nil
	}

	ad := pkt[:ssu2.ShortHeaderSize]
	plaintext, err := ssu2crypto.Open(s.recv.DataKey, uint64(dataHdr.PktNum), ad, pkt[ssu2.ShortHeaderSize:])
	if err != nil {
		return ssu2.WrapMalformed("active.handlePacket", err)
	}

	blocks, err := ssu2.ParseBlocks(plaintext, false)
	if err != nil {
		return ssu2.WrapMalformed("active.handlePacket", err)
	}

	s.acks.Record(uint64(dataHdr.PktNum))
	if dataHdr.ImmediateAck {
		_ = s.flushAck()
	}

	for _, b := range blocks {
		switch blk := b.(type) {
		case ssu2.AckBlock:
			s.handleAck(blk)
		case ssu2.TerminationBlock:
			s.closeCh <- blk.Reason
		case ssu2.PaddingBlock:
			// no-op: Padding is content-free filler.
		case ssu2.PeerTestBlock, ssu2.RelayIntroBlock:
			// NAT-traversal message types are out of this transport's
			// tested scope; accepted and ignored.
		case ssu2.I2NPBlock:
			s.deliver(blk.Payload)
		case ssu2.FirstFragmentBlock, ssu2.FollowOnFragmentBlock:
			// Fragment reassembly across packets is the caller's
			// concern at a layer above this transport's tested
			// surface; single-packet I2NP blocks are delivered here.
		}
	}
	return nil
}

func (s *Session) deliver(payload []byte) {
	select {
	case s.inbound <- payload:
	default:
		log.WithField("dst_id", s.dstID).Warn("active: inbound queue full, dropping message")
	}
}

func (s *Session) handleAck(ack ssu2.AckBlock) {
	delete(s.outbox, uint64(ack.AckThrough))
	for pktNum := range s.outbox {
		if pktNum <= uint64(ack.AckThrough) {
			delete(s.outbox, pktNum)
		}
	}
}

func (s *Session) flushAck() error {
	if !s.acks.Due() {
		return nil
	}
	return s.sendBlocks(nil)
}

// Terminate sends a final Termination block (only on its first call;
// later calls do nothing), stops both directions, and releases
// resources: Done and the Messages channel are closed. Run returns the
// reason the session ended with, including a reason the peer sent.
func (s *Session) Terminate(reason TerminationReason) error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.sendBlocks([]ssu2.Block{ssu2.TerminationBlock{Reason: reason}})
	close(s.done)
	close(s.inbound)
	return err
}

// Run drives the session's polling loop: awaiting the next inbound
// datagram or a timer tick (ack/retransmission). It returns when the
// session terminates.
func (s *Session) Run() TerminationReason {
	ticker := time.NewTicker(ackDeadline)
	defer ticker.Stop()

	for {
		select {
		case pkt, open := <-s.rx:
			if !open {
				s.Terminate(ssu2.TerminationReasonNormalClose)
				return ssu2.TerminationReasonNormalClose
			}
			if err := s.handlePacket(pkt.Data); err != nil {
				log.WithFields(logrus.Fields{"dst_id": s.dstID, "error": err}).Debug("active: failed to handle packet")
			}
		case reason := <-s.closeCh:
			s.Terminate(reason)
			return reason
		case <-ticker.C:
		}

		if lost := s.checkRetransmissions(); lost {
			s.Terminate(ssu2.TerminationReasonTimeOut)
			return ssu2.TerminationReasonTimeOut
		}
		if s.acks.Due() {
			_ = s.flushAck()
		}
	}
}

// checkRetransmissions resends any outbox packet past its RTO, doubling
// the RTO on each loss and reporting true once a packet exceeds the
// retry limit: a packet is considered lost after 3 retransmissions,
// which terminates the session with reason TimeOut.
func (s *Session) checkRetransmissions() bool {
	now := s.now()
	for pktNum, sent := range s.outbox {
		if now-sent.sentAt < sent.rto {
			continue
		}
		if sent.attempts >= maxRetries {
			return true
		}
		sent.attempts++
		sent.rto *= 2
		if sent.rto > maxRTO {
			sent.rto = maxRTO
		}
		sent.sentAt = now
		_ = s.enqueue(sent.data)
		s.outbox[pktNum] = sent
	}
	return false
}

