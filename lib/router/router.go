// Package router glues the SSU2 socket multiplexer to the pending and
// active session packages: a small struct tying Socket and the pending
// and active session tables together. It is the
// only package that imports both lib/transport/ssu2/session/pending and
// lib/transport/ssu2/session/active, since ssu2 itself (the header/
// block/message codec and Socket) must stay free of either to avoid an
// import cycle (both session packages import ssu2 for its codec types).
package router

import (
	"encoding/binary"
	"net"
	"strconv"
	"sync"

	"github.com/a55uka/emissary/lib/common"
	"github.com/a55uka/emissary/lib/crypto/ssu2crypto"
	"github.com/a55uka/emissary/lib/transport/ssu2"
	"github.com/a55uka/emissary/lib/transport/ssu2/session/active"
	"github.com/a55uka/emissary/lib/transport/ssu2/session/pending"
	"github.com/go-i2p/logger"
	"github.com/sirupsen/logrus"
)

var log = logger.GetGoI2PLogger()

const sessionInboxSize = 32

// Router owns one SSU2 Socket plus the live pending and active session
// tables keyed by connection ID.
type Router struct {
	socket     *ssu2.Socket
	introKey   [32]byte
	staticKey  ssu2crypto.StaticPrivateKey
	netID      byte
	routerInfo common.RouterInfo
	runtime    ssu2.Runtime

	mu       sync.Mutex
	pendingT map[uint64]chan ssu2.Packet
	activeT  map[uint64]*active.Session

	sessions chan *active.Session
}

// Config seeds a new Router with this node's own identity material.
type Config struct {
	Conn       net.PacketConn
	IntroKey   [32]byte
	StaticKey  ssu2crypto.StaticPrivateKey
	NetID      byte
	RouterInfo common.RouterInfo
	Runtime    ssu2.Runtime
}

// New constructs a Router bound to an already-opened UDP socket and
// starts its inbound-admission loop.
func New(cfg Config) *Router {
	runtime := cfg.Runtime
	if runtime == nil {
		runtime = ssu2.StdRuntime{}
	}
	r := &Router{
		socket:     ssu2.NewSocket(cfg.Conn, cfg.IntroKey),
		introKey:   cfg.IntroKey,
		staticKey:  cfg.StaticKey,
		netID:      cfg.NetID,
		routerInfo: cfg.RouterInfo,
		runtime:    runtime,
		pendingT:   make(map[uint64]chan ssu2.Packet),
		activeT:    make(map[uint64]*active.Session),
		sessions:   make(chan *active.Session, 16),
	}
	go r.admitLoop()
	return r
}

// Sessions yields newly promoted active sessions (inbound or outbound),
// for the caller to read traffic from via Session.Messages().
func (r *Router) Sessions() <-chan *active.Session { return r.sessions }

// admitLoop reads candidate TokenRequest packets from the socket and
// spins up a new pending inbound handshake for each, mirroring spec
// §4.7's "admits new inbound pending sessions on TokenRequest".
func (r *Router) admitLoop() {
	for pkt := range r.socket.NewSessions() {
		if len(pkt.Data) < ssu2.LongHeaderSize {
			continue
		}
		// TokenRequest's second header half is obfuscated with the same
		// intro key as the first (no session-specific k_header_2 exists
		// yet), so it can be unmasked here, before the session exists.
		if err := ssu2.DeobfuscateSecondHalf(r.introKey[:], pkt.Data, ssu2.LongHeaderSize); err != nil {
			log.WithField("error", err).Debug("router: failed to unmask candidate TokenRequest header")
			continue
		}
		dstID := readDstID(pkt.Data)
		srcID := readSrcID(pkt.Data)
		pktNum := readPktNum(pkt.Data)

		inbox := make(chan ssu2.Packet, sessionInboxSize)
		ctx := pending.InboundContext{
			Address:    pkt.Address,
			DstID:      dstID,
			SrcID:      srcID,
			IntroKey:   r.introKey,
			LocalNetID: r.netID,
			Pkt:        pkt.Data,
			PktNum:     pktNum,
			Sender:     r.socket,
			Rx:         inbox,
			StaticKey:  r.staticKey,
			Runtime:    r.runtime,
		}
		session, err := pending.NewInboundSession(ctx)
		if err != nil {
			log.WithFields(logrus.Fields{"dst_id": dstID, "error": err}).Debug("router: rejected candidate TokenRequest")
			continue
		}

		r.mu.Lock()
		r.pendingT[dstID] = inbox
		r.mu.Unlock()
		r.socket.Register(dstID, inbox)

		go r.runPendingInbound(dstID, inbox, session)
	}
}

func (r *Router) runPendingInbound(dstID uint64, inbox chan ssu2.Packet, session *pending.InboundSession) {
	status := session.Run()
	r.mu.Lock()
	delete(r.pendingT, dstID)
	r.mu.Unlock()
	r.socket.Unregister(dstID)
	r.finishHandshake(dstID, inbox, status)
}

// Dial starts an outbound handshake to a peer already known via its
// RouterInfo (learned from the network database), mirroring
// OutboundSsu2Session::new on the Rust side.
func (r *Router) Dial(peer common.RouterInfo) error {
	addr, introKey, staticKey, ok := peer.SSU2Address()
	if !ok {
		return ssu2.WrapMalformed("router.Dial", ssu2.ErrMalformed)
	}
	host, _ := addr.GetOption("host")
	portStr, _ := addr.GetOption("port")
	port, _ := strconv.Atoi(portStr)
	udpAddr := &net.UDPAddr{IP: net.ParseIP(host), Port: port}

	peerIntroKeyBytes, err := common.Base64Decode(introKey)
	if err != nil || len(peerIntroKeyBytes) != 32 {
		return ssu2.WrapMalformed("router.Dial", ssu2.ErrMalformed)
	}
	var peerIntroKeyArr [32]byte
	copy(peerIntroKeyArr[:], peerIntroKeyBytes)

	peerStaticKeyBytes, err := common.Base64Decode(staticKey)
	if err != nil {
		return ssu2.WrapMalformed("router.Dial", ssu2.ErrMalformed)
	}
	peerStaticKey, err := ssu2crypto.StaticPublicKeyFromBytes(peerStaticKeyBytes)
	if err != nil {
		return ssu2.WrapMalformed("router.Dial", err)
	}

	dstID := r.runtime.RandUint64()
	inbox := make(chan ssu2.Packet, sessionInboxSize)

	ctx := pending.OutboundContext{
		Address:       udpAddr,
		DstID:         dstID,
		LocalNetID:    r.netID,
		PeerIntroKey:  peerIntroKeyArr,
		PeerStaticKey: peerStaticKey,
		PeerRouterID:  peer.IdentHash(),
		OurStaticKey:  r.staticKey,
		OurRouterInfo: r.routerInfo,
		Sender:        r.socket,
		Rx:            inbox,
		Runtime:       r.runtime,
	}
	session, err := pending.NewOutboundSession(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.pendingT[dstID] = inbox
	r.mu.Unlock()
	r.socket.Register(dstID, inbox)

	go r.runPendingOutbound(dstID, inbox, session)
	return nil
}

func (r *Router) runPendingOutbound(dstID uint64, inbox chan ssu2.Packet, session *pending.OutboundSession) {
	status := session.Run()
	r.mu.Lock()
	delete(r.pendingT, dstID)
	r.mu.Unlock()
	r.socket.Unregister(dstID)
	r.finishHandshake(dstID, inbox, status)
}

// finishHandshake promotes a completed handshake to an active session,
// re-registering its connection ID (the same one the pending handshake
// used — the Context's DstID is the *peer's* connection ID, used only
// for addressing outgoing packets) for data-phase traffic.
func (r *Router) finishHandshake(dstID uint64, inbox chan ssu2.Packet, status pending.Status) {
	switch st := status.(type) {
	case pending.Promoted:
		if len(st.FirstPacket.Data) > 0 {
			if err := r.socket.TrySend(st.FirstPacket); err != nil {
				log.WithFields(logrus.Fields{"dst_id": dstID, "error": err}).Warn("router: failed to send handshake's first data packet")
			}
		}
		session := active.NewSession(st.Context)
		r.mu.Lock()
		r.activeT[dstID] = session
		r.mu.Unlock()
		r.socket.Register(dstID, inbox)

		go r.runActive(dstID, session)

		select {
		case r.sessions <- session:
		default:
			log.WithField("dst_id", dstID).Warn("router: sessions queue full, dropping promotion notice")
		}
	case pending.Failed:
		log.WithFields(logrus.Fields{"dst_id": dstID, "error": st.Err}).Debug("router: handshake failed")
	case pending.SocketClosed:
		log.WithField("dst_id", dstID).Debug("router: handshake aborted, socket closed")
	}
}

func (r *Router) runActive(dstID uint64, session *active.Session) {
	session.Run()
	r.mu.Lock()
	delete(r.activeT, dstID)
	r.mu.Unlock()
	r.socket.Unregister(dstID)
}

// Close shuts down the socket and, transitively, every goroutine
// blocked reading from it.
func (r *Router) Close() error {
	return r.socket.Close()
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
