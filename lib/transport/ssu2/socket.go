package ssu2

/*
Socket multiplexer. One UDP endpoint is shared by
every pending and active session on this router. On read, it only
performs the first-header-half unmasking (it has no session-specific
k_header_2 to go further) to recover dst_id, then routes the still
partially-obfuscated packet to whichever session registered that ID.
Packets whose dst_id is unknown are handed to NewSessions() for the
caller (lib/router's glue) to admit as a new
pending inbound handshake.

Follows the NTCP2 transport's Transport/Accept split: a single
entry point demuxes incoming traffic and either routes it to an
existing session or offers it up as a new one. Socket owns the
*single* writer goroutine draining a bounded queue, matching the
"one writer, non-blocking try-send" design note; this is also the type
that implements the Sender capability handed to every session.
*/

import (
	"encoding/binary"
	"net"
	"sync"

	"github.com/go-i2p/logger"
	"github.com/sirupsen/logrus"
)

var log = logger.GetGoI2PLogger()

const (
	defaultSendQueueSize = 256
	defaultRouteQueue    = 64
	udpReadBufferSize    = 2048
)

// Socket owns the UDP endpoint and the routing table from dst_id to a
// session's inbox channel.
type Socket struct {
	conn     net.PacketConn
	introKey [32]byte

	mu     sync.RWMutex
	routes map[uint64]chan Packet

	newSessions chan Packet
	outbox      chan Packet
	closed      chan struct{}
	closeOnce   sync.Once
}

// NewSocket wraps an already-bound UDP PacketConn. introKey is this
// router's own SSU2 intro key, used to unmask the first header half of
// every inbound packet.
func NewSocket(conn net.PacketConn, introKey [32]byte) *Socket {
	s := &Socket{
		conn:        conn,
		introKey:    introKey,
		routes:      make(map[uint64]chan Packet),
		newSessions: make(chan Packet, defaultRouteQueue),
		outbox:      make(chan Packet, defaultSendQueueSize),
		closed:      make(chan struct{}),
	}
	go s.readLoop()
	go s.writeLoop()
	return s
}

// Register associates dst_id with a session's inbox channel. Pending
// and active sessions each register the connection ID(s) they expect
// to receive traffic on.
func (s *Socket) Register(dstID uint64, inbox chan Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[dstID] = inbox
}

// Unregister removes a routing entry, once a session terminates or a
// pending handshake is promoted to a new dst_id.
func (s *Socket) Unregister(dstID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.routes, dstID)
}

// NewSessions yields packets whose dst_id matched no registered route:
// candidate TokenRequests for new inbound handshakes.
func (s *Socket) NewSessions() <-chan Packet { return s.newSessions }

// TrySend implements Sender: it never blocks, logging and dropping if
// the outbound queue is full rather than stalling the caller.
func (s *Socket) TrySend(pkt Packet) error {
	select {
	case s.outbox <- pkt:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops both goroutines and closes the underlying connection.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return s.conn.Close()
}

func (s *Socket) readLoop() {
	buf := make([]byte, udpReadBufferSize)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
				log.WithField("error", err).Warn("ssu2 socket: read failed")
				continue
			}
		}
		if n < 8 {
			continue
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])

		if err := DeobfuscateFirstHalf(s.introKey[:], pkt); err != nil {
			log.WithField("error", err).Debug("ssu2 socket: failed to unmask first header half")
			continue
		}
		dstID := binary.BigEndian.Uint64(pkt[0:8])

		s.mu.RLock()
		inbox, ok := s.routes[dstID]
		s.mu.RUnlock()

		routed := Packet{Address: addr, Data: pkt}
		if ok {
			select {
			case inbox <- routed:
			default:
				log.WithField("dst_id", dstID).Warn("ssu2 socket: session inbox full, dropping packet")
			}
			continue
		}

		select {
		case s.newSessions <- routed:
		default:
			log.WithField("dst_id", dstID).Warn("ssu2 socket: new-session queue full, dropping packet")
		}
	}
}

func (s *Socket) writeLoop() {
	for {
		select {
		case <-s.closed:
			return
		case pkt := <-s.outbox:
			if _, err := s.conn.WriteTo(pkt.Data, pkt.Address); err != nil {
				log.WithFields(logrus.Fields{"addr": pkt.Address, "error": err}).Warn("ssu2 socket: write failed")
			}
		}
	}
}
