// Package pending implements the SSU2 handshake: inbound
// (TokenRequest → Retry → SessionRequest → SessionCreated →
// SessionConfirmed) and outbound (the mirror). The derivation order,
// domain-separation labels, and poisoned-state re-entrancy guard follow
// the reference router's handshake state machine, translated from a
// polled future into a Go struct plus an onPacket method driven by a
// goroutine loop.
package pending

import (
	"net"
	"time"

	"github.com/a55uka/emissary/lib/transport/ssu2"
	"github.com/a55uka/emissary/lib/transport/ssu2/session/active"
	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// Handshake retry policy: retransmitted by timer up to a
// fixed attempt limit (suggested: 3 retries with exponential backoff
// starting at 1 s, capped at 8 s), then the pending session is destroyed."
const (
	MaxHandshakeRetries  = 3
	initialRetryInterval = 1 * time.Second
	maxRetryInterval     = 8 * time.Second
)

// Status is the outcome of feeding a packet to a pending session.
type Status interface{ isStatus() }

// NoStatus means the handshake advanced (or the packet was rejected and
// logged) without a terminal outcome yet.
type NoStatus struct{}

func (NoStatus) isStatus() {}

// Promoted carries the new active-session context once the handshake
// completes, plus the first outgoing data packet the caller should hand
// to the socket: an empty Ack on the inbound side, and no packet (empty
// Data) on the outbound side.
type Promoted struct {
	Context     active.Context
	FirstPacket ssu2.Packet
}

func (Promoted) isStatus() {}

// Failed means the handshake could not proceed; the pending session
// should be torn down.
type Failed struct{ Err error }

func (Failed) isStatus() {}

// SocketClosed is returned when the underlying socket's inbox channel
// closes out from under the session.
type SocketClosed struct{}

func (SocketClosed) isStatus() {}

// nextRetryInterval doubles the previous interval, capped at
// maxRetryInterval, starting from initialRetryInterval.
func nextRetryInterval(prev time.Duration) time.Duration {
	if prev == 0 {
		return initialRetryInterval
	}
	next := prev * 2
	if next > maxRetryInterval {
		return maxRetryInterval
	}
	return next
}

// addrToBlock formats a net.Addr the way Block.Address expects: host bytes
// plus a port, used to build the Address block carried in Retry and
// SessionCreated so the peer learns its externally visible address.
func addrToBlock(addr net.Addr) ssu2.AddressBlock {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return ssu2.AddressBlock{}
	}
	ip := udpAddr.IP.To4()
	if ip == nil {
		ip = udpAddr.IP.To16()
	}
	return ssu2.AddressBlock{IP: ip, Port: uint16(udpAddr.Port)}
}
