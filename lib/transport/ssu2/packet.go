package ssu2

import "net"

// Packet pairs an outgoing/incoming byte buffer with the socket address it
// came from or is bound to. Ownership of Data passes to whoever reads it
// off a channel; no component retains a reference past hand-off.
type Packet struct {
	Address net.Addr
	Data    []byte
}

// Sender is the capability a pending or active session holds to reach
// the UDP socket without owning it, per the "back-reference to the
// socket" design note: "model this as a capability ... pass it by value/
// handle into the session on creation. No cyclic ownership arises."
// TrySend is non-blocking; callers log (but never crash) on a full queue,
// matching the multiplexer's back-pressure policy.
type Sender interface {
	TrySend(pkt Packet) error
}

// ErrQueueFull is returned by a Sender whose outbound queue is at
// capacity; the caller logs and drops, it never blocks or panics.
var ErrQueueFull = errQueueFull("ssu2: send queue full")

type errQueueFull string

func (e errQueueFull) Error() string { return string(e) }

// MessageType is the packet's wire type tag (long-header type field /
// short-header implied type).
type MessageType byte

const (
	MessageTypeSessionRequest   MessageType = 0
	MessageTypeSessionCreated   MessageType = 1
	MessageTypeSessionConfirmed MessageType = 2
	MessageTypeData             MessageType = 3
	MessageTypePeerTest         MessageType = 4
	MessageTypeRetry            MessageType = 5
	MessageTypeTokenRequest     MessageType = 6
	MessageTypeHolePunch        MessageType = 7
	MessageTypeTermination      MessageType = 8
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeSessionRequest:
		return "SessionRequest"
	case MessageTypeSessionCreated:
		return "SessionCreated"
	case MessageTypeSessionConfirmed:
		return "SessionConfirmed"
	case MessageTypeData:
		return "Data"
	case MessageTypePeerTest:
		return "PeerTest"
	case MessageTypeRetry:
		return "Retry"
	case MessageTypeTokenRequest:
		return "TokenRequest"
	case MessageTypeHolePunch:
		return "HolePunch"
	case MessageTypeTermination:
		return "Termination"
	default:
		return "Unknown"
	}
}

// TerminationReason is carried verbatim in a Termination block and
// surfaced upward unchanged.
type TerminationReason uint8

const (
	TerminationReasonNormalClose       TerminationReason = 0
	TerminationReasonTimeOut           TerminationReason = 1
	TerminationReasonBannedLocally     TerminationReason = 3
	TerminationReasonBadRouterInfo     TerminationReason = 10
	TerminationReasonMessageParseError TerminationReason = 14
)

func (r TerminationReason) String() string {
	switch r {
	case TerminationReasonNormalClose:
		return "NormalClose"
	case TerminationReasonTimeOut:
		return "TimeOut"
	case TerminationReasonBannedLocally:
		return "BannedLocally"
	case TerminationReasonBadRouterInfo:
		return "BadRouterInfo"
	case TerminationReasonMessageParseError:
		return "MessageParseError"
	default:
		return "Unspecified"
	}
}

// ProtocolVersion is SSU2's fixed version byte.
const ProtocolVersion = 2

const (
	LongHeaderSize  = 32
	ShortHeaderSize = 16
)
