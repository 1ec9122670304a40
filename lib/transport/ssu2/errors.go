package ssu2

import (
	"errors"

	"github.com/samber/oops"
)

// Sentinel error kinds. Callers compare with errors.Is;
// the oops-wrapped error returned at each boundary still satisfies that
// comparison since oops.Wrap preserves the wrapped chain.
var (
	ErrMalformed         = errors.New("ssu2: malformed packet")
	ErrUnexpectedMessage = errors.New("ssu2: unexpected message for current state")
	ErrInvalidVersion    = errors.New("ssu2: invalid protocol version")
	ErrInvalidNetID      = errors.New("ssu2: invalid net id")
	ErrTimeout           = errors.New("ssu2: timeout")
	ErrSocketClosed      = errors.New("ssu2: socket closed")
	// ErrPoisoned is returned when a pending session's state is observed
	// in its Poisoned sentinel on entry to a handler: a prior transition
	// panicked partway through, per the re-entrancy guard.
	ErrPoisoned = errors.New("ssu2: pending session state poisoned")
)

// SessionTerminatedError is surfaced upward when an active session ends,
// carrying the peer's stated reason (or a local one) verbatim.
type SessionTerminatedError struct {
	Reason TerminationReason
}

func (e *SessionTerminatedError) Error() string {
	return "ssu2: session terminated: " + e.Reason.String()
}

// WrapMalformed/WrapUnexpected/WrapTimeout/WrapInvalidNetID attach oops
// stack context to a sentinel kind at the boundary that observed it,
// following the same oops wrapping convention used elsewhere in this
// codebase for session errors. Exported so the session/pending
// and session/active packages (which observe most of these boundaries)
// can produce the same wrapped-sentinel shape as this package does.
func WrapMalformed(op string, err error) error {
	return oops.Code("ssu2_malformed").With("op", op).Wrap(errJoin(ErrMalformed, err))
}

func WrapUnexpected(op string, got, want string) error {
	return oops.Code("ssu2_unexpected_message").With("op", op).With("got", got).With("want", want).Wrap(ErrUnexpectedMessage)
}

func WrapTimeout(op string) error {
	return oops.Code("ssu2_timeout").With("op", op).Wrap(ErrTimeout)
}

func WrapInvalidNetID(op string, got, want byte) error {
	return oops.Code("ssu2_invalid_net_id").With("op", op).With("got", got).With("want", want).Wrap(ErrInvalidNetID)
}

func errJoin(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return errors.Join(sentinel, cause)
}
