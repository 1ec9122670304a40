package ssu2

/*
Runtime abstracts the capabilities a session needs beyond its own state:
wall-clock time, randomness, and (for the socket) UDP I/O. Go sessions
use goroutines directly rather than an explicit task-spawning
capability, so Runtime here only needs Now/RandUint64.
*/

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Runtime is implemented by StdRuntime for production use and may be
// swapped for a deterministic fake in tests.
type Runtime interface {
	Now() time.Time
	RandUint64() uint64
}

// StdRuntime is the production Runtime, backed by the standard library.
type StdRuntime struct{}

func (StdRuntime) Now() time.Time { return time.Now() }

func (StdRuntime) RandUint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand.Read on the standard reader only fails if the OS
		// entropy source is unavailable, which is unrecoverable for a
		// security-sensitive token; panic rather than hand out a
		// predictable token.
		panic("ssu2: crypto/rand unavailable: " + err.Error())
	}
	return binary.BigEndian.Uint64(b[:])
}
