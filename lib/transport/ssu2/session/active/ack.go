package active

import "github.com/a55uka/emissary/lib/transport/ssu2"

// ackTracker accumulates received packet numbers and produces the
// (ack_through, ranges) pair an Ack block carries: "ACK
// blocks carry ack_through (highest contiguous) and a run-length-encoded
// list of gaps/ranges."
type ackTracker struct {
	ackThrough int64 // -1 until the first packet (0) is contiguous
	seen       map[uint64]bool
	pending    bool
}

func newAckTracker() *ackTracker {
	return &ackTracker{ackThrough: -1, seen: make(map[uint64]bool)}
}

// Record folds a newly accepted packet number into the tracker and marks
// an Ack as due.
func (t *ackTracker) Record(pktNum uint64) {
	t.seen[pktNum] = true
	t.pending = true
	for t.seen[uint64(t.ackThrough+1)] {
		delete(t.seen, uint64(t.ackThrough+1))
		t.ackThrough++
	}
}

// Due reports whether an Ack is owed since the last call to Block.
func (t *ackTracker) Due() bool { return t.pending }

// Block builds the current Ack block and clears the due flag. Gaps above
// ack_through are encoded as alternating (NACKs, ACKs) runs, capped at 255
// packets per run per the block's single-byte counters.
func (t *ackTracker) Block() ssu2.AckBlock {
	t.pending = false
	ackThrough := uint32(0)
	if t.ackThrough >= 0 {
		ackThrough = uint32(t.ackThrough)
	}

	var highest uint64
	for pktNum := range t.seen {
		if pktNum > highest {
			highest = pktNum
		}
	}
	if highest == 0 {
		return ssu2.AckBlock{AckThrough: ackThrough}
	}

	var ranges []ssu2.AckRange
	cursor := uint64(t.ackThrough) + 1
	for cursor <= highest && len(ranges) < 255 {
		var nacks, acks int
		for cursor <= highest && !t.seen[cursor] {
			cursor++
			nacks++
		}
		for cursor <= highest && t.seen[cursor] && acks < 255 {
			cursor++
			acks++
		}
		if nacks == 0 && acks == 0 {
			break
		}
		ranges = append(ranges, ssu2.AckRange{NACKs: capByte(nacks), ACKs: capByte(acks)})
	}
	return ssu2.AckBlock{AckThrough: ackThrough, Ranges: ranges}
}

func capByte(n int) byte {
	if n > 255 {
		return 255
	}
	return byte(n)
}
