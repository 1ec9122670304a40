package ssu2

/*
Message builder.

Builds one complete outgoing packet: header, optional ephemeral/static
key field, AEAD-encrypted block payload, and obfuscated header halves.
Callers are responsible for having folded the header (and any ephemeral
key bytes) into AeadState.State *before* calling Build, matching the
transcript-hash bookkeeping the pending-session handlers perform inline
(see keyschedule.go's FoldTranscript helper); Build folds the resulting
ciphertext into State afterward, so the caller's AeadState is ready for
the next step when Build returns.
*/

import (
	"encoding/binary"

	"github.com/a55uka/emissary/lib/crypto/ssu2crypto"
)

// AeadState carries the per-message AEAD cipher key, the next nonce to
// use, and the running transcript hash ("state") that is
// folded with each packet's ciphertext.
type AeadState struct {
	CipherKey []byte
	Nonce     uint64
	State     []byte
}

// MessageBuilder assembles one SSU2 packet. It never retries or buffers;
// retransmission is the session's responsibility.
type MessageBuilder struct {
	header        []byte
	longHeader    bool
	ephemeralKey  []byte
	extraField    []byte
	extraFieldKey []byte
	extraFieldAD  []byte
	firstHalfKey  []byte
	secondHalfKey []byte
	aead          *AeadState
	blocks        []Block
	minPadding    int
}

// NewMessageBuilder starts building a packet around a plaintext header
// produced by BuildLong or BuildShort.
func NewMessageBuilder(header []byte) *MessageBuilder {
	return &MessageBuilder{header: header, longHeader: len(header) == LongHeaderSize, minPadding: 8}
}

// WithKey obfuscates both header halves with the same key, the mode used
// for TokenRequest/Retry, whose payload Build seals directly under that
// same intro key and which have no distinct k_header_2 yet.
func (m *MessageBuilder) WithKey(key []byte) *MessageBuilder {
	m.firstHalfKey = key
	m.secondHalfKey = key
	return m
}

// WithKeyPair sets distinct first- and second-header-half obfuscation
// keys: the peer's intro key and this message's k_header_2.
func (m *MessageBuilder) WithKeyPair(firstHalfKey, secondHalfKey []byte) *MessageBuilder {
	m.firstHalfKey = firstHalfKey
	m.secondHalfKey = secondHalfKey
	return m
}

// WithEphemeralKey attaches a 32-byte ephemeral public key field after
// the header, as SessionRequest/SessionCreated do.
func (m *MessageBuilder) WithEphemeralKey(pub []byte) *MessageBuilder {
	m.ephemeralKey = pub
	return m
}

// WithEncryptedField attaches a separately-AEAD-sealed field after the
// header (and ephemeral key, if any): SessionConfirmed's static-key
// field, sealed under k_session_created rather than the block payload's
// cipher key. ad is the associated data for this field (the transcript
// state at the point it is sealed).
func (m *MessageBuilder) WithEncryptedField(plaintext, key, ad []byte) *MessageBuilder {
	m.extraField = plaintext
	m.extraFieldKey = key
	m.extraFieldAD = ad
	return m
}

// WithAeadState sets the AEAD key schedule state used to seal the block
// payload.
func (m *MessageBuilder) WithAeadState(state *AeadState) *MessageBuilder {
	m.aead = state
	return m
}

// WithBlock appends a block to the payload.
func (m *MessageBuilder) WithBlock(b Block) *MessageBuilder {
	m.blocks = append(m.blocks, b)
	return m
}

// WithMinPadding sets the minimum serialized-block size (the
// "round packets to a minimum size"); default is 8.
func (m *MessageBuilder) WithMinPadding(n int) *MessageBuilder {
	m.minPadding = n
	return m
}

// Build assembles, encrypts, and obfuscates the packet.
func (m *MessageBuilder) Build() ([]byte, error) {
	var out []byte
	out = append(out, m.header...)
	if m.ephemeralKey != nil {
		out = append(out, m.ephemeralKey...)
	}

	if m.extraField != nil {
		sealed, err := ssu2crypto.Seal(m.extraFieldKey, 1, m.extraFieldAD, m.extraField)
		if err != nil {
			return nil, err
		}
		out = append(out, sealed...)
	}

	if m.aead != nil {
		plaintext := PadTo(serializeBlocks(m.blocks), m.minPadding)
		sealed, err := ssu2crypto.Seal(m.aead.CipherKey, m.aead.Nonce, m.aead.State, plaintext)
		if err != nil {
			return nil, err
		}
		out = append(out, sealed...)
		m.aead.State = ssu2crypto.Sha256(m.aead.State, sealed)
		ssu2crypto.Wipe(m.aead.CipherKey)
	} else if len(m.blocks) > 0 {
		// TokenRequest/Retry carry an AEAD-protected payload keyed on the
		// intro key directly, nonce = header's packet number, AD = header.
		plaintext := PadTo(serializeBlocks(m.blocks), m.minPadding)
		pktNum := headerPktNum(m.header)
		sealed, err := ssu2crypto.Seal(m.firstHalfKey, uint64(pktNum), m.header, plaintext)
		if err != nil {
			return nil, err
		}
		out = append(out, sealed...)
	}

	pktNum := headerPktNum(m.header)
	headerLen := ShortHeaderSize
	if m.longHeader {
		headerLen = LongHeaderSize
	}
	if err := ObfuscateHeader(m.firstHalfKey, m.secondHalfKey, out[:headerLen], pktNum, out); err != nil {
		return nil, err
	}
	return out, nil
}

func serializeBlocks(blocks []Block) []byte {
	var out []byte
	for _, b := range blocks {
		out = AppendBlock(out, b)
	}
	return out
}

func headerPktNum(header []byte) uint32 {
	if len(header) < 12 {
		return 0
	}
	return binary.BigEndian.Uint32(header[8:12])
}
