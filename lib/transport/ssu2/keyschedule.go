package ssu2

/*
Key schedule. Mirrors, byte-for-byte, the domain-separated
extract/expand chain used throughout the handshake: each step mixes the
running chaining_key with a fresh DH shared secret through one extract-then-
expand HMAC-SHA256 pair, producing a new chaining_key and a
message-specific cipher_key. Header keys for the next expected message
are derived from the current chaining_key, and the two data-phase key
pairs from the final one, each with its own domain-separation label.

All intermediate buffers are zeroized before the deriving function
returns, per the rule that "all intermediate buffers ... are zeroized
before scope exit."
*/

import "github.com/a55uka/emissary/lib/crypto/ssu2crypto"

const (
	labelSessCreateHeader = "SessCreateHeader"
	labelSessionConfirmed = "SessionConfirmed"
	labelDataKeys         = "HKDFSSU2DataKeys"
)

// ExtractAndExpand is the canonical SSU2 chaining step: given the current
// chaining_key and a fresh DH shared secret, it derives the next
// chaining_key and a message-specific cipher_key. sharedSecret is
// zeroized before return; callers must copy it beforehand if they need
// it preserved for a second use (SSU2 never does).
func ExtractAndExpand(chainKey, sharedSecret []byte) (newChainKey, cipherKey []byte) {
	tempKey := ssu2crypto.Hmac(chainKey, sharedSecret)
	newChainKey = ssu2crypto.Hmac(tempKey, []byte{0x01})
	cipherKey = ssu2crypto.Hmac(tempKey, newChainKey, []byte{0x02})
	ssu2crypto.Wipe(tempKey)
	ssu2crypto.Wipe(sharedSecret)
	return
}

// DeriveHeaderKey derives k_header_2 for the next expected message from
// the current chaining_key, domain-separated by label
// ("SessCreateHeader" or "SessionConfirmed").
func DeriveHeaderKey(chainKey []byte, label string) []byte {
	tempKey := ssu2crypto.Hmac(chainKey)
	out := ssu2crypto.Hmac(tempKey, []byte(label), []byte{0x01})
	ssu2crypto.Wipe(tempKey)
	return out
}

// DeriveDataPhaseKeys derives the four data-phase keys from the final
// chaining_key computed after SessionConfirmed is verified: k_data_ab /
// k_header_2_ab (initiator -> responder) and k_data_ba / k_header_2_ba
// (responder -> initiator).
func DeriveDataPhaseKeys(chainKey []byte) (kDataAB, kHeader2AB, kDataBA, kHeader2BA []byte) {
	tempKey := ssu2crypto.Hmac(chainKey)
	kAB := ssu2crypto.Hmac(tempKey, []byte{0x01})
	kBA := ssu2crypto.Hmac(tempKey, kAB, []byte{0x02})
	ssu2crypto.Wipe(tempKey)

	tempKeyAB := ssu2crypto.Hmac(kAB)
	kDataAB = ssu2crypto.Hmac(tempKeyAB, []byte(labelDataKeys), []byte{0x01})
	kHeader2AB = ssu2crypto.Hmac(tempKeyAB, kDataAB, []byte(labelDataKeys), []byte{0x02})
	ssu2crypto.Wipe(tempKeyAB)
	ssu2crypto.Wipe(kAB)

	tempKeyBA := ssu2crypto.Hmac(kBA)
	kDataBA = ssu2crypto.Hmac(tempKeyBA, []byte(labelDataKeys), []byte{0x01})
	kHeader2BA = ssu2crypto.Hmac(tempKeyBA, kDataBA, []byte(labelDataKeys), []byte{0x02})
	ssu2crypto.Wipe(tempKeyBA)
	ssu2crypto.Wipe(kBA)
	return
}

// FoldTranscript folds data into the running transcript hash state,
// the "chaining_key at step N is a deterministic function of the
// transcript up to step N" invariant.
func FoldTranscript(state []byte, data ...[]byte) []byte {
	return ssu2crypto.Sha256(append([][]byte{state}, data...)...)
}
