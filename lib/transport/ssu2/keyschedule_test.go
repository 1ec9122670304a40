package ssu2

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAndExpandIsDeterministicPerInput(t *testing.T) {
	chainKey := bytes.Repeat([]byte{0x01}, 32)
	secretA := bytes.Repeat([]byte{0xaa}, 32)
	secretB := bytes.Repeat([]byte{0xaa}, 32)

	newChainA, cipherA := ExtractAndExpand(append([]byte(nil), chainKey...), secretA)
	newChainB, cipherB := ExtractAndExpand(append([]byte(nil), chainKey...), secretB)

	assert.Equal(t, newChainA, newChainB)
	assert.Equal(t, cipherA, cipherB)
	assert.NotEqual(t, newChainA, cipherA)
}

func TestExtractAndExpandZeroizesSharedSecret(t *testing.T) {
	chainKey := bytes.Repeat([]byte{0x01}, 32)
	secret := bytes.Repeat([]byte{0xaa}, 32)

	ExtractAndExpand(chainKey, secret)

	assert.Equal(t, make([]byte, 32), secret)
}

func TestDeriveHeaderKeyDiffersByLabel(t *testing.T) {
	chainKey := bytes.Repeat([]byte{0x05}, 32)

	keyA := DeriveHeaderKey(append([]byte(nil), chainKey...), labelSessCreateHeader)
	keyB := DeriveHeaderKey(append([]byte(nil), chainKey...), labelSessionConfirmed)

	assert.NotEqual(t, keyA, keyB)
}

func TestDeriveDataPhaseKeysProducesFourDistinctKeys(t *testing.T) {
	chainKey := bytes.Repeat([]byte{0x09}, 32)

	kDataAB, kHeader2AB, kDataBA, kHeader2BA := DeriveDataPhaseKeys(chainKey)

	keys := [][]byte{kDataAB, kHeader2AB, kDataBA, kHeader2BA}
	for i := range keys {
		for j := range keys {
			if i == j {
				continue
			}
			assert.NotEqual(t, keys[i], keys[j], "keys %d and %d must differ", i, j)
		}
	}
}

func TestFoldTranscriptChangesWithEachFold(t *testing.T) {
	state := FoldTranscript(nil, []byte("header"))
	next := FoldTranscript(state, []byte("ephemeral-key"))

	assert.NotEqual(t, state, next)

	// Folding the same inputs in the same order is deterministic.
	state2 := FoldTranscript(nil, []byte("header"))
	next2 := FoldTranscript(state2, []byte("ephemeral-key"))
	assert.Equal(t, next, next2)
}
