package kdf

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSalt(t *testing.T) []byte {
	t.Helper()
	salt := make([]byte, SaltLen)
	_, err := rand.Read(salt)
	require.NoError(t, err)
	return salt
}

func TestDeriveDeterministic(t *testing.T) {
	password := []byte("correctHorseBattery1")
	salt := testSalt(t)

	first, err := Derive(password, salt)
	require.NoError(t, err)
	second, err := Derive(password, salt)
	require.NoError(t, err)

	assert.Equal(t, int(KeyLen), len(first))
	assert.True(t, bytes.Equal(first, second), "same password and salt must derive the same key")
}

func TestDeriveDomainSeparation(t *testing.T) {
	password := []byte("correctHorseBattery1")
	saltA := testSalt(t)
	saltB := testSalt(t)

	keyA, err := Derive(password, saltA)
	require.NoError(t, err)
	keyB, err := Derive(password, saltB)
	require.NoError(t, err)

	assert.False(t, bytes.Equal(keyA, keyB), "different salts must derive unrelated keys")
}

func TestDeriveRejectsBadSalt(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		_, err := Derive([]byte("password123"), make([]byte, n))
		assert.Error(t, err, "salt of %d bytes must be rejected", n)
	}
}

func TestVerify(t *testing.T) {
	password := []byte("correctHorseBattery1")
	salt := testSalt(t)

	hash, err := Derive(password, salt)
	require.NoError(t, err)

	t.Run("Match", func(t *testing.T) {
		assert.True(t, Verify([]byte("correctHorseBattery1"), salt, hash))
	})

	t.Run("Mismatch", func(t *testing.T) {
		assert.False(t, Verify([]byte("correctHorseBattery2"), salt, hash))
	})

	t.Run("WrongSalt", func(t *testing.T) {
		assert.False(t, Verify(password, testSalt(t), hash))
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		// Short, long, and empty expected hashes all fail without comparing.
		assert.False(t, Verify(password, salt, hash[:31]))
		assert.False(t, Verify(password, salt, append(append([]byte{}, hash...), 0)))
		assert.False(t, Verify(password, salt, nil))
	})
}
