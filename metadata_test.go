package vault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestMetadata(t *testing.T) *VaultMetadata {
	t.Helper()
	m := &VaultMetadata{
		SpaceID:      "space-1",
		CreatedAt:    time.Now().UTC(),
		Version:      MetadataVersion,
		PasswordSalt: make([]byte, 32),
		PasswordHash: make([]byte, 32),
		DEKSalt:      make([]byte, 32),
		EncryptedDEK: make([]byte, 48),
		DEKNonce:     make([]byte, 12),
	}
	for _, b := range [][]byte{m.PasswordSalt, m.PasswordHash, m.DEKSalt, m.EncryptedDEK, m.DEKNonce} {
		_, err := rand.Read(b)
		require.NoError(t, err)
	}
	return m
}

func TestMetadataValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, validTestMetadata(t).Validate())
	})

	tests := []struct {
		name   string
		mutate func(*VaultMetadata)
	}{
		{"MissingSpaceID", func(m *VaultMetadata) { m.SpaceID = "" }},
		{"WrongVersion", func(m *VaultMetadata) { m.Version = 2 }},
		{"ShortPasswordSalt", func(m *VaultMetadata) { m.PasswordSalt = m.PasswordSalt[:31] }},
		{"MissingPasswordSalt", func(m *VaultMetadata) { m.PasswordSalt = nil }},
		{"ShortPasswordHash", func(m *VaultMetadata) { m.PasswordHash = m.PasswordHash[:16] }},
		{"ShortDEKSalt", func(m *VaultMetadata) { m.DEKSalt = m.DEKSalt[:31] }},
		{"ShortEncryptedDEK", func(m *VaultMetadata) { m.EncryptedDEK = m.EncryptedDEK[:47] }},
		{"LongEncryptedDEK", func(m *VaultMetadata) { m.EncryptedDEK = append(m.EncryptedDEK, 0) }},
		{"ShortNonce", func(m *VaultMetadata) { m.DEKNonce = m.DEKNonce[:11] }},
		{"SaltsEqual", func(m *VaultMetadata) { m.DEKSalt = append([]byte{}, m.PasswordSalt...) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validTestMetadata(t)
			tt.mutate(m)
			err := m.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestMetadataPersistsBytesAsBase64(t *testing.T) {
	m := validTestMetadata(t)
	doc, err := m.Marshal()
	require.NoError(t, err)

	// The persisted document must carry byte fields as base64 text.
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(doc, &raw))

	fields := map[string]int{
		"password_salt": 32,
		"password_hash": 32,
		"dek_salt":      32,
		"encrypted_dek": 48,
		"dek_nonce":     12,
	}
	for field, size := range fields {
		encoded, ok := raw[field].(string)
		require.True(t, ok, "%s must serialize as a string", field)
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err, "%s must be valid base64", field)
		assert.Len(t, decoded, size)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	m := validTestMetadata(t)
	doc, err := m.Marshal()
	require.NoError(t, err)

	parsed, err := unmarshalMetadata(doc)
	require.NoError(t, err)
	assert.Equal(t, m.SpaceID, parsed.SpaceID)
	assert.Equal(t, m.EncryptedDEK, parsed.EncryptedDEK)
	assert.Equal(t, m.DEKNonce, parsed.DEKNonce)
}

func TestUnmarshalMetadataRejectsGarbage(t *testing.T) {
	_, err := unmarshalMetadata([]byte("{not json"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = unmarshalMetadata([]byte(`{"space_id":"x","version":1}`))
	assert.ErrorIs(t, err, ErrValidation)
}
