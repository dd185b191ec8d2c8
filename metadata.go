package vault

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AmirrezaFarnamTaheri/noteece-vault/internal/envelope"
	"github.com/AmirrezaFarnamTaheri/noteece-vault/internal/kdf"
)

// MetadataVersion tags the key-derivation and wrapping scheme. There is a
// single version; bumping it means new Argon2id parameters or a new AEAD
// framing.
const MetadataVersion = 1

// VaultMetadata is the persisted, non-secret-bearing record for one vault
// space: salts, the password-verification hash and the wrapped DEK. Byte
// fields serialize as base64 text through encoding/json.
//
// PasswordSalt and DEKSalt are generated independently so the verification
// hash and the key-encryption key live in separate derivation domains; the
// same password never produces related outputs for the two purposes.
type VaultMetadata struct {
	SpaceID   string    `json:"space_id"`
	CreatedAt time.Time `json:"created_at"`
	Version   int       `json:"version"`

	PasswordSalt []byte `json:"password_salt"` // 32 bytes
	PasswordHash []byte `json:"password_hash"` // 32 bytes, Argon2id, verification only
	DEKSalt      []byte `json:"dek_salt"`      // 32 bytes, KEK derivation only
	EncryptedDEK []byte `json:"encrypted_dek"` // 48 bytes: 32-byte DEK + 16-byte tag
	DEKNonce     []byte `json:"dek_nonce"`     // 12 bytes, unique per wrap
}

// Validate checks structural completeness of every byte field. It runs before
// any cryptography on unlock, so missing or truncated metadata fails fast as
// a validation error rather than surfacing later as a spurious crypto error.
func (m *VaultMetadata) Validate() error {
	if m.SpaceID == "" {
		return fmt.Errorf("%w: missing space id", ErrValidation)
	}
	if m.Version != MetadataVersion {
		return fmt.Errorf("%w: unsupported metadata version %d", ErrValidation, m.Version)
	}
	if len(m.PasswordSalt) != kdf.SaltLen {
		return fmt.Errorf("%w: password salt must be %d bytes, got %d", ErrValidation, kdf.SaltLen, len(m.PasswordSalt))
	}
	if len(m.PasswordHash) != int(kdf.KeyLen) {
		return fmt.Errorf("%w: password hash must be %d bytes, got %d", ErrValidation, kdf.KeyLen, len(m.PasswordHash))
	}
	if len(m.DEKSalt) != kdf.SaltLen {
		return fmt.Errorf("%w: dek salt must be %d bytes, got %d", ErrValidation, kdf.SaltLen, len(m.DEKSalt))
	}
	if len(m.EncryptedDEK) != envelope.WrappedSize {
		return fmt.Errorf("%w: encrypted dek must be %d bytes, got %d", ErrValidation, envelope.WrappedSize, len(m.EncryptedDEK))
	}
	if len(m.DEKNonce) != envelope.NonceSize {
		return fmt.Errorf("%w: dek nonce must be %d bytes, got %d", ErrValidation, envelope.NonceSize, len(m.DEKNonce))
	}
	if bytes.Equal(m.PasswordSalt, m.DEKSalt) {
		return fmt.Errorf("%w: password salt and dek salt must differ", ErrValidation)
	}
	return nil
}

// Marshal serializes the metadata document for persistence.
func (m *VaultMetadata) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}

// unmarshalMetadata parses and structurally validates a persisted document.
func unmarshalMetadata(data []byte) (*VaultMetadata, error) {
	var m VaultMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: malformed metadata document: %v", ErrValidation, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
