package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"

	"github.com/AmirrezaFarnamTaheri/noteece-vault/persist"
)

// ExportFormatVersion tags the export container layout.
const ExportFormatVersion = 1

const (
	exportSaltSize   = 32
	exportIterations = 100000
	exportMethod     = "pbkdf2-sha256+chacha20poly1305"
)

// ExportContainer carries the vault metadata document encrypted under an
// independent passphrase, for moving a vault to another device. The payload
// is the metadata document as persisted; the DEK inside it is still wrapped
// under the vault password. Encrypting the document keeps salts and the
// password hash away from casual copies.
type ExportContainer struct {
	ExportID         string    `json:"export_id"`
	CreatedAt        time.Time `json:"created_at"`
	FormatVersion    int       `json:"format_version"`
	EncryptionMethod string    `json:"encryption_method"`
	Checksum         string    `json:"checksum"`       // SHA-256 hex of the raw encrypted payload
	EncryptedData    string    `json:"encrypted_data"` // base64(salt | nonce | ciphertext)
}

// Export produces a container holding this vault's metadata encrypted under
// passphrase. The vault does not need to be unlocked; the export never
// contains the unwrapped DEK. A restored vault unlocks with the original
// vault password, not the export passphrase.
func (s *Service) Export(passphrase string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(passphrase) < MinPasswordLength {
		return nil, fmt.Errorf("%w: export passphrase below minimum length", ErrValidation)
	}

	raw, err := s.store.LoadMetadata()
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			return nil, fmt.Errorf("%w: no vault to export", ErrValidation)
		}
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}
	// Refuse to export a document that would not restore.
	if _, err = unmarshalMetadata(raw); err != nil {
		return nil, err
	}

	encrypted, err := encryptWithPassphrase(raw, passphrase)
	if err != nil {
		return nil, err
	}

	checksum := sha256.Sum256(encrypted)
	container := ExportContainer{
		ExportID:         uuid.NewString(),
		CreatedAt:        time.Now().UTC(),
		FormatVersion:    ExportFormatVersion,
		EncryptionMethod: exportMethod,
		Checksum:         hex.EncodeToString(checksum[:]),
		EncryptedData:    base64.StdEncoding.EncodeToString(encrypted),
	}

	out, err := json.MarshalIndent(container, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export container: %w", err)
	}

	_ = s.audit.Log("export_vault", true, map[string]interface{}{"export_id": container.ExportID})
	return out, nil
}

// Import restores an exported container into an empty store. The decrypted
// document goes through full structural validation before anything is
// persisted; a wrong passphrase surfaces as an authentication error, a
// corrupted container as a validation error. After a successful import the
// vault is Locked and opens with its original password.
func (s *Service) Import(data []byte, passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.store.MetadataExists()
	if err != nil {
		return fmt.Errorf("failed to probe metadata: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: refusing to import over an existing vault", ErrValidation)
	}

	var container ExportContainer
	if err = json.Unmarshal(data, &container); err != nil {
		return fmt.Errorf("%w: malformed export container: %v", ErrValidation, err)
	}
	if container.FormatVersion != ExportFormatVersion {
		return fmt.Errorf("%w: unsupported export format version %d", ErrValidation, container.FormatVersion)
	}
	if container.EncryptionMethod != exportMethod {
		return fmt.Errorf("%w: unsupported encryption method %q", ErrValidation, container.EncryptionMethod)
	}

	encrypted, err := base64.StdEncoding.DecodeString(container.EncryptedData)
	if err != nil {
		return fmt.Errorf("%w: malformed encrypted payload: %v", ErrValidation, err)
	}

	checksum := sha256.Sum256(encrypted)
	if hex.EncodeToString(checksum[:]) != container.Checksum {
		return fmt.Errorf("%w: checksum mismatch", ErrValidation)
	}

	raw, err := decryptWithPassphrase(encrypted, passphrase)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	meta, err := unmarshalMetadata(raw)
	if err != nil {
		return err
	}

	if err = s.store.SaveMetadata(raw); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	s.spaceID = meta.SpaceID
	if s.state == StateNoVault {
		s.state = StateLocked
	}
	_ = s.audit.Log("import_vault", true, map[string]interface{}{"space_id": meta.SpaceID})
	return nil
}

// encryptWithPassphrase seals data under a passphrase-derived key and frames
// the result as salt | nonce | ciphertext.
func encryptWithPassphrase(data []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, exportSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(passphrase), salt, exportIterations, chacha20poly1305.KeySize, sha256.New)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, data, nil)

	result := make([]byte, len(salt)+len(nonce)+len(ciphertext))
	copy(result[:len(salt)], salt)
	copy(result[len(salt):len(salt)+len(nonce)], nonce)
	copy(result[len(salt)+len(nonce):], ciphertext)

	return result, nil
}

func decryptWithPassphrase(encrypted []byte, passphrase string) ([]byte, error) {
	if len(encrypted) < exportSaltSize+chacha20poly1305.NonceSize+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("encrypted payload too short")
	}

	salt := encrypted[:exportSaltSize]
	nonce := encrypted[exportSaltSize : exportSaltSize+chacha20poly1305.NonceSize]
	ciphertext := encrypted[exportSaltSize+chacha20poly1305.NonceSize:]

	key := pbkdf2.Key([]byte(passphrase), salt, exportIterations, chacha20poly1305.KeySize, sha256.New)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: wrong passphrase or corrupted data")
	}

	return plaintext, nil
}
