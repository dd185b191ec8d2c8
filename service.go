// Package vault turns a user-memorized password into the hierarchy of keys
// protecting all on-device data, and owns the unlock/lock lifecycle of the
// resulting data encryption key, including an alternate biometric-gated
// unlock path.
//
// Key hierarchy:
//   - the password is hashed (Argon2id, dedicated salt) for verification only
//   - the same password with an independent salt derives the key-encryption
//     key (KEK)
//   - a random 32-byte data encryption key (DEK) is wrapped under the KEK
//     with ChaCha20-Poly1305 and persisted; only the wrapped form ever
//     touches storage
//
// While unlocked, the DEK lives in a memguard enclave owned by the Service;
// locking drops the enclave. All public operations report success as a
// boolean and never panic past the lifecycle boundary: internal failures are
// classified, audited, and collapsed.
//
// Basic usage:
//
//	store, _ := persist.NewFileSystemStore("/path/to/vault")
//	svc, err := vault.New(vault.DefaultOptions(), store, biometric.NewSystemGateway(""), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	if !svc.CreateVault("correct horse battery staple") {
//	    // rejected: too short, too weak, or the vault already exists
//	}
package vault

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"github.com/nbutton23/zxcvbn-go"

	"github.com/AmirrezaFarnamTaheri/noteece-vault/audit"
	"github.com/AmirrezaFarnamTaheri/noteece-vault/biometric"
	"github.com/AmirrezaFarnamTaheri/noteece-vault/internal/envelope"
	"github.com/AmirrezaFarnamTaheri/noteece-vault/internal/kdf"
	"github.com/AmirrezaFarnamTaheri/noteece-vault/internal/mem"
	"github.com/AmirrezaFarnamTaheri/noteece-vault/persist"
)

func init() {
	// Purge protected memory on interrupt before the process dies.
	memguard.CatchInterrupt()
}

// State is the lifecycle position of the vault.
type State int

const (
	// StateNoVault means no metadata exists yet; only CreateVault applies.
	StateNoVault State = iota

	// StateLocked means metadata exists but the DEK is not in memory.
	StateLocked

	// StateUnlocked means the DEK is held in a protected enclave.
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return "no-vault"
	}
}

// Service orchestrates key derivation, envelope wrapping, metadata
// persistence and the biometric gateway for a single vault space. All
// dependencies are injected; the DEK's lifetime is owned by exactly one
// Service value with a clear drop point in LockVault.
//
// Mutating operations serialize behind one mutex, so two overlapping unlock
// or create calls cannot race each other's state transitions.
type Service struct {
	mu      sync.Mutex
	store   persist.Store
	gateway biometric.Gateway
	audit   audit.Logger

	state      State
	spaceID    string
	deviceID   string
	dekEnclave *memguard.Enclave
	protection mem.Level

	// Derivation hooks default to the kdf package; tests swap them to
	// observe whether a code path reached the KDF at all.
	derive func(password, salt []byte) ([]byte, error)
	verify func(password, salt, expectedHash []byte) bool
}

// New constructs a Service around the given store, gateway and audit logger.
// A nil gateway disables the biometric path; a nil logger discards audit
// events. The store must be reachable. The initial state is NoVault until
// metadata is found, then Locked.
func New(opts Options, store persist.Store, gateway biometric.Gateway, logger audit.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("vault: store is required")
	}
	if err := store.Ping(); err != nil {
		return nil, fmt.Errorf("vault: store not reachable: %w", err)
	}
	if gateway == nil {
		gateway = biometric.NewMemoryGateway(false)
	}
	if logger == nil {
		logger = &audit.NoOpLogger{}
	}

	s := &Service{
		store:   store,
		gateway: gateway,
		audit:   logger,
		state:   StateNoVault,
		derive:  kdf.Derive,
		verify:  kdf.Verify,
	}

	if opts.LockMemory {
		level, err := mem.LockPages()
		if err != nil {
			// Degraded protection is acceptable; an unusable store is not.
			_ = s.audit.Log("memory_protection", false, map[string]interface{}{
				"level": level.String(),
			})
		}
		s.protection = level
	}

	exists, err := store.MetadataExists()
	if err != nil {
		return nil, fmt.Errorf("vault: failed to probe metadata: %w", err)
	}
	if exists {
		s.state = StateLocked
		// Space and device ids are not secret; having them early makes the
		// biometric path and diagnostics work before the first unlock.
		if raw, err := store.LoadMetadata(); err == nil {
			if meta, err := unmarshalMetadata(raw); err == nil {
				s.spaceID = meta.SpaceID
			}
		}
		if id, err := store.LoadDeviceID(); err == nil {
			s.deviceID = id
		}
	}

	return s, nil
}

// CreateVault provisions a brand-new vault from a password and transitions
// directly to Unlocked. It returns false, leaving the state at NoVault and
// the store untouched, when the password fails policy, a vault already
// exists, or any crypto/storage step fails. Metadata is assembled completely
// before the single persist call, so a failure never leaves a partial
// document behind.
func (s *Service) CreateVault(password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.createVault(password); err != nil {
		_ = s.audit.Log("create_vault", false, map[string]interface{}{"reason": reasonFor(err)})
		return false
	}
	_ = s.audit.Log("create_vault", true, map[string]interface{}{"space_id": s.spaceID})
	return true
}

func (s *Service) createVault(password string) error {
	exists, err := s.store.MetadataExists()
	if err != nil {
		return fmt.Errorf("failed to probe metadata: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: vault already exists", ErrValidation)
	}

	// Policy gates run before any key material is touched.
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password below minimum length", ErrValidation)
	}
	if zxcvbn.PasswordStrength(password, nil).Score < MinPasswordScore {
		return fmt.Errorf("%w: password too weak", ErrValidation)
	}

	spaceID := uuid.NewString()
	deviceID := uuid.NewString()

	passwordSalt, err := randomBytes(kdf.SaltLen)
	if err != nil {
		return err
	}
	dekSalt, err := randomBytes(kdf.SaltLen)
	if err != nil {
		return err
	}
	// Independent generation makes a collision absurd, but the domain
	// separation invariant is cheap to enforce outright.
	for bytes.Equal(passwordSalt, dekSalt) {
		if dekSalt, err = randomBytes(kdf.SaltLen); err != nil {
			return err
		}
	}

	pw := []byte(password)
	defer memguard.WipeBytes(pw)

	hash, err := s.derive(pw, passwordSalt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	kek, err := s.derive(pw, dekSalt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	dek, err := randomBytes(envelope.KeySize)
	if err != nil {
		memguard.WipeBytes(kek)
		return err
	}

	wrapped, nonce, err := envelope.WrapDEK(dek, kek) // consumes kek
	if err != nil {
		memguard.WipeBytes(dek)
		return fmt.Errorf("failed to wrap dek: %w", err)
	}

	meta := &VaultMetadata{
		SpaceID:      spaceID,
		CreatedAt:    time.Now().UTC(),
		Version:      MetadataVersion,
		PasswordSalt: passwordSalt,
		PasswordHash: hash,
		DEKSalt:      dekSalt,
		EncryptedDEK: wrapped,
		DEKNonce:     nonce,
	}
	if err = meta.Validate(); err != nil {
		memguard.WipeBytes(dek)
		return err
	}

	doc, err := meta.Marshal()
	if err != nil {
		memguard.WipeBytes(dek)
		return err
	}

	// Device id first; the metadata write is the commit point. If the second
	// write fails the store holds an orphan device id and no vault, which
	// reads as "no vault" everywhere.
	if err = s.store.SaveDeviceID(deviceID); err != nil {
		memguard.WipeBytes(dek)
		return fmt.Errorf("failed to save device id: %w", err)
	}
	if err = s.store.SaveMetadata(doc); err != nil {
		memguard.WipeBytes(dek)
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	s.spaceID = spaceID
	s.deviceID = deviceID
	s.dekEnclave = memguard.NewEnclave(dek) // wipes dek
	s.state = StateUnlocked
	return nil
}

// UnlockVault opens the vault with the password. Structural validation of
// the persisted metadata runs before any key derivation; a wrong password
// and a tampered wrapped key both return false with no state change and are
// told apart only in the audit log.
func (s *Service) UnlockVault(password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.unlockVault(password); err != nil {
		_ = s.audit.Log("unlock_vault", false, map[string]interface{}{"reason": reasonFor(err)})
		return false
	}
	_ = s.audit.Log("unlock_vault", true, map[string]interface{}{"space_id": s.spaceID})
	return true
}

func (s *Service) unlockVault(password string) error {
	meta, err := s.loadMetadata()
	if err != nil {
		return err
	}

	pw := []byte(password)
	defer memguard.WipeBytes(pw)

	if !s.verify(pw, meta.PasswordSalt, meta.PasswordHash) {
		return fmt.Errorf("%w: password mismatch", ErrAuthentication)
	}

	kek, err := s.derive(pw, meta.DEKSalt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	dek, err := envelope.UnwrapDEK(meta.EncryptedDEK, kek, meta.DEKNonce) // consumes kek
	if err != nil {
		if errors.Is(err, envelope.ErrAuthentication) {
			// The password verified but the wrapped key did not: tampering
			// or corruption, not a typo.
			return fmt.Errorf("%w: wrapped dek failed authentication", ErrCryptographic)
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	s.finishUnlock(meta, dek)
	return nil
}

// finishUnlock moves a freshly recovered DEK into the enclave and completes
// the transition to Unlocked, lazily creating the device id on first success.
func (s *Service) finishUnlock(meta *VaultMetadata, dek []byte) {
	if s.deviceID == "" {
		if id, err := s.store.LoadDeviceID(); err == nil {
			s.deviceID = id
		} else if errors.Is(err, persist.ErrNotFound) {
			s.deviceID = uuid.NewString()
			if err := s.store.SaveDeviceID(s.deviceID); err != nil {
				// The unlock itself succeeded; a device id that could not be
				// persisted will be regenerated next time.
				_ = s.audit.Log("save_device_id", false, nil)
			}
		}
	}

	s.spaceID = meta.SpaceID
	s.dekEnclave = memguard.NewEnclave(dek) // wipes dek
	s.state = StateUnlocked
}

// LockVault discards the in-memory DEK and moves an unlocked vault to
// Locked. No cryptography happens here; this is capability revocation
// in-process. Calling it while already locked, or before a vault exists, is
// harmless.
func (s *Service) LockVault() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dekEnclave = nil
	if s.state == StateUnlocked {
		s.state = StateLocked
		_ = s.audit.Log("lock_vault", true, map[string]interface{}{"space_id": s.spaceID})
	}
}

// CheckVaultExists reports whether persisted metadata is present. Idempotent;
// does not change state.
func (s *Service) CheckVaultExists() bool {
	exists, err := s.store.MetadataExists()
	if err != nil {
		_ = s.audit.Log("check_vault_exists", false, map[string]interface{}{"reason": "storage"})
		return false
	}
	return exists
}

// IsBiometricAvailable reports whether the device offers a usable protected
// credential store with an enrolled credential.
func (s *Service) IsBiometricAvailable() bool {
	return s.gateway.Available()
}

// IsBiometricEnabled reports whether a biometric record exists for this
// vault's space.
func (s *Service) IsBiometricEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	spaceID, err := s.currentSpaceID()
	if err != nil {
		return false
	}
	return s.gateway.Enabled(spaceID)
}

// EnableBiometric stores the DEK in the platform credential store behind the
// device's biometric access control. The password is always re-verified and
// the DEK re-unwrapped from persisted metadata; in-memory state is never
// trusted, so a stale Unlocked state cached by a buggy caller cannot bypass
// the check. Returns false on wrong password, decrypt failure, or storage
// failure; no record is created in any failure case.
func (s *Service) EnableBiometric(password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enableBiometric(password); err != nil {
		_ = s.audit.Log("biometric_enable", false, map[string]interface{}{"reason": reasonFor(err)})
		return false
	}
	_ = s.audit.Log("biometric_enable", true, map[string]interface{}{"space_id": s.spaceID})
	return true
}

func (s *Service) enableBiometric(password string) error {
	if !s.gateway.Available() {
		return fmt.Errorf("%w: no biometric hardware or enrollment", ErrAvailability)
	}

	meta, err := s.loadMetadata()
	if err != nil {
		return err
	}

	pw := []byte(password)
	defer memguard.WipeBytes(pw)

	if !s.verify(pw, meta.PasswordSalt, meta.PasswordHash) {
		return fmt.Errorf("%w: password mismatch", ErrAuthentication)
	}

	kek, err := s.derive(pw, meta.DEKSalt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	dek, err := envelope.UnwrapDEK(meta.EncryptedDEK, kek, meta.DEKNonce)
	if err != nil {
		if errors.Is(err, envelope.ErrAuthentication) {
			return fmt.Errorf("%w: wrapped dek failed authentication", ErrCryptographic)
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	rec := biometric.Record{
		DEK:       base64.StdEncoding.EncodeToString(dek),
		SpaceID:   meta.SpaceID,
		EnabledAt: time.Now().UTC(),
	}
	memguard.WipeBytes(dek)

	if err = s.gateway.Store(rec); err != nil {
		return fmt.Errorf("failed to store biometric record: %w", err)
	}
	return nil
}

// DisableBiometric deletes the biometric record. The password-based unlock
// path is unaffected.
func (s *Service) DisableBiometric() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	spaceID, err := s.currentSpaceID()
	if err != nil {
		_ = s.audit.Log("biometric_disable", false, map[string]interface{}{"reason": reasonFor(err)})
		return false
	}
	if err = s.gateway.Delete(spaceID); err != nil {
		_ = s.audit.Log("biometric_disable", false, map[string]interface{}{"reason": "storage"})
		return false
	}
	_ = s.audit.Log("biometric_disable", true, map[string]interface{}{"space_id": spaceID})
	return true
}

// UnlockWithBiometric opens the vault with the DEK released by the platform
// credential store. The store's own access control supplies the biometric
// prompt; a dismissed prompt comes back as a retrieval failure and yields
// false. Malformed records (wrong space, bad base64, wrong key length) also
// yield false, never a panic.
func (s *Service) UnlockWithBiometric() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.unlockWithBiometric(); err != nil {
		_ = s.audit.Log("unlock_biometric", false, map[string]interface{}{"reason": reasonFor(err)})
		return false
	}
	_ = s.audit.Log("unlock_biometric", true, map[string]interface{}{"space_id": s.spaceID})
	return true
}

func (s *Service) unlockWithBiometric() error {
	meta, err := s.loadMetadata()
	if err != nil {
		return err
	}

	rec, err := s.gateway.Retrieve(meta.SpaceID)
	if err != nil {
		if errors.Is(err, biometric.ErrNotEnabled) {
			return fmt.Errorf("%w: biometric not enabled", ErrAvailability)
		}
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	dek, err := rec.DecodeDEK(meta.SpaceID, envelope.KeySize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	s.finishUnlock(meta, dek)
	return nil
}

// DataKey opens the DEK for use by application-layer encryption. The caller
// must Destroy the returned buffer as soon as the operation completes. Fails
// with ErrLocked unless the vault is unlocked.
func (s *Service) DataKey() (*memguard.LockedBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnlocked || s.dekEnclave == nil {
		return nil, ErrLocked
	}
	buf, err := s.dekEnclave.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open dek enclave: %w", err)
	}
	return buf, nil
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SpaceID returns the vault's space identifier, empty before creation.
func (s *Service) SpaceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spaceID
}

// DeviceID returns this device's identifier, empty until first unlock.
func (s *Service) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

// MemoryProtection reports the page-locking level achieved at construction.
func (s *Service) MemoryProtection() mem.Level {
	return s.protection
}

// Close locks the vault and releases page locks. The injected store and
// audit logger stay open; their lifetime belongs to whoever created them.
func (s *Service) Close() error {
	s.LockVault()
	return mem.UnlockPages()
}

// loadMetadata reads and structurally validates the persisted document. A
// missing document, malformed JSON or any wrong-length field short-circuits
// here, before any key derivation.
func (s *Service) loadMetadata() (*VaultMetadata, error) {
	raw, err := s.store.LoadMetadata()
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			return nil, fmt.Errorf("%w: no vault", ErrValidation)
		}
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}
	return unmarshalMetadata(raw)
}

// currentSpaceID returns the cached space id or recovers it from metadata.
func (s *Service) currentSpaceID() (string, error) {
	if s.spaceID != "" {
		return s.spaceID, nil
	}
	meta, err := s.loadMetadata()
	if err != nil {
		return "", err
	}
	s.spaceID = meta.SpaceID
	return s.spaceID, nil
}

// reasonFor maps an internal error to the coarse class recorded in audit
// logs. The classes keep wrong-password and integrity failures apart for
// diagnostics while the user-facing result stays a plain false.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrCryptographic):
		return "integrity"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAvailability):
		return "availability"
	default:
		return "storage"
	}
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
