package vault

import "errors"

// Error classes for the vault lifecycle. Internal failures are wrapped into
// one of these before being logged; the public operations then collapse them
// to a boolean so no caller-visible message reveals which step failed.
var (
	// ErrValidation marks malformed or incomplete persisted metadata and
	// wrong-length cryptographic inputs. Detected before any key derivation.
	ErrValidation = errors.New("vault: validation failed")

	// ErrAuthentication marks a wrong password or failed biometric
	// challenge. Expected, frequent, user-recoverable.
	ErrAuthentication = errors.New("vault: authentication failed")

	// ErrCryptographic marks an AEAD tag mismatch: tampering or corruption
	// of the wrapped key. Rare, and deliberately kept distinct from
	// ErrAuthentication in audit logs.
	ErrCryptographic = errors.New("vault: integrity check failed")

	// ErrAvailability marks a missing capability (no biometric hardware or
	// enrollment, unreachable credential store). An environment limitation,
	// not a security event.
	ErrAvailability = errors.New("vault: capability unavailable")

	// ErrLocked is returned when key material is requested while the vault
	// is not unlocked.
	ErrLocked = errors.New("vault: locked")
)
