// Package biometric abstracts the hardware-backed credential store that can
// release the vault's data encryption key behind a biometric prompt.
//
// The gateway only brokers storage and retrieval; the access-control decision
// (fingerprint, face, device PIN fallback) belongs to the platform store
// itself. A dismissed or failed prompt surfaces as an ordinary retrieval
// error, not a distinct cancellation signal.
//
// The record deliberately holds the DEK without an additional software wrap:
// the platform store is already the strongest key-protection primitive on the
// device, and a second wrap would need a second key facing the identical
// storage problem.
package biometric

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// ErrNotEnabled is returned when no biometric record exists for the space.
var ErrNotEnabled = errors.New("biometric: not enabled")

// Record is what the credential store holds for one vault space. It exists
// only inside the hardware-backed store, never in the general persistence
// layer.
type Record struct {
	DEK       string    `json:"dek"` // base64
	SpaceID   string    `json:"space_id"`
	EnabledAt time.Time `json:"enabled_at"`
}

// DecodeDEK validates the record's structural shape and returns the raw DEK.
// Anything other than a well-formed base64 string decoding to exactly
// expectLen bytes is rejected.
func (r *Record) DecodeDEK(spaceID string, expectLen int) ([]byte, error) {
	if r.SpaceID == "" || r.SpaceID != spaceID {
		return nil, fmt.Errorf("record space mismatch")
	}
	if r.DEK == "" {
		return nil, fmt.Errorf("record has no key material")
	}
	dek, err := base64.StdEncoding.DecodeString(r.DEK)
	if err != nil {
		return nil, fmt.Errorf("malformed key material: %w", err)
	}
	if len(dek) != expectLen {
		return nil, fmt.Errorf("key material must be %d bytes, got %d", expectLen, len(dek))
	}
	return dek, nil
}

// Gateway is the capability boundary to the platform credential store.
type Gateway interface {
	// Available reports whether the device has a usable protected store with
	// an enrolled credential.
	Available() bool

	// Enabled reports whether a record exists for the given space.
	Enabled(spaceID string) bool

	// Store writes the record, requesting the strongest device-specific
	// non-exportable protection the platform offers.
	Store(rec Record) error

	// Retrieve returns the record for the space after the platform has
	// satisfied its access control. Returns ErrNotEnabled when no record
	// exists.
	Retrieve(spaceID string) (*Record, error)

	// Delete removes the record. Deleting a non-existent record is not an
	// error.
	Delete(spaceID string) error
}
