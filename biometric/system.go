package biometric

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const defaultService = "noteece-vault"

// availabilityProbe is a key that never holds data; a clean not-found answer
// proves the store is reachable.
const availabilityProbe = "availability-probe"

// SystemGateway stores records in the OS credential manager (Keychain on
// macOS, Credential Manager on Windows, Secret Service on Linux). Whether
// retrieval is gated by a biometric prompt is a property of how the platform
// protects the item, enforced outside this process.
type SystemGateway struct {
	service string
}

// NewSystemGateway returns a gateway talking to the OS credential manager.
// service overrides the keychain service name; empty uses the default.
func NewSystemGateway(service string) *SystemGateway {
	if service == "" {
		service = defaultService
	}
	return &SystemGateway{service: service}
}

func (g *SystemGateway) Available() bool {
	_, err := keyring.Get(g.service, availabilityProbe)
	if err == nil {
		return true
	}
	return errors.Is(err, keyring.ErrNotFound)
}

func (g *SystemGateway) Enabled(spaceID string) bool {
	_, err := keyring.Get(g.service, recordKey(spaceID))
	return err == nil
}

func (g *SystemGateway) Store(rec Record) error {
	if rec.SpaceID == "" {
		return fmt.Errorf("record requires a space id")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err = keyring.Set(g.service, recordKey(rec.SpaceID), string(payload)); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

func (g *SystemGateway) Retrieve(spaceID string) (*Record, error) {
	payload, err := keyring.Get(g.service, recordKey(spaceID))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotEnabled
		}
		// Covers a dismissed prompt as well as a broken store; callers treat
		// both as an ordinary failure.
		return nil, fmt.Errorf("failed to retrieve record: %w", err)
	}

	var rec Record
	if err = json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("malformed record: %w", err)
	}
	return &rec, nil
}

func (g *SystemGateway) Delete(spaceID string) error {
	err := keyring.Delete(g.service, recordKey(spaceID))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func recordKey(spaceID string) string {
	return "biometric:" + spaceID
}
