// Package persist defines the storage port for vault metadata and provides
// filesystem and bbolt backed implementations.
//
// Everything passed through this interface is non-secret-bearing: the vault
// layer only hands over the metadata document (wrapped DEK, salts, password
// hash) and the device identifier. Unwrapped key material never reaches a
// Store.
package persist

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested record does not exist. Callers
// use it to distinguish an empty store from a broken one.
var ErrNotFound = errors.New("persist: not found")

// Store is the persistence port for a single vault space.
type Store interface {
	// SaveMetadata writes the serialized vault metadata document. The write
	// must be atomic: a crash mid-save leaves either the previous document
	// or the new one, never a torn file.
	SaveMetadata(data []byte) error

	// LoadMetadata returns the metadata document, or ErrNotFound.
	LoadMetadata() ([]byte, error)

	// MetadataExists reports whether a metadata document is present without
	// reading it.
	MetadataExists() (bool, error)

	// SaveDeviceID persists the device identifier.
	SaveDeviceID(id string) error

	// LoadDeviceID returns the device identifier, or ErrNotFound.
	LoadDeviceID() (string, error)

	// Ping verifies the backend is reachable and writable.
	Ping() error

	// Close releases any resources held by the store.
	Close() error

	// GetType returns the backend identifier, e.g. "filesystem" or "bolt".
	GetType() string
}

// StoreType identifies a storage backend.
type StoreType string

const (
	// StoreTypeFileSystem keeps the metadata as files under a base path.
	StoreTypeFileSystem StoreType = "filesystem"

	// StoreTypeBolt keeps the metadata in an embedded bbolt database.
	StoreTypeBolt StoreType = "bolt"
)

// StoreConfig selects and configures a storage backend.
type StoreConfig struct {
	Type   StoreType              `json:"type"`
	Config map[string]interface{} `json:"config"`
}

// NewStore creates the storage backend described by config.
func NewStore(config StoreConfig) (Store, error) {
	switch config.Type {
	case StoreTypeFileSystem:
		basePath, ok := config.Config["base_path"].(string)
		if !ok {
			return nil, fmt.Errorf("filesystem storage requires 'base_path' in config")
		}
		return NewFileSystemStore(basePath)

	case StoreTypeBolt:
		path, ok := config.Config["path"].(string)
		if !ok {
			return nil, fmt.Errorf("bolt storage requires 'path' in config")
		}
		return NewBoltStore(path)

	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}
