package persist

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const vaultBucket = "vault"

var (
	metadataKey = []byte("metadata")
	deviceIDKey = []byte("device_id")
)

// BoltStore persists vault metadata in an embedded bbolt database. bbolt's
// single-writer transactions give the atomic-save guarantee for free.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore opens (or creates) the database at path and ensures the vault
// bucket exists.
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt store requires a database path")
	}

	db, err := bolt.Open(path, FilePermissions, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(vaultBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create vault bucket: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

func (bs *BoltStore) SaveMetadata(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("refusing to save empty metadata")
	}
	return bs.put(metadataKey, data)
}

func (bs *BoltStore) LoadMetadata() ([]byte, error) {
	return bs.get(metadataKey)
}

func (bs *BoltStore) MetadataExists() (bool, error) {
	return bs.exists(metadataKey)
}

func (bs *BoltStore) SaveDeviceID(id string) error {
	if id == "" {
		return fmt.Errorf("refusing to save empty device id")
	}
	return bs.put(deviceIDKey, []byte(id))
}

func (bs *BoltStore) LoadDeviceID() (string, error) {
	data, err := bs.get(deviceIDKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (bs *BoltStore) Ping() error {
	return bs.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(vaultBucket)) == nil {
			return fmt.Errorf("vault bucket missing")
		}
		return nil
	})
}

func (bs *BoltStore) Close() error {
	return bs.db.Close()
}

func (bs *BoltStore) GetType() string {
	return string(StoreTypeBolt)
}

func (bs *BoltStore) put(key, value []byte) error {
	return bs.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(vaultBucket)).Put(key, value)
	})
}

func (bs *BoltStore) get(key []byte) ([]byte, error) {
	var out []byte
	err := bs.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(vaultBucket)).Get(key)
		if v == nil {
			return ErrNotFound
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (bs *BoltStore) exists(key []byte) (bool, error) {
	var found bool
	err := bs.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket([]byte(vaultBucket)).Get(key) != nil
		return nil
	})
	return found, err
}
