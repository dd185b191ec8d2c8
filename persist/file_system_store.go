package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// FilePermissions user read + write only; the metadata holds password
	// hashes and the wrapped DEK.
	FilePermissions = 0600

	// DirPermissions user read + write + traverse.
	DirPermissions = 0700
)

// FileSystemStore persists the vault metadata and device id as individual
// files under a base path. Writes go through a temp file, fsync and rename so
// a crash never leaves a torn document behind.
type FileSystemStore struct {
	basePath     string
	metadataPath string
	devicePath   string
}

// NewFileSystemStore initializes the on-disk layout under basePath, creating
// the directory if needed.
func NewFileSystemStore(basePath string) (*FileSystemStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("filesystem store requires a base path")
	}

	if err := os.MkdirAll(basePath, DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", basePath, err)
	}

	return &FileSystemStore{
		basePath:     basePath,
		metadataPath: filepath.Join(basePath, "vault.meta"),
		devicePath:   filepath.Join(basePath, "device.id"),
	}, nil
}

func (fs *FileSystemStore) SaveMetadata(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("refusing to save empty metadata")
	}
	return writeSecureFile(fs.metadataPath, data, FilePermissions)
}

func (fs *FileSystemStore) LoadMetadata() ([]byte, error) {
	data, err := os.ReadFile(fs.metadataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	return data, nil
}

func (fs *FileSystemStore) MetadataExists() (bool, error) {
	return fileExists(fs.metadataPath)
}

func (fs *FileSystemStore) SaveDeviceID(id string) error {
	if id == "" {
		return fmt.Errorf("refusing to save empty device id")
	}
	return writeSecureFile(fs.devicePath, []byte(id), FilePermissions)
}

func (fs *FileSystemStore) LoadDeviceID() (string, error) {
	data, err := os.ReadFile(fs.devicePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read device id: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (fs *FileSystemStore) Ping() error {
	info, err := os.Stat(fs.basePath)
	if err != nil {
		return fmt.Errorf("store path not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store path %s is not a directory", fs.basePath)
	}
	return nil
}

func (fs *FileSystemStore) Close() error {
	return nil
}

func (fs *FileSystemStore) GetType() string {
	return string(StoreTypeFileSystem)
}

// writeSecureFile writes data atomically: temp file in the same directory,
// sync, chmod, then rename over the destination.
func writeSecureFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err = tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err = tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err = os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
