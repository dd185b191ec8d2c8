package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileLogger appends events as JSON lines to a single log file.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	spaceID string
}

// NewFileLogger opens (or creates) the log file named by the "file_path"
// option. The file is created user-only; audit lines identify actions and
// outcomes, which is already more than a casual reader should see.
func NewFileLogger(config *Config) (*FileLogger, error) {
	path, ok := config.Options["file_path"].(string)
	if !ok || path == "" {
		return nil, fmt.Errorf("file audit logger requires 'file_path' in options")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &FileLogger{file: file, spaceID: config.SpaceID}, nil
}

func (l *FileLogger) Log(action string, success bool, metadata map[string]interface{}) error {
	event := Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		SpaceID:   l.spaceID,
		Action:    action,
		Success:   success,
		Metadata:  metadata,
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err = l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
