// Package audit records vault lifecycle events for diagnostics and security
// monitoring. Events carry an action name, outcome and contextual metadata,
// never passwords, hashes, or key material.
package audit

import (
	"fmt"
	"time"
)

// Config defines audit logging configuration.
type Config struct {
	Enabled bool                   `json:"enabled"`
	SpaceID string                 `json:"space_id"`
	Type    ConfigType             `json:"type"`
	Options map[string]interface{} `json:"options"`
}

type ConfigType string

const (
	FileAuditType ConfigType = "file"
	NoOp          ConfigType = ""
)

// Logger is the pluggable audit sink.
type Logger interface {
	Log(action string, success bool, metadata map[string]interface{}) error
	Close() error
}

// Event is a single audit record.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	SpaceID   string                 `json:"space_id,omitempty"`
	Action    string                 `json:"action"`
	Success   bool                   `json:"success"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewLogger creates an appropriate logger based on configuration. A nil or
// disabled config yields a no-op logger.
func NewLogger(config *Config) (Logger, error) {
	if config == nil || !config.Enabled {
		return &NoOpLogger{}, nil
	}

	switch config.Type {
	case FileAuditType:
		return NewFileLogger(config)
	case NoOp:
		return &NoOpLogger{}, nil
	default:
		return nil, fmt.Errorf("unknown audit provider: %s", config.Type)
	}
}
