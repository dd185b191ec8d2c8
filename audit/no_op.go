package audit

// NoOpLogger discards all events. Used when auditing is disabled and as the
// default when no logger is injected.
type NoOpLogger struct{}

func (l *NoOpLogger) Log(action string, success bool, metadata map[string]interface{}) error {
	return nil
}

func (l *NoOpLogger) Close() error {
	return nil
}
