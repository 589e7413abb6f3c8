package logger

// Logger is the sink for adapter diagnostics. Adapters take one so hosts and tests
// can observe the warnings emitted while slots are validated.
type Logger interface {
	// Debug level logging
	Debugf(msg string, args ...interface{})

	// Info level logging
	Infof(msg string, args ...interface{})

	// Warn level logging
	Warnf(msg string, args ...interface{})

	// Error level logging
	Errorf(msg string, args ...interface{})
}
