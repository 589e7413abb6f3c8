package logger

var logger Logger = &GlogLogger{depth: 2}

// Default returns the process-wide glog backed logger.
func Default() Logger {
	return logger
}

// Debug level logging
func Debugf(msg string, args ...interface{}) {
	logger.Debugf(msg, args...)
}

// Info level logging
func Infof(msg string, args ...interface{}) {
	logger.Infof(msg, args...)
}

// Warn level logging
func Warnf(msg string, args ...interface{}) {
	logger.Warnf(msg, args...)
}

// Error level logging
func Errorf(msg string, args ...interface{}) {
	logger.Errorf(msg, args...)
}
