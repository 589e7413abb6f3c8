package logger

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGlogLogger(t *testing.T) {
	flag.Set("logtostderr", "true")

	l := NewGlogLogger()

	glogLogger, ok := l.(*GlogLogger)
	assert.True(t, ok, "Logger should be of type *GlogLogger")
	assert.Equal(t, 1, glogLogger.depth, "Default depth should be 1")
}

func TestGlogLoggerDoesNotPanic(t *testing.T) {
	flag.Set("logtostderr", "true")
	flag.Set("v", "2")

	l := NewGlogLogger()

	assert.NotPanics(t, func() {
		l.Debugf("debug message with args: %s, %d", "test", 123)
		l.Infof("info message")
		l.Warnf("pubmatic: Skipping the non-standard adSlot - %s", "abcd")
		l.Errorf("error message: %v", assert.AnError)
	})
}

func TestPackageLevelLogging(t *testing.T) {
	flag.Set("logtostderr", "true")

	assert.NotNil(t, Default())
	assert.NotPanics(t, func() {
		Debugf("debug")
		Infof("info")
		Warnf("warn")
		Errorf("error")
	})
}
