package logger

import (
	"fmt"

	"github.com/golang/glog"
)

// GlogLogger implements the Logger interface on top of glog with a configurable call depth,
// so log lines point at the caller rather than at this package.
type GlogLogger struct {
	depth int
}

// NewGlogLogger returns a Logger reporting the file and line of its direct caller.
func NewGlogLogger() Logger {
	return &GlogLogger{depth: 1}
}

// Debugf logs at glog verbosity 2.
func (logger *GlogLogger) Debugf(msg string, args ...interface{}) {
	if glog.V(2) {
		glog.InfoDepth(logger.depth, fmt.Sprintf(msg, args...))
	}
}

func (logger *GlogLogger) Infof(msg string, args ...interface{}) {
	glog.InfoDepth(logger.depth, fmt.Sprintf(msg, args...))
}

func (logger *GlogLogger) Warnf(msg string, args ...interface{}) {
	glog.WarningDepth(logger.depth, fmt.Sprintf(msg, args...))
}

func (logger *GlogLogger) Errorf(msg string, args ...interface{}) {
	glog.ErrorDepth(logger.depth, fmt.Sprintf(msg, args...))
}
