package errortypes

// Severity tells whether an error stopped the work or only skipped part of it.
type Severity int

const (
	SeverityUnknown Severity = iota
	// SeverityFatal means no request or no bid list could be produced.
	SeverityFatal
	// SeverityWarning means one slot, parameter or sync was skipped and the rest went on.
	SeverityWarning
)

// severityOf treats errors without a Coder as fatal.
func severityOf(err error) Severity {
	if coder, ok := err.(Coder); ok {
		return coder.Severity()
	}
	return SeverityFatal
}

// IsWarning reports whether err only skipped part of the work.
func IsWarning(err error) bool {
	return severityOf(err) == SeverityWarning
}

// ContainsFatalError reports whether any of errs stopped the work.
func ContainsFatalError(errs []error) bool {
	for _, err := range errs {
		if severityOf(err) == SeverityFatal {
			return true
		}
	}
	return false
}
