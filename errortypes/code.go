package errortypes

// Error codes. Hosts surface them to publishers, so the values never change.
const (
	TimeoutErrorCode             = 1
	BadInputErrorCode            = 2
	BadServerResponseErrorCode   = 3
	FailedToRequestBidsErrorCode = 4
	FailedToMarshalErrorCode     = 5
	UnknownErrorCode             = 999
)

// Warning codes, one per reason a slot, a parameter or a sync was skipped.
const (
	InvalidAdSlotWarningCode      = 10001
	MissingPublisherIDWarningCode = 10002
	IgnoredParamWarningCode       = 10003
	InvalidParamsWarningCode      = 10004
	IframeSyncDisabledWarningCode = 10005
)

// Coder is implemented by every error in this package.
type Coder interface {
	Code() int
	Severity() Severity
}

// ReadCode returns the code carried by err, or UnknownErrorCode for errors from other packages.
func ReadCode(err error) int {
	if coder, ok := err.(Coder); ok {
		return coder.Code()
	}
	return UnknownErrorCode
}
