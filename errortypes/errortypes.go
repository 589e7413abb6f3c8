package errortypes

// Timeout is returned when the auction call did not complete before the caller's deadline.
type Timeout struct {
	Message string
}

func (err *Timeout) Error() string      { return err.Message }
func (err *Timeout) Code() int          { return TimeoutErrorCode }
func (err *Timeout) Severity() Severity { return SeverityFatal }

// BadInput is returned when the host handed over something the adapter cannot use at all,
// such as a batch in which no slot survived validation. Problems with single slots are Warnings.
type BadInput struct {
	Message string
}

func (err *BadInput) Error() string      { return err.Message }
func (err *BadInput) Code() int          { return BadInputErrorCode }
func (err *BadInput) Severity() Severity { return SeverityFatal }

// BadServerResponse is returned when the auction server answered with an unexpected status or
// a body which is not a bid response. Connection failures are FailedToRequestBids instead.
type BadServerResponse struct {
	Message string
}

func (err *BadServerResponse) Error() string      { return err.Message }
func (err *BadServerResponse) Code() int          { return BadServerResponseErrorCode }
func (err *BadServerResponse) Severity() Severity { return SeverityFatal }

// FailedToRequestBids is returned when the auction server could not be reached.
type FailedToRequestBids struct {
	Message string
}

func (err *FailedToRequestBids) Error() string      { return err.Message }
func (err *FailedToRequestBids) Code() int          { return FailedToRequestBidsErrorCode }
func (err *FailedToRequestBids) Severity() Severity { return SeverityFatal }

// FailedToMarshal is returned when the request document could not be serialized.
type FailedToMarshal struct {
	Message string
}

func (err *FailedToMarshal) Error() string      { return err.Message }
func (err *FailedToMarshal) Code() int          { return FailedToMarshalErrorCode }
func (err *FailedToMarshal) Severity() Severity { return SeverityFatal }

// Warning is the only non-fatal error. WarningCode names what was skipped.
type Warning struct {
	Message     string
	WarningCode int
}

func (err *Warning) Error() string      { return err.Message }
func (err *Warning) Code() int          { return err.WarningCode }
func (err *Warning) Severity() Severity { return SeverityWarning }
