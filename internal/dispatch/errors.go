package dispatch

// DecodeError reports a message body that is missing or not valid JSON.
// No remote call is made when it occurs.
type DecodeError struct {
	err error
}

func (e *DecodeError) Error() string {
	return "decoding message payload: " + e.err.Error()
}

func (e *DecodeError) Unwrap() error { return e.err }

// ExecutionError reports a failed RunJob call. The call is not retried.
type ExecutionError struct {
	Job string
	err error
}

func (e *ExecutionError) Error() string {
	return "starting execution of " + e.Job + ": " + e.err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.err }
