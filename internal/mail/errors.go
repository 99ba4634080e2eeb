package mail

import "errors"

// PermanentError marks a send that will never succeed on retry: a malformed
// address or a definitive provider rejection.
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	return "permanent send failure: " + e.Reason
}

// TransientError marks a send that may succeed on retry: network trouble,
// timeouts, provider 5xx or throttling.
type TransientError struct {
	Reason string
}

func (e *TransientError) Error() string {
	return "transient send failure: " + e.Reason
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
