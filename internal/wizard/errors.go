package wizard

import (
	"errors"
	"fmt"
)

var (
	ErrNotStarted          = errors.New("wizard has not been started")
	ErrSubmitted           = errors.New("application already submitted")
	ErrLastStep            = errors.New("already on the last step; submit instead")
	ErrNotVerificationStep = errors.New("only available on the identity verification step")
	ErrNoApplication       = errors.New("draft has not been saved yet")
	ErrNotCallback         = errors.New("url does not carry a DigiLocker callback")
	ErrResumeMismatch      = errors.New("callback does not match the suspended e-sign session")
	ErrUnknownDocument     = errors.New("unknown document slot")
	ErrUnknownField        = errors.New("unknown form field")
)

// RetryableError is a persistence or upload failure. The step index did not change
// and the same action can be repeated.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s failed, please try again: %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err came from a failed save or upload
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}
