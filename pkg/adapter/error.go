package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ClassifierError wraps backend failures with status metadata. A failed
// classification excludes the model's vote from the consensus; retrying
// is the transport layer's concern.
type ClassifierError struct {
	Adapter   string
	Status    int
	Temporary bool
	Err       error
}

func (e *ClassifierError) Error() string {
	if e == nil {
		return "classifier error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s classifier: %v", e.Adapter, e.Err)
	}
	return fmt.Sprintf("%s classifier error (status=%d)", e.Adapter, e.Status)
}

func (e *ClassifierError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether an error is safe for the transport layer
// to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var clsErr *ClassifierError
	if errors.As(err, &clsErr) {
		if clsErr.Temporary {
			return true
		}
		if clsErr.Status == 429 || (clsErr.Status >= 500 && clsErr.Status <= 599) {
			return true
		}
	}
	return false
}
