package source

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure taxonomy. Transient failures (timeouts, 5xx, 429) are
// retryable within the run's policy. Permanent failures (404, auth
// revoked, schema changed) mark the source down for this run and are
// not retried until the next one.

type Class int

const (
	ClassTransient Class = iota
	ClassPermanent
)

type ClassifiedError struct {
	Class Class
	Err   error
}

func (e *ClassifiedError) Error() string {
	if e.Class == ClassPermanent {
		return fmt.Sprintf("permanent: %v", e.Err)
	}
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: ClassTransient, Err: err}
}

func Transientf(format string, args ...any) error {
	return Transient(fmt.Errorf(format, args...))
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: ClassPermanent, Err: err}
}

func Permanentf(format string, args ...any) error {
	return Permanent(fmt.Errorf(format, args...))
}

// IsTransient reports whether err should be retried. Unclassified
// errors count as transient: network-layer failures arrive unwrapped
// and retrying them is the safe default.
func IsTransient(err error) bool {
	return err != nil && !IsPermanent(err)
}

func IsPermanent(err error) bool {
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Class == ClassPermanent
}

// StatusError classifies an HTTP response code: 429 and 5xx are
// transient, everything else in the 4xx range is permanent.
func StatusError(code int) error {
	if code == http.StatusTooManyRequests || code >= 500 {
		return Transientf("status %d", code)
	}
	return Permanentf("status %d", code)
}

// PartialError reports a fetch that parsed some items but had to
// quarantine others. The kept items were already emitted.
type PartialError struct {
	Quarantined int
	Last        error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("partial result: %d item(s) quarantined, last: %v", e.Quarantined, e.Last)
}

func (e *PartialError) Unwrap() error { return e.Last }
