package ambeo

import (
	"errors"
	"fmt"
)

// Domain errors for the ambeo package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, ambeo.ErrDeviceUnreachable) {
//	    // retry setup later
//	}
var (
	// ErrConnection is matched by every *ConnectionError.
	ErrConnection = errors.New("ambeo: connection error")

	// ErrDeviceUnreachable is returned by NewClient when the serial probe
	// yields no value. Setup should be retried later.
	ErrDeviceUnreachable = errors.New("ambeo: device unreachable")

	// ErrUnsupportedModel is returned by NewClient when the device answers
	// with a product name that has no matching client. It is not retryable.
	ErrUnsupportedModel = errors.New("ambeo: unsupported model")

	// ErrUnsupported is returned by operations the client's family does not
	// implement. Callers should gate on HasCapability instead of relying on it.
	ErrUnsupported = errors.New("ambeo: operation not supported by this model")

	// ErrUnknownVariant is returned when Options.Variant is not recognised.
	ErrUnknownVariant = errors.New("ambeo: unknown client variant")

	// ErrInvalidID is returned when a source or preset id cannot be
	// encoded for the device.
	ErrInvalidID = errors.New("ambeo: invalid id")
)

// ConnectionError reports a failed request: a timeout, a non-200 status,
// a transport fault or an undecodable body.
type ConnectionError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ambeo: request %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("ambeo: request %s failed: %v", e.URL, e.Err)
}

// Unwrap exposes both ErrConnection and the underlying cause to errors.Is.
func (e *ConnectionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConnection}
	}
	return []error{ErrConnection, e.Err}
}

// unsupported wraps ErrUnsupported with the operation name.
func unsupported(op string) error {
	return fmt.Errorf("%s: %w", op, ErrUnsupported)
}

// IsRetryable reports whether a setup error is transient.
//
// Unreachable devices and connection faults are retryable; an unsupported
// model or variant is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnsupportedModel) || errors.Is(err, ErrUnknownVariant) {
		return false
	}
	return errors.Is(err, ErrDeviceUnreachable) || errors.Is(err, ErrConnection)
}
