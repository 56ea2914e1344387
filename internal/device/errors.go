package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrSoundbarNotFound) {
//	    // handle not found case
//	}
var (
	// ErrSoundbarNotFound is returned when a soundbar ID does not exist.
	ErrSoundbarNotFound = errors.New("device: soundbar not found")

	// ErrInvalidSoundbar is returned when a soundbar has no ID.
	ErrInvalidSoundbar = errors.New("device: invalid soundbar")

	// ErrInvalidName is returned when a soundbar name is empty.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidHost is returned when the host or port is unusable.
	ErrInvalidHost = errors.New("device: invalid host")

	// ErrInvalidHealthStatus is returned for an unknown health status.
	ErrInvalidHealthStatus = errors.New("device: invalid health status")
)
