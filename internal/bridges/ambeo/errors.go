package ambeo

import (
	"context"
	"errors"

	ambeoapi "github.com/nerrad567/gray-logic-ambeo/internal/ambeo"
	"github.com/nerrad567/gray-logic-ambeo/internal/ambeo/player"
)

// Domain errors for the AMBEO bridge package.
var (
	// ErrSoundbarNotConfigured is returned for a soundbar ID the bridge
	// does not manage.
	ErrSoundbarNotConfigured = errors.New("ambeo bridge: soundbar not configured")

	// ErrSoundbarNotReady is returned while a soundbar's setup is pending
	// or after it failed.
	ErrSoundbarNotReady = errors.New("ambeo bridge: soundbar not ready")

	// ErrInvalidCommand is returned for an unknown command name.
	ErrInvalidCommand = errors.New("ambeo bridge: invalid command")

	// ErrInvalidParameters is returned when command parameters are missing
	// or out of range.
	ErrInvalidParameters = errors.New("ambeo bridge: invalid parameters")

	// ErrNotSupported is returned for a command the soundbar lacks the
	// capability for.
	ErrNotSupported = errors.New("ambeo bridge: not supported by this soundbar")
)

// errorCode maps an execution error to an ack error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrSoundbarNotConfigured):
		return ErrCodeNotConfigured
	case errors.Is(err, ErrNotSupported), errors.Is(err, ambeoapi.ErrUnsupported):
		return ErrCodeNotSupported
	case errors.Is(err, ErrInvalidCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidParameters),
		errors.Is(err, player.ErrInvalidVolume),
		errors.Is(err, player.ErrUnknownSource),
		errors.Is(err, player.ErrUnknownSoundMode),
		errors.Is(err, ambeoapi.ErrInvalidID):
		return ErrCodeInvalidParameters
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, ErrSoundbarNotReady), errors.Is(err, ambeoapi.ErrConnection):
		return ErrCodeDeviceUnreachable
	default:
		return ErrCodeBridgeError
	}
}
