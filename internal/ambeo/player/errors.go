package player

import "errors"

// Domain-specific errors for media player commands.
var (
	// ErrInvalidVolume indicates a volume level outside 0..1.
	ErrInvalidVolume = errors.New("player: volume level must be between 0 and 1")

	// ErrUnknownSource indicates a source title that is not in the cached source list.
	ErrUnknownSource = errors.New("player: unknown source")

	// ErrUnknownSoundMode indicates a sound mode title that is not in the cached preset list.
	ErrUnknownSoundMode = errors.New("player: unknown sound mode")
)
