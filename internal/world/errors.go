package world

import "errors"

var (
	// ErrUnknownStyle is returned when a planet style name has no preset.
	ErrUnknownStyle = errors.New("unknown planet style")

	// ErrInvalidSize is returned for non-positive grid sizes or detail levels.
	ErrInvalidSize = errors.New("invalid grid size")

	// ErrInvalidConfig is returned for other out-of-range generation or process parameters.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrShapeMismatch is returned when a grid's fields disagree on dimensions.
	ErrShapeMismatch = errors.New("grid shape mismatch")
)
