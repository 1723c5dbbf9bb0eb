package domain

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrUnknownKey        = errors.New("unknown key")
	ErrMissingValue      = errors.New("command requires a value")
	ErrOpacityOutOfRange = errors.New("opacity must be between 0 and 1")
)
