package session

import "errors"

var (
	// ErrEmptyClip is returned by HandleClip for clips without audio frames.
	ErrEmptyClip = errors.New("clip has no audio")
	// ErrInvalidClip is returned when a clip is not a readable WAV file.
	ErrInvalidClip = errors.New("clip is not a valid wav file")
)
