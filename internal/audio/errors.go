package audio

import "errors"

var (
	// ErrUninitializedSession is returned when samples are recorded or exported before Init.
	ErrUninitializedSession = errors.New("encoder session not initialized")
	// ErrChannelLengthMismatch is returned when per-channel blocks differ in length.
	ErrChannelLengthMismatch = errors.New("channel length mismatch")
	// ErrChannelCountMismatch is returned when a record call carries the wrong number of channels.
	ErrChannelCountMismatch = errors.New("channel count mismatch")
	// ErrInvalidDownsampleRate is returned when the target rate exceeds the source rate.
	ErrInvalidDownsampleRate = errors.New("invalid downsample rate")
	// ErrEmptyBufferExport is returned by exports with nothing recorded when empty exports are rejected.
	ErrEmptyBufferExport = errors.New("nothing recorded")
	// ErrInvalidConfig is returned by Init for a non-positive rate or a channel count other than 1 or 2.
	ErrInvalidConfig = errors.New("invalid encoder config")
	// ErrWorkerStopped is returned by Send once the worker has been closed or its Run has returned.
	ErrWorkerStopped = errors.New("encoder worker stopped")
)
