package player

import "errors"

var (
	// ErrInvalidID rejects negative or unknown source ids.
	ErrInvalidID = errors.New("player: invalid source id")

	// ErrStillLoading rejects playback while a source's buffers are
	// still being decoded.
	ErrStillLoading = errors.New("player: source still loading")

	// ErrPoolExhausted indicates every voice is held by priority
	// playback, so no voice may be preempted.
	ErrPoolExhausted = errors.New("player: voice pool exhausted by priority playback")
)
