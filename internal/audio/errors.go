package audio

import "errors"

var (
	ErrUnsupported = errors.New("audio playback not supported")
	ErrNoSource    = errors.New("no sound source configured")
	ErrClipClosed  = errors.New("clip is closed")
)
