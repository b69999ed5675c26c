// ABOUTME: Sentinel errors for the decode package
// ABOUTME: Lets callers tell unknown content apart from corrupt content
package decode

import "errors"

var (
	ErrEmptyInput      = errors.New("empty input")
	ErrNotAudio        = errors.New("not an audio file")
	ErrUnsupported     = errors.New("unsupported audio format")
	ErrInvalidWAV      = errors.New("invalid WAV file")
	ErrInvalidAIFF     = errors.New("invalid AIFF file")
	ErrNoAudioFrames   = errors.New("no audio frames decoded")
	ErrMissingOpusHead = errors.New("missing OpusHead packet")
)
