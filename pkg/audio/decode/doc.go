// ABOUTME: Audio decoder package for whole-file decoding
// ABOUTME: Provides Decoder interface, content sniffing, and a format Registry
// Package decode turns encoded audio files into in-memory PCM clips.
//
// Supports: MP3, FLAC, WAV, AIFF, Ogg Vorbis, Ogg Opus
//
// The Registry sniffs the container from the leading bytes rather than a
// file extension, so dropped files without a meaningful name decode the
// same way library files do.
//
// Example:
//
//	reg := decode.NewRegistry()
//	pcm, err := reg.Decode(data)
package decode
