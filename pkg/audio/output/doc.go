// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides Output interface, oto and malgo backends, and a pacing pump
// Package output provides audio playback backends.
//
// Two backends are available: Oto (ebitengine/oto, float32 pipe player) and
// Malgo (miniaudio callback device fed from a ring buffer). Both apply a
// software gain in [0, 1].
//
// Example:
//
//	out := output.NewMalgo()
//	err := out.Open(48000, 2)
//	err = output.Pump(ctx, reader, out, 48000, 2, nil)
package output
