// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines PCM clips, the recent-sample Window, and sample conversions
// Package audio provides fundamental audio types shared across the scope.
//
// This package defines core types used throughout the library:
//   - PCM: a fully decoded clip with interleaved float32 samples
//   - PCMReader: sequential reader over a clip, used to feed outputs
//   - Window: a fixed-capacity ring keeping the most recent samples of a live feed
//
// Samples are float32 normalized to [-1, 1]. Conversion helpers move between
// that range and 16/24-bit integer representations.
//
// Example:
//
//	w := audio.NewWindow(4096)
//	w.Write(captured)
//	recent := make([]float32, 2048)
//	w.Latest(recent)
package audio
