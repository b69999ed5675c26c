// Package remote resolves public track URLs into playable streams.
//
// SoundCloud resolves a track or playlist page through the SoundCloud API
// and opens the first streamable track. Streams are decoded with go-mp3 over
// HTTP, or through ffmpeg for HLS playlists.
package remote
