// Package source turns a selected audio origin into a ready, pollable node.
//
// Four origins are supported: a file from the bundled library, a file the
// user supplies, live microphone capture, and a remote stream resolved
// through an external service. A Coordinator performs the one acquisition a
// session is allowed and fills in a Handle, which then exposes the ready Node
// to the stream buffer and playback controller.
//
// Consumers dispatch on Handle.Kind with an exhaustive switch:
//
//	switch h.Kind() {
//	case source.LibraryFile, source.UserFile:
//		node := h.BufferNode()
//	case source.Microphone:
//		node := h.LiveNode()
//	case source.RemoteStream:
//		node := h.ElementNode()
//	default:
//		return source.UsageErrorf("poll", "unknown source kind %v", h.Kind())
//	}
package source
