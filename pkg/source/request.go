// ABOUTME: Acquisition requests pairing a source kind with its parameter
// ABOUTME: Param is a sealed variant; a request whose param does not fit its kind is rejected
package source

import (
	"fmt"
	"io"
)

// Param is the kind-specific argument of a request
type Param interface {
	param()
}

// LibraryPath is the manifest-relative path of a bundled track
type LibraryPath string

// UserFileParam is a file supplied by the user
type UserFileParam struct {
	Name   string
	Reader io.Reader
}

// NoParam is used by kinds that take no argument
type NoParam struct{}

// StreamURL is the public URL of a remote track
type StreamURL string

func (LibraryPath) param()   {}
func (UserFileParam) param() {}
func (NoParam) param()       {}
func (StreamURL) param()     {}

// Request asks a Coordinator for one source
type Request struct {
	Kind  Kind
	Param Param
}

// NewLibraryRequest requests a bundled track by path
func NewLibraryRequest(path string) Request {
	return Request{Kind: LibraryFile, Param: LibraryPath(path)}
}

// NewUserFileRequest requests decoding of a user-supplied file
func NewUserFileRequest(name string, r io.Reader) Request {
	return Request{Kind: UserFile, Param: UserFileParam{Name: name, Reader: r}}
}

// NewMicrophoneRequest requests live capture
func NewMicrophoneRequest() Request {
	return Request{Kind: Microphone, Param: NoParam{}}
}

// NewStreamRequest requests a remote stream by its public URL
func NewStreamRequest(url string) Request {
	return Request{Kind: RemoteStream, Param: StreamURL(url)}
}

// String describes the request for logs
func (r Request) String() string {
	switch p := r.Param.(type) {
	case LibraryPath:
		return fmt.Sprintf("%s %s", r.Kind, string(p))
	case UserFileParam:
		return fmt.Sprintf("%s %s", r.Kind, p.Name)
	case StreamURL:
		return fmt.Sprintf("%s %s", r.Kind, string(p))
	default:
		return r.Kind.String()
	}
}

func (r Request) validate() error {
	if !r.Kind.Valid() {
		return UsageErrorf("acquire", "unknown source kind %v", r.Kind)
	}

	ok := false
	switch r.Kind {
	case LibraryFile:
		p, isPath := r.Param.(LibraryPath)
		ok = isPath && p != ""
	case UserFile:
		p, isFile := r.Param.(UserFileParam)
		ok = isFile && p.Reader != nil
	case Microphone:
		_, ok = r.Param.(NoParam)
		ok = ok || r.Param == nil
	case RemoteStream:
		p, isURL := r.Param.(StreamURL)
		ok = isURL && p != ""
	default:
		return UsageErrorf("acquire", "unknown source kind %v", r.Kind)
	}

	if !ok {
		return UsageErrorf("acquire", "parameter %T does not match kind %s", r.Param, r.Kind)
	}
	return nil
}
