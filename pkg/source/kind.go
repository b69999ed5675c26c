// ABOUTME: Source kind and handle status enumerations
// ABOUTME: Closed sets; Valid reports whether a value is one of the declared members
package source

import "fmt"

// Kind identifies where a session's audio comes from
type Kind int

const (
	LibraryFile Kind = iota
	UserFile
	Microphone
	RemoteStream
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case LibraryFile:
		return "library-file"
	case UserFile:
		return "user-file"
	case Microphone:
		return "microphone"
	case RemoteStream:
		return "remote-stream"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is a declared kind
func (k Kind) Valid() bool {
	switch k {
	case LibraryFile, UserFile, Microphone, RemoteStream:
		return true
	default:
		return false
	}
}

// ParseKind maps a kind name back to its value
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{LibraryFile, UserFile, Microphone, RemoteStream} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown source kind %q", s)
}

// Status is the acquisition state of a handle
type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Failed
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}
