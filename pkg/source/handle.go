// ABOUTME: Source handle recording the outcome of one acquisition
// ABOUTME: Written only by the coordinator; Ready and Failed are terminal
package source

import (
	"fmt"
	"sync"
)

// Handle is the acquisition state for one session source
type Handle struct {
	mu          sync.RWMutex
	kind        Kind
	status      Status
	node        Node
	err         error
	errorDetail string
	feedback    bool // echo captured audio; only consulted for Microphone
}

func newHandle(kind Kind, feedback bool) *Handle {
	return &Handle{kind: kind, status: Idle, feedback: feedback}
}

// Kind returns the source kind
func (h *Handle) Kind() Kind {
	return h.kind
}

// Status returns the acquisition status
func (h *Handle) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Node returns the ready node, or nil unless the handle is Ready
func (h *Handle) Node() Node {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.node
}

// ErrorDetail returns the failure description, or "" unless the handle is Failed
func (h *Handle) ErrorDetail() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.errorDetail
}

// Err returns the acquisition failure, or nil unless the handle is Failed
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Feedback reports whether the source is audible on the output
func (h *Handle) Feedback() bool {
	switch h.kind {
	case LibraryFile, UserFile, RemoteStream:
		return true
	case Microphone:
		return h.feedback
	default:
		return false
	}
}

// BufferNode returns the node of a ready LibraryFile or UserFile handle
func (h *Handle) BufferNode() (*BufferNode, error) {
	n, err := h.readyNode("buffer")
	if err != nil {
		return nil, err
	}
	bn, ok := n.(*BufferNode)
	if !ok {
		return nil, UsageErrorf("buffer", "%s source has no buffered node", h.kind)
	}
	return bn, nil
}

// LiveNode returns the node of a ready Microphone handle
func (h *Handle) LiveNode() (*LiveNode, error) {
	n, err := h.readyNode("live")
	if err != nil {
		return nil, err
	}
	ln, ok := n.(*LiveNode)
	if !ok {
		return nil, UsageErrorf("live", "%s source has no live node", h.kind)
	}
	return ln, nil
}

// ElementNode returns the node of a ready RemoteStream handle
func (h *Handle) ElementNode() (*ElementNode, error) {
	n, err := h.readyNode("element")
	if err != nil {
		return nil, err
	}
	en, ok := n.(*ElementNode)
	if !ok {
		return nil, UsageErrorf("element", "%s source has no element node", h.kind)
	}
	return en, nil
}

// Close releases a live or remote node and stops a buffered one.
// Handles that never became Ready have nothing to release.
func (h *Handle) Close() error {
	if h.Status() != Ready {
		return nil
	}

	switch h.kind {
	case LibraryFile, UserFile:
		bn, err := h.BufferNode()
		if err != nil {
			return err
		}
		bn.Stop()
		return nil
	case Microphone:
		ln, err := h.LiveNode()
		if err != nil {
			return err
		}
		return ln.Close()
	case RemoteStream:
		en, err := h.ElementNode()
		if err != nil {
			return err
		}
		return en.Close()
	default:
		return nil
	}
}

func (h *Handle) readyNode(op string) (Node, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.status != Ready {
		return nil, usageError(op, fmt.Errorf("%w (status %s)", ErrNotReady, h.status))
	}
	return h.node, nil
}

func (h *Handle) begin() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == Idle {
		h.status = Loading
	}
}

func (h *Handle) succeed(n Node) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != Loading {
		return
	}
	h.status = Ready
	h.node = n
}

func (h *Handle) fail(err *Error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status != Loading {
		return
	}
	h.status = Failed
	h.err = err
	h.errorDetail = err.Error()
}
