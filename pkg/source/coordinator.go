// ABOUTME: Acquisition coordinator resolving a request to a ready handle
// ABOUTME: Performs the single acquisition a session allows and classifies its failures
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
)

// Options configures a Coordinator's capabilities
type Options struct {
	Fetcher  Fetcher
	Decoder  Decoder
	Capturer Capturer
	Resolver Resolver

	// ClientID is the credential passed to the resolver
	ClientID string

	// Feedback echoes microphone audio to the output
	Feedback bool

	LogInfo   bool
	LogErrors bool
}

// Result is the outcome delivered by AcquireAsync
type Result struct {
	Handle *Handle
	Err    error
}

// Coordinator performs one acquisition per session
type Coordinator struct {
	opts Options

	mu        sync.Mutex
	requested bool
}

// NewCoordinator creates a coordinator with the given capabilities
func NewCoordinator(opts Options) *Coordinator {
	return &Coordinator{opts: opts}
}

// Acquire resolves req to a handle, blocking until it is Ready or Failed.
// On failure the returned handle is Failed and err is an *Error.
// A second call on the same coordinator fails with a UsageError and no handle.
func (c *Coordinator) Acquire(ctx context.Context, req Request) (*Handle, error) {
	if err := req.validate(); err != nil {
		c.logError("Invalid acquisition request: %v", err)
		return nil, err
	}

	c.mu.Lock()
	if c.requested {
		c.mu.Unlock()
		err := usageError("acquire", ErrAlreadyAcquired)
		c.logError("Rejected acquisition of %s: %v", req, err)
		return nil, err
	}
	c.requested = true
	c.mu.Unlock()

	h := newHandle(req.Kind, c.opts.Feedback)
	h.begin()

	node, err := c.load(ctx, req)
	if err != nil {
		h.fail(err)
		c.logError("Failed to acquire %s: %v", req, err)
		return h, err
	}

	h.succeed(node)
	c.logInfo("Source ready: %s", req)
	return h, nil
}

// AcquireAsync runs Acquire in a goroutine. The channel delivers exactly one
// Result and is then closed.
func (c *Coordinator) AcquireAsync(ctx context.Context, req Request) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		h, err := c.Acquire(ctx, req)
		ch <- Result{Handle: h, Err: err}
	}()
	return ch
}

func (c *Coordinator) load(ctx context.Context, req Request) (Node, *Error) {
	switch req.Kind {
	case LibraryFile:
		return c.loadLibrary(ctx, string(req.Param.(LibraryPath)))
	case UserFile:
		return c.loadUserFile(ctx, req.Param.(UserFileParam))
	case Microphone:
		return c.openMicrophone(ctx)
	case RemoteStream:
		return c.resolveStream(ctx, string(req.Param.(StreamURL)))
	default:
		return nil, UsageErrorf("acquire", "unknown source kind %v", req.Kind)
	}
}

func (c *Coordinator) loadLibrary(ctx context.Context, path string) (Node, *Error) {
	if c.opts.Fetcher == nil {
		return nil, newError(CapabilityUnavailable, "fetch", errors.New("no fetcher configured"))
	}

	c.logInfo("Loading file %s", path)
	data, err := c.opts.Fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, newError(TransportError, "fetch", fmt.Errorf("%s: %w", path, err))
	}

	return c.decode(data)
}

func (c *Coordinator) loadUserFile(ctx context.Context, f UserFileParam) (Node, *Error) {
	c.logInfo("Loading file %s", f.Name)

	data, err := io.ReadAll(f.Reader)
	if err != nil {
		return nil, newError(TransportError, "read", fmt.Errorf("%s: %w", f.Name, err))
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(TransportError, "read", fmt.Errorf("%s: %w", f.Name, err))
	}

	return c.decode(data)
}

func (c *Coordinator) decode(data []byte) (Node, *Error) {
	if c.opts.Decoder == nil {
		return nil, newError(CapabilityUnavailable, "decode", errors.New("no decoder configured"))
	}

	pcm, err := c.opts.Decoder.Decode(data)
	if err != nil {
		return nil, newError(DecodeError, "decode", err)
	}
	if pcm == nil || pcm.Frames() == 0 {
		return nil, newError(DecodeError, "decode", errors.New("decoder produced no audio"))
	}

	c.logInfo("Decoded %d frames at %dHz, %d channels", pcm.Frames(), pcm.SampleRate, pcm.Channels)
	return NewBufferNode(pcm), nil
}

func (c *Coordinator) openMicrophone(ctx context.Context) (Node, *Error) {
	if c.opts.Capturer == nil || !c.opts.Capturer.Available() {
		return nil, newError(CapabilityUnavailable, "capture", errors.New("host has no audio capture capability"))
	}

	feed, err := c.opts.Capturer.Capture(ctx)
	if err != nil {
		// Capturers may classify their own failures
		var se *Error
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, newError(PermissionDenied, "capture", err)
	}

	c.logInfo("Audio stream is coming from microphone")
	return NewLiveNode(feed), nil
}

func (c *Coordinator) resolveStream(ctx context.Context, url string) (Node, *Error) {
	if c.opts.Resolver == nil {
		return nil, newError(CapabilityUnavailable, "resolve", errors.New("no stream resolver configured"))
	}

	c.logInfo("Resolving stream %s", url)
	element, err := c.opts.Resolver.Resolve(ctx, url, c.opts.ClientID)
	if err != nil {
		return nil, newError(ResolutionError, "resolve", err)
	}

	return NewElementNode(element), nil
}

func (c *Coordinator) logInfo(format string, args ...any) {
	if c.opts.LogInfo {
		log.Printf(format, args...)
	}
}

func (c *Coordinator) logError(format string, args ...any) {
	if c.opts.LogErrors {
		log.Printf(format, args...)
	}
}
