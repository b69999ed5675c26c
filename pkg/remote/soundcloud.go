// ABOUTME: SoundCloud stream resolver
// ABOUTME: Resolves a page URL to a stream URL via the public API and caches the result
package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/patrickmn/go-cache"

	"github.com/Resonate-Protocol/resonate-scope/pkg/source"
)

// DefaultAPIBase is the SoundCloud API root
const DefaultAPIBase = "https://api.soundcloud.com"

var (
	ErrMissingClientID = errors.New("a SoundCloud client id is required")
	ErrNotStreamable   = errors.New("track is not streamable")
	ErrEmptyPlaylist   = errors.New("playlist has no tracks")
	ErrUnsupportedKind = errors.New("resolved resource is not a track or playlist")
)

// Config configures the SoundCloud resolver
type Config struct {
	APIBase string
	Client  *http.Client
	// ResolveTimeout bounds each API call; the stream body is not bounded
	ResolveTimeout time.Duration
	CacheTTL       time.Duration
}

// SoundCloud implements source.Resolver
type SoundCloud struct {
	apiBase        string
	client         *http.Client
	resolveTimeout time.Duration
	cache          *cache.Cache

	// open starts decoding a resolved stream URL
	open func(ctx context.Context, client *http.Client, streamURL string) (*Stream, error)
}

// NewSoundCloud creates a resolver
func NewSoundCloud(config Config) *SoundCloud {
	if config.APIBase == "" {
		config.APIBase = DefaultAPIBase
	}
	if config.Client == nil {
		config.Client = &http.Client{}
	}
	if config.ResolveTimeout == 0 {
		config.ResolveTimeout = 30 * time.Second
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 10 * time.Minute
	}

	return &SoundCloud{
		apiBase:        strings.TrimRight(config.APIBase, "/"),
		client:         config.Client,
		resolveTimeout: config.ResolveTimeout,
		cache:          cache.New(config.CacheTTL, config.CacheTTL*2),
		open:           Open,
	}
}

// Resolve maps a track or playlist page to a playing-ready stream
func (s *SoundCloud) Resolve(ctx context.Context, pageURL, clientID string) (source.Element, error) {
	streamURL, err := s.StreamURL(ctx, pageURL, clientID)
	if err != nil {
		return nil, err
	}

	stream, err := s.open(ctx, s.client, streamURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream for %s: %w", pageURL, err)
	}
	return stream, nil
}

// StreamURL resolves the authenticated stream URL of the first track behind pageURL
func (s *SoundCloud) StreamURL(ctx context.Context, pageURL, clientID string) (string, error) {
	if clientID == "" {
		return "", ErrMissingClientID
	}

	cacheKey := clientID + "|" + pageURL
	if cached, found := s.cache.Get(cacheKey); found {
		return cached.(string), nil
	}

	obj, err := s.resolve(ctx, pageURL, clientID)
	if err != nil {
		return "", err
	}

	track, err := firstTrack(obj)
	if err != nil {
		return "", err
	}

	if streamable, err := track.GetBoolean("streamable"); err == nil && !streamable {
		return "", ErrNotStreamable
	}

	raw, err := track.GetString("stream_url")
	if err != nil || raw == "" {
		return "", fmt.Errorf("%w: no stream_url", ErrNotStreamable)
	}

	streamURL, err := withClientID(raw, clientID)
	if err != nil {
		return "", err
	}

	if title, err := track.GetString("title"); err == nil {
		log.Printf("Resolved SoundCloud track: %s", title)
	}

	s.cache.Set(cacheKey, streamURL, cache.DefaultExpiration)
	return streamURL, nil
}

func (s *SoundCloud) resolve(ctx context.Context, pageURL, clientID string) (*jason.Object, error) {
	q := url.Values{}
	q.Set("url", pageURL)
	q.Set("client_id", clientID)
	endpoint := s.apiBase + "/resolve?" + q.Encode()

	ctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolve request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolve %s: HTTP %s", pageURL, resp.Status)
	}

	obj, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse resolve response: %w", err)
	}
	return obj, nil
}

// firstTrack returns the resolved track, or the first track of a playlist
func firstTrack(obj *jason.Object) (*jason.Object, error) {
	kind, err := obj.GetString("kind")
	if err != nil {
		return nil, fmt.Errorf("%w: missing kind", ErrUnsupportedKind)
	}

	switch kind {
	case "track":
		return obj, nil
	case "playlist":
		tracks, err := obj.GetObjectArray("tracks")
		if err != nil || len(tracks) == 0 {
			return nil, ErrEmptyPlaylist
		}
		return tracks[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

func withClientID(raw, clientID string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid stream_url %q: %w", raw, err)
	}
	q := u.Query()
	q.Set("client_id", clientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
