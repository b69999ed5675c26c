// ABOUTME: Byte fetchers for library files
// ABOUTME: Reads from an HTTP base URL or a local directory; missing files wrap ErrNotFound
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// MaxFetchSize bounds a single library file download
const MaxFetchSize = 256 << 20

// ErrTooLarge is returned when a download exceeds the fetcher's size limit
var ErrTooLarge = errors.New("library file too large")

// HTTPFetcher fetches library files relative to a base URL
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
	MaxSize int64 // defaults to MaxFetchSize
}

// Fetch downloads path relative to BaseURL
func (f *HTTPFetcher) Fetch(ctx context.Context, p string) ([]byte, error) {
	u, err := url.JoinPath(f.BaseURL, cleanPath(p))
	if err != nil {
		return nil, fmt.Errorf("invalid library URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", u, resp.StatusCode)
	}

	limit := f.MaxSize
	if limit <= 0 {
		limit = MaxFetchSize
	}

	// One byte past the limit tells a truncated body from an exact fit
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", u, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, u, limit)
	}
	return data, nil
}

// Location returns the library base URL
func (f *HTTPFetcher) Location() string {
	return strings.TrimRight(f.BaseURL, "/")
}

// DirFetcher reads library files from a local directory
type DirFetcher struct {
	Root string
}

// Location returns the absolute library root
func (f *DirFetcher) Location() string {
	abs, err := filepath.Abs(f.Root)
	if err != nil {
		return filepath.Clean(f.Root)
	}
	return abs
}

// Fetch reads path relative to Root
func (f *DirFetcher) Fetch(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full := filepath.Join(f.Root, filepath.FromSlash(cleanPath(p)))
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, full)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", full, err)
	}
	return data, nil
}

// cleanPath keeps a library path inside its root
func cleanPath(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}
