// ABOUTME: Cover art cache for library tracks
// ABOUTME: Fetches covers through the library fetcher and keeps them in a temp directory
package artwork

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/resonate-scope/pkg/source"
)

// locator is implemented by fetchers that know where their library lives
type locator interface {
	Location() string
}

// Cache stores fetched covers on disk. Entries are keyed by the fetcher's
// library location and the cover path, so libraries can share a directory.
type Cache struct {
	cacheDir string
	fetcher  source.Fetcher
	location string
}

// NewCache creates a cache under dir, or under the system temp dir when dir is empty
func NewCache(dir string, f source.Fetcher) (*Cache, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "resonate-scope-covers")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		cacheDir: dir,
		fetcher:  f,
	}
	if l, ok := f.(locator); ok {
		c.location = l.Location()
	}
	return c, nil
}

// Cover returns a local path to the cover at p, fetching it on first use.
// A missing cover yields an empty path and the fetch error.
func (c *Cache) Cover(ctx context.Context, p string) (string, error) {
	if p == "" {
		return "", nil
	}

	hash := sha256.Sum256([]byte(c.location + "\x00" + p))
	filename := fmt.Sprintf("%x%s", hash[:8], getExtension(p))
	cachePath := filepath.Join(c.cacheDir, filename)

	if _, err := os.Stat(cachePath); err == nil {
		return cachePath, nil
	}

	data, err := c.fetcher.Fetch(ctx, p)
	if err != nil {
		log.Printf("Couldn't load the cover %s: %v", p, err)
		return "", err
	}

	if err := os.WriteFile(cachePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save cover: %w", err)
	}

	return cachePath, nil
}

// getExtension extracts the file extension, defaulting to .jpg
func getExtension(p string) string {
	p = strings.Split(p, "?")[0]

	ext := filepath.Ext(p)
	if ext == "" {
		ext = ".jpg"
	}
	return ext
}
