// ABOUTME: Tests for the cover cache
// ABOUTME: Tests fetching, caching, and missing covers
package artwork

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Resonate-Protocol/resonate-scope/pkg/source"
)

type countingFetcher struct {
	calls int
	data  map[string][]byte
}

func (f *countingFetcher) Fetch(ctx context.Context, p string) ([]byte, error) {
	f.calls++
	data, ok := f.data[p]
	if !ok {
		return nil, source.ErrNotFound
	}
	return data, nil
}

func TestCoverCached(t *testing.T) {
	f := &countingFetcher{data: map[string][]byte{"band/cover.jpg": []byte("fake image data")}}
	c, err := NewCache(t.TempDir(), f)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	path, err := c.Cover(context.Background(), "band/cover.jpg")
	if err != nil {
		t.Fatalf("cover failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "fake image data" {
		t.Errorf("unexpected cached content %q (%v)", data, err)
	}

	again, err := c.Cover(context.Background(), "band/cover.jpg")
	if err != nil || again != path {
		t.Errorf("expected cache hit at %s, got %s (%v)", path, again, err)
	}
	if f.calls != 1 {
		t.Errorf("expected one fetch, got %d", f.calls)
	}
}

func TestCoverKeyedByLibrary(t *testing.T) {
	cacheDir := t.TempDir()

	libraries := map[string]string{}
	for _, name := range []string{"a", "b"} {
		root := t.TempDir()
		if err := os.MkdirAll(filepath.Join(root, "album"), 0755); err != nil {
			t.Fatal(err)
		}
		content := "cover-" + name
		if err := os.WriteFile(filepath.Join(root, "album", "cover.jpg"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		libraries[root] = content
	}

	seen := map[string]bool{}
	for root, content := range libraries {
		c, err := NewCache(cacheDir, &source.DirFetcher{Root: root})
		if err != nil {
			t.Fatalf("failed to create cache: %v", err)
		}

		path, err := c.Cover(context.Background(), "album/cover.jpg")
		if err != nil {
			t.Fatalf("cover failed: %v", err)
		}
		if seen[path] {
			t.Errorf("libraries share cache entry %s", path)
		}
		seen[path] = true

		data, err := os.ReadFile(path)
		if err != nil || string(data) != content {
			t.Errorf("expected %q for %s, got %q (%v)", content, root, data, err)
		}
	}
}

func TestMissingCover(t *testing.T) {
	c, err := NewCache(t.TempDir(), &countingFetcher{})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	path, err := c.Cover(context.Background(), "band/cover.jpg")
	if path != "" || !errors.Is(err, source.ErrNotFound) {
		t.Errorf("expected empty path and not found, got %q %v", path, err)
	}

	if path, err := c.Cover(context.Background(), ""); path != "" || err != nil {
		t.Errorf("expected empty cover path to be a no-op, got %q %v", path, err)
	}
}

func TestGetExtension(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"band/cover.png", ".png"},
		{"band/cover", ".jpg"},
		{"band/cover.webp?v=2", ".webp"},
	}

	for _, tt := range tests {
		if got := getExtension(tt.path); got != tt.expected {
			t.Errorf("getExtension(%q) = %q, expected %q", tt.path, got, tt.expected)
		}
	}
}
