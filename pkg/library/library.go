// ABOUTME: Sound library manifest of bundled tracks
// ABOUTME: Parses the manifest with yaml.v3, which also accepts the JSON form
package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Resonate-Protocol/resonate-scope/pkg/source"
)

// DefaultManifest is the manifest filename at the library root
const DefaultManifest = "sound-library.json"

// DefaultCover is the cover filename used when a track names none
const DefaultCover = "cover.jpg"

var ErrTrackNotFound = errors.New("track not found in library")

// Track is one bundled sound file
type Track struct {
	Name      string `yaml:"name" json:"name"`
	Artist    string `yaml:"artist" json:"artist"`
	Directory string `yaml:"directory" json:"directory"`
	Filename  string `yaml:"filename" json:"filename"`
	Cover     string `yaml:"cover,omitempty" json:"cover,omitempty"`
}

// Path returns the track's location relative to the library root
func (t Track) Path() string {
	return path.Join(t.Directory, t.Filename)
}

// CoverPath returns the cover's location relative to the library root
func (t Track) CoverPath() string {
	cover := t.Cover
	if cover == "" {
		cover = DefaultCover
	}
	return path.Join(t.Directory, cover)
}

// String formats the track for menus and logs
func (t Track) String() string {
	if t.Artist == "" {
		return t.Name
	}
	return fmt.Sprintf("%s - %s", t.Artist, t.Name)
}

// Library is a parsed manifest
type Library struct {
	Tracks []Track
}

// Parse decodes a manifest: a list of tracks
func Parse(data []byte) (*Library, error) {
	var tracks []Track
	if err := yaml.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("failed to parse library manifest: %w", err)
	}

	for i := range tracks {
		if tracks[i].Filename == "" {
			return nil, fmt.Errorf("library entry %d (%q) has no filename", i, tracks[i].Name)
		}
		if tracks[i].Cover == "" {
			tracks[i].Cover = DefaultCover
		}
	}

	return &Library{Tracks: tracks}, nil
}

// Load fetches and parses the manifest named manifest
func Load(ctx context.Context, f source.Fetcher, manifest string) (*Library, error) {
	if manifest == "" {
		manifest = DefaultManifest
	}

	data, err := f.Fetch(ctx, manifest)
	if err != nil {
		return nil, fmt.Errorf("couldn't load the library file %s: %w", manifest, err)
	}

	lib, err := Parse(data)
	if err != nil {
		return nil, err
	}

	log.Printf("Library file loaded: %d tracks", len(lib.Tracks))
	return lib, nil
}

// Find looks a track up by zero-based index or by name, case-insensitively
func (l *Library) Find(key string) (Track, error) {
	if i, err := strconv.Atoi(key); err == nil {
		if i < 0 || i >= len(l.Tracks) {
			return Track{}, fmt.Errorf("%w: index %d out of range (%d tracks)", ErrTrackNotFound, i, len(l.Tracks))
		}
		return l.Tracks[i], nil
	}

	for _, t := range l.Tracks {
		if strings.EqualFold(t.Name, key) || strings.EqualFold(t.Filename, key) {
			return t, nil
		}
	}
	return Track{}, fmt.Errorf("%w: %q", ErrTrackNotFound, key)
}
