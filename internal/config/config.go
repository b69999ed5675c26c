// ABOUTME: Optional YAML configuration file for resonate-scope
// ABOUTME: Loaded before command-line flags, which override it
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Resonate-Protocol/resonate-scope/pkg/visualizer"
)

// DefaultAddr is where the render feed and metrics are served
const DefaultAddr = ":8927"

// File mirrors the YAML configuration. Unset fields keep their defaults.
type File struct {
	Addr     string `yaml:"addr"`
	Name     string `yaml:"name"`
	Library  string `yaml:"library"`
	ClientID string `yaml:"client_id"`

	BufferSize  int      `yaml:"buffer_size"`
	RefreshRate int      `yaml:"refresh_rate"`
	Volume      *float64 `yaml:"volume"`
	Feedback    *bool    `yaml:"feedback"`
	MDNS        *bool    `yaml:"mdns"`

	HUD HUD `yaml:"hud"`
	Log Log `yaml:"log"`
}

// HUD configures the terminal display
type HUD struct {
	ToggleKey *string `yaml:"toggle_key"`
	Displayed *bool   `yaml:"displayed"`
}

// Log configures logging
type Log struct {
	Info   *bool  `yaml:"info"`
	Errors *bool  `yaml:"errors"`
	File   string `yaml:"file"`
}

// Load reads path. An empty path returns an empty File.
func Load(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes YAML configuration and checks field ranges
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	if f.BufferSize < 0 {
		return fmt.Errorf("buffer_size must not be negative, got %d", f.BufferSize)
	}
	if f.RefreshRate < 0 {
		return fmt.Errorf("refresh_rate must not be negative, got %d", f.RefreshRate)
	}
	if f.Volume != nil && (*f.Volume < 0 || *f.Volume > 1) {
		return fmt.Errorf("volume must be in [0, 1], got %v", *f.Volume)
	}
	return nil
}

// Apply overlays the file onto c
func (f *File) Apply(c visualizer.Config) visualizer.Config {
	if f.Library != "" {
		c.LibraryRoot = f.Library
	}
	if f.ClientID != "" {
		c.ClientID = f.ClientID
	}
	if f.BufferSize != 0 {
		c.BufferSize = f.BufferSize
	}
	if f.RefreshRate != 0 {
		c.RefreshRate = f.RefreshRate
	}
	if f.Volume != nil {
		c.Volume = *f.Volume
	}
	if f.Feedback != nil {
		c.Feedback = *f.Feedback
	}
	if f.HUD.ToggleKey != nil {
		c.HUDToggleKey = *f.HUD.ToggleKey
	}
	if f.HUD.Displayed != nil {
		c.HUDDisplayed = *f.HUD.Displayed
	}
	if f.Log.Info != nil {
		c.LogInfo = *f.Log.Info
	}
	if f.Log.Errors != nil {
		c.LogErrors = *f.Log.Errors
	}
	return c
}

// ListenAddr returns the configured address or DefaultAddr
func (f *File) ListenAddr() string {
	if f.Addr == "" {
		return DefaultAddr
	}
	return f.Addr
}

// AdvertiseMDNS reports whether mDNS advertisement is enabled (default true)
func (f *File) AdvertiseMDNS() bool {
	return f.MDNS == nil || *f.MDNS
}
