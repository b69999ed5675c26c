// ABOUTME: HUD initialization and control
// ABOUTME: Wraps the bubbletea program and its volume and quit channels
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// VolumeChangeMsg reports a volume change in percent
type VolumeChangeMsg struct {
	Volume int
}

// QuitMsg reports that the user asked to quit
type QuitMsg struct{}

// VolumeControl holds channels for volume control communication
type VolumeControl struct {
	Changes chan VolumeChangeMsg
	Quit    chan QuitMsg
}

// NewVolumeControl creates a new volume control handler
func NewVolumeControl() *VolumeControl {
	return &VolumeControl{
		Changes: make(chan VolumeChangeMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// Options configures the HUD
type Options struct {
	Volume     int
	ToggleKey  string // empty disables toggling
	HUDVisible bool
}

// NewModel creates a new HUD model
func NewModel(volCtrl *VolumeControl, opts Options) Model {
	return Model{
		volume:     min(max(opts.Volume, 0), 100),
		hudVisible: opts.HUDVisible,
		toggleKey:  opts.ToggleKey,
		volumeCtrl: volCtrl,
	}
}

// Run creates the HUD program; the caller starts it with p.Run
func Run(volCtrl *VolumeControl, opts Options) *tea.Program {
	return tea.NewProgram(NewModel(volCtrl, opts), tea.WithAltScreen())
}
