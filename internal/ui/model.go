// ABOUTME: Bubbletea model for the scope HUD
// ABOUTME: Shows source, frame timing, and levels; handles volume and HUD toggle keys
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the HUD state
type Model struct {
	// Source
	source string
	kind   string
	status string
	detail string

	// Frame loop
	fps   float64
	ticks uint64
	delta time.Duration

	// Levels
	rms   float64
	peak  float64
	beats int

	// Render hub
	clients int

	// Controls
	volume     int
	hudVisible bool
	toggleKey  string
	volumeCtrl *VolumeControl

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case StatsMsg:
		m.applyStats(msg)
	}

	return m, nil
}

// View renders the HUD
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := m.renderHeader()
	if m.hudVisible {
		s += m.renderStats()
		s += m.renderLevels()
	}
	s += m.renderControls()
	s += m.renderHelp()

	return s
}

// renderHeader renders the source line
func (m Model) renderHeader() string {
	src := "No source"
	if m.source != "" {
		src = fmt.Sprintf("%s (%s)", m.source, m.kind)
	}

	status := m.status
	if status == "" {
		status = "idle"
	}
	if m.detail != "" {
		status = fmt.Sprintf("%s: %s", status, m.detail)
	}

	return fmt.Sprintf(`┌─ Resonate Scope ─────────────────────────────────────┐
│ Source: %-44s │
│ Status: %-44s │
├──────────────────────────────────────────────────────┤
`, truncate(src, 44), truncate(status, 44))
}

// renderStats renders frame loop timing
func (m Model) renderStats() string {
	return fmt.Sprintf("│ Frames: %-8d FPS: %-6.1f Delta: %-14s │\n"+
		"│ Clients: %-43d │\n",
		m.ticks, m.fps, m.delta.Round(100*time.Microsecond), m.clients)
}

// renderLevels renders the analysed levels
func (m Model) renderLevels() string {
	return fmt.Sprintf("│ RMS:  [%s] %-30.3f │\n"+
		"│ Peak: [%s] %-30.3f │\n"+
		"│ Beats: %-45d │\n",
		renderBar(int(m.rms*100), 100, 10), m.rms,
		renderBar(int(m.peak*100), 100, 10), m.peak,
		m.beats)
}

// renderControls renders volume
func (m Model) renderControls() string {
	return fmt.Sprintf("├──────────────────────────────────────────────────────┤\n"+
		"│ Volume: [%s] %3d%%%-26s │\n",
		renderBar(m.volume, 100, 10), m.volume, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return fmt.Sprintf("│ ↑/↓:Volume  %s:HUD  q:Quit%-27s │\n"+
		"└──────────────────────────────────────────────────────┘\n", m.toggleKey, "")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		if m.volumeCtrl != nil {
			select {
			case m.volumeCtrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.setVolume(m.volume + 5)
	case "down":
		m.setVolume(m.volume - 5)
	case m.toggleKey:
		m.hudVisible = !m.hudVisible
	}

	return m, nil
}

// setVolume clamps to [0, 100] and notifies the volume channel
func (m *Model) setVolume(v int) {
	v = min(max(v, 0), 100)
	if v == m.volume {
		return
	}
	m.volume = v

	if m.volumeCtrl != nil {
		select {
		case m.volumeCtrl.Changes <- VolumeChangeMsg{Volume: v}:
		default:
		}
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Source != "" {
		m.source = msg.Source
		m.kind = msg.Kind
	}
	if msg.Status != "" {
		m.status = msg.Status
		m.detail = msg.Detail
	}
	if msg.Volume != nil {
		m.volume = min(max(*msg.Volume, 0), 100)
	}
}

// applyStats updates frame timing and levels
func (m *Model) applyStats(msg StatsMsg) {
	m.fps = msg.FPS
	m.ticks = msg.Ticks
	m.delta = msg.Delta
	m.rms = msg.RMS
	m.peak = msg.Peak
	m.beats = msg.Beats
	m.clients = msg.Clients
}

// StatusMsg updates the source section
type StatusMsg struct {
	Source string
	Kind   string
	Status string
	Detail string
	Volume *int
}

// StatsMsg carries one sample of frame loop statistics
type StatsMsg struct {
	FPS     float64
	Ticks   uint64
	Delta   time.Duration
	RMS     float64
	Peak    float64
	Beats   int
	Clients int
}

func renderBar(value, total, width int) string {
	value = min(max(value, 0), total)
	filled := (value * width) / total
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
