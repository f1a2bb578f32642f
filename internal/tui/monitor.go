// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"pitchscope/internal/pipeline"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultPlotWidth  = 80
	defaultPlotHeight = 12
	minPlotHeight     = 3
	needleHalfWidth   = 20 // Characters either side of centre for ±50 cents.
)

var (
	pitchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	waveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// PitchSource is what the monitor polls each frame.
type PitchSource interface {
	SnapshotWaveformInto(dst []float32) (int, error)
	CurrentPitch() pipeline.Pitch
	Stats() pipeline.Stats
}

type tickMsg time.Time

// MonitorModel renders the live waveform and the latest pitch. It holds no
// analysis state of its own; every frame is a fresh read of the source.
type MonitorModel struct {
	source  PitchSource
	refresh time.Duration
	label   string // Input description shown in the footer.

	samples []float32 // Plot window, reused across frames.
	filled  int
	pitch   pipeline.Pitch
	stats   pipeline.Stats
	err     error

	width  int
	height int
}

// NewMonitorModel returns a monitor drawing plotSamples samples every refresh.
func NewMonitorModel(source PitchSource, plotSamples int, refresh time.Duration, label string) MonitorModel {
	return MonitorModel{
		source:  source,
		refresh: refresh,
		label:   label,
		samples: make([]float32, plotSamples),
		width:   defaultPlotWidth,
		height:  defaultPlotHeight + 6,
	}
}

func (m MonitorModel) Init() tea.Cmd {
	return tick(m.refresh)
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m = m.poll()
		return m, tick(m.refresh)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"))) {
			return m, tea.Quit
		}
	}
	return m, nil
}

// poll reads the latest waveform and pitch from the source.
func (m MonitorModel) poll() MonitorModel {
	n, err := m.source.SnapshotWaveformInto(m.samples)
	m.err = err
	if err == nil {
		m.filled = n
	}
	m.pitch = m.source.CurrentPitch()
	m.stats = m.source.Stats()
	return m
}

func (m MonitorModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(FormatTitle(m.pitch)))
	sb.WriteString("\n\n")

	plotHeight := max(m.height-6, minPlotHeight)
	plot := RenderWaveform(m.window(), max(m.width, 1), plotHeight)
	sb.WriteString(waveStyle.Render(plot))
	sb.WriteString("\n\n")

	sb.WriteString(pitchStyle.Render(FormatPitch(m.pitch)))
	sb.WriteString("  ")
	sb.WriteString(RenderNeedle(m.pitch))
	sb.WriteString("\n")

	footer := fmt.Sprintf("%s • processed %d • dropped %d • q: Quit",
		m.label, m.stats.Processed, m.stats.Dropped)
	if m.err != nil {
		footer = fmt.Sprintf("Error: %v", m.err)
	}
	sb.WriteString(dimStyle.Render(footer))

	return sb.String()
}

// window returns the plot window. Before the history holds a full window the
// missing older samples read as silence.
func (m MonitorModel) window() []float32 {
	if m.filled == len(m.samples) {
		return m.samples
	}
	w := make([]float32, len(m.samples))
	copy(w[len(w)-m.filled:], m.samples[:m.filled])
	return w
}

// FormatTitle renders the heading, e.g. "Live Waveform - 440.0 Hz - A4 (+0.3 cents)".
func FormatTitle(p pipeline.Pitch) string {
	return "Live Waveform - " + FormatPitch(p)
}

// FormatPitch renders the estimate as "  440.0 Hz - A4 ( +0.3 cents)". The Hz
// value is printed as published, so a negative calibrated estimate stays
// visible while its note reads "--".
func FormatPitch(p pipeline.Pitch) string {
	return fmt.Sprintf("%7.1f Hz - %s (%+5.1f cents)", p.Hz, p.Note.Name, p.Note.Cents)
}

// RenderNeedle draws a tuning bar for the cents deviation, centre meaning in tune.
func RenderNeedle(p pipeline.Pitch) string {
	bar := []rune(strings.Repeat("·", 2*needleHalfWidth+1))
	bar[needleHalfWidth] = '|'
	if p.Note.Valid {
		c := math.Max(-50, math.Min(50, p.Note.Cents))
		pos := needleHalfWidth + int(math.Round(c/50*needleHalfWidth))
		bar[pos] = '▲'
	}
	return "[" + string(bar) + "]"
}

// RenderWaveform plots samples in [-1, 1] into a width x height character
// grid. Each column covers an equal share of the samples and is filled
// between that share's minimum and maximum.
func RenderWaveform(samples []float32, width, height int) string {
	if width < 1 || height < 1 {
		return ""
	}
	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", width))
	}
	zero := rowFor(0, height)
	for c := range width {
		grid[zero][c] = '─'
	}

	if len(samples) > 0 {
		for c := range width {
			lo := c * len(samples) / width
			hi := max((c+1)*len(samples)/width, lo+1)
			if lo >= len(samples) {
				break
			}
			hi = min(hi, len(samples))

			minV, maxV := samples[lo], samples[lo]
			for _, v := range samples[lo+1 : hi] {
				minV = min(minV, v)
				maxV = max(maxV, v)
			}
			for r := rowFor(float64(maxV), height); r <= rowFor(float64(minV), height); r++ {
				grid[r][c] = '█'
			}
		}
	}

	lines := make([]string, height)
	for r := range grid {
		lines[r] = string(grid[r])
	}
	return strings.Join(lines, "\n")
}

// rowFor maps an amplitude to a grid row, +1 at the top and -1 at the bottom.
func rowFor(v float64, height int) int {
	if math.IsNaN(v) {
		v = 0
	}
	v = math.Max(-1, math.Min(1, v))
	return int(math.Round((1 - v) / 2 * float64(height-1)))
}

// StartMonitorUI runs the monitor until the user quits or ctx is cancelled.
func StartMonitorUI(ctx context.Context, model MonitorModel) error {
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
