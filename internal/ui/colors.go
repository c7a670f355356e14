package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/stocksync/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette holds the named [lipgloss.Style] values the views render with.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	box   lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		box:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(h)).Padding(0, 1),
	}
}

// Confidence renders a non-exact match tier: orange for partial, red for low.
func (p *Palette) Confidence(c models.Confidence) string {
	if c == models.ConfidenceLow {
		return p.err.Render(string(c))
	}
	return p.warn.Render(string(c))
}

// Status renders a run status in its color: green for success, orange for partial or dry runs, red otherwise.
func (p *Palette) Status(status string) string {
	switch status {
	case models.RunStatusSuccess:
		return p.ok.Render(status)
	case models.RunStatusPartial, models.RunStatusDryRun, models.RunStatusCancelled:
		return p.warn.Render(status)
	default:
		return p.err.Render(status)
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}
