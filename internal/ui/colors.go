package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title   lipgloss.Style
	playing lipgloss.Style
	err     lipgloss.Style
	paused  lipgloss.Style
	dim     lipgloss.Style
	bar     lipgloss.Style
}

// NewPalette builds the stylesheet from title, playing, error, paused and muted foreground colors.
func NewPalette(t, p, e, w, h string) *Palette {
	return &Palette{
		title:   NewBold(t).MarginBottom(1),
		playing: NewBold(p),
		err:     NewBold(e),
		paused:  NewStyle(w),
		dim:     NewEm(h),
		bar:     NewStyle(t),
	}
}

// State styles a session state label.
func (p *Palette) State(state string) string {
	switch state {
	case "playing":
		return p.playing.Render(state)
	case "paused":
		return p.paused.Render(state)
	default:
		return p.dim.Render(state)
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
