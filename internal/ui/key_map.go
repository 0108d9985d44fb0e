package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the remote.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	selectE key.Binding
	toggle  key.Binding
	play    key.Binding
	next    key.Binding
	back    key.Binding
	forward key.Binding
	louder  key.Binding
	quieter key.Binding
	mute    key.Binding
	help    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		selectE: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play entry")),
		toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause/resume")),
		play:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "play")),
		next:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		back:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "-10s")),
		forward: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "+10s")),
		louder:  key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		quieter: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		mute:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.next, k.selectE, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.selectE},
		{k.toggle, k.play, k.next},
		{k.back, k.forward},
		{k.louder, k.quieter, k.mute},
		{k.help, k.quit},
	}
}
