package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/jukebox/internal/broadcast"
	"github.com/desertthunder/jukebox/internal/client"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/server"
	"github.com/desertthunder/jukebox/internal/shared"
)

const (
	seekStep   = 10000
	volumeStep = 5
	barWidth   = 30
)

// Remote is a joined session topic the model reads frames from and sends commands to.
//
// [client.Client] implements it.
type Remote interface {
	Topic() string
	Events() <-chan client.Frame
	Send(typ string, payload any) (string, error)
	Err() error
}

var _ Remote = (*client.Client)(nil)

// Model represents the remote control state for one session.
type Model struct {
	remote       Remote
	snap         *models.Snapshot
	queue        list.Model
	width        int
	height       int
	pending      map[string]string
	err          error
	disconnected bool
	help         help.Model
	keys         keyMap
}

// NewModel creates a remote for a joined session, starting from the snapshot it was greeted with.
func NewModel(remote Remote, snap *models.Snapshot) *Model {
	queue := list.New(queueItems(snap), list.NewDefaultDelegate(), 0, 0)
	queue.Title = "Queue"
	queue.SetShowHelp(false)
	queue.SetShowStatusBar(false)
	queue.SetFilteringEnabled(false)

	return &Model{
		remote:  remote,
		snap:    snap,
		queue:   queue,
		pending: make(map[string]string),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Snapshot is the state the remote currently shows.
func (m *Model) Snapshot() *models.Snapshot { return m.snap }

// Err is the last failure reported by the server or the connection.
func (m *Model) Err() error { return m.err }

// Init starts listening for frames from the session topic.
func (m *Model) Init() tea.Cmd {
	return m.listen()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.queue.SetSize(msg.Width-4, max(msg.Height-12, 4))
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSnapshot:
		snap := msg.data.(*models.Snapshot)
		m.snap = snap
		cmd := m.queue.SetItems(queueItems(snap))
		return m, tea.Batch(cmd, m.listen())

	case MsgProgress:
		delta := msg.data.(models.ProgressDelta)
		if delta.ID == m.snap.ID {
			m.snap.Progress = delta.Progress
		}
		return m, m.listen()

	case MsgReply:
		data := msg.data.(struct {
			ref string
			err error
		})
		command, known := m.pending[data.ref]
		delete(m.pending, data.ref)
		switch {
		case data.err == nil:
			m.err = nil
		case known:
			m.err = fmt.Errorf("%s: %w", command, data.err)
		default:
			m.err = data.err
		}
		return m, m.listen()

	case MsgSendFailed:
		data := msg.data.(struct {
			command string
			err     error
		})
		m.err = fmt.Errorf("%s: %w", data.command, data.err)
		return m, nil

	case MsgDisconnected:
		m.disconnected = true
		if err, ok := msg.data.(error); ok && err != nil {
			m.err = err
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.help) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	if m.disconnected {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.toggle):
		return m, m.send(server.CmdToggle, nil)
	case key.Matches(msg, m.keys.play):
		return m, m.send(server.CmdPlay, nil)
	case key.Matches(msg, m.keys.next):
		return m, m.send(server.CmdNext, nil)
	case key.Matches(msg, m.keys.mute):
		return m, m.send(server.CmdMute, nil)
	case key.Matches(msg, m.keys.back):
		return m, m.seek(-seekStep)
	case key.Matches(msg, m.keys.forward):
		return m, m.seek(seekStep)
	case key.Matches(msg, m.keys.louder):
		return m, m.volume(volumeStep)
	case key.Matches(msg, m.keys.quieter):
		return m, m.volume(-volumeStep)
	case key.Matches(msg, m.keys.selectE):
		item, ok := m.queue.SelectedItem().(entryItem)
		if !ok {
			return m, nil
		}
		return m, m.send(server.CmdSelectEntry, server.SelectPayload{EntryID: item.entry.EntryID})
	case key.Matches(msg, m.keys.up, m.keys.down):
		var cmd tea.Cmd
		m.queue, cmd = m.queue.Update(msg)
		return m, cmd
	}
	return m, nil
}

// seek is relative to the last known progress and never goes below zero.
func (m *Model) seek(delta int) tea.Cmd {
	if m.snap.CurrentEntryID == "" {
		return nil
	}
	progress := max(m.snap.Progress+delta, 0)
	return m.send(server.CmdSeek, server.SeekPayload{Progress: &progress})
}

func (m *Model) volume(delta int) tea.Cmd {
	volume := min(max(m.snap.Volume+delta, 0), 100)
	if volume == m.snap.Volume {
		return nil
	}
	return m.send(server.CmdVolume, server.VolumePayload{Volume: &volume})
}

// send writes a command and remembers its ref so the reply can be attributed.
func (m *Model) send(command string, payload any) tea.Cmd {
	ref, err := m.remote.Send(command, payload)
	if err != nil {
		return func() tea.Msg { return sendFailedMsg(command, err) }
	}
	m.pending[ref] = command
	return nil
}

// listen waits for the next frame the model understands.
func (m *Model) listen() tea.Cmd {
	events := m.remote.Events()
	return func() tea.Msg {
		for f := range events {
			if msg, ok := frameMsg(f); ok {
				return msg
			}
		}
		return disconnectedMsg(m.remote.Err())
	}
}

func frameMsg(f client.Frame) (Msg, bool) {
	switch f.Event {
	case string(broadcast.KindSnapshot), server.EventJoined:
		snap, err := f.Snapshot()
		if err != nil {
			return replyMsg(f.Ref, err), true
		}
		return snapshotMsg(snap), true
	case string(broadcast.KindProgress):
		delta, err := f.Progress()
		if err != nil {
			return Msg{}, false
		}
		return progressMsg(delta), true
	case server.EventReply:
		return replyMsg(f.Ref, f.Err()), true
	}
	return Msg{}, false
}

// View renders the now-playing header, the queue and the key help.
func (m *Model) View() string {
	var b strings.Builder

	name := m.snap.Name
	if name == "" {
		name = "Session " + m.snap.ID
	}
	b.WriteString(styles.title.Render(name))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.queue.View())
	b.WriteString("\n\n")

	if m.disconnected {
		b.WriteString(styles.err.Render("Disconnected from server"))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderStatus() string {
	volume := fmt.Sprintf("vol %d", m.snap.Volume)
	if m.snap.Muted {
		volume = styles.dim.Render(volume + " (muted)")
	}

	cur, ok := m.snap.Current()
	if !ok {
		return fmt.Sprintf("%s  %s", styles.State(m.snap.State), volume)
	}

	return fmt.Sprintf("%s  %s - %s\n%s %s / %s  %s",
		styles.State(m.snap.State),
		cur.Artist,
		cur.Title,
		styles.bar.Render(progressBar(m.snap.Progress, cur.Duration, barWidth)),
		shared.FormatDuration(m.snap.Progress),
		shared.FormatDuration(cur.Duration),
		volume,
	)
}

// progressBar renders position within duration as a fixed-width bar; pre-roll renders empty.
func progressBar(progress, duration, width int) string {
	filled := 0
	if duration > 0 && progress > 0 {
		filled = min(progress*width/duration, width)
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
