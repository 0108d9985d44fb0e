// package formatter renders session snapshots as text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// Format names an output rendering.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// Formats lists every accepted format name, for flag help.
var Formats = []Format{Text, Markdown, CSV, JSON}

// ParseFormat accepts a format name or its file extension ("md").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "markdown", "md":
		return Markdown, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	playingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
)

// ToCSV writes one row per queued entry: Position, EntryID, TrackID, OrderKey, Title, Artist, Album, Duration, Current
func ToCSV(snap *models.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "EntryID", "TrackID", "OrderKey", "Title", "Artist", "Album", "Duration", "Current"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, e := range snap.Queue {
		record := []string{
			strconv.Itoa(i + 1),
			e.EntryID,
			e.TrackID,
			strconv.Itoa(e.OrderKey),
			e.Title,
			e.Artist,
			e.Album,
			strconv.Itoa(e.Duration),
			strconv.FormatBool(e.EntryID == snap.CurrentEntryID),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ToMarkdown renders a heading with the playback status followed by a numbered queue.
//
// The current entry is set in bold.
func ToMarkdown(snap *models.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", displayName(snap)))
	buf.WriteString(fmt.Sprintf("**State**: %s\n", snap.State))
	if cur, ok := snap.Current(); ok {
		buf.WriteString(fmt.Sprintf("**Now**: %s - %s [%s / %s]\n",
			cur.Artist, cur.Title, shared.FormatDuration(snap.Progress), shared.FormatDuration(cur.Duration)))
	}
	buf.WriteString(fmt.Sprintf("**Volume**: %d%s\n\n", snap.Volume, mutedSuffix(snap.Muted)))

	buf.WriteString("## Queue\n\n")
	if len(snap.Queue) == 0 {
		buf.WriteString("_empty_\n")
		return buf.Bytes(), nil
	}

	for i, e := range snap.Queue {
		line := fmt.Sprintf("%s - %s", e.Artist, e.Title)
		if e.Album != "" {
			line += fmt.Sprintf(" (%s)", e.Album)
		}
		if e.EntryID == snap.CurrentEntryID {
			line = "**" + line + "**"
		}
		buf.WriteString(fmt.Sprintf("%d. %s [%s]\n", i+1, line, shared.FormatDuration(e.Duration)))
	}

	return buf.Bytes(), nil
}

// ToText renders a terminal view of the snapshot, styled with lipgloss.
func ToText(snap *models.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(titleStyle.Render(displayName(snap)) + "\n")
	buf.WriteString(fmt.Sprintf("%s  vol %d%s\n", stateLabel(snap.State), snap.Volume, mutedSuffix(snap.Muted)))

	if cur, ok := snap.Current(); ok {
		buf.WriteString(fmt.Sprintf("Now: %s - %s  %s / %s\n",
			cur.Artist, cur.Title, shared.FormatDuration(snap.Progress), shared.FormatDuration(cur.Duration)))
	}

	buf.WriteString(fmt.Sprintf("Queue: %d\n\n", len(snap.Queue)))
	for i, e := range snap.Queue {
		marker := " "
		if e.EntryID == snap.CurrentEntryID {
			marker = ">"
		}
		buf.WriteString(fmt.Sprintf("%s %d. %s - %s (%s)\n", marker, i+1, e.Artist, e.Title, shared.FormatDuration(e.Duration)))
	}

	return buf.Bytes(), nil
}

// ToJSON renders the snapshot in its wire shape, indented.
func ToJSON(snap *models.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Render converts a snapshot to the given format.
func Render(snap *models.Snapshot, f Format) ([]byte, error) {
	switch f {
	case Text:
		return ToText(snap)
	case Markdown:
		return ToMarkdown(snap)
	case CSV:
		return ToCSV(snap)
	case JSON:
		return ToJSON(snap)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
}

// Write renders a snapshot to w.
func Write(w io.Writer, snap *models.Snapshot, f Format) error {
	data, err := Render(snap, f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s output: %w", f, err)
	}
	return nil
}

// WriteFile renders a snapshot into a file.
//
// Defaults to {session.ID}.{ext} when path is empty.
func WriteFile(snap *models.Snapshot, f Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s.%s", snap.ID, Extension(f))
	}

	data, err := Render(snap, f)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}
	return path, nil
}

// Extension is the file extension used for a format.
func Extension(f Format) string {
	switch f {
	case Markdown:
		return "md"
	case CSV:
		return "csv"
	case JSON:
		return "json"
	default:
		return "txt"
	}
}

// SessionTable renders one line per session for listings.
func SessionTable(sessions []*models.Session) string {
	if len(sessions) == 0 {
		return mutedStyle.Render("no sessions") + "\n"
	}

	var b strings.Builder
	for _, s := range sessions {
		name := s.Name
		if name == "" {
			name = "(unnamed)"
		}
		b.WriteString(fmt.Sprintf("%4d  %s  %-24s %s\n", s.Sequence(), s.ID(), name, stateLabel(s.State().String())))
	}
	return b.String()
}

// TrackTable renders one line per catalog track.
func TrackTable(tracks []*models.Track) string {
	if len(tracks) == 0 {
		return mutedStyle.Render("no tracks") + "\n"
	}

	var b strings.Builder
	for _, t := range tracks {
		b.WriteString(fmt.Sprintf("%s  %s - %s  %s\n", t.ID(), t.Artist, t.Title, shared.FormatDuration(t.Duration)))
	}
	return b.String()
}

func displayName(snap *models.Snapshot) string {
	if snap.Name != "" {
		return snap.Name
	}
	return "Session " + snap.ID
}

func stateLabel(state string) string {
	switch state {
	case models.Playing.String():
		return playingStyle.Render(state)
	case models.Paused.String():
		return pausedStyle.Render(state)
	default:
		return mutedStyle.Render(state)
	}
}

func mutedSuffix(muted bool) string {
	if muted {
		return " (muted)"
	}
	return ""
}
