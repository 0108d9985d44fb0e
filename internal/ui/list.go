package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

var _ list.Item = entryItem{}

// entryItem wraps [models.SnapshotEntry] to implement [list.Item].
type entryItem struct {
	entry   models.SnapshotEntry
	current bool
}

func (i entryItem) FilterValue() string { return i.entry.Title }

func (i entryItem) Title() string {
	if i.current {
		return "▶ " + i.entry.Title
	}
	return i.entry.Title
}

func (i entryItem) Description() string {
	desc := i.entry.Artist
	if i.entry.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.entry.Album)
	}
	return fmt.Sprintf("%s • %s", desc, shared.FormatDuration(i.entry.Duration))
}

// queueItems converts a snapshot queue into list items, marking the current entry.
func queueItems(snap *models.Snapshot) []list.Item {
	items := make([]list.Item, len(snap.Queue))
	for i, e := range snap.Queue {
		items[i] = entryItem{entry: e, current: e.EntryID == snap.CurrentEntryID}
	}
	return items
}
