package models

import "github.com/samber/lo"

// Snapshot is the full, authoritative state of a session as sent to listeners.
//
// Listeners apply it as a total overwrite of their local view.
type Snapshot struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	State          string          `json:"state"`
	Playing        bool            `json:"playing"`
	Progress       int             `json:"progress"`
	Volume         int             `json:"volume"`
	Muted          bool            `json:"muted"`
	CurrentEntryID string          `json:"currentEntryId,omitempty"`
	Queue          []SnapshotEntry `json:"queue"`
}

// SnapshotEntry is one queue position with its track fields flattened in.
type SnapshotEntry struct {
	EntryID  string `json:"entryId"`
	TrackID  string `json:"trackId"`
	OrderKey int    `json:"orderKey"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Duration int    `json:"duration"`
}

// ProgressDelta is the advisory progress event payload.
type ProgressDelta struct {
	ID       string `json:"id"`
	Progress int    `json:"progress"`
}

// NewSnapshot renders a session and its live queue entries, which must already be in order key order.
func NewSnapshot(s *Session, entries []*QueueEntry) *Snapshot {
	queue := lo.Map(entries, func(e *QueueEntry, _ int) SnapshotEntry {
		item := SnapshotEntry{EntryID: e.ID(), TrackID: e.TrackID, OrderKey: e.OrderKey}
		if e.Track != nil {
			item.Title = e.Track.Title
			item.Artist = e.Track.Artist
			item.Album = e.Track.Album
			item.Duration = e.Track.Duration
		}
		return item
	})

	return &Snapshot{
		ID:             s.ID(),
		Name:           s.Name,
		State:          s.State().String(),
		Playing:        s.Playing,
		Progress:       s.Progress,
		Volume:         s.Volume,
		Muted:          s.Muted,
		CurrentEntryID: s.CurrentEntryID,
		Queue:          queue,
	}
}

// Current returns the queue item for the current entry, if it is still queued.
func (s *Snapshot) Current() (SnapshotEntry, bool) {
	if s.CurrentEntryID == "" {
		return SnapshotEntry{}, false
	}
	return lo.Find(s.Queue, func(e SnapshotEntry) bool { return e.EntryID == s.CurrentEntryID })
}

// EntryAt returns the entry id at a zero-based queue position.
func (s *Snapshot) EntryAt(index int) (string, bool) {
	if index < 0 || index >= len(s.Queue) {
		return "", false
	}
	return s.Queue[index].EntryID, true
}
