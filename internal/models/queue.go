package models

import (
	"fmt"

	"github.com/desertthunder/jukebox/internal/shared"
)

// QueueEntry is one position in a session's queue.
//
// Playback order is ascending OrderKey. Keys are unique per session, may have gaps, and are never renumbered.
type QueueEntry struct {
	Record
	SessionID string
	TrackID   string
	OrderKey  int
	Track     *Track // populated by repository reads
}

// NewQueueEntry creates an entry; the order key is assigned by the repository on insert.
func NewQueueEntry(sessionID, trackID string) *QueueEntry {
	return &QueueEntry{Record: newRecord(), SessionID: sessionID, TrackID: trackID}
}

// Validate checks attribute constraints before persistence.
func (e *QueueEntry) Validate() error {
	if e.ID() == "" {
		return fmt.Errorf("%w: queue entry id is required", shared.ErrValidation)
	}
	if e.SessionID == "" {
		return fmt.Errorf("%w: queue entry session is required", shared.ErrValidation)
	}
	if e.TrackID == "" {
		return fmt.Errorf("%w: queue entry track is required", shared.ErrValidation)
	}
	return nil
}
