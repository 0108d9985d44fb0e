package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/jukebox/internal/shared"
)

// Track is a catalog entry. Duration is in milliseconds.
type Track struct {
	Record
	Title    string
	Artist   string
	Album    string
	Duration int
}

// NewTrack creates a catalog track.
func NewTrack(title, artist, album string, duration int) *Track {
	return &Track{Record: newRecord(), Title: title, Artist: artist, Album: album, Duration: duration}
}

// Validate checks attribute constraints before persistence.
func (t *Track) Validate() error {
	if t.ID() == "" {
		return fmt.Errorf("%w: track id is required", shared.ErrValidation)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: track title is required", shared.ErrValidation)
	}
	if t.Duration <= 0 {
		return fmt.Errorf("%w: track duration must be positive, got %d", shared.ErrValidation, t.Duration)
	}
	return nil
}
