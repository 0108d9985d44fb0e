package models

import (
	"fmt"

	"github.com/desertthunder/jukebox/internal/shared"
)

// DefaultVolume is applied to new sessions unless configured otherwise.
const DefaultVolume = 100

// State is the derived playback state of a [Session].
type State int

const (
	Idle State = iota
	Paused
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	default:
		return ""
	}
}

// Session is one shared player observed by any number of listeners.
//
// Progress is in milliseconds and is only meaningful while CurrentEntryID is set. It may be negative right after an
// entry is selected (pre-roll) and may exceed the track duration by up to one tick until the scheduler promotes it.
type Session struct {
	Record
	Name           string
	Playing        bool
	Progress       int
	Volume         int
	Muted          bool
	CurrentEntryID string
}

// NewSession creates an idle, empty session.
func NewSession(name string, volume int) *Session {
	return &Session{Record: newRecord(), Name: name, Volume: volume}
}

// HasCurrent reports whether an entry has been selected.
func (s *Session) HasCurrent() bool {
	return s.CurrentEntryID != ""
}

// State derives Idle/Paused/Playing from the stored fields.
func (s *Session) State() State {
	switch {
	case !s.HasCurrent():
		return Idle
	case s.Playing:
		return Playing
	default:
		return Paused
	}
}

// Validate checks attribute constraints before persistence.
func (s *Session) Validate() error {
	if s.ID() == "" {
		return fmt.Errorf("%w: session id is required", shared.ErrValidation)
	}
	if s.Volume < 0 || s.Volume > 100 {
		return fmt.Errorf("%w: volume must be within 0..100, got %d", shared.ErrValidation, s.Volume)
	}
	if len(s.Name) > 200 {
		return fmt.Errorf("%w: session name is too long", shared.ErrValidation)
	}
	return nil
}

// ActivePlayback is the scheduler's view of a playing session: its progress against the current track's duration.
type ActivePlayback struct {
	SessionID string
	EntryID   string
	Progress  int
	Duration  int
}

// Ended reports whether progress ran past the end of the current track.
func (a *ActivePlayback) Ended() bool {
	return a.Progress > a.Duration
}
