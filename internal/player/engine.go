// Package player implements the authoritative state machine of a shared playback session.
//
// Every mutation runs under a per-session lock, writes only the columns it changes, and ends by publishing the full
// session snapshot. The progress scheduler writes progress in bulk outside these locks; the conditional form of its
// UPDATE and [Engine.AdvanceEnded] re-check state at write time, so a command landing between a tick's read and its
// write wins.
package player

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/broadcast"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// DefaultPreroll is how far before zero a newly selected entry starts.
const DefaultPreroll = 2 * time.Second

// SessionStore is the session persistence surface used by the engine.
type SessionStore interface {
	Get(id string) (*models.Session, error)
	SetPlaying(id string, playing bool) error
	SetProgress(id string, progress int) error
	SetVolume(id string, volume int) error
	SetMuted(id string, muted bool) error
	SelectEntry(id, entryID string, progress int, playing bool) error
}

// QueueStore is the queue persistence surface used by the engine.
type QueueStore interface {
	EntryFinder
	Create(entry *models.QueueEntry) error
	Get(id string) (*models.QueueEntry, error)
	Delete(id string) error
	List(criteria map[string]any) ([]*models.QueueEntry, error)
}

// TrackStore resolves catalog tracks.
type TrackStore interface {
	Get(id string) (*models.Track, error)
}

// EngineOpts wires an [Engine].
type EngineOpts struct {
	Sessions  SessionStore
	Queue     QueueStore
	Tracks    TrackStore
	Publisher broadcast.Publisher
	Preroll   time.Duration
	Logger    *log.Logger
}

// Engine applies playback commands to sessions.
type Engine struct {
	sessions  SessionStore
	queue     QueueStore
	tracks    TrackStore
	resolver  *Resolver
	publisher broadcast.Publisher
	preroll   int
	locks     *sessionLocks
	logger    *log.Logger
}

// NewEngine creates an engine from opts.
func NewEngine(opts EngineOpts) *Engine {
	return &Engine{
		sessions:  opts.Sessions,
		queue:     opts.Queue,
		tracks:    opts.Tracks,
		resolver:  NewResolver(opts.Queue),
		publisher: opts.Publisher,
		preroll:   int(opts.Preroll.Milliseconds()),
		locks:     newSessionLocks(),
		logger:    shared.WithLogger(opts.Logger, "component", "player"),
	}
}

// Play resumes playback. An idle session has nothing to play and stays idle, but a snapshot is still published.
func (e *Engine) Play(id string) (*models.Snapshot, error) {
	return e.mutate(id, "play", func(s *models.Session) error {
		if s.State() == models.Idle {
			return nil
		}
		return e.sessions.SetPlaying(id, true)
	})
}

// Pause stops playback, keeping entry and progress.
func (e *Engine) Pause(id string) (*models.Snapshot, error) {
	return e.mutate(id, "pause", func(s *models.Session) error {
		return e.sessions.SetPlaying(id, false)
	})
}

// TogglePause flips between playing and paused. It cannot start an idle session.
func (e *Engine) TogglePause(id string) (*models.Snapshot, error) {
	return e.mutate(id, "toggle", func(s *models.Session) error {
		if s.State() == models.Idle {
			return nil
		}
		return e.sessions.SetPlaying(id, !s.Playing)
	})
}

// Seek moves progress to ms. Values past the track's end are not clamped; the next scheduler pass promotes.
func (e *Engine) Seek(id string, ms int) (*models.Snapshot, error) {
	if ms < 0 {
		return nil, fmt.Errorf("%w: seek position must not be negative, got %d", shared.ErrValidation, ms)
	}
	return e.mutate(id, "seek", func(s *models.Session) error {
		return e.sessions.SetProgress(id, ms)
	})
}

// SelectEntry jumps to a live entry of the session's queue and starts it from the pre-roll offset.
//
// An entry that is unknown, removed, or queued in another session fails with [shared.ErrNotFound] before anything
// is written or published.
func (e *Engine) SelectEntry(id, entryID string) (*models.Snapshot, error) {
	return e.mutate(id, "select", func(s *models.Session) error {
		entry, err := e.queue.Get(entryID)
		if err != nil {
			return err
		}
		if entry.SessionID != id {
			return fmt.Errorf("%w: entry %s is not queued in session %s", shared.ErrNotFound, entryID, id)
		}
		return e.selectEntry(id, entry)
	})
}

// Advance moves to the next entry, or pauses on the current one when the queue is exhausted.
func (e *Engine) Advance(id string) (*models.Snapshot, error) {
	return e.mutate(id, "advance", e.advance)
}

// AdvanceEnded promotes a session only if it is still playing entryID and has run past that track's end.
//
// The scheduler decides to promote from a read taken before the lock; this re-check keeps a command that landed in
// between from being undone. It reports whether the session advanced.
func (e *Engine) AdvanceEnded(id, entryID string) (bool, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	s, err := e.sessions.Get(id)
	if err != nil {
		return false, err
	}
	if !s.Playing || s.CurrentEntryID != entryID {
		return false, nil
	}

	current, err := e.queue.Lookup(entryID)
	if err != nil {
		return false, err
	}
	if current.Track == nil || s.Progress <= current.Track.Duration {
		return false, nil
	}

	if err := e.advance(s); err != nil {
		return false, err
	}
	if _, err := e.publish(id); err != nil {
		return true, err
	}

	e.logger.Debug("advanced ended session", "session", id, "entry", entryID)
	return true, nil
}

// SetVolume sets the session volume, 0 through 100.
func (e *Engine) SetVolume(id string, volume int) (*models.Snapshot, error) {
	if volume < 0 || volume > 100 {
		return nil, fmt.Errorf("%w: volume must be within 0..100, got %d", shared.ErrValidation, volume)
	}
	return e.mutate(id, "volume", func(s *models.Session) error {
		return e.sessions.SetVolume(id, volume)
	})
}

// ToggleMute flips the muted flag.
func (e *Engine) ToggleMute(id string) (*models.Snapshot, error) {
	return e.mutate(id, "mute", func(s *models.Session) error {
		return e.sessions.SetMuted(id, !s.Muted)
	})
}

// Enqueue appends a catalog track to the session's queue.
//
// The returned entry is non-nil whenever it was stored, even if publishing the snapshot afterwards failed.
func (e *Engine) Enqueue(sessionID, trackID string) (*models.QueueEntry, error) {
	var entry *models.QueueEntry

	_, err := e.mutate(sessionID, "enqueue", func(s *models.Session) error {
		if _, err := e.tracks.Get(trackID); err != nil {
			return err
		}
		entry = models.NewQueueEntry(sessionID, trackID)
		return e.queue.Create(entry)
	})
	return entry, err
}

// RemoveEntry removes an entry from the session's queue.
//
// Removing the current entry does not stop it: it plays to its end and the next promotion resolves from its key.
func (e *Engine) RemoveEntry(sessionID, entryID string) (*models.Snapshot, error) {
	return e.mutate(sessionID, "remove", func(s *models.Session) error {
		entry, err := e.queue.Get(entryID)
		if err != nil {
			return err
		}
		if entry.SessionID != sessionID {
			return fmt.Errorf("%w: entry %s is not queued in session %s", shared.ErrNotFound, entryID, sessionID)
		}
		return e.queue.Delete(entryID)
	})
}

// Snapshot reads the current state of a session without changing or publishing it.
func (e *Engine) Snapshot(id string) (*models.Snapshot, error) {
	s, err := e.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return e.render(s)
}

// mutate runs fn under the session lock against a fresh read, then publishes the resulting snapshot.
func (e *Engine) mutate(id, op string, fn func(s *models.Session) error) (*models.Snapshot, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	s, err := e.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	if err := fn(s); err != nil {
		e.log(op, id, err)
		return nil, err
	}

	snap, err := e.publish(id)
	if err != nil {
		e.log(op, id, err)
		return nil, err
	}

	e.logger.Debug(op, "session", id, "state", snap.State, "progress", snap.Progress)
	return snap, nil
}

func (e *Engine) advance(s *models.Session) error {
	next, err := e.resolver.NextEntry(s)
	if err != nil {
		return err
	}
	if next == nil {
		return e.sessions.SetPlaying(s.ID(), false)
	}
	return e.selectEntry(s.ID(), next)
}

func (e *Engine) selectEntry(id string, entry *models.QueueEntry) error {
	return e.sessions.SelectEntry(id, entry.ID(), -e.preroll, true)
}

func (e *Engine) publish(id string) (*models.Snapshot, error) {
	s, err := e.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to read session after write: %w", err)
	}

	snap, err := e.render(s)
	if err != nil {
		return nil, err
	}

	if e.publisher != nil {
		e.publisher.Publish(id, broadcast.KindSnapshot, snap)
	}
	return snap, nil
}

func (e *Engine) render(s *models.Session) (*models.Snapshot, error) {
	entries, err := e.queue.List(map[string]any{"session_id": s.ID()})
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	return models.NewSnapshot(s, entries), nil
}

// log records a failed operation. Caller errors are debug noise; store failures are warnings.
func (e *Engine) log(op, id string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrValidation):
		e.logger.Debug(op+" rejected", "session", id, "err", err)
	default:
		e.logger.Warn(op+" failed", "session", id, "err", err)
	}
}
