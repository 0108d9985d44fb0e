package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/broadcast"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/samber/lo"
)

// DefaultTick is the tick width used when none is configured.
const DefaultTick = time.Second

// ProgressStore is the session persistence surface used by the scheduler.
type ProgressStore interface {
	Get(id string) (*models.Session, error)
	Active() ([]*models.ActivePlayback, error)
	AdvanceProgress(ids []string, tick int) ([]models.ProgressDelta, error)
}

// Advancer promotes a session whose track has ended. Implemented by player.Engine.
type Advancer interface {
	AdvanceEnded(id, entryID string) (bool, error)
}

// SchedulerOpts wires a [Scheduler].
type SchedulerOpts struct {
	Sessions  ProgressStore
	Engine    Advancer
	Publisher broadcast.Publisher // nil skips progress events; the store is still advanced
	Tick      time.Duration
	Logger    *log.Logger
}

// TickResult summarizes one global pass.
type TickResult struct {
	Active     int                    // Sessions read as playing
	Progressed []models.ProgressDelta // Rows the bulk update advanced
	Advanced   []string               // Sessions promoted to their next entry or paused
	Skipped    []string               // Ended sessions whose promotion was superseded by a command
	Errors     []error                // Store failures; each affects only its own step or session
}

// Scheduler owns both tick mechanisms.
type Scheduler struct {
	sessions  ProgressStore
	engine    Advancer
	publisher broadcast.Publisher
	tick      time.Duration
	logger    *log.Logger
}

// NewScheduler creates a scheduler from opts.
func NewScheduler(opts SchedulerOpts) *Scheduler {
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Scheduler{
		sessions:  opts.Sessions,
		engine:    opts.Engine,
		publisher: opts.Publisher,
		tick:      tick,
		logger:    shared.WithLogger(opts.Logger, "component", "scheduler"),
	}
}

// Width returns the tick width.
func (s *Scheduler) Width() time.Duration { return s.tick }

// Tick performs one global batch pass.
//
// The returned error is non-nil only when the active set could not be read at all; failures after that are
// collected in [TickResult.Errors] and never stop the remaining sessions.
func (s *Scheduler) Tick() (*TickResult, error) {
	result := &TickResult{}

	active, err := s.sessions.Active()
	if err != nil {
		s.logger.Warn("failed to read active sessions", "err", err)
		result.Errors = append(result.Errors, err)
		return result, err
	}
	result.Active = len(active)
	if len(active) == 0 {
		return result, nil
	}

	progressing, ended := lo.FilterReject(active, func(a *models.ActivePlayback, _ int) bool {
		return !a.Ended()
	})

	if len(progressing) > 0 {
		ids := lo.Map(progressing, func(a *models.ActivePlayback, _ int) string { return a.SessionID })

		deltas, err := s.sessions.AdvanceProgress(ids, int(s.tick.Milliseconds()))
		if err != nil {
			s.logger.Warn("failed to advance progress", "sessions", len(ids), "err", err)
			result.Errors = append(result.Errors, err)
		}
		if s.publisher != nil {
			for _, d := range deltas {
				s.publisher.Publish(d.ID, broadcast.KindProgress, d)
			}
		}
		result.Progressed = deltas
	}

	for _, a := range ended {
		advanced, err := s.engine.AdvanceEnded(a.SessionID, a.EntryID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			s.logger.Debug("ended session disappeared", "session", a.SessionID)
		case err != nil:
			s.logger.Warn("failed to advance ended session", "session", a.SessionID, "err", err)
			result.Errors = append(result.Errors, err)
		case advanced:
			result.Advanced = append(result.Advanced, a.SessionID)
		default:
			result.Skipped = append(result.Skipped, a.SessionID)
		}
	}

	s.logger.Debug("tick",
		"active", result.Active,
		"progressed", len(result.Progressed),
		"advanced", len(result.Advanced),
		"skipped", len(result.Skipped),
		"errors", len(result.Errors),
	)
	return result, nil
}

// Run drives [Scheduler.Tick] until ctx is cancelled. When updates is non-nil each result is offered to it without
// blocking.
func (s *Scheduler) Run(ctx context.Context, updates chan<- TickResult) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "tick", s.tick)
	defer s.logger.Info("scheduler stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, _ := s.Tick()
			if updates == nil {
				continue
			}
			select {
			case updates <- *result:
			default:
			}
		}
	}
}

// Follow is the per-listener tick. Every tick width it re-reads the session and, while it is playing, hands a
// progress delta to deliver. It returns when ctx is cancelled or the session no longer exists.
func (s *Scheduler) Follow(ctx context.Context, sessionID string, deliver func(models.ProgressDelta)) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			session, err := s.sessions.Get(sessionID)
			if errors.Is(err, shared.ErrNotFound) {
				s.logger.Debug("followed session disappeared", "session", sessionID)
				return
			}
			if err != nil {
				s.logger.Debug("failed to read followed session", "session", sessionID, "err", err)
				continue
			}
			if session.Playing && session.HasCurrent() {
				deliver(models.ProgressDelta{ID: sessionID, Progress: session.Progress})
			}
		}
	}
}
