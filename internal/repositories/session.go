package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/samber/lo"
)

const sessionColumns = "id, sequence, name, playing, progress, volume, muted, current_entry_id, created_at, updated_at, deleted_at"

// progressBatch bounds the number of ids bound into one UPDATE statement.
const progressBatch = 500

// SessionRepository implements models.Repository[*models.Session].
//
// Beyond CRUD it exposes column-targeted writes so that concurrent writers (command handlers and the progress
// scheduler) never overwrite each other's fields with stale values.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new [models.Session] with generated ID and sequence
func (r *SessionRepository) Create(session *models.Session) error {
	session.SetID(shared.GenerateID())
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	session.SetSequence(sequence)

	query := `
		INSERT INTO sessions (id, sequence, name, playing, progress, volume, muted, current_entry_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		session.ID(),
		sequence,
		session.Name,
		session.Playing,
		session.Progress,
		session.Volume,
		session.Muted,
		nullString(session.CurrentEntryID),
		session.CreatedAt(),
		session.UpdatedAt(),
	)
	if err != nil {
		return storeErr("failed to insert session", err)
	}

	return nil
}

// Get retrieves a session by ID, excluding soft-deleted sessions
func (r *SessionRepository) Get(id string) (*models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE id = ? AND deleted_at IS NULL"

	session, err := scanSession(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", shared.ErrNotFound, id)
	}
	return session, err
}

// Update rewrites every mutable column of a session.
//
// Only suitable for administrative edits; playback changes go through the column-targeted writers below.
func (r *SessionRepository) Update(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	session.SetUpdatedAt(now)

	query := `
		UPDATE sessions
		SET name = ?, playing = ?, progress = ?, volume = ?, muted = ?, current_entry_id = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		session.Name,
		session.Playing,
		session.Progress,
		session.Volume,
		session.Muted,
		nullString(session.CurrentEntryID),
		now,
		session.ID(),
	)
	if err != nil {
		return storeErr("failed to update session", err)
	}

	return expectRows(result, "session", session.ID())
}

// Delete soft-deletes a session by ID
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE sessions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return storeErr("failed to delete session", err)
	}

	return expectRows(result, "session", id)
}

// List retrieves sessions ordered by sequence. Supported criteria: "playing" (bool).
func (r *SessionRepository) List(criteria map[string]any) ([]*models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE deleted_at IS NULL"
	args := []any{}

	if playing, ok := criteria["playing"].(bool); ok {
		query += " AND playing = ?"
		args = append(args, playing)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, storeErr("failed to query sessions", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("row iteration error", err)
	}

	return sessions, nil
}

// SetPlaying writes only the playing flag.
func (r *SessionRepository) SetPlaying(id string, playing bool) error {
	return r.set(id, "playing = ?", playing)
}

// SetProgress writes only the progress column.
func (r *SessionRepository) SetProgress(id string, progress int) error {
	return r.set(id, "progress = ?", progress)
}

// SetVolume writes only the volume column.
func (r *SessionRepository) SetVolume(id string, volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("%w: volume must be within 0..100, got %d", shared.ErrValidation, volume)
	}
	return r.set(id, "volume = ?", volume)
}

// SetMuted writes only the muted flag.
func (r *SessionRepository) SetMuted(id string, muted bool) error {
	return r.set(id, "muted = ?", muted)
}

// SelectEntry makes entryID current with the given starting progress and playing flag.
func (r *SessionRepository) SelectEntry(id, entryID string, progress int, playing bool) error {
	return r.set(id, "current_entry_id = ?, progress = ?, playing = ?", entryID, progress, playing)
}

func (r *SessionRepository) set(id, assignments string, args ...any) error {
	query := "UPDATE sessions SET " + assignments + ", updated_at = ? WHERE id = ? AND deleted_at IS NULL"
	args = append(args, time.Now(), id)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return storeErr("failed to update session", err)
	}

	return expectRows(result, "session", id)
}

// Active returns every playing session that has a current entry, joined to that entry's track duration.
//
// A current entry that was removed from the queue still counts: it plays to its end.
func (r *SessionRepository) Active() ([]*models.ActivePlayback, error) {
	query := `
		SELECT s.id, s.current_entry_id, s.progress, t.duration
		FROM sessions s
		JOIN queue_entries q ON q.id = s.current_entry_id
		JOIN tracks t ON t.id = q.track_id
		WHERE s.playing = 1 AND s.deleted_at IS NULL AND s.current_entry_id IS NOT NULL
		ORDER BY s.sequence ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, storeErr("failed to query active sessions", err)
	}
	defer rows.Close()

	var active []*models.ActivePlayback
	for rows.Next() {
		var a models.ActivePlayback
		if err := rows.Scan(&a.SessionID, &a.EntryID, &a.Progress, &a.Duration); err != nil {
			return nil, storeErr("failed to scan active session", err)
		}
		active = append(active, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("row iteration error", err)
	}

	return active, nil
}

// AdvanceProgress adds tick to the progress of every listed session in set-oriented statements.
//
// The WHERE clause re-checks that each session is still playing a current entry that has not ended, so sessions
// paused, re-selected or promoted since they were read are left alone. Only rows actually updated are returned.
func (r *SessionRepository) AdvanceProgress(ids []string, tick int) ([]models.ProgressDelta, error) {
	var deltas []models.ProgressDelta
	now := time.Now()

	for _, chunk := range lo.Chunk(ids, progressBatch) {
		query := fmt.Sprintf(`
			UPDATE sessions
			SET progress = progress + ?, updated_at = ?
			WHERE id IN (%s)
				AND playing = 1
				AND deleted_at IS NULL
				AND current_entry_id IS NOT NULL
				AND progress <= (
					SELECT t.duration FROM queue_entries q JOIN tracks t ON t.id = q.track_id
					WHERE q.id = sessions.current_entry_id
				)
			RETURNING id, progress
		`, placeholders(len(chunk)))

		args := make([]any, 0, len(chunk)+2)
		args = append(args, tick, now)
		args = append(args, lo.ToAnySlice(chunk)...)

		batch, err := r.queryDeltas(query, args...)
		if err != nil {
			return deltas, err
		}
		deltas = append(deltas, batch...)
	}

	return deltas, nil
}

func (r *SessionRepository) queryDeltas(query string, args ...any) ([]models.ProgressDelta, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, storeErr("failed to advance progress", err)
	}
	defer rows.Close()

	var deltas []models.ProgressDelta
	for rows.Next() {
		var d models.ProgressDelta
		if err := rows.Scan(&d.ID, &d.Progress); err != nil {
			return nil, storeErr("failed to scan progress", err)
		}
		deltas = append(deltas, d)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("row iteration error", err)
	}

	return deltas, nil
}

// scanSession scans one row of sessionColumns. [sql.ErrNoRows] is returned unwrapped.
func scanSession(row scanner) (*models.Session, error) {
	var (
		id        string
		sequence  int
		name      string
		playing   bool
		progress  int
		volume    int
		muted     bool
		current   sql.NullString
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &name, &playing, &progress, &volume, &muted, &current, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, storeErr("failed to scan session", err)
	}

	session := &models.Session{
		Name:           name,
		Playing:        playing,
		Progress:       progress,
		Volume:         volume,
		Muted:          muted,
		CurrentEntryID: current.String,
	}
	session.SetID(id)
	session.SetSequence(sequence)
	session.SetCreatedAt(createdAt)
	session.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		session.SetDeletedAt(&deletedAt.Time)
	}

	return session, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
