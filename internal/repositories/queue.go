package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

const queueSelect = `
	SELECT q.id, q.session_id, q.track_id, q.order_key, q.created_at, q.updated_at, q.deleted_at,
		t.title, t.artist, t.album, t.duration
	FROM queue_entries q
	JOIN tracks t ON t.id = q.track_id
`

// highestLiveKey is shared by [QueueRepository.Create] and [QueueRepository.HighestOrderKey] so the key an append
// receives is always one more than what HighestOrderKey reports.
const highestLiveKey = "SELECT COALESCE(MAX(order_key), 0) FROM queue_entries WHERE session_id = ? AND deleted_at IS NULL"

// QueueRepository implements models.Repository[*models.QueueEntry].
//
// Order keys are assigned on insert as one more than the highest key among the session's live entries. Keys are
// never renumbered, so removals in the middle leave gaps; a key freed at the top may be handed out again. Entries are
// read back with their track joined in.
type QueueRepository struct {
	db *sql.DB
}

// NewQueueRepository creates a new QueueRepository with the given database connection
func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Create appends an entry to its session's queue and sets its order key.
func (r *QueueRepository) Create(entry *models.QueueEntry) error {
	entry.SetID(shared.GenerateID())
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO queue_entries (id, session_id, track_id, order_key, created_at, updated_at)
		VALUES (?, ?, ?, (` + highestLiveKey + `) + 1, ?, ?)
		RETURNING order_key
	`

	var key int
	err := r.db.QueryRow(query,
		entry.ID(),
		entry.SessionID,
		entry.TrackID,
		entry.SessionID,
		entry.CreatedAt(),
		entry.UpdatedAt(),
	).Scan(&key)
	if err != nil {
		return storeErr("failed to insert queue entry", err)
	}
	entry.OrderKey = key

	return nil
}

// Get retrieves a live queue entry by ID
func (r *QueueRepository) Get(id string) (*models.QueueEntry, error) {
	return r.one(queueSelect+" WHERE q.id = ? AND q.deleted_at IS NULL", id)
}

// Lookup retrieves a queue entry by ID whether or not it has been removed.
func (r *QueueRepository) Lookup(id string) (*models.QueueEntry, error) {
	return r.one(queueSelect+" WHERE q.id = ?", id)
}

// Next returns the live entry of a session with the smallest order key strictly greater than afterKey.
//
// A nil entry and nil error mean the queue has nothing after afterKey.
func (r *QueueRepository) Next(sessionID string, afterKey int) (*models.QueueEntry, error) {
	query := queueSelect + `
		WHERE q.session_id = ? AND q.order_key > ? AND q.deleted_at IS NULL
		ORDER BY q.order_key ASC
		LIMIT 1
	`

	entry, err := r.one(query, sessionID, afterKey)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

// HighestOrderKey returns the largest order key among a session's live entries, or 0 when the queue is empty.
func (r *QueueRepository) HighestOrderKey(sessionID string) (int, error) {
	var key int
	err := r.db.QueryRow(highestLiveKey, sessionID).Scan(&key)
	if err != nil {
		return 0, storeErr("failed to read highest order key", err)
	}
	return key, nil
}

// Update points an entry at a different track. Its order key never changes.
func (r *QueueRepository) Update(entry *models.QueueEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	entry.SetUpdatedAt(now)

	result, err := r.db.Exec(
		"UPDATE queue_entries SET track_id = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		entry.TrackID, now, entry.ID(),
	)
	if err != nil {
		return storeErr("failed to update queue entry", err)
	}

	return expectRows(result, "queue entry", entry.ID())
}

// Delete soft-deletes a queue entry. The row stays so a removed current entry can still anchor the order.
func (r *QueueRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE queue_entries SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return storeErr("failed to delete queue entry", err)
	}

	return expectRows(result, "queue entry", id)
}

// List retrieves live entries in ascending order key. Supported criteria: "session_id".
func (r *QueueRepository) List(criteria map[string]any) ([]*models.QueueEntry, error) {
	query := queueSelect + " WHERE q.deleted_at IS NULL"
	args := []any{}

	if sessionID, ok := criteria["session_id"].(string); ok && sessionID != "" {
		query += " AND q.session_id = ?"
		args = append(args, sessionID)
	}

	query += " ORDER BY q.session_id, q.order_key ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, storeErr("failed to query queue entries", err)
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("row iteration error", err)
	}

	return entries, nil
}

func (r *QueueRepository) one(query string, args ...any) (*models.QueueEntry, error) {
	entry, err := scanQueueEntry(r.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: queue entry", shared.ErrNotFound)
	}
	return entry, err
}

// scanQueueEntry scans one row of queueSelect. [sql.ErrNoRows] is returned unwrapped.
func scanQueueEntry(row scanner) (*models.QueueEntry, error) {
	var (
		id        string
		sessionID string
		trackID   string
		orderKey  int
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
		track     models.Track
	)

	err := row.Scan(&id, &sessionID, &trackID, &orderKey, &createdAt, &updatedAt, &deletedAt,
		&track.Title, &track.Artist, &track.Album, &track.Duration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, storeErr("failed to scan queue entry", err)
	}

	track.SetID(trackID)

	entry := &models.QueueEntry{SessionID: sessionID, TrackID: trackID, OrderKey: orderKey, Track: &track}
	entry.SetID(id)
	entry.SetCreatedAt(createdAt)
	entry.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		entry.SetDeletedAt(&deletedAt.Time)
	}

	return entry, nil
}

var (
	_ models.Repository[*models.Session]    = (*SessionRepository)(nil)
	_ models.Repository[*models.Track]      = (*TrackRepository)(nil)
	_ models.Repository[*models.QueueEntry] = (*QueueRepository)(nil)
)
