package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

const trackColumns = "id, sequence, title, artist, album, duration, created_at, updated_at, deleted_at"

// TrackRepository implements models.Repository[*models.Track] for the track catalog.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new [models.Track] with generated ID and sequence
func (r *TrackRepository) Create(track *models.Track) error {
	track.SetID(shared.GenerateID())
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	track.SetSequence(sequence)

	query := `
		INSERT INTO tracks (id, sequence, title, artist, album, duration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		track.ID(),
		sequence,
		track.Title,
		track.Artist,
		track.Album,
		track.Duration,
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return storeErr("failed to insert track", err)
	}

	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.Track, error) {
	query := "SELECT " + trackColumns + " FROM tracks WHERE id = ? AND deleted_at IS NULL"

	track, err := scanTrack(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: track %s", shared.ErrNotFound, id)
	}
	return track, err
}

// Update modifies the display fields and duration of an existing track
func (r *TrackRepository) Update(track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	query := `
		UPDATE tracks
		SET title = ?, artist = ?, album = ?, duration = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, track.Title, track.Artist, track.Album, track.Duration, now, track.ID())
	if err != nil {
		return storeErr("failed to update track", err)
	}

	return expectRows(result, "track", track.ID())
}

// Delete soft-deletes a track by ID
func (r *TrackRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE tracks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return storeErr("failed to delete track", err)
	}

	return expectRows(result, "track", id)
}

// List retrieves tracks ordered by sequence, excluding soft-deleted tracks.
//
// Supported criteria: "artist" (exact match) and "search" (case-insensitive substring of title or artist).
func (r *TrackRepository) List(criteria map[string]any) ([]*models.Track, error) {
	query := "SELECT " + trackColumns + " FROM tracks WHERE deleted_at IS NULL"
	args := []any{}

	if artist, ok := criteria["artist"].(string); ok && artist != "" {
		query += " AND artist = ?"
		args = append(args, artist)
	}

	if search, ok := criteria["search"].(string); ok && strings.TrimSpace(search) != "" {
		query += " AND (title LIKE ? OR artist LIKE ?)"
		pattern := "%" + strings.TrimSpace(search) + "%"
		args = append(args, pattern, pattern)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, storeErr("failed to query tracks", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("row iteration error", err)
	}

	return tracks, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows]
type scanner interface {
	Scan(dest ...any) error
}

// scanTrack scans one row of trackColumns. [sql.ErrNoRows] is returned unwrapped so callers can name the missing id.
func scanTrack(row scanner) (*models.Track, error) {
	var (
		id        string
		sequence  int
		title     string
		artist    string
		album     string
		duration  int
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &title, &artist, &album, &duration, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, storeErr("failed to scan track", err)
	}

	track := &models.Track{Title: title, Artist: artist, Album: album, Duration: duration}
	track.SetID(id)
	track.SetSequence(sequence)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		track.SetDeletedAt(&deletedAt.Time)
	}

	return track, nil
}
