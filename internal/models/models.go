// package models defines the data model for shared playback sessions
package models

import (
	"time"
)

// Model defines the base interface for all persistent models.
// Implementations include Session, QueueEntry and Track.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Record holds the fields shared by every persisted entity.
type Record struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

func newRecord() Record {
	now := time.Now()
	return Record{createdAt: now, updatedAt: now}
}

func (r *Record) ID() string { return r.id }
func (r *Record) Sequence() int { return r.sequence }
func (r *Record) CreatedAt() time.Time { return r.createdAt }
func (r *Record) UpdatedAt() time.Time { return r.updatedAt }
func (r *Record) DeletedAt() *time.Time { return r.deletedAt }
func (r *Record) Deleted() bool { return r.deletedAt != nil }

func (r *Record) SetID(id string) { r.id = id }
func (r *Record) SetSequence(seq int) { r.sequence = seq }
func (r *Record) SetCreatedAt(t time.Time) { r.createdAt = t }
func (r *Record) SetUpdatedAt(t time.Time) { r.updatedAt = t }
func (r *Record) SetDeletedAt(t *time.Time) { r.deletedAt = t }
