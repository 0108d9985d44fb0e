package player

import (
	"fmt"

	"github.com/desertthunder/jukebox/internal/models"
)

// EntryFinder is the queue read surface the [Resolver] needs.
type EntryFinder interface {
	Lookup(id string) (*models.QueueEntry, error)
	Next(sessionID string, afterKey int) (*models.QueueEntry, error)
	HighestOrderKey(sessionID string) (int, error)
}

// Resolver answers "what plays next" from order keys alone, so gaps left by removed entries are skipped without
// renumbering anything.
type Resolver struct {
	queue EntryFinder
}

// NewResolver creates a resolver over the given queue store.
func NewResolver(queue EntryFinder) *Resolver {
	return &Resolver{queue: queue}
}

// NextEntry returns the live entry with the smallest order key greater than the current entry's, or nil.
//
// A current entry that has since been removed still anchors the order by its key. A session with no current entry
// resolves to the first live entry.
func (r *Resolver) NextEntry(s *models.Session) (*models.QueueEntry, error) {
	after := 0
	if s.HasCurrent() {
		current, err := r.queue.Lookup(s.CurrentEntryID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up current entry: %w", err)
		}
		after = current.OrderKey
	}

	return r.queue.Next(s.ID(), after)
}

// HighestOrderKey returns the largest order key among the session's live entries, or 0 for an empty queue.
//
// It is the read-side view of the key an append receives: the store assigns HighestOrderKey+1 atomically on insert,
// so callers never compute keys from this value themselves.
func (r *Resolver) HighestOrderKey(sessionID string) (int, error) {
	return r.queue.HighestOrderKey(sessionID)
}
