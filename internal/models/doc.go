// Package models defines the domain entities and persistence interfaces for shared playback sessions.
//
// Persistent entities embed [Record], which carries identity, a human-readable sequence number and timestamps:
//   - [Session] : one shared player (playing flag, progress, volume, current queue entry)
//   - [QueueEntry] : one position in a session's queue, ordered by its order key
//   - [Track] : catalog entry with the duration the scheduler compares progress against
//
// Wire shapes published to listeners:
//   - [Snapshot] : full authoritative state of a session with its ordered queue
//   - [ProgressDelta] : lightweight, advisory progress notification
//
// The Repository[T] interface defines standard CRUD operations for database access.
package models
