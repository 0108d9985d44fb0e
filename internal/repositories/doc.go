// Package repositories implements SQLite persistence for sessions, queue entries and tracks.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [SessionRepository] : Session rows plus the column-targeted writes used by the playback engine
//   - [QueueRepository] : Queue entries with atomically assigned, never renumbered order keys
//   - [TrackRepository] : Track catalog
//
// The session repository also carries the scheduler's set-oriented queries: [SessionRepository.Active] reads every
// playing session joined to its track duration, and [SessionRepository.AdvanceProgress] advances many sessions in one
// conditional UPDATE.
//
// Sequence numbers provide stable, human-readable ordering (e.g., session #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
