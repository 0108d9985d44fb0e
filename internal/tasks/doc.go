// Package tasks drives session progress forward with a fixed-width clock.
//
// # Global Batch Tick
//
// [Scheduler.Tick] runs once per tick width for the whole process, independent of any listener:
//
//  1. One query reads every playing session with a current entry, joined to its track duration
//  2. Sessions are partitioned into progressing (progress <= duration) and ended (progress > duration)
//  3. Progressing sessions advance in one conditional, set-oriented UPDATE
//  4. Each advanced row publishes a progress event on its session topic
//  5. Each ended session is promoted through the playback engine, which publishes a snapshot
//
// A store failure drops the affected step for this cycle only. The next tick reconciles.
//
// # Per-Listener Tick
//
// [Scheduler.Follow] runs for one connected listener, starting at join, and delivers progress to that listener alone
// so it sees movement before the next global pass. It stops when the listener's context is cancelled.
//
// # Progress Reporting
//
// [Scheduler.Run] reports each [TickResult] on an optional channel. Sends use select with default to prevent blocking.
//
// Progress events from both ticks are advisory; snapshots are the only authoritative state.
package tasks
