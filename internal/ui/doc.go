// Package ui implements the terminal remote control for one session using bubbletea's Elm architecture.
//
// The [Model] joins a session topic through a [Remote] (usually a [client.Client]) and shows:
//  1. the now-playing header with state, progress and volume
//  2. the session queue, with the current entry marked
//  3. contextual key help via charmbracelet/bubbles/help
//
// Frames arrive on the remote's event channel and are turned into the Msg union type: snapshots overwrite the local
// view, progress events only move the position, and replies surface command failures. Key presses are sent as
// commands; the model never changes playback state locally and waits for the server's snapshot instead.
package ui
