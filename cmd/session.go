package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/jukebox/internal/client"
	"github.com/desertthunder/jukebox/internal/formatter"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/server"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/urfave/cli/v3"
)

// SessionCreate creates an idle session with an empty queue.
func (r *Runner) SessionCreate(ctx context.Context, cmd *cli.Command) error {
	volume := int(cmd.Int("volume"))
	if volume < 0 {
		volume = r.config.Playback.DefaultVolume
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	session := models.NewSession(strings.TrimSpace(cmd.String("name")), volume)
	if err := st.sessions.Create(session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	r.logger.Info("session created", "session", session.ID(), "name", session.Name)
	if cmd.Bool("json") {
		snap, err := r.engine(st, nil).Snapshot(session.ID())
		if err != nil {
			return err
		}
		return r.writeJSON(snap, true)
	}
	return r.writePlain("✓ Created session %s\n", session.ID())
}

// SessionList prints every session, or only the playing ones.
func (r *Runner) SessionList(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	criteria := map[string]any{}
	if cmd.Bool("playing") {
		criteria["playing"] = true
	}

	sessions, err := st.sessions.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if !cmd.Bool("json") {
		return r.writePlain("%s", formatter.SessionTable(sessions))
	}

	engine := r.engine(st, nil)
	snaps := make([]*models.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snap, err := engine.Snapshot(s.ID())
		if err != nil {
			return err
		}
		snaps = append(snaps, snap)
	}
	return r.writeJSON(snaps, true)
}

// SessionShow renders one session snapshot to stdout or a file.
func (r *Runner) SessionShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	snap, err := r.snapshot(ctx, cmd, id)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if output == "" && !cmd.Bool("save") {
		return formatter.Write(r.output, snap, format)
	}

	path, err := formatter.WriteFile(snap, format, output)
	if err != nil {
		return err
	}
	r.logger.Info("snapshot written", "session", id, "path", path)
	return r.writePlain("✓ Wrote %s\n", path)
}

// QueueAdd appends a catalog track to a session queue.
//
// With --server the entry goes through the server so joined listeners get the new snapshot at once. Otherwise the
// database is written directly and listeners see the entry on their next snapshot.
func (r *Runner) QueueAdd(ctx context.Context, cmd *cli.Command) error {
	sessionID, trackID := cmd.String("session"), cmd.String("track")

	var entry *server.EntryView
	if cmd.IsSet("server") {
		var err error
		if entry, err = client.NewAPIClient(r.serverURL(cmd), nil).Enqueue(ctx, sessionID, trackID); err != nil {
			return fmt.Errorf("failed to queue track: %w", err)
		}
	} else {
		st, err := r.openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		e, err := r.engine(st, nil).Enqueue(sessionID, trackID)
		if err != nil {
			return fmt.Errorf("failed to queue track: %w", err)
		}
		entry = &server.EntryView{EntryID: e.ID(), SessionID: e.SessionID, TrackID: e.TrackID, OrderKey: e.OrderKey}
	}

	if cmd.Bool("json") {
		return r.writeJSON(entry, true)
	}
	return r.writePlain("✓ Queued %s at position key %d\n", entry.EntryID, entry.OrderKey)
}

// QueueRemove soft-deletes a queue entry.
func (r *Runner) QueueRemove(ctx context.Context, cmd *cli.Command) error {
	sessionID, entryID := cmd.String("session"), cmd.String("entry")

	var snap *models.Snapshot
	if cmd.IsSet("server") {
		var err error
		if snap, err = client.NewAPIClient(r.serverURL(cmd), nil).RemoveEntry(ctx, sessionID, entryID); err != nil {
			return fmt.Errorf("failed to remove entry: %w", err)
		}
	} else {
		st, err := r.openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if snap, err = r.engine(st, nil).RemoveEntry(sessionID, entryID); err != nil {
			return fmt.Errorf("failed to remove entry: %w", err)
		}
	}
	return r.writePlain("✓ Removed %s, %d entries remain\n", entryID, len(snap.Queue))
}

// Status prints the health of a running server.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	base := r.serverURL(cmd)
	health, err := client.NewAPIClient(base, nil).Health(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%s %s: %d topics, %d listeners\n", base, health.Status, health.Topics, health.Listeners)
}

// snapshot reads a session through the server API when --server is set, else from the local database.
func (r *Runner) snapshot(ctx context.Context, cmd *cli.Command, id string) (*models.Snapshot, error) {
	if cmd.IsSet("server") {
		return client.NewAPIClient(r.serverURL(cmd), nil).Session(ctx, id)
	}

	st, err := r.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	return r.engine(st, nil).Snapshot(id)
}
