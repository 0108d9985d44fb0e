package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/jukebox/internal/formatter"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/server"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"
)

// TrackAdd creates a catalog track.
func (r *Runner) TrackAdd(ctx context.Context, cmd *cli.Command) error {
	duration, err := parseDuration(cmd.String("duration"))
	if err != nil {
		return err
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	track := models.NewTrack(strings.TrimSpace(cmd.String("title")), cmd.String("artist"), cmd.String("album"), duration)
	if err := st.tracks.Create(track); err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}

	r.logger.Info("track added", "track", track.ID(), "title", track.Title)
	if cmd.Bool("json") {
		return r.writeJSON(server.NewTrackView(track), true)
	}
	return r.writePlain("✓ Added %s - %s (%s) as %s\n", track.Artist, track.Title, shared.FormatDuration(track.Duration), track.ID())
}

// TrackList prints catalog tracks, optionally filtered by artist or a search term.
func (r *Runner) TrackList(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	tracks, err := st.tracks.List(map[string]any{
		"artist": cmd.String("artist"),
		"search": cmd.String("search"),
	})
	if err != nil {
		return fmt.Errorf("failed to list tracks: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(lo.Map(tracks, func(t *models.Track, _ int) server.TrackView { return server.NewTrackView(t) }), true)
	}
	return r.writePlain("%s", formatter.TrackTable(tracks))
}

// parseDuration reads a track length in milliseconds from "m:ss", "h:mm:ss", a Go duration or plain milliseconds.
func parseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: duration", shared.ErrMissingArgument)
	}

	if ms, err := strconv.Atoi(s); err == nil {
		return positive(ms, s)
	}

	if strings.Contains(s, ":") {
		total := 0
		for _, part := range strings.Split(s, ":") {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidArgument, s)
			}
			total = total*60 + n
		}
		return positive(total*1000, s)
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidArgument, s)
	}
	return positive(int(d.Milliseconds()), s)
}

func positive(ms int, raw string) (int, error) {
	if ms <= 0 {
		return 0, fmt.Errorf("%w: duration %q must be positive", shared.ErrInvalidArgument, raw)
	}
	return ms, nil
}
