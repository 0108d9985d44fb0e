package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
	th "github.com/desertthunder/jukebox/internal/testing"
)

func fixture() *models.Snapshot {
	return &models.Snapshot{
		ID:             "sess-1",
		Name:           "Friday",
		State:          "playing",
		Playing:        true,
		Progress:       65000,
		Volume:         80,
		CurrentEntryID: "entry-2",
		Queue: []models.SnapshotEntry{
			{EntryID: "entry-1", TrackID: "track-1", OrderKey: 1, Title: "Song One", Artist: "Artist One", Album: "Album One", Duration: 180000},
			{EntryID: "entry-2", TrackID: "track-2", OrderKey: 3, Title: "Song Two", Artist: "Artist Two", Duration: 240000},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", Text},
		{"text", Text},
		{"TXT", Text},
		{"md", Markdown},
		{"markdown", Markdown},
		{"csv", CSV},
		{" json ", JSON},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if err != nil {
				t.Fatalf("ParseFormat(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("Unknown", func(t *testing.T) {
		if _, err := ParseFormat("yaml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestRenderers(t *testing.T) {
	t.Run("ToCSV", func(t *testing.T) {
		data, err := ToCSV(fixture())
		if err != nil {
			t.Fatalf("ToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d lines: %s", len(lines), data)
		}
		if lines[0] != "Position,EntryID,TrackID,OrderKey,Title,Artist,Album,Duration,Current" {
			t.Errorf("unexpected headers: %s", lines[0])
		}
		if lines[1] != "1,entry-1,track-1,1,Song One,Artist One,Album One,180000,false" {
			t.Errorf("unexpected first row: %s", lines[1])
		}
		if !strings.HasSuffix(lines[2], ",3,Song Two,Artist Two,,240000,true") {
			t.Errorf("unexpected second row: %s", lines[2])
		}
	})

	t.Run("ToCSV with empty queue", func(t *testing.T) {
		snap := fixture()
		snap.Queue = nil

		data, err := ToCSV(snap)
		if err != nil {
			t.Fatalf("ToCSV failed: %v", err)
		}
		if strings.Count(string(data), "\n") != 1 {
			t.Errorf("expected only the header row, got %q", data)
		}
	})

	t.Run("ToMarkdown", func(t *testing.T) {
		data, err := ToMarkdown(fixture())
		if err != nil {
			t.Fatalf("ToMarkdown failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"# Friday",
			"**State**: playing",
			"**Now**: Artist Two - Song Two [1:05 / 4:00]",
			"**Volume**: 80",
			"1. Artist One - Song One (Album One) [3:00]",
			"2. **Artist Two - Song Two** [4:00]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ToMarkdown idle and muted", func(t *testing.T) {
		snap := &models.Snapshot{ID: "sess-2", State: "idle", Volume: 40, Muted: true}

		data, err := ToMarkdown(snap)
		if err != nil {
			t.Fatalf("ToMarkdown failed: %v", err)
		}
		output := string(data)

		if !strings.Contains(output, "# Session sess-2") {
			t.Errorf("expected fallback heading, got:\n%s", output)
		}
		if strings.Contains(output, "**Now**") {
			t.Errorf("idle session should not render a current entry")
		}
		if !strings.Contains(output, "40 (muted)") {
			t.Errorf("expected muted volume, got:\n%s", output)
		}
		if !strings.Contains(output, "_empty_") {
			t.Errorf("expected empty queue marker")
		}
	})

	t.Run("ToText", func(t *testing.T) {
		data, err := ToText(fixture())
		if err != nil {
			t.Fatalf("ToText failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{"Friday", "playing", "vol 80", "Now: Artist Two - Song Two  1:05 / 4:00", "Queue: 2", "> 2. Artist Two - Song Two (4:00)"} {
			if !strings.Contains(output, want) {
				t.Errorf("Text missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ToText pre-roll", func(t *testing.T) {
		snap := fixture()
		snap.Progress = -2000

		data, err := ToText(snap)
		if err != nil {
			t.Fatalf("ToText failed: %v", err)
		}
		if !strings.Contains(string(data), "-0:02 / 4:00") {
			t.Errorf("expected negative progress, got:\n%s", data)
		}
	})

	t.Run("ToJSON", func(t *testing.T) {
		data, err := ToJSON(fixture())
		if err != nil {
			t.Fatalf("ToJSON failed: %v", err)
		}

		var decoded models.Snapshot
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if decoded.CurrentEntryID != "entry-2" || len(decoded.Queue) != 2 {
			t.Errorf("unexpected decoded snapshot: %+v", decoded)
		}
	})

	t.Run("Render unknown", func(t *testing.T) {
		if _, err := Render(fixture(), Format("yaml")); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("Write", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, fixture(), CSV); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if !strings.HasPrefix(buf.String(), "Position,") {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})

	t.Run("Write propagates writer errors", func(t *testing.T) {
		if err := Write(&th.FWriter{}, fixture(), Text); err == nil {
			t.Error("expected error from failing writer")
		}
	})

	t.Run("WriteFile with default path", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := th.MustGetwd(t)
		th.MustChdir(t, tempDir)
		defer th.MustChdir(t, originalDir)

		path, err := WriteFile(fixture(), Markdown, "")
		if err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if path != "sess-1.md" {
			t.Errorf("expected sess-1.md, got %s", path)
		}

		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.Contains(content, "# Friday") {
			t.Errorf("unexpected file content:\n%s", content)
		}
	})

	t.Run("WriteFile with custom path", func(t *testing.T) {
		path := t.TempDir() + "/queue.csv"

		got, err := WriteFile(fixture(), CSV, path)
		if err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("WriteFile into missing directory", func(t *testing.T) {
		if _, err := WriteFile(fixture(), Text, t.TempDir()+"/missing/out.txt"); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}

func TestTables(t *testing.T) {
	t.Run("SessionTable", func(t *testing.T) {
		s := models.NewSession("Friday", 50)
		s.SetID("sess-1")
		s.SetSequence(7)

		out := SessionTable([]*models.Session{s})
		if !strings.Contains(out, "sess-1") || !strings.Contains(out, "Friday") || !strings.Contains(out, "idle") {
			t.Errorf("unexpected table: %q", out)
		}
		if !strings.Contains(SessionTable(nil), "no sessions") {
			t.Error("expected empty marker")
		}
	})

	t.Run("TrackTable", func(t *testing.T) {
		tr := models.NewTrack("Song One", "Artist One", "", 61000)
		tr.SetID("track-1")

		out := TrackTable([]*models.Track{tr})
		if !strings.Contains(out, "track-1  Artist One - Song One  1:01") {
			t.Errorf("unexpected table: %q", out)
		}
		if !strings.Contains(TrackTable(nil), "no tracks") {
			t.Error("expected empty marker")
		}
	})
}
