package models

import (
	"errors"
	"testing"

	"github.com/desertthunder/jukebox/internal/shared"
)

func TestSession(t *testing.T) {
	t.Run("State", func(t *testing.T) {
		s := NewSession("lounge", DefaultVolume)
		if s.State() != Idle {
			t.Errorf("expected idle, got %v", s.State())
		}

		s.CurrentEntryID = "entry-1"
		if s.State() != Paused {
			t.Errorf("expected paused, got %v", s.State())
		}

		s.Playing = true
		if s.State() != Playing {
			t.Errorf("expected playing, got %v", s.State())
		}
	})

	t.Run("Validate", func(t *testing.T) {
		s := NewSession("lounge", 150)
		s.SetID("abc")
		if err := s.Validate(); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation for volume 150, got %v", err)
		}

		s.Volume = 50
		if err := s.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		s.SetID("")
		if err := s.Validate(); err == nil {
			t.Error("expected error for missing id")
		}
	})
}

func TestTrackValidate(t *testing.T) {
	tt := []struct {
		name    string
		track   *Track
		wantErr bool
	}{
		{name: "valid", track: NewTrack("Song", "Artist", "", 1000), wantErr: false},
		{name: "missing title", track: NewTrack("  ", "Artist", "", 1000), wantErr: true},
		{name: "zero duration", track: NewTrack("Song", "Artist", "", 0), wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			tc.track.SetID("t1")
			if err := tc.track.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestActivePlaybackEnded(t *testing.T) {
	a := &ActivePlayback{Progress: 2000, Duration: 2000}
	if a.Ended() {
		t.Error("progress equal to duration has not ended")
	}
	a.Progress = 2001
	if !a.Ended() {
		t.Error("progress past duration has ended")
	}
}

func TestSnapshot(t *testing.T) {
	s := NewSession("lounge", DefaultVolume)
	s.SetID("s1")
	s.CurrentEntryID = "e2"
	s.Playing = true
	s.Progress = 1500

	first := NewQueueEntry("s1", "t1")
	first.SetID("e1")
	first.OrderKey = 1
	first.Track = NewTrack("One", "A", "X", 1000)

	second := NewQueueEntry("s1", "t2")
	second.SetID("e2")
	second.OrderKey = 5
	second.Track = NewTrack("Two", "B", "Y", 2000)

	snap := NewSnapshot(s, []*QueueEntry{first, second})

	if snap.ID != "s1" || !snap.Playing || snap.Progress != 1500 || snap.State != "playing" {
		t.Errorf("unexpected snapshot header: %+v", snap)
	}
	if len(snap.Queue) != 2 {
		t.Fatalf("expected 2 queue items, got %d", len(snap.Queue))
	}
	if snap.Queue[1].OrderKey != 5 || snap.Queue[1].Title != "Two" || snap.Queue[1].Duration != 2000 {
		t.Errorf("unexpected queue item: %+v", snap.Queue[1])
	}

	cur, ok := snap.Current()
	if !ok || cur.EntryID != "e2" {
		t.Errorf("expected current entry e2, got %+v (ok=%v)", cur, ok)
	}

	if id, ok := snap.EntryAt(0); !ok || id != "e1" {
		t.Errorf("expected e1 at index 0, got %q", id)
	}
	if _, ok := snap.EntryAt(2); ok {
		t.Error("expected out of range index to fail")
	}

	empty := NewSnapshot(NewSession("", DefaultVolume), nil)
	if empty.Queue == nil {
		t.Error("expected empty queue to encode as an empty list")
	}
}
