package player

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/jukebox/internal/broadcast"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
	tu "github.com/desertthunder/jukebox/internal/testing"
)

func newTestEngine(t *testing.T) (*Engine, *tu.Store, *tu.Recorder) {
	t.Helper()

	store := tu.NewStore(t)
	rec := &tu.Recorder{}
	engine := NewEngine(EngineOpts{
		Sessions:  store.Sessions,
		Queue:     store.Queue,
		Tracks:    store.Tracks,
		Publisher: rec,
		Preroll:   DefaultPreroll,
	})
	return engine, store, rec
}

func TestEnginePlayPause(t *testing.T) {
	t.Run("PlayOnIdleStaysIdle", func(t *testing.T) {
		engine, store, rec := newTestEngine(t)
		session := store.MustSession(t, "lounge")

		snap, err := engine.Play(session.ID())
		if err != nil {
			t.Fatalf("Play failed: %v", err)
		}
		if snap.Playing || snap.State != models.Idle.String() {
			t.Errorf("expected idle, not playing, got %+v", snap)
		}
		if got := store.MustGet(t, session.ID()); got.Playing {
			t.Error("expected playing to stay false")
		}
		if n := len(rec.Filter(session.ID(), broadcast.KindSnapshot)); n != 1 {
			t.Errorf("expected 1 snapshot, got %d", n)
		}
	})

	t.Run("PlayAndPauseKeepProgress", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)
		entry := store.MustEnqueue(t, session.ID(), track.ID())
		store.MustPlay(t, session.ID(), entry.ID(), 4200)

		snap, err := engine.Pause(session.ID())
		if err != nil {
			t.Fatalf("Pause failed: %v", err)
		}
		if snap.Playing || snap.Progress != 4200 || snap.CurrentEntryID != entry.ID() {
			t.Errorf("unexpected snapshot after pause: %+v", snap)
		}

		snap, err = engine.Play(session.ID())
		if err != nil {
			t.Fatalf("Play failed: %v", err)
		}
		if !snap.Playing || snap.Progress != 4200 {
			t.Errorf("unexpected snapshot after play: %+v", snap)
		}
	})

	t.Run("ToggleTwiceRestores", func(t *testing.T) {
		engine, store, rec := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)
		entry := store.MustEnqueue(t, session.ID(), track.ID())
		store.MustPlay(t, session.ID(), entry.ID(), 0)

		first, err := engine.TogglePause(session.ID())
		if err != nil {
			t.Fatalf("TogglePause failed: %v", err)
		}
		if first.Playing {
			t.Error("expected first toggle to pause")
		}

		second, err := engine.TogglePause(session.ID())
		if err != nil {
			t.Fatalf("TogglePause failed: %v", err)
		}
		if !second.Playing {
			t.Error("expected second toggle to resume")
		}
		if n := len(rec.Filter(session.ID(), broadcast.KindSnapshot)); n != 2 {
			t.Errorf("expected a snapshot per toggle, got %d", n)
		}
	})

	t.Run("ToggleOnIdleCannotStart", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		session := store.MustSession(t, "lounge")

		snap, err := engine.TogglePause(session.ID())
		if err != nil {
			t.Fatalf("TogglePause failed: %v", err)
		}
		if snap.Playing {
			t.Error("expected idle session to stay stopped")
		}
	})

	t.Run("UnknownSession", func(t *testing.T) {
		engine, _, rec := newTestEngine(t)

		if _, err := engine.Play("missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if len(rec.Events()) != 0 {
			t.Error("expected no broadcast for an unknown session")
		}
	})
}

func TestEngineSeek(t *testing.T) {
	engine, store, rec := newTestEngine(t)
	session := store.MustSession(t, "lounge")
	track := store.MustTrack(t, "Song", 10000)
	entry := store.MustEnqueue(t, session.ID(), track.ID())
	store.MustPlay(t, session.ID(), entry.ID(), 0)

	t.Run("PastDurationIsNotClamped", func(t *testing.T) {
		snap, err := engine.Seek(session.ID(), 15000)
		if err != nil {
			t.Fatalf("Seek failed: %v", err)
		}
		if snap.Progress != 15000 {
			t.Errorf("expected progress 15000, got %d", snap.Progress)
		}
	})

	t.Run("NegativeRejected", func(t *testing.T) {
		rec.Reset()
		if _, err := engine.Seek(session.ID(), -1); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
		if len(rec.Events()) != 0 {
			t.Error("expected no broadcast for a rejected seek")
		}
	})
}

func TestEngineSelectEntry(t *testing.T) {
	t.Run("StartsFromPreroll", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)
		entry := store.MustEnqueue(t, session.ID(), track.ID())

		snap, err := engine.SelectEntry(session.ID(), entry.ID())
		if err != nil {
			t.Fatalf("SelectEntry failed: %v", err)
		}
		if snap.CurrentEntryID != entry.ID() || snap.Progress != -2000 || !snap.Playing {
			t.Errorf("unexpected snapshot: %+v", snap)
		}
	})

	t.Run("ForeignEntryNotFound", func(t *testing.T) {
		engine, store, rec := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		other := store.MustSession(t, "other")
		track := store.MustTrack(t, "Song", 10000)
		foreign := store.MustEnqueue(t, other.ID(), track.ID())

		if _, err := engine.SelectEntry(session.ID(), foreign.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if got := store.MustGet(t, session.ID()); got.HasCurrent() || got.Playing {
			t.Errorf("expected no mutation, got %+v", got)
		}
		if len(rec.Events()) != 0 {
			t.Error("expected no broadcast")
		}
	})

	t.Run("RemovedEntryNotFound", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)
		entry := store.MustEnqueue(t, session.ID(), track.ID())

		if _, err := engine.RemoveEntry(session.ID(), entry.ID()); err != nil {
			t.Fatalf("RemoveEntry failed: %v", err)
		}
		if _, err := engine.SelectEntry(session.ID(), entry.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("CustomPreroll", func(t *testing.T) {
		store := tu.NewStore(t)
		engine := NewEngine(EngineOpts{
			Sessions: store.Sessions,
			Queue:    store.Queue,
			Tracks:   store.Tracks,
			Preroll:  500 * time.Millisecond,
		})
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)
		entry := store.MustEnqueue(t, session.ID(), track.ID())

		snap, err := engine.SelectEntry(session.ID(), entry.ID())
		if err != nil {
			t.Fatalf("SelectEntry failed: %v", err)
		}
		if snap.Progress != -500 {
			t.Errorf("expected progress -500, got %d", snap.Progress)
		}
	})
}

func TestEngineAdvance(t *testing.T) {
	t.Run("SkipsGaps", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)

		entries := make([]*models.QueueEntry, 0, 8)
		for range 8 {
			entries = append(entries, store.MustEnqueue(t, session.ID(), track.ID()))
		}
		for _, i := range []int{2, 3, 5, 6} {
			if err := store.Queue.Delete(entries[i].ID()); err != nil {
				t.Fatalf("failed to delete entry: %v", err)
			}
		}
		store.MustPlay(t, session.ID(), entries[1].ID(), 10500)

		snap, err := engine.Advance(session.ID())
		if err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
		if snap.CurrentEntryID != entries[4].ID() {
			t.Errorf("expected entry with key 5, got %s", snap.CurrentEntryID)
		}
		if cur, ok := snap.Current(); !ok || cur.OrderKey != 5 {
			t.Errorf("expected current key 5, got %+v", cur)
		}
		if snap.Progress != -2000 || !snap.Playing {
			t.Errorf("expected pre-roll start, got %+v", snap)
		}
	})

	t.Run("ExhaustedPausesOnLast", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)
		entry := store.MustEnqueue(t, session.ID(), track.ID())
		store.MustPlay(t, session.ID(), entry.ID(), 10500)

		snap, err := engine.Advance(session.ID())
		if err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
		if snap.Playing || snap.CurrentEntryID != entry.ID() || snap.Progress != 10500 {
			t.Errorf("expected paused on the last entry, got %+v", snap)
		}
	})

	t.Run("RemovedSoleEntryStaysCurrent", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)
		entry := store.MustEnqueue(t, session.ID(), track.ID())
		store.MustPlay(t, session.ID(), entry.ID(), 3000)

		if _, err := engine.RemoveEntry(session.ID(), entry.ID()); err != nil {
			t.Fatalf("RemoveEntry failed: %v", err)
		}

		snap, err := engine.Advance(session.ID())
		if err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
		if snap.Playing || snap.CurrentEntryID != entry.ID() || len(snap.Queue) != 0 {
			t.Errorf("expected paused with stale current entry, got %+v", snap)
		}
		if snap.State != models.Paused.String() {
			t.Errorf("expected paused state, got %s", snap.State)
		}
	})

	t.Run("RemovedCurrentAnchorsOrder", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)
		first := store.MustEnqueue(t, session.ID(), track.ID())
		second := store.MustEnqueue(t, session.ID(), track.ID())
		third := store.MustEnqueue(t, session.ID(), track.ID())
		store.MustPlay(t, session.ID(), second.ID(), 0)

		if _, err := engine.RemoveEntry(session.ID(), second.ID()); err != nil {
			t.Fatalf("RemoveEntry failed: %v", err)
		}

		snap, err := engine.Advance(session.ID())
		if err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
		if snap.CurrentEntryID != third.ID() {
			t.Errorf("expected to resume after the removed entry's key, got %s (first is %s)", snap.CurrentEntryID, first.ID())
		}
	})

	t.Run("IdleStartsFirstEntry", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)
		first := store.MustEnqueue(t, session.ID(), track.ID())
		store.MustEnqueue(t, session.ID(), track.ID())

		snap, err := engine.Advance(session.ID())
		if err != nil {
			t.Fatalf("Advance failed: %v", err)
		}
		if snap.CurrentEntryID != first.ID() || !snap.Playing {
			t.Errorf("expected first entry to start, got %+v", snap)
		}
	})
}

func TestEngineAdvanceEnded(t *testing.T) {
	setup := func(t *testing.T, progress int) (*Engine, *tu.Store, *tu.Recorder, string, *models.QueueEntry, *models.QueueEntry) {
		engine, store, rec := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 2000)
		first := store.MustEnqueue(t, session.ID(), track.ID())
		second := store.MustEnqueue(t, session.ID(), track.ID())
		store.MustPlay(t, session.ID(), first.ID(), progress)
		return engine, store, rec, session.ID(), first, second
	}

	t.Run("Ended", func(t *testing.T) {
		engine, store, rec, id, first, second := setup(t, 2500)

		advanced, err := engine.AdvanceEnded(id, first.ID())
		if err != nil || !advanced {
			t.Fatalf("expected advance, got %v, %v", advanced, err)
		}
		if got := store.MustGet(t, id); got.CurrentEntryID != second.ID() || got.Progress != -2000 {
			t.Errorf("unexpected session: %+v", got)
		}
		if n := len(rec.Filter(id, broadcast.KindSnapshot)); n != 1 {
			t.Errorf("expected 1 snapshot, got %d", n)
		}
	})

	t.Run("NotEnded", func(t *testing.T) {
		engine, _, rec, id, first, _ := setup(t, 2000)

		advanced, err := engine.AdvanceEnded(id, first.ID())
		if err != nil || advanced {
			t.Fatalf("expected no advance, got %v, %v", advanced, err)
		}
		if len(rec.Events()) != 0 {
			t.Error("expected no broadcast")
		}
	})

	t.Run("EntryChangedSinceRead", func(t *testing.T) {
		engine, _, _, id, first, second := setup(t, 2500)

		if _, err := engine.SelectEntry(id, second.ID()); err != nil {
			t.Fatalf("SelectEntry failed: %v", err)
		}

		advanced, err := engine.AdvanceEnded(id, first.ID())
		if err != nil || advanced {
			t.Fatalf("expected stale promotion to be skipped, got %v, %v", advanced, err)
		}
	})

	t.Run("PausedSinceRead", func(t *testing.T) {
		engine, _, _, id, first, _ := setup(t, 2500)

		if _, err := engine.Pause(id); err != nil {
			t.Fatalf("Pause failed: %v", err)
		}

		advanced, err := engine.AdvanceEnded(id, first.ID())
		if err != nil || advanced {
			t.Fatalf("expected paused session to be left alone, got %v, %v", advanced, err)
		}
	})
}

func TestEngineVolumeAndMute(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	session := store.MustSession(t, "lounge")

	snap, err := engine.SetVolume(session.ID(), 35)
	if err != nil {
		t.Fatalf("SetVolume failed: %v", err)
	}
	if snap.Volume != 35 {
		t.Errorf("expected volume 35, got %d", snap.Volume)
	}

	if _, err := engine.SetVolume(session.ID(), 101); !errors.Is(err, shared.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	snap, err = engine.ToggleMute(session.ID())
	if err != nil {
		t.Fatalf("ToggleMute failed: %v", err)
	}
	if !snap.Muted {
		t.Error("expected muted")
	}
}

func TestEngineQueue(t *testing.T) {
	t.Run("Enqueue", func(t *testing.T) {
		engine, store, rec := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)

		entry, err := engine.Enqueue(session.ID(), track.ID())
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if entry.OrderKey != 1 {
			t.Errorf("expected key 1 on an empty queue, got %d", entry.OrderKey)
		}

		snaps := rec.Filter(session.ID(), broadcast.KindSnapshot)
		if len(snaps) != 1 {
			t.Fatalf("expected 1 snapshot, got %d", len(snaps))
		}
		snap := snaps[0].Payload.(*models.Snapshot)
		if len(snap.Queue) != 1 || snap.Queue[0].Title != "Song" {
			t.Errorf("unexpected queue: %+v", snap.Queue)
		}
	})

	t.Run("AppendAfterGaps", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		resolver := NewResolver(store.Queue)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)

		entries := make([]*models.QueueEntry, 0, 5)
		for range 5 {
			entries = append(entries, store.MustEnqueue(t, session.ID(), track.ID()))
		}
		// live keys {1, 2, 5}
		for _, i := range []int{2, 3} {
			_ = store.Queue.Delete(entries[i].ID())
		}

		highest, err := resolver.HighestOrderKey(session.ID())
		if err != nil || highest != 5 {
			t.Fatalf("expected highest key 5, got %d (%v)", highest, err)
		}

		entry, err := engine.Enqueue(session.ID(), track.ID())
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if entry.OrderKey != 6 {
			t.Errorf("expected key 6, got %d", entry.OrderKey)
		}
	})

	t.Run("AppendAfterRemovingTop", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		resolver := NewResolver(store.Queue)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)

		store.MustEnqueue(t, session.ID(), track.ID())
		store.MustEnqueue(t, session.ID(), track.ID())
		top := store.MustEnqueue(t, session.ID(), track.ID())
		if _, err := engine.RemoveEntry(session.ID(), top.ID()); err != nil {
			t.Fatalf("RemoveEntry failed: %v", err)
		}

		highest, err := resolver.HighestOrderKey(session.ID())
		if err != nil || highest != 2 {
			t.Fatalf("expected highest key 2, got %d (%v)", highest, err)
		}

		entry, err := engine.Enqueue(session.ID(), track.ID())
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if entry.OrderKey != 3 {
			t.Errorf("expected key 3, got %d", entry.OrderKey)
		}
	})

	t.Run("AppendToEmptiedQueue", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)

		only := store.MustEnqueue(t, session.ID(), track.ID())
		if _, err := engine.RemoveEntry(session.ID(), only.ID()); err != nil {
			t.Fatalf("RemoveEntry failed: %v", err)
		}

		entry, err := engine.Enqueue(session.ID(), track.ID())
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if entry.OrderKey != 1 {
			t.Errorf("expected key 1, got %d", entry.OrderKey)
		}
	})

	t.Run("UnknownTrackOrSession", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 10000)

		if _, err := engine.Enqueue(session.ID(), "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown track, got %v", err)
		}
		if _, err := engine.Enqueue("missing", track.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown session, got %v", err)
		}
	})

	t.Run("RemoveForeignEntry", func(t *testing.T) {
		engine, store, _ := newTestEngine(t)
		session := store.MustSession(t, "lounge")
		other := store.MustSession(t, "other")
		track := store.MustTrack(t, "Song", 10000)
		entry := store.MustEnqueue(t, other.ID(), track.ID())

		if _, err := engine.RemoveEntry(session.ID(), entry.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestEngineTransientFailure(t *testing.T) {
	store := tu.NewStore(t)
	flaky := tu.NewFlakySessions(store.Sessions)
	rec := &tu.Recorder{}
	engine := NewEngine(EngineOpts{Sessions: flaky, Queue: store.Queue, Tracks: store.Tracks, Publisher: rec})

	broken := store.MustSession(t, "broken")
	healthy := store.MustSession(t, "healthy")
	track := store.MustTrack(t, "Song", 10000)
	for _, s := range []*models.Session{broken, healthy} {
		entry := store.MustEnqueue(t, s.ID(), track.ID())
		store.MustPlay(t, s.ID(), entry.ID(), 0)
	}
	flaky.FailWrites(broken.ID())

	if _, err := engine.Pause(broken.ID()); !errors.Is(err, shared.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	if len(rec.Filter(broken.ID(), broadcast.KindSnapshot)) != 0 {
		t.Error("expected no broadcast for a failed write")
	}

	if _, err := engine.Pause(healthy.ID()); err != nil {
		t.Errorf("expected other sessions to be unaffected, got %v", err)
	}
}

func TestEngineConcurrentCommands(t *testing.T) {
	engine, store, rec := newTestEngine(t)
	session := store.MustSession(t, "lounge")
	track := store.MustTrack(t, "Song", 10000)
	entry := store.MustEnqueue(t, session.ID(), track.ID())
	store.MustPlay(t, session.ID(), entry.ID(), 0)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.TogglePause(session.ID()); err != nil {
				t.Errorf("TogglePause failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := store.MustGet(t, session.ID()); !got.Playing {
		t.Error("expected an even number of toggles to leave the session playing")
	}
	if n := len(rec.Filter(session.ID(), broadcast.KindSnapshot)); n != 10 {
		t.Errorf("expected 10 snapshots, got %d", n)
	}
	if engine.locks.len() != 0 {
		t.Errorf("expected lock table to drain, got %d entries", engine.locks.len())
	}
}
