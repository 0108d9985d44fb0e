package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/jukebox/internal/broadcast"
	"github.com/desertthunder/jukebox/internal/player"
	"github.com/desertthunder/jukebox/internal/server"
	"github.com/desertthunder/jukebox/internal/shared"
	tu "github.com/desertthunder/jukebox/internal/testing"
)

func newServer(t *testing.T) (*httptest.Server, *tu.Store) {
	t.Helper()

	logger := shared.NewLogger(&tu.SyncBuffer{})
	store := tu.NewStore(t)
	bus := broadcast.NewBus(16, logger)
	engine := player.NewEngine(player.EngineOpts{
		Sessions:  store.Sessions,
		Queue:     store.Queue,
		Tracks:    store.Tracks,
		Publisher: bus,
		Preroll:   player.DefaultPreroll,
		Logger:    logger,
	})
	socket := server.NewSocketHandler(server.SocketOpts{Engine: engine, Bus: bus, Logger: logger})
	api := server.NewAPIHandler(server.APIOpts{Engine: engine, Sessions: store.Sessions, Tracks: store.Tracks, Bus: bus, Logger: logger})

	router := server.NewBasicRouter()
	router.Handler(socket)
	router.Handler(api)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		socket.Close()
		srv.Close()
	})
	return srv, store
}

func TestSocketURL(t *testing.T) {
	tt := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{base: "http://127.0.0.1:4000", want: "ws://127.0.0.1:4000/socket/sessions/abc"},
		{base: "https://example.com/", want: "wss://example.com/socket/sessions/abc"},
		{base: "ws://localhost:4000/jukebox", want: "ws://localhost:4000/jukebox/socket/sessions/abc"},
		{base: "ftp://example.com", wantErr: true},
		{base: "http://", wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.base, func(t *testing.T) {
			got, err := SocketURL(tc.base, "abc")
			if (err != nil) != tc.wantErr {
				t.Fatalf("SocketURL() error = %v, wantErr %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("SocketURL() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClient(t *testing.T) {
	t.Run("UnknownSession", func(t *testing.T) {
		srv, _ := newServer(t)

		_, _, err := Dial(context.Background(), srv.URL, "missing")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("CommandsAndEvents", func(t *testing.T) {
		srv, store := newServer(t)
		session := store.MustSession(t, "lounge")
		track := store.MustTrack(t, "Song", 60000)
		entry := store.MustEnqueue(t, session.ID(), track.ID())

		c, snap, err := Dial(context.Background(), srv.URL, session.ID())
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer c.Close()

		if snap.ID != session.ID() || len(snap.Queue) != 1 {
			t.Fatalf("unexpected join snapshot: %+v", snap)
		}

		ref, err := c.Send(server.CmdSelectEntry, server.SelectPayload{EntryID: entry.ID()})
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}

		var gotReply, gotSnapshot bool
		timeout := time.After(3 * time.Second)
		for !gotReply || !gotSnapshot {
			select {
			case f := <-c.Events():
				switch {
				case f.Event == server.EventReply && f.Ref == ref:
					if err := f.Err(); err != nil {
						t.Fatalf("unexpected error reply: %v", err)
					}
					gotReply = true
				case f.Event == string(broadcast.KindSnapshot):
					s, err := f.Snapshot()
					if err != nil {
						t.Fatalf("failed to decode snapshot: %v", err)
					}
					if s.CurrentEntryID != entry.ID() {
						t.Errorf("expected current entry %s, got %s", entry.ID(), s.CurrentEntryID)
					}
					gotSnapshot = true
				}
			case <-timeout:
				t.Fatal("timed out waiting for reply and snapshot")
			}
		}
	})

	t.Run("ErrorReply", func(t *testing.T) {
		srv, store := newServer(t)
		session := store.MustSession(t, "lounge")

		c, _, err := Dial(context.Background(), srv.URL, session.ID())
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		defer c.Close()

		ref, _ := c.Send(server.CmdSeek, map[string]int{"progress": -1})
		select {
		case f := <-c.Events():
			if f.Ref != ref || f.Err() == nil {
				t.Errorf("expected error reply, got %+v", f)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for reply")
		}
	})

	t.Run("CloseEndsEvents", func(t *testing.T) {
		srv, store := newServer(t)
		session := store.MustSession(t, "lounge")

		c, _, err := Dial(context.Background(), srv.URL, session.ID())
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}

		if err := c.Close(); err != nil {
			t.Logf("close: %v", err)
		}
		select {
		case <-c.Done():
		case <-time.After(3 * time.Second):
			t.Fatal("client did not stop after Close")
		}
	})
}
