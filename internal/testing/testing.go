// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/jukebox/internal/broadcast"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/repositories"
	"github.com/desertthunder/jukebox/internal/shared"
)

// NewTestDB opens an in-memory database with migrations applied and closes it when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// Store bundles the repositories over one test database.
type Store struct {
	DB       *sql.DB
	Sessions *repositories.SessionRepository
	Queue    *repositories.QueueRepository
	Tracks   *repositories.TrackRepository
}

// NewStore creates repositories over a fresh test database.
func NewStore(t *testing.T) *Store {
	t.Helper()

	db := NewTestDB(t)
	return &Store{
		DB:       db,
		Sessions: repositories.NewSessionRepository(db),
		Queue:    repositories.NewQueueRepository(db),
		Tracks:   repositories.NewTrackRepository(db),
	}
}

// MustSession creates an idle session.
func (s *Store) MustSession(t *testing.T, name string) *models.Session {
	t.Helper()

	session := models.NewSession(name, models.DefaultVolume)
	if err := s.Sessions.Create(session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return session
}

// MustTrack creates a catalog track with the given duration in milliseconds.
func (s *Store) MustTrack(t *testing.T, title string, duration int) *models.Track {
	t.Helper()

	track := models.NewTrack(title, "Artist", "Album", duration)
	if err := s.Tracks.Create(track); err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	return track
}

// MustEnqueue appends a track to a session's queue directly through the repository.
func (s *Store) MustEnqueue(t *testing.T, sessionID, trackID string) *models.QueueEntry {
	t.Helper()

	entry := models.NewQueueEntry(sessionID, trackID)
	if err := s.Queue.Create(entry); err != nil {
		t.Fatalf("failed to create queue entry: %v", err)
	}
	return entry
}

// MustPlay puts a session on entryID at progress, playing.
func (s *Store) MustPlay(t *testing.T, sessionID, entryID string, progress int) {
	t.Helper()

	if err := s.Sessions.SelectEntry(sessionID, entryID, progress, true); err != nil {
		t.Fatalf("failed to select entry: %v", err)
	}
}

// MustGet re-reads a session.
func (s *Store) MustGet(t *testing.T, sessionID string) *models.Session {
	t.Helper()

	session, err := s.Sessions.Get(sessionID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	return session
}

// Published is one call recorded by [Recorder].
type Published struct {
	Topic   string
	Kind    broadcast.Kind
	Payload any
}

// Recorder is a [broadcast.Publisher] that keeps every published event.
type Recorder struct {
	mu     sync.Mutex
	events []Published
}

func (r *Recorder) Publish(topic string, kind broadcast.Kind, payload any) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Published{Topic: topic, Kind: kind, Payload: payload})
	return 1
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.events...)
}

// Filter returns recorded events for topic of the given kind.
func (r *Recorder) Filter(topic string, kind broadcast.Kind) []Published {
	var out []Published
	for _, ev := range r.Events() {
		if ev.Topic == topic && ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// ErrUnavailable simulates a transient store failure.
var ErrUnavailable = fmt.Errorf("%w: database is locked", shared.ErrStoreUnavailable)

// FlakySessions wraps a session repository and fails selected calls with [ErrUnavailable].
type FlakySessions struct {
	*repositories.SessionRepository
	mu        sync.Mutex
	failGet   map[string]bool
	failWrite map[string]bool
	failScan  bool
	failBulk  bool
}

func NewFlakySessions(repo *repositories.SessionRepository) *FlakySessions {
	return &FlakySessions{SessionRepository: repo, failGet: map[string]bool{}, failWrite: map[string]bool{}}
}

// FailGet makes reads of the session fail.
func (f *FlakySessions) FailGet(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGet[id] = true
}

// FailWrites makes column writes to the session fail.
func (f *FlakySessions) FailWrites(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrite[id] = true
}

// FailActive makes the scheduler's active-session read fail.
func (f *FlakySessions) FailActive(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failScan = fail
}

// FailBulk makes the scheduler's bulk progress update fail.
func (f *FlakySessions) FailBulk(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failBulk = fail
}

func (f *FlakySessions) check(m map[string]bool, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m[id] {
		return ErrUnavailable
	}
	return nil
}

func (f *FlakySessions) Get(id string) (*models.Session, error) {
	if err := f.check(f.failGet, id); err != nil {
		return nil, err
	}
	return f.SessionRepository.Get(id)
}

func (f *FlakySessions) SetPlaying(id string, playing bool) error {
	if err := f.check(f.failWrite, id); err != nil {
		return err
	}
	return f.SessionRepository.SetPlaying(id, playing)
}

func (f *FlakySessions) SelectEntry(id, entryID string, progress int, playing bool) error {
	if err := f.check(f.failWrite, id); err != nil {
		return err
	}
	return f.SessionRepository.SelectEntry(id, entryID, progress, playing)
}

func (f *FlakySessions) Active() ([]*models.ActivePlayback, error) {
	f.mu.Lock()
	fail := f.failScan
	f.mu.Unlock()
	if fail {
		return nil, ErrUnavailable
	}
	return f.SessionRepository.Active()
}

func (f *FlakySessions) AdvanceProgress(ids []string, tick int) ([]models.ProgressDelta, error) {
	if f.bulkFailing() {
		return nil, ErrUnavailable
	}
	return f.SessionRepository.AdvanceProgress(ids, tick)
}

func (f *FlakySessions) bulkFailing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failBulk
}

// SyncBuffer is a [bytes.Buffer] safe for concurrent writers, such as child loggers of one test logger that are
// used from several goroutines.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
