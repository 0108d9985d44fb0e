package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/broadcast"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/samber/lo"
)

const maxBodyBytes = 1 << 20

// SessionCatalog creates and lists sessions. Implemented by repositories.SessionRepository.
type SessionCatalog interface {
	Create(session *models.Session) error
	List(criteria map[string]any) ([]*models.Session, error)
}

// TrackCatalog creates and lists tracks. Implemented by repositories.TrackRepository.
type TrackCatalog interface {
	Create(track *models.Track) error
	List(criteria map[string]any) ([]*models.Track, error)
}

// APIOpts configures an [APIHandler].
type APIOpts struct {
	Engine        Engine
	Sessions      SessionCatalog
	Tracks        TrackCatalog
	Bus           *broadcast.Bus
	DefaultVolume int
	Logger        *log.Logger
}

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	Name   string `json:"name"`
	Volume *int   `json:"volume,omitempty"`
}

// CreateTrackRequest is the body of POST /api/tracks.
type CreateTrackRequest struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Duration int    `json:"duration"`
}

// EnqueueRequest is the body of POST /api/sessions/{id}/queue.
type EnqueueRequest struct {
	TrackID string `json:"trackId"`
}

// TrackView is the JSON shape of a catalog track.
type TrackView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Duration int    `json:"duration"`
}

// EntryView is the JSON shape of a newly queued entry.
type EntryView struct {
	EntryID   string `json:"entryId"`
	SessionID string `json:"sessionId"`
	TrackID   string `json:"trackId"`
	OrderKey  int    `json:"orderKey"`
}

// Health is the body of GET /healthz.
type Health struct {
	Status    string `json:"status"`
	Topics    int    `json:"topics"`
	Listeners int    `json:"listeners"`
}

// APIHandler serves the JSON endpoints.
type APIHandler struct {
	engine        Engine
	sessions      SessionCatalog
	tracks        TrackCatalog
	bus           *broadcast.Bus
	defaultVolume int
	logger        *log.Logger
}

// NewAPIHandler creates a JSON handler from opts.
func NewAPIHandler(opts APIOpts) *APIHandler {
	volume := opts.DefaultVolume
	if volume <= 0 || volume > 100 {
		volume = models.DefaultVolume
	}
	return &APIHandler{
		engine:        opts.Engine,
		sessions:      opts.Sessions,
		tracks:        opts.Tracks,
		bus:           opts.Bus,
		defaultVolume: volume,
		logger:        shared.WithLogger(opts.Logger, "component", "api"),
	}
}

const (
	routeListSessions  = "GET /api/sessions"
	routeCreateSession = "POST /api/sessions"
	routeGetSession    = "GET /api/sessions/{id}"
	routeEnqueue       = "POST /api/sessions/{id}/queue"
	routeRemoveEntry   = "DELETE /api/sessions/{id}/queue/{entryId}"
	routeListTracks    = "GET /api/tracks"
	routeCreateTrack   = "POST /api/tracks"
	routeHealth        = "GET /healthz"
)

// Routes returns the HTTP routes this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{
		routeListSessions,
		routeCreateSession,
		routeGetSession,
		routeEnqueue,
		routeRemoveEntry,
		routeListTracks,
		routeCreateTrack,
		routeHealth,
	}
}

// ServeHTTP dispatches on the mux pattern that matched the request.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case routeListSessions:
		h.listSessions(w, r)
	case routeCreateSession:
		h.createSession(w, r)
	case routeGetSession:
		h.getSession(w, r)
	case routeEnqueue:
		h.enqueue(w, r)
	case routeRemoveEntry:
		h.removeEntry(w, r)
	case routeListTracks:
		h.listTracks(w, r)
	case routeCreateTrack:
		h.createTrack(w, r)
	case routeHealth:
		h.health(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *APIHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	criteria := map[string]any{}
	if playing := r.URL.Query().Get("playing"); playing != "" {
		criteria["playing"] = playing == "true" || playing == "1"
	}

	sessions, err := h.sessions.List(criteria)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	snaps := make([]*models.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snap, err := h.engine.Snapshot(s.ID())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		snaps = append(snaps, snap)
	}

	writeJSON(w, http.StatusOK, snaps)
}

func (h *APIHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	volume := h.defaultVolume
	if req.Volume != nil {
		volume = *req.Volume
	}

	session := models.NewSession(strings.TrimSpace(req.Name), volume)
	if err := h.sessions.Create(session); err != nil {
		h.fail(w, r, err)
		return
	}

	snap, err := h.engine.Snapshot(session.ID())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("session created", "session", session.ID(), "name", session.Name)
	writeJSON(w, http.StatusCreated, snap)
}

func (h *APIHandler) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Snapshot(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *APIHandler) enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.TrackID == "" {
		h.fail(w, r, fmt.Errorf("%w: trackId is required", shared.ErrValidation))
		return
	}

	entry, err := h.engine.Enqueue(r.PathValue("id"), req.TrackID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, EntryView{
		EntryID:   entry.ID(),
		SessionID: entry.SessionID,
		TrackID:   entry.TrackID,
		OrderKey:  entry.OrderKey,
	})
}

func (h *APIHandler) removeEntry(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.RemoveEntry(r.PathValue("id"), r.PathValue("entryId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *APIHandler) listTracks(w http.ResponseWriter, r *http.Request) {
	criteria := map[string]any{}
	if search := r.URL.Query().Get("search"); search != "" {
		criteria["search"] = search
	}
	if artist := r.URL.Query().Get("artist"); artist != "" {
		criteria["artist"] = artist
	}

	tracks, err := h.tracks.List(criteria)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lo.Map(tracks, func(t *models.Track, _ int) TrackView { return NewTrackView(t) }))
}

func (h *APIHandler) createTrack(w http.ResponseWriter, r *http.Request) {
	var req CreateTrackRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	track := models.NewTrack(strings.TrimSpace(req.Title), req.Artist, req.Album, req.Duration)
	if err := h.tracks.Create(track); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, NewTrackView(track))
}

func (h *APIHandler) health(w http.ResponseWriter, _ *http.Request) {
	body := Health{Status: "ok"}
	if h.bus != nil {
		topics := h.bus.Topics()
		body.Topics = len(topics)
		body.Listeners = lo.SumBy(topics, h.bus.Count)
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusCode(err) >= http.StatusInternalServerError {
		h.logger.Warn("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, err)
}

// NewTrackView renders a catalog track.
func NewTrackView(t *models.Track) TrackView {
	return TrackView{ID: t.ID(), Title: t.Title, Artist: t.Artist, Album: t.Album, Duration: t.Duration}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", shared.ErrValidation, err)
	}
	return nil
}
