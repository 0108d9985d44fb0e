package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/server"
	"github.com/desertthunder/jukebox/internal/shared"
)

// APIClient makes requests to the JSON endpoints of a running server.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a client for the server at baseURL ("http://host:port").
func NewAPIClient(baseURL string, client *http.Client) *APIClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:4000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
	}
}

// Health reports the server status and listener counts.
func (a *APIClient) Health(ctx context.Context) (*server.Health, error) {
	var out server.Health
	if err := a.do(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sessions lists session snapshots, optionally only the playing ones.
func (a *APIClient) Sessions(ctx context.Context, playingOnly bool) ([]*models.Snapshot, error) {
	path := "/api/sessions"
	if playingOnly {
		path += "?playing=true"
	}

	var out []*models.Snapshot
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Session fetches one session snapshot.
func (a *APIClient) Session(ctx context.Context, id string) (*models.Snapshot, error) {
	var out models.Snapshot
	if err := a.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession creates an idle session; a nil volume uses the server default.
func (a *APIClient) CreateSession(ctx context.Context, name string, volume *int) (*models.Snapshot, error) {
	var out models.Snapshot
	body := server.CreateSessionRequest{Name: name, Volume: volume}
	if err := a.do(ctx, http.MethodPost, "/api/sessions", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Enqueue appends a track to a session queue. Listeners joined to the session receive the new snapshot.
func (a *APIClient) Enqueue(ctx context.Context, sessionID, trackID string) (*server.EntryView, error) {
	var out server.EntryView
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/queue"
	if err := a.do(ctx, http.MethodPost, path, server.EnqueueRequest{TrackID: trackID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveEntry removes a queue entry and returns the resulting snapshot.
func (a *APIClient) RemoveEntry(ctx context.Context, sessionID, entryID string) (*models.Snapshot, error) {
	var out models.Snapshot
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/queue/" + url.PathEscape(entryID)
	if err := a.do(ctx, http.MethodDelete, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tracks lists catalog tracks.
func (a *APIClient) Tracks(ctx context.Context, search string) ([]server.TrackView, error) {
	path := "/api/tracks"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}

	var out []server.TrackView
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTrack adds a catalog track.
func (a *APIClient) CreateTrack(ctx context.Context, req server.CreateTrackRequest) (*server.TrackView, error) {
	var out server.TrackView
	if err := a.do(ctx, http.MethodPost, "/api/tracks", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends body as JSON and decodes a 2xx response into out. Error responses become shared sentinel errors.
func (a *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func responseError(status int, data []byte) error {
	var body server.ErrorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Reason == "" {
		return fmt.Errorf("unexpected status %d: %s", status, strings.TrimSpace(string(data)))
	}

	var sentinel error
	switch body.Reason {
	case server.ReasonNotFound:
		sentinel = shared.ErrNotFound
	case server.ReasonInvalid:
		sentinel = shared.ErrValidation
	case server.ReasonUnavailable:
		sentinel = shared.ErrServiceUnavailable
	case server.ReasonRateLimited:
		sentinel = shared.ErrRateLimited
	default:
		return fmt.Errorf("server error (%d): %s", status, body.Message)
	}
	return fmt.Errorf("%w: %s", sentinel, body.Message)
}
