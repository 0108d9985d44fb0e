package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/broadcast"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	readLimit  = 64 * 1024
	replyQueue = 16

	// DefaultPongWait is how long a listener may stay silent, pongs included, before it is dropped.
	DefaultPongWait = 60 * time.Second
)

// Inbound command types.
const (
	CmdPing        = "ping"
	CmdPlay        = "play"
	CmdPause       = "pause"
	CmdToggle      = "toggle"
	CmdSeek        = "seek"
	CmdSelectEntry = "selectEntry"
	CmdNext        = "next"
	CmdVolume      = "volume"
	CmdMute        = "mute"
)

// Outbound frame events besides the broadcast kinds.
const (
	EventReply  = "reply"
	EventJoined = "joined"
)

// Reply statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Command is an inbound frame from a listener.
type Command struct {
	Ref     string          `json:"ref"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Reply acknowledges one command to its issuer only. The joined frame uses the same shape.
type Reply struct {
	Event   string `json:"event"`
	Topic   string `json:"topic,omitempty"`
	Ref     string `json:"ref,omitempty"`
	Status  string `json:"status"`
	Payload any    `json:"payload,omitempty"`
}

// SeekPayload is the payload of a seek command.
type SeekPayload struct {
	Progress *int `json:"progress"`
}

// SelectPayload is the payload of a selectEntry command. EntryID wins when both are set.
type SelectPayload struct {
	EntryID    string `json:"entryId,omitempty"`
	EntryIndex *int   `json:"entryIndex,omitempty"`
}

// VolumePayload is the payload of a volume command.
type VolumePayload struct {
	Volume *int `json:"volume"`
}

// Engine is the playback surface the transport drives. Implemented by player.Engine.
type Engine interface {
	Snapshot(id string) (*models.Snapshot, error)
	Play(id string) (*models.Snapshot, error)
	Pause(id string) (*models.Snapshot, error)
	TogglePause(id string) (*models.Snapshot, error)
	Seek(id string, ms int) (*models.Snapshot, error)
	SelectEntry(id, entryID string) (*models.Snapshot, error)
	Advance(id string) (*models.Snapshot, error)
	SetVolume(id string, volume int) (*models.Snapshot, error)
	ToggleMute(id string) (*models.Snapshot, error)
	Enqueue(sessionID, trackID string) (*models.QueueEntry, error)
	RemoveEntry(sessionID, entryID string) (*models.Snapshot, error)
}

// Follower runs a per-listener progress tick. Implemented by tasks.Scheduler.
type Follower interface {
	Follow(ctx context.Context, sessionID string, deliver func(models.ProgressDelta))
}

// SocketOpts configures a [SocketHandler].
type SocketOpts struct {
	Engine       Engine
	Bus          *broadcast.Bus
	Follower     Follower
	CommandRate  float64 // commands per second per connection; <= 0 disables limiting
	CommandBurst int
	PongWait     time.Duration // defaults to DefaultPongWait; pings go out at 9/10 of it
	Logger       *log.Logger
}

// SocketHandler serves one websocket topic per session.
type SocketHandler struct {
	engine   Engine
	bus      *broadcast.Bus
	follower Follower
	limit    rate.Limit
	pongWait time.Duration
	burst    int
	upgrader websocket.Upgrader
	logger   *log.Logger

	closing   chan struct{}
	closeOnce sync.Once
	conns     sync.WaitGroup
}

// NewSocketHandler creates a websocket handler from opts.
func NewSocketHandler(opts SocketOpts) *SocketHandler {
	limit := rate.Inf
	if opts.CommandRate > 0 {
		limit = rate.Limit(opts.CommandRate)
	}
	burst := opts.CommandBurst
	if burst <= 0 {
		burst = 1
	}
	pongWait := opts.PongWait
	if pongWait <= 0 {
		pongWait = DefaultPongWait
	}

	return &SocketHandler{
		engine:   opts.Engine,
		bus:      opts.Bus,
		follower: opts.Follower,
		limit:    limit,
		burst:    burst,
		pongWait: pongWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  shared.WithLogger(opts.Logger, "component", "socket"),
		closing: make(chan struct{}),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *SocketHandler) Routes() []string {
	return []string{"GET /socket/sessions/{id}"}
}

// Close disconnects every listener and waits for their goroutines to finish.
func (h *SocketHandler) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
	h.conns.Wait()
}

// ServeHTTP joins a listener to a session topic for the lifetime of the connection.
func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	select {
	case <-h.closing:
		writeError(w, fmt.Errorf("%w: server is shutting down", shared.ErrServiceUnavailable))
		return
	default:
	}

	snap, err := h.engine.Snapshot(id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "session", id, "err", err)
		return
	}

	h.conns.Add(1)
	defer h.conns.Done()
	defer conn.Close()

	sub, unsubscribe := h.bus.Subscribe(id)
	defer unsubscribe()

	logger := h.logger.With("session", id, "listener", sub.ID())
	logger.Info("listener joined", "listeners", h.bus.Count(id))
	defer logger.Info("listener left")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if h.follower != nil {
		go h.follower.Follow(ctx, id, func(d models.ProgressDelta) {
			h.bus.Deliver(sub, broadcast.Event{Kind: broadcast.KindProgress, Topic: id, Payload: d})
		})
	}

	replies := make(chan Reply, replyQueue)
	go func() {
		defer cancel()
		h.read(ctx, conn, id, replies, logger)
	}()

	if err := h.write(conn, Reply{Event: EventJoined, Topic: id, Status: StatusOK, Payload: snap}); err != nil {
		return
	}

	ping := time.NewTicker(h.pongWait * 9 / 10)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.Debug("ping failed", "err", err)
				return
			}
		case <-h.closing:
			deadline := time.Now().Add(writeWait)
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := h.write(conn, ev); err != nil {
				logger.Debug("write failed", "err", err)
				return
			}
		case reply := <-replies:
			if err := h.write(conn, reply); err != nil {
				logger.Debug("write failed", "err", err)
				return
			}
		}
	}
}

// read handles inbound frames until the connection fails or ctx ends. It never writes to conn.
func (h *SocketHandler) read(ctx context.Context, conn *websocket.Conn, id string, replies chan<- Reply, logger *log.Logger) {
	conn.SetReadLimit(readLimit)
	limiter := rate.NewLimiter(h.limit, h.burst)

	extend := func(string) error { return conn.SetReadDeadline(time.Now().Add(h.pongWait)) }
	_ = extend("")
	conn.SetPongHandler(extend)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("read failed", "err", err)
			}
			return
		}
		_ = extend("")

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.reply(ctx, replies, failure(id, "", fmt.Errorf("%w: malformed frame", shared.ErrValidation)))
			continue
		}

		if !limiter.Allow() {
			h.reply(ctx, replies, failure(id, cmd.Ref, fmt.Errorf("%w: slow down", shared.ErrRateLimited)))
			continue
		}

		payload, err := h.dispatch(id, cmd)
		if err != nil {
			logger.Debug("command failed", "type", cmd.Type, "ref", cmd.Ref, "err", err)
			h.reply(ctx, replies, failure(id, cmd.Ref, err))
			continue
		}
		h.reply(ctx, replies, Reply{Event: EventReply, Topic: id, Ref: cmd.Ref, Status: StatusOK, Payload: payload})
	}
}

func (h *SocketHandler) reply(ctx context.Context, replies chan<- Reply, r Reply) {
	select {
	case replies <- r:
	case <-ctx.Done():
	}
}

func failure(id, ref string, err error) Reply {
	return Reply{
		Event:   EventReply,
		Topic:   id,
		Ref:     ref,
		Status:  StatusError,
		Payload: ErrorBody{Reason: reason(err), Message: err.Error()},
	}
}

func (h *SocketHandler) write(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

// dispatch applies one command and returns the reply payload.
func (h *SocketHandler) dispatch(id string, cmd Command) (any, error) {
	switch cmd.Type {
	case CmdPing:
		if len(cmd.Payload) == 0 {
			return nil, nil
		}
		return cmd.Payload, nil
	case CmdPlay:
		return h.engine.Play(id)
	case CmdPause:
		return h.engine.Pause(id)
	case CmdToggle:
		return h.engine.TogglePause(id)
	case CmdNext:
		return h.engine.Advance(id)
	case CmdMute:
		return h.engine.ToggleMute(id)
	case CmdSeek:
		var p SeekPayload
		if err := decodePayload(cmd.Payload, &p); err != nil {
			return nil, err
		}
		if p.Progress == nil {
			return nil, fmt.Errorf("%w: seek requires progress", shared.ErrValidation)
		}
		return h.engine.Seek(id, *p.Progress)
	case CmdVolume:
		var p VolumePayload
		if err := decodePayload(cmd.Payload, &p); err != nil {
			return nil, err
		}
		if p.Volume == nil {
			return nil, fmt.Errorf("%w: volume requires volume", shared.ErrValidation)
		}
		return h.engine.SetVolume(id, *p.Volume)
	case CmdSelectEntry:
		var p SelectPayload
		if err := decodePayload(cmd.Payload, &p); err != nil {
			return nil, err
		}
		entryID, err := h.resolveEntry(id, p)
		if err != nil {
			return nil, err
		}
		return h.engine.SelectEntry(id, entryID)
	default:
		return nil, fmt.Errorf("%w: unknown command %q", shared.ErrValidation, cmd.Type)
	}
}

// resolveEntry turns an entry index into an entry id against the current queue.
func (h *SocketHandler) resolveEntry(id string, p SelectPayload) (string, error) {
	if p.EntryID != "" {
		return p.EntryID, nil
	}
	if p.EntryIndex == nil {
		return "", fmt.Errorf("%w: selectEntry requires entryId or entryIndex", shared.ErrValidation)
	}

	snap, err := h.engine.Snapshot(id)
	if err != nil {
		return "", err
	}
	entryID, ok := snap.EntryAt(*p.EntryIndex)
	if !ok {
		return "", fmt.Errorf("%w: no queue entry at index %d", shared.ErrNotFound, *p.EntryIndex)
	}
	return entryID, nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: malformed payload: %v", shared.ErrValidation, err)
	}
	return nil
}
