package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"

	"github.com/snarg/mockprep/internal/database"
	"github.com/snarg/mockprep/internal/interview"
)

const (
	sseKeepalive  = 15 * time.Second
	wsWriteWait   = 10 * time.Second
	wsPongWait    = 60 * time.Second
	wsPingPeriod  = wsPongWait * 9 / 10
	snapshotLimit = 50
)

// EventSnapshot is the first event of every stream: the user's current
// interviews, so clients can render before any change arrives.
const EventSnapshot = "snapshot"

// interviewLister is the part of InterviewService a stream needs.
type interviewLister interface {
	ListInterviews(ctx context.Context, userID string, opts interview.ListOptions) ([]database.Interview, int, error)
}

type EventsHandler struct {
	live     LiveFeed
	lister   interviewLister
	upgrader websocket.Upgrader
	closing  <-chan struct{} // nil never fires
}

// NewEventsHandler creates the live stream handlers. origins restricts
// websocket upgrades the same way CORS_ORIGINS restricts other requests.
func NewEventsHandler(live LiveFeed, lister interviewLister, origins []string) *EventsHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(strings.TrimSpace(o), "/")] = true
	}
	return &EventsHandler{
		live:   live,
		lister: lister,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

func filterFromRequest(r *http.Request) EventFilter {
	return EventFilter{
		UserID: UserID(r.Context()),
		Types:  QueryStringList(r, "types"),
	}
}

func lastEventID(r *http.Request) string {
	if id := r.Header.Get("Last-Event-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("last_event_id")
}

func (h *EventsHandler) snapshot(ctx context.Context, userID string) ([]byte, error) {
	list, total, err := h.lister.ListInterviews(ctx, userID, interview.ListOptions{Limit: snapshotLimit})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []database.Interview{}
	}
	return json.Marshal(InterviewList{Interviews: list, Total: total, Limit: snapshotLimit})
}

// StreamEvents opens an SSE connection: a snapshot event, any replayed
// events after Last-Event-ID, then live changes with keepalives.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.live == nil {
		WriteErrorWithCode(w, http.StatusServiceUnavailable, ErrUnavailable, "event streaming not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	filter := filterFromRequest(r)
	log := hlog.FromRequest(r)

	// Subscribe before the snapshot so no change falls between the two.
	ch, cancel := h.live.Subscribe(filter)
	defer cancel()

	snap, err := h.snapshot(r.Context(), filter.UserID)
	if err != nil {
		log.Error().Err(err).Msg("snapshot failed")
		WriteError(w, http.StatusInternalServerError, "failed to load interviews")
		return
	}

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventSnapshot, snap)

	// Replay missed events if Last-Event-ID is provided
	sent := replayedIDs{}
	if id := lastEventID(r); id != "" {
		for _, e := range h.live.ReplaySince(id, filter) {
			writeSSE(w, e)
			sent.add(e.ID)
		}
	}
	flusher.Flush()

	// Keepalive ticker
	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()

	log.Info().Msg("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			log.Info().Msg("SSE client disconnected")
			return
		case <-h.closing:
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if sent.take(event.ID) {
				continue
			}
			writeSSE(w, event)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// replayedIDs holds the ids sent during replay. An event published between
// Subscribe and ReplaySince is in both the replay and the live channel; the
// live copy is dropped.
type replayedIDs map[string]struct{}

func (s replayedIDs) add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

// take reports whether id was replayed and forgets it.
func (s replayedIDs) take(id string) bool {
	if _, ok := s[id]; !ok {
		return false
	}
	delete(s, id)
	return true
}

func writeSSE(w http.ResponseWriter, e SSEEvent) {
	fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, e.Data)
}

// wsFrame is one websocket message. Data carries the same JSON as the SSE
// data line.
type wsFrame struct {
	ID        string          `json:"event_id,omitempty"`
	Type      string          `json:"event_type"`
	SubType   string          `json:"sub_type,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data"`
}

func frameOf(e SSEEvent) wsFrame {
	return wsFrame{ID: e.ID, Type: e.Type, SubType: e.SubType, Timestamp: e.Timestamp, Data: e.Data}
}

// StreamWebSocket serves the same stream as StreamEvents over a websocket.
// Client messages are ignored; the read loop only detects disconnects.
func (h *EventsHandler) StreamWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.live == nil {
		WriteErrorWithCode(w, http.StatusServiceUnavailable, ErrUnavailable, "event streaming not available")
		return
	}
	filter := filterFromRequest(r)
	log := hlog.FromRequest(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, cancel := h.live.Subscribe(filter)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(4096)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(f wsFrame) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(f)
	}

	snap, err := h.snapshot(r.Context(), filter.UserID)
	if err != nil {
		log.Error().Err(err).Msg("snapshot failed")
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "failed to load interviews"),
			time.Now().Add(wsWriteWait))
		return
	}
	if err := write(wsFrame{Type: EventSnapshot, Data: snap}); err != nil {
		return
	}
	sent := replayedIDs{}
	if id := lastEventID(r); id != "" {
		for _, e := range h.live.ReplaySince(id, filter) {
			if err := write(frameOf(e)); err != nil {
				return
			}
			sent.add(e.ID)
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	log.Info().Msg("websocket client connected")

	for {
		select {
		case <-done:
			log.Info().Msg("websocket client disconnected")
			return
		case <-h.closing:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait))
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if sent.take(event.ID) {
				continue
			}
			if err := write(frameOf(event)); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// Routes registers event routes on the given router.
func (h *EventsHandler) Routes(r chi.Router) {
	r.Get("/interviews/stream", h.StreamEvents)
	r.Get("/interviews/ws", h.StreamWebSocket)
}
