package httptransport

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"clusterreport/internal/report"
)

// Event types sent over the progress socket.
const (
	EventSnapshot = "snapshot"
	EventProgress = "progress"
	EventStatus   = "status"
)

// Event is one progress socket message. Snapshot events carry the stored run
// state; progress and status events mirror the run callbacks.
type Event struct {
	Type    string `json:"type"`
	RunID   string `json:"run_id"`
	Percent int    `json:"percent,omitempty"`
	State   string `json:"state,omitempty"`
	Company string `json:"company,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProgressHub fans run events out to socket subscribers. Publishing never
// blocks: a subscriber that cannot keep up loses events and resynchronizes
// from the next store snapshot.
type ProgressHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a subscriber for one run's events. The returned cancel
// func must be called exactly once; after it returns the channel is closed.
func (h *ProgressHub) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, 64)

	h.mu.Lock()
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[chan Event]struct{})
	}
	h.subs[runID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs[runID], ch)
		if len(h.subs[runID]) == 0 {
			delete(h.subs, runID)
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the run, dropping it for
// subscribers with a full buffer.
func (h *ProgressHub) Publish(runID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[runID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API carries no browser credentials; cross-origin dashboards are fine.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	socketWriteTimeout = 10 * time.Second
	socketPingInterval = 30 * time.Second
	// terminal-state poll for runs that fail without emitting progress
	socketSyncInterval = 5 * time.Second
)

// handleRunSocket streams run progress over a websocket. The client receives
// a snapshot on connect, then live progress and status events. The server
// closes the socket once the run reaches a terminal state.
func (h *Handler) handleRunSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.svc.Run(r.Context(), id)
	if err != nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	// Subscribe before the snapshot so no event falls between the two.
	events, cancel := h.hub.Subscribe(id)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "run_id", id, "error", err)
		return
	}
	defer conn.Close()

	// Read pump: discard client messages, surface disconnects.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	if writeErr := h.writeEvent(conn, snapshotEvent(run)); writeErr != nil {
		return
	}
	if terminal(run) {
		return
	}

	ping := time.NewTicker(socketPingInterval)
	defer ping.Stop()
	resync := time.NewTicker(socketSyncInterval)
	defer resync.Stop()

	for {
		select {
		case ev := <-events:
			if writeErr := h.writeEvent(conn, ev); writeErr != nil {
				return
			}
		case <-resync.C:
			current, runErr := h.svc.Run(r.Context(), id)
			if runErr != nil {
				return
			}
			if terminal(current) {
				_ = h.writeEvent(conn, snapshotEvent(current))
				return
			}
		case <-ping.C:
			if pingErr := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteTimeout)); pingErr != nil {
				return
			}
		case <-disconnected:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) writeEvent(conn *websocket.Conn, ev Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
	if err := conn.WriteJSON(ev); err != nil {
		h.logger.Debug("websocket write failed", "run_id", ev.RunID, "error", err)
		return err
	}
	return nil
}

func snapshotEvent(run *report.Run) Event {
	return Event{
		Type:    EventSnapshot,
		RunID:   run.ID,
		Percent: run.Percent,
		State:   string(run.State),
		Message: run.Message,
	}
}

func terminal(run *report.Run) bool {
	return run.State != report.RunStateRunning
}
