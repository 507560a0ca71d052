// Package stream fans encounter events out to websocket watchers.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/louisbranch/fulcrum/internal/platform/httpx"
	"github.com/louisbranch/fulcrum/internal/platform/logging"
	"github.com/louisbranch/fulcrum/internal/platform/timeouts"
	"github.com/louisbranch/fulcrum/internal/services/story/combat"
	"github.com/louisbranch/fulcrum/internal/services/story/domain"
)

const (
	sendBuffer   = 16
	pingInterval = 20 * time.Second
	pongWait     = 2 * pingInterval
)

// Frame types written to watchers.
const (
	FrameSnapshot = "snapshot"
	FrameEvent    = "event"
)

// Frame is one websocket message.
type Frame struct {
	Type      string            `json:"type"`
	Encounter *domain.Encounter `json:"encounter,omitempty"`
	Event     *combat.Event     `json:"event,omitempty"`
}

// EncounterReader loads the snapshot sent on connect.
type EncounterReader interface {
	GetEncounter(ctx context.Context, encounterID string) (domain.Encounter, error)
}

type watcher struct {
	send chan []byte
	once sync.Once
}

func (w *watcher) close() {
	w.once.Do(func() { close(w.send) })
}

// Hub tracks watchers per encounter. It implements combat.Publisher.
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
	logger   *zap.Logger
}

var _ combat.Publisher = (*Hub)(nil)

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		watchers: make(map[string]map[*watcher]struct{}),
		logger:   logging.OrNop(logger),
	}
}

// Publish delivers ev to every watcher of its encounter. Watchers that
// cannot keep up are dropped.
func (h *Hub) Publish(ev combat.Event) {
	data, err := json.Marshal(Frame{Type: FrameEvent, Event: &ev})
	if err != nil {
		h.logger.Warn("marshal encounter event", zap.String("encounter_id", ev.EncounterID), zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers[ev.EncounterID] {
		select {
		case w.send <- data:
		default:
			h.logger.Info("dropping slow watcher", zap.String("encounter_id", ev.EncounterID))
			delete(h.watchers[ev.EncounterID], w)
			w.close()
		}
	}
	if ev.Encounter.Status.Terminal() {
		for w := range h.watchers[ev.EncounterID] {
			w.close()
		}
		delete(h.watchers, ev.EncounterID)
	}
}

// Watchers reports how many watchers an encounter has.
func (h *Hub) Watchers(encounterID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[encounterID])
}

func (h *Hub) subscribe(encounterID string) *watcher {
	w := &watcher{send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.watchers[encounterID]
	if !ok {
		set = make(map[*watcher]struct{})
		h.watchers[encounterID] = set
	}
	set[w] = struct{}{}
	return w
}

func (h *Hub) unsubscribe(encounterID string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.watchers[encounterID]; ok {
		if _, ok := set[w]; ok {
			delete(set, w)
			w.close()
		}
		if len(set) == 0 {
			delete(h.watchers, encounterID)
		}
	}
}

// Handler serves GET /v1/combat/{id}/stream.
type Handler struct {
	hub      *Hub
	reader   EncounterReader
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler builds the stream endpoint.
func NewHandler(hub *Hub, reader EncounterReader, logger *zap.Logger) *Handler {
	return &Handler{
		hub:    hub,
		reader: reader,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logging.OrNop(logger),
	}
}

// ServeHTTP upgrades the request, sends a snapshot and then streams events
// until the encounter ends or the watcher leaves.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	encounterID := r.PathValue("id")
	// Subscribe before reading the snapshot so no event falls between them.
	// Events queued meanwhile may repeat state the snapshot already holds.
	watcher := h.hub.subscribe(encounterID)
	defer h.hub.unsubscribe(encounterID, watcher)

	enc, err := h.reader.GetEncounter(r.Context(), encounterID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.String("encounter_id", encounterID), zap.Error(err))
		return
	}
	defer conn.Close()

	if err := writeJSON(conn, Frame{Type: FrameSnapshot, Encounter: &enc}); err != nil {
		return
	}
	if enc.Status.Terminal() {
		closeNormally(conn, "encounter is over")
		return
	}

	// Reads only serve to notice the peer leaving and to handle pongs.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-watcher.send:
			if !ok {
				closeNormally(conn, "encounter is over")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(timeouts.StreamWrite))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeouts.StreamWrite)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, frame Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeouts.StreamWrite))
	return conn.WriteJSON(frame)
}

func closeNormally(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeouts.StreamWrite))
}
