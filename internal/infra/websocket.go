package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stakehouse/platform/internal/domain"
)

// WSHub manages WebSocket connections and room-based message delivery.
type WSHub struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]*WSConn // room -> connID -> conn
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// WSConn represents one subscriber connection.
type WSConn struct {
	ID   string
	Send chan []byte
}

// WSMessage is the payload sent over WebSocket.
type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// EventsRoom receives every published observability event. Keeper processes
// subscribe here and react to seed_committed by calling reveal.
const EventsRoom = "events"

// NewWSHub creates a new WebSocket hub.
func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{
		rooms: make(map[string]map[string]*WSConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeWS upgrades an HTTP request and subscribes the connection to a room.
func (h *WSHub) ServeWS(room string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("ws upgrade failed", "error", err)
			return
		}

		conn := &WSConn{ID: uuid.NewString(), Send: make(chan []byte, 64)}
		h.Join(room, conn)
		h.logger.Debug("ws connected", "room", room, "conn_id", conn.ID)

		go h.writePump(ws, conn)
		go h.readPump(ws, room, conn)
	}
}

func (h *WSHub) writePump(ws *websocket.Conn, conn *WSConn) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case payload, ok := <-conn.Send:
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WSHub) readPump(ws *websocket.Conn, room string, conn *WSConn) {
	defer func() {
		h.Leave(room, conn.ID)
		ws.Close()
	}()
	ws.SetReadLimit(512)
	for {
		// subscribers only listen; any read error tears the connection down
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// Join adds a connection to a room.
func (h *WSHub) Join(room string, conn *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*WSConn)
	}
	h.rooms[room][conn.ID] = conn
}

// Leave removes a connection from a room.
func (h *WSHub) Leave(room string, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[room]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Publish sends a message to all connections in a room.
func (h *WSHub) Publish(room string, event string, data interface{}) {
	payload, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		h.logger.Error("ws marshal error", "error", err, "room", room, "event", event)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.rooms[room] {
		select {
		case conn.Send <- payload:
		default:
			h.logger.Warn("ws send buffer full", "conn_id", conn.ID, "room", room)
		}
	}
}

// HandleEvent streams a published outbox event to the events room and to the
// affected player's room. Implements EventSink.
func (h *WSHub) HandleEvent(_ context.Context, row domain.OutboxRow) {
	h.Publish(EventsRoom, string(row.EventType), row.OutboxDraft)
	if row.AggregateType == domain.AggregatePlayer {
		h.Publish("player:"+row.AggregateID, string(row.EventType), row.OutboxDraft)
	}
}

// ConnectionCount returns the total number of active connections.
func (h *WSHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, conns := range h.rooms {
		count += len(conns)
	}
	return count
}

// Shutdown closes all connections gracefully.
func (h *WSHub) Shutdown(_ context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, conns := range h.rooms {
		for _, conn := range conns {
			close(conn.Send)
		}
		delete(h.rooms, room)
	}
}
