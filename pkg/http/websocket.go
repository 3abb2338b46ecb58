package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/metrics"
)

// Event types pushed to websocket clients
const (
	EventRecordingState      = "recording.state"
	EventAnalysisCompleted   = "analysis.completed"
	EventSubmissionCompleted = "submission.completed"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientQueueLen = 256
	broadcastQueue = 64
)

// Event is one message sent to websocket clients
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Client represents a connected WebSocket client
type Client struct {
	hub  *AnalysisHub
	conn *websocket.Conn
	send chan []byte
}

// AnalysisHub fans analysis and recording events out to websocket clients
type AnalysisHub struct {
	logger     *logrus.Entry
	clients    map[*Client]bool
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	running    atomic.Bool
	quit       chan struct{}
}

// WebSocketUpgrader configures the WebSocket connection
var WebSocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewAnalysisHub creates a hub. Run must be started before clients connect.
func NewAnalysisHub(logger *logrus.Logger) *AnalysisHub {
	return &AnalysisHub{
		logger:     logger.WithField("component", "ws_hub"),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Event, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes every
// client. A hub runs once.
func (h *AnalysisHub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.quit)
	}()
	h.logger.Info("Starting WebSocket analysis hub")

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			metrics.SetWebsocketClients(0)
			h.logger.Info("Shutting down WebSocket analysis hub")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mutex.Unlock()
			metrics.SetWebsocketClients(n)
			h.logger.WithField("clients", n).Debug("Client connected to WebSocket")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mutex.Unlock()
			metrics.SetWebsocketClients(n)
			h.logger.WithField("clients", n).Debug("Client disconnected from WebSocket")

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.WithError(err).Error("Failed to marshal websocket event")
				continue
			}

			// slow clients are dropped, which mutates the map
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			n := len(h.clients)
			h.mutex.Unlock()
			metrics.SetWebsocketClients(n)
		}
	}
}

// Broadcast queues an event. It never blocks: when the queue is full the event is dropped.
func (h *AnalysisHub) Broadcast(eventType string, data interface{}) {
	event := &Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data}
	select {
	case h.broadcast <- event:
	default:
		h.logger.WithField("type", eventType).Warn("WebSocket broadcast queue full, dropping event")
	}
}

// ServeWs upgrades the request and registers the client
func (h *AnalysisHub) ServeWs(w http.ResponseWriter, r *http.Request) {
	if !h.IsRunning() {
		http.Error(w, "websocket hub not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := WebSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade connection to WebSocket")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientQueueLen),
	}
	select {
	case h.register <- client:
	case <-h.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected clients
func (h *AnalysisHub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is serving
func (h *AnalysisHub) IsRunning() bool {
	return h.running.Load()
}

// readPump discards client messages and unregisters the client when the connection ends
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
