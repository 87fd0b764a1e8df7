package handlers

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/sentinel-ng/backend/internal/metrics"
	"github.com/sentinel-ng/backend/internal/storage/models"
	"github.com/sentinel-ng/backend/pkg/logger"
)

// Hub fans newly scored incidents out to connected websocket clients.
// Map-based dashboards subscribe here instead of polling the recent feed.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Broadcast pushes an incident to every connected client. Writes happen
// under the hub lock, which also serializes access to each connection.
func (h *Hub) Broadcast(incident *models.Incident) {
	msg := map[string]interface{}{
		"type":     "incident",
		"incident": incident.GeoJSONFeature(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(msg); err != nil {
			logger.Debug("Dropping stream client", zap.Error(err))
			conn.Close()
			delete(h.clients, conn)
			metrics.StreamClients.Dec()
		}
	}
}

// HandleConnection registers the client and blocks reading until the peer
// disconnects. Inbound messages are ignored; the feed is one-way.
func (h *Hub) HandleConnection(c *websocket.Conn) {
	logger.Info("Stream client connected")

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.StreamClients.Inc()

	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			metrics.StreamClients.Dec()
		}
		h.mu.Unlock()
		c.Close()
		logger.Info("Stream client disconnected")
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
