// internal/handler/websocket_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fleetpulse/internal/hub"
	"fleetpulse/internal/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// WebSocketHandler manages WebSocket connections for real-time notifications
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	logger   *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(h *hub.Hub, logger *zap.Logger) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// In production, implement proper origin checking
			return true
		},
	}

	return &WebSocketHandler{
		upgrader: upgrader,
		hub:      h,
		logger:   utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// HandleConnection upgrades the request and attaches the client to the hub
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := hub.NewClient(uuid.New().String(), c.Request.UserAgent(), c.Request.RemoteAddr)

	h.hub.Register(client)
	h.logger.Info("WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.hub.SendTo(client.ID, &hub.Message{
		Type:     hub.TypeConnected,
		ClientID: client.ID,
	})

	go h.handleClientRead(client, conn)
	go h.handleClientWrite(client, conn)
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *hub.Client, conn *websocket.Conn) {
	defer func() {
		h.hub.Unregister(client.ID)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message hub.Message
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.logger.Error("Failed to parse WebSocket message",
				zap.Error(err),
				zap.String("client_id", client.ID),
			)
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *hub.Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-client.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client control messages
func (h *WebSocketHandler) handleClientMessage(client *hub.Client, message *hub.Message) {
	switch message.Type {
	case hub.TypeSubscribe:
		h.hub.Subscribe(client.ID, message.Channels)
		h.hub.SendTo(client.ID, &hub.Message{
			Type:     hub.TypeSubscribed,
			Channels: message.Channels,
		})

	case hub.TypeUnsubscribe:
		h.hub.Unsubscribe(client.ID, message.Channels)
		h.hub.SendTo(client.ID, &hub.Message{
			Type:     hub.TypeUnsubscribed,
			Channels: message.Channels,
		})

	case hub.TypePing:
		h.hub.SendTo(client.ID, &hub.Message{
			Type: hub.TypePong,
		})

	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
	}
}

// GetConnectionStats returns hub connection statistics
func (h *WebSocketHandler) GetConnectionStats() *hub.Stats {
	return h.hub.Stats()
}
