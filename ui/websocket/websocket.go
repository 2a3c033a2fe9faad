package websocket

import (
	"context"
	"encoding/json"

	"github.com/AzielCF/az-engage/engine"
	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/AzielCF/az-engage/infrastructure/valkey"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	CodePollCycle    = "POLL_CYCLE"
	CodeExecution    = "EXECUTION"
	CodeEngineStatus = "ENGINE_STATUS"

	broadcastBuffer = 64
)

type BroadcastMessage struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Result   any    `json:"result"`
	SenderID string `json:"sender_id,omitempty"`
}

// Hub fans engine events out to dashboard connections. With Valkey the
// events also reach connections held by other instances.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan BroadcastMessage

	vkClient *valkey.Client
	channel  string
	localID  string
}

func NewHub(vk *valkey.Client, serverID string) *Hub {
	h := &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan BroadcastMessage, broadcastBuffer),
		vkClient:   vk,
		localID:    serverID,
	}
	if vk != nil {
		h.channel = vk.Key("ws_broadcast")
	}
	return h
}

// Publish queues msg without blocking. It reports false when the hub is
// saturated and the message was dropped.
func (h *Hub) Publish(msg BroadcastMessage) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		logrus.Debugf("[WS] Broadcast buffer full, dropping %s", msg.Code)
		return false
	}
}

// CycleHook is registered on the engine so every poll cycle reaches the
// dashboard.
func (h *Hub) CycleHook(_ context.Context, result domain.CycleResult) {
	h.Publish(BroadcastMessage{
		Code:    CodePollCycle,
		Message: string(result.Status),
		Result:  result,
	})
}

func (h *Hub) ExecutionHook(_ context.Context, rec domain.ExecutionRecord) {
	h.Publish(BroadcastMessage{
		Code:    CodeExecution,
		Message: string(rec.Status),
		Result:  rec,
	})
}

func (h *Hub) broadcastToLocal(message BroadcastMessage) {
	marshalMessage, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}

	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, marshalMessage); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			h.closeConnection(conn)
		}
	}
}

func (h *Hub) publishToValkey(ctx context.Context, message BroadcastMessage) {
	message.SenderID = h.localID

	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	if err := h.vkClient.Publish(ctx, h.channel, data); err != nil {
		logrus.Errorf("[WS] Failed to publish to Valkey: %v", err)
	}
}

// remote is where messages from other instances land. They go straight to
// local connections and are never re-published.
func (h *Hub) startValkeySubscriber(ctx context.Context, remote chan<- BroadcastMessage) {
	logrus.Info("[WS] Starting Valkey Pub/Sub subscriber for distributed events")
	go func() {
		err := h.vkClient.Subscribe(ctx, h.channel, func(payload []byte) {
			var msg BroadcastMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				return
			}
			// Avoid loops: ignore messages sent by this same instance
			if msg.SenderID == h.localID {
				return
			}
			select {
			case remote <- msg:
			case <-ctx.Done():
			}
		})
		if err != nil && ctx.Err() == nil {
			logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
		}
	}()
}

func (h *Hub) closeConnection(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = conn.Close()
	delete(h.clients, conn)
}

// Run owns the connection set until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	remote := make(chan BroadcastMessage, broadcastBuffer)
	if h.vkClient != nil {
		h.startValkeySubscriber(ctx, remote)
	}

	for {
		select {
		case <-ctx.Done():
			for conn := range h.clients {
				h.closeConnection(conn)
			}
			return

		case conn := <-h.register:
			h.clients[conn] = struct{}{}
			logrus.Debug("[WS] Connection registered")

		case conn := <-h.unregister:
			delete(h.clients, conn)
			logrus.Debug("[WS] Connection unregistered")

		case message := <-remote:
			h.broadcastToLocal(message)

		case message := <-h.broadcast:
			h.broadcastToLocal(message)
			if h.vkClient != nil {
				h.publishToValkey(ctx, message)
			}
		}
	}
}

// RegisterRoutes mounts /ws. Clients may send {"code":"ENGINE_STATUS"} to
// get the current engine status broadcast.
func (h *Hub) RegisterRoutes(app fiber.Router, e *engine.Engine) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		defer func() {
			h.unregister <- conn
			_ = conn.Close()
		}()

		h.register <- conn

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Debugf("[WS] Read error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			var request BroadcastMessage
			if err := json.Unmarshal(message, &request); err != nil {
				logrus.Debugf("[WS] Ignoring malformed message: %v", err)
				continue
			}

			if request.Code == CodeEngineStatus {
				status, err := e.Status(context.Background())
				if err != nil {
					logrus.Warnf("[WS] Engine status failed: %v", err)
					continue
				}
				h.Publish(BroadcastMessage{
					Code:    CodeEngineStatus,
					Message: status.Summary,
					Result:  status,
				})
			}
		}
	}))
}
