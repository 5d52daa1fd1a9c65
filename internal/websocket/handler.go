package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"gazette-chat/internal/redis"
	"gazette-chat/internal/services"
	"gazette-chat/internal/transport/httpdto"
	"gazette-chat/pkg/logger"
)

type clientFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

type serverFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Handler struct {
	auth       *services.AuthService
	hub        *Hub
	authorizer *ChannelAuthorizer
	presence   *redis.Presence
	log        *logger.Logger
}

func NewHandler(auth *services.AuthService, hub *Hub, authorizer *ChannelAuthorizer, presence *redis.Presence, log *logger.Logger) *Handler {
	return &Handler{auth: auth, hub: hub, authorizer: authorizer, presence: presence, log: log}
}

// Connect upgrades the request, authenticates via query token, and serves
// the subscribe/unsubscribe protocol until the socket closes.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	userID, _, err := h.auth.ParseToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID.String())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	go client.WriteLoop(ctx)
	h.markOnline(ctx, client.UserID)

	// The personal channel is implicit; everything else is opt-in.
	h.hub.Subscribe(client, "channel:user:"+client.UserID)

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleFrame(ctx, client, data)
	}

	h.hub.Unregister(client)
	h.markOffline(ctx, client.UserID)
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, data []byte) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Channel == "" {
		client.SendMessage(mustFrame(serverFrame{Type: "error", Error: "malformed frame"}))
		return
	}

	switch frame.Action {
	case "subscribe":
		ok, err := h.authorizer.CanSubscribe(ctx, client.UserID, frame.Channel)
		if err != nil {
			h.log.Errorf("subscribe authorization for %s: %v", frame.Channel, err)
			client.SendMessage(mustFrame(serverFrame{Type: "error", Channel: frame.Channel, Error: "authorization failed"}))
			return
		}
		if !ok {
			client.SendMessage(mustFrame(serverFrame{Type: "error", Channel: frame.Channel, Error: "forbidden"}))
			return
		}
		h.hub.Subscribe(client, frame.Channel)
		client.SendMessage(mustFrame(serverFrame{Type: "subscribed", Channel: frame.Channel}))
	case "unsubscribe":
		h.hub.Unsubscribe(client, frame.Channel)
		client.SendMessage(mustFrame(serverFrame{Type: "unsubscribed", Channel: frame.Channel}))
	default:
		client.SendMessage(mustFrame(serverFrame{Type: "error", Error: "unknown action"}))
	}
}

func (h *Handler) markOnline(ctx context.Context, userID string) {
	if h.presence == nil {
		return
	}
	if err := h.presence.SetOnline(ctx, userID); err != nil {
		h.log.Warnf("presence online for %s: %v", userID, err)
	}
}

func (h *Handler) markOffline(ctx context.Context, userID string) {
	if h.presence == nil {
		return
	}
	if h.hub.UserConnectionCount(userID) > 0 {
		return
	}
	if err := h.presence.SetOffline(ctx, userID); err != nil {
		h.log.Warnf("presence offline for %s: %v", userID, err)
	}
}

func mustFrame(f serverFrame) []byte {
	data, _ := json.Marshal(f)
	return data
}
