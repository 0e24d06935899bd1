package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/pohodnya/mtchat/internal/auth"
	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/models"
	"github.com/pohodnya/mtchat/internal/realtime"
)

// RealtimeHandler upgrades an HTTP request to a WebSocket connection
// and drives its read/write loops against the hub's Session.
type RealtimeHandler struct {
	hub *realtime.Hub
}

func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Upgrade is the pre-upgrade middleware gofiber/websocket requires: it
// rejects non-WebSocket requests before the handshake and stashes the
// caller's identity for the handler below.
func (h *RealtimeHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return errors.New(errors.ErrBadRequest, "expected a WebSocket upgrade request")
	}
	userID, err := auth.RequireWSUserID(c)
	if err != nil {
		return err
	}
	c.Locals("userID", userID)
	return c.Next()
}

// Serve is the upgraded connection handler. It registers a Session,
// pumps outbound frames to the socket, and reads inbound client
// frames until the connection closes or goes idle.
func (h *RealtimeHandler) Serve(conn *websocket.Conn) {
	userID, _ := conn.Locals("userID").(string)
	if userID == "" {
		conn.Close()
		return
	}

	session := h.hub.Register(userID, conn)
	defer h.hub.Unregister(session)

	done := make(chan struct{})
	go h.writeLoop(session, done)

	conn.SetReadDeadline(time.Now().Add(realtime.IdleTimeout))
	for {
		var frame models.WSClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			close(done)
			return
		}
		session.Touch()
		conn.SetReadDeadline(time.Now().Add(realtime.IdleTimeout))

		// Every inbound frame, whatever its type, counts as a liveness
		// signal; Touch above already refreshed IdleSince. Frame contents
		// are not otherwise acted on: the client is never the origin of
		// a chat event. Every frame also renews the user's presence TTL,
		// since the 60s key would otherwise expire under a live
		// connection that just never happens to reconnect.
		presenceCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		h.hub.RefreshPresence(presenceCtx, userID)
		cancel()
	}
}

func (h *RealtimeHandler) writeLoop(session *realtime.Session, done <-chan struct{}) {
	ticker := time.NewTicker(realtime.HeartbeatInterval)
	defer ticker.Stop()

	conn := session.Conn()
	for {
		select {
		case <-done:
			return
		case <-session.Done():
			return
		case <-ticker.C:
			if session.IdleSince() > realtime.IdleTimeout {
				conn.Close()
				return
			}
			if err := conn.WriteJSON(realtime.Frame(models.EventPong, nil)); err != nil {
				return
			}
		case frame, ok := <-session.Outbound():
			if !ok {
				return
			}
			data, err := json.Marshal(frame)
			if err != nil {
				slog.Error("realtime: failed to marshal outbound frame", "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
