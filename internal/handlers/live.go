package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"storyconnect-backend/internal/queue"
)

type DecisionStream interface {
	Subscribe(ctx context.Context) <-chan queue.DecisionEvent
}

// LiveHandler streams decision events to moderators over a websocket.
type LiveHandler struct {
	events DecisionStream
}

func NewLiveHandler(events DecisionStream) *LiveHandler {
	return &LiveHandler{events: events}
}

// Upgrade rejects plain HTTP requests to the live feed.
func (h *LiveHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Stream forwards every decision event as a JSON message until the client
// goes away.
func (h *LiveHandler) Stream(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the client never sends anything meaningful; reading detects the close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	slog.Info("moderation live feed connected", "remote", conn.RemoteAddr().String())
	for ev := range h.events.Subscribe(ctx) {
		if err := conn.WriteJSON(ev); err != nil {
			slog.Debug("moderation live feed write failed", "err", err)
			return
		}
	}
}
