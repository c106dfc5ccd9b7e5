package handlers

import (
	"log"

	"debate-arena-system/middleware"
	"debate-arena-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Gateway binds WebSocket sessions to the arena services and forwards
// inbound intents.
type Gateway struct {
	Hub       *Hub
	Presence  *services.PresenceRegistry
	Queue     *services.MatchQueue
	Swipe     *services.SwipeMatcher
	Battles   *services.BattleEngine
	Directory *services.UserDirectory
	Limiter   *MessageLimiter
}

// intentFrame is the client → server wire format.
type intentFrame struct {
	Type      string `json:"type"`
	TargetID  string `json:"target_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	BattleID  string `json:"battle_id,omitempty"`
	Text      string `json:"text,omitempty"`
}

// SetupArenaRoutes mounts the WebSocket session endpoint. The session
// token is validated against the auth service before the upgrade.
func SetupArenaRoutes(app *fiber.App, g *Gateway, authClient *services.AuthServiceClient) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/arena", middleware.WSAuthMiddleware(authClient), websocket.New(g.handleSession))
}

func (g *Gateway) handleSession(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	if userID == "" {
		_ = conn.Close()
		return
	}

	client := NewClient(userID, uuid.NewString(), conn)
	g.Hub.Register(client)
	log.Printf("[GATEWAY] session %s opened for %s", client.SessionID, userID)

	defer func() {
		g.Hub.Unregister(client)
		g.Limiter.Forget(userID)
		// Socket gone: run the full offline cascade (queue, battle
		// forfeit, swipe cleanup). Session-guarded, so a fast reconnect
		// is not torn down by this socket's cleanup.
		g.Presence.GoOfflineSession(userID, client.SessionID, services.OfflineReasonDisconnect)
		log.Printf("[GATEWAY] session %s closed for %s", client.SessionID, userID)
	}()

	for {
		var frame intentFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		g.dispatch(client, frame)
	}
}

func (g *Gateway) dispatch(client *Client, frame intentFrame) {
	userID := client.UserID

	switch frame.Type {
	case "go-online":
		profile := g.Directory.Profile(userID)
		g.Presence.GoOnline(userID, client.SessionID, profile)

	case "go-offline":
		g.Presence.GoOffline(userID, services.OfflineReasonManual)

	case "heartbeat":
		g.Presence.Heartbeat(userID)

	case "join-queue":
		profile, ok := g.Presence.ProfileOf(userID)
		if !ok {
			client.Send(services.EventRejected, rejection("join-queue", "not_online"))
			return
		}
		g.Queue.Join(userID, profile)

	case "leave-queue":
		g.Queue.Leave(userID)

	case "get-cards":
		deck := g.Swipe.ListCandidates(userID)
		client.Send(services.EventOnlineUsers, map[string]any{"cards": deck})

	case "swipe-right":
		if frame.TargetID == "" || frame.TargetID == userID {
			client.Send(services.EventRejected, rejection("swipe-right", "invalid_target"))
			return
		}
		profile, ok := g.Presence.ProfileOf(userID)
		if !ok {
			client.Send(services.EventRejected, rejection("swipe-right", "not_online"))
			return
		}
		outcome := g.Swipe.SwipeRight(profile, frame.TargetID)
		switch outcome.Status {
		case services.SwipeOutcomeOffline:
			client.Send(services.EventBattleRequestTimeout, map[string]any{
				"target_id": frame.TargetID,
				"reason":    "offline",
			})
		case services.SwipeOutcomePending:
			client.Send(services.EventWaiting, map[string]any{
				"request_id":        outcome.RequestID,
				"ttl_remaining_sec": outcome.TTLRemaining,
			})
		}
		// Matched personas already got battle-start from the engine.

	case "swipe-left":
		if frame.TargetID == "" {
			client.Send(services.EventRejected, rejection("swipe-left", "invalid_target"))
			return
		}
		g.Swipe.SwipeLeft(userID, frame.TargetID)

	case "accept-battle":
		if err := g.Swipe.AcceptBattle(frame.RequestID, userID); err != nil {
			client.Send(services.EventRejected, rejection("accept-battle", err.Error()))
		}

	case "decline-battle":
		if err := g.Swipe.DeclineBattle(frame.RequestID, userID); err != nil {
			client.Send(services.EventRejected, rejection("decline-battle", err.Error()))
		}

	case "send-message":
		ok, reason, remaining := g.Limiter.Check(userID, frame.Text)
		if !ok {
			payload := map[string]any{"reason": reason}
			if remaining > 0 {
				payload["cooldown_remaining_sec"] = remaining.Seconds()
			}
			client.Send(services.EventRateLimited, payload)
			return
		}
		if err := g.Battles.SendMessage(frame.BattleID, userID, frame.Text); err != nil {
			client.Send(services.EventRejected, rejection("send-message", err.Error()))
		}

	default:
		log.Printf("[GATEWAY] unknown intent %q from %s", frame.Type, userID)
	}
}

func rejection(action, reason string) map[string]any {
	return map[string]any{"action": action, "reason": reason}
}
