package middleware

import (
	"log"
	"strings"

	"debate-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

// WSAuthMiddleware validates `token` and `device_id` query params via
// the auth service before the WebSocket upgrade. Browsers cannot set
// headers on a WebSocket handshake, hence query params — same approach
// the platform uses for SSE streams.
//
// Usage:
//
//	app.Get("/ws/arena", middleware.WSAuthMiddleware(authClient), websocket.New(handler))
func WSAuthMiddleware(authClient *services.AuthServiceClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		deviceID := strings.TrimSpace(c.Query("device_id"))

		if accessToken == "" || deviceID == "" {
			log.Printf("[WS_AUTH] missing query params on %s (token len=%d, device_id=%q)",
				c.Path(), len(accessToken), deviceID)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token or device_id in query",
			})
		}

		resp, err := authClient.ValidateToken(accessToken, deviceID)
		if err != nil {
			log.Printf("[WS_AUTH] validation failed for device %s: %v", deviceID, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		c.Locals("user_id", resp.UserID)
		c.Locals("device_id", resp.DeviceID)

		return c.Next()
	}
}
