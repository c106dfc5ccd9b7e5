package handlers

import (
	"debate-arena-system/middleware"
	"debate-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupHistoryRoutes mounts the read side of the persistence handoff:
// per-user battle history plus live engine stats.
func SetupHistoryRoutes(app *fiber.App, records *services.BattleRecordStore, battles *services.BattleEngine) {
	gatewayAuth := middleware.GatewayAuthMiddleware()

	app.Get("/arena/stats", gatewayAuth, func(c *fiber.Ctx) error {
		return c.JSON(battles.Stats())
	})

	secured := app.Group("/s", gatewayAuth, middleware.UserContextMiddleware())

	secured.Get("/battles/history", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit := c.QueryInt("limit", 50)

		recs, err := records.HistoryFor(userID, limit)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to fetch battle history"})
		}

		return c.JSON(fiber.Map{
			"records": recs,
			"count":   len(recs),
		})
	})
}
