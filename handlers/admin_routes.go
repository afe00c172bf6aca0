// handlers/admin_routes.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"referral-ledger/middleware"
	"referral-ledger/services"
)

// ReportUploader stores an exported report and returns where it can be fetched.
type ReportUploader interface {
	PutJSON(ctx context.Context, key string, body []byte) (string, error)
}

// SetupAdminRoutes registers pool administration under /s/admin. isAdmin
// decides who may call them; uploader may be nil when exports are disabled.
func SetupAdminRoutes(app *fiber.App, engine *services.Engine, isAdmin func(string) bool, uploader ReportUploader, log zerolog.Logger) {
	admin := app.Group("/s/admin",
		middleware.UserContextMiddleware(log),
		middleware.AdminOnly(isAdmin, log),
	)

	admin.Post("/pools", func(c *fiber.Ctx) error {
		var req struct {
			Task           string `json:"task"`
			PointsPerClaim int64  `json:"points_per_claim"`
			MaxClaims      int64  `json:"max_claims"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		id, err := engine.CreatePool(c.UserContext(), req.Task, req.PointsPerClaim, req.MaxClaims)
		if err != nil {
			return respondError(c, err)
		}
		log.Info().Str("admin_id", middleware.UserID(c)).Uint("pool_id", id).Msg("pool created via admin api")
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":    id,
			"total": req.PointsPerClaim * req.MaxClaims,
		})
	})

	admin.Post("/award", func(c *fiber.Ctx) error {
		var req struct {
			UserID string `json:"user_id"`
			Points int64  `json:"points"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		balance, err := engine.AwardFixed(c.UserContext(), req.UserID, req.Points)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"user_id": req.UserID, "balance": balance})
	})

	admin.Get("/pools/:id/report", func(c *fiber.Ctx) error {
		id, err := poolIDParam(c)
		if err != nil {
			return respondError(c, err)
		}
		report, err := engine.PoolReport(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(report)
	})

	admin.Post("/pools/:id/export", func(c *fiber.Ctx) error {
		if uploader == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "report export is not configured"})
		}
		id, err := poolIDParam(c)
		if err != nil {
			return respondError(c, err)
		}
		report, err := engine.PoolReport(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}

		body, err := json.Marshal(report)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to encode report"})
		}
		key := reportKey(report)
		url, err := uploader.PutJSON(c.UserContext(), key, body)
		if err != nil {
			log.Error().Err(err).Uint("pool_id", id).Str("key", key).Msg("report upload failed")
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "failed to upload report"})
		}

		log.Info().Uint("pool_id", id).Str("url", url).Msg("pool report exported")
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"key": key, "url": url})
	})
}

func reportKey(r *services.PoolReport) string {
	return fmt.Sprintf("reports/pools/%d-%s/%s.json",
		r.Pool.ID, r.Pool.Slug, r.GeneratedAt.Format("20060102T150405Z"))
}
