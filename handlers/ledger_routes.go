// handlers/ledger_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"referral-ledger/middleware"
	"referral-ledger/services"
)

// SetupLedgerRoutes exposes the user-facing ledger operations under /s.
// The caller identity always comes from the gateway's X-User-ID header.
func SetupLedgerRoutes(app *fiber.App, engine *services.Engine, log zerolog.Logger) {
	secured := app.Group("/s", middleware.UserContextMiddleware(log))

	secured.Post("/register", func(c *fiber.Ctx) error {
		var req struct {
			InviteCode string `json:"invite_code"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
			}
		}

		res, err := engine.RegisterUser(c.UserContext(), middleware.UserID(c), req.InviteCode)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	secured.Post("/link", func(c *fiber.Ctx) error {
		var req struct {
			SecondaryID string `json:"secondary_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if err := engine.LinkSecondaryIdentity(c.UserContext(), middleware.UserID(c), req.SecondaryID); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"status": "linked", "secondary_id": req.SecondaryID})
	})

	// The chat layer calls this after asking the platform whether the action happened.
	secured.Post("/actions/:action", func(c *fiber.Ctx) error {
		var req struct {
			Verified bool `json:"verified"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		action := services.Action(c.Params("action"))
		balance, err := engine.AwardVerifiedAction(c.UserContext(), middleware.UserID(c), action, req.Verified)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"action": action, "verified": req.Verified, "balance": balance})
	})

	secured.Get("/balance", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		points, err := engine.GetBalance(c.UserContext(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"user_id": userID, "points": points})
	})

	secured.Get("/me", func(c *fiber.Ctx) error {
		profile, err := engine.GetUser(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(profile)
	})

	secured.Get("/invites/:code", func(c *fiber.Ctx) error {
		owner, err := engine.Referrals.Resolve(c.UserContext(), c.Params("code"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"user_id": owner})
	})

	secured.Get("/pools", func(c *fiber.Ctx) error {
		pools, err := engine.ListPools(c.UserContext(), c.QueryBool("open", true))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(pools)
	})

	secured.Get("/pools/:id", func(c *fiber.Ctx) error {
		id, err := poolIDParam(c)
		if err != nil {
			return respondError(c, err)
		}
		pool, err := engine.GetPool(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(pool)
	})

	secured.Post("/pools/:id/claim", func(c *fiber.Ctx) error {
		id, err := poolIDParam(c)
		if err != nil {
			return respondError(c, err)
		}
		payout, err := engine.ClaimPool(c.UserContext(), middleware.UserID(c), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"pool_id": id, "payout": payout})
	})
}
