package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"referral-ledger/services"
)

// statusFor maps ledger errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidParameters):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrPoolNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrAlreadyRegistered),
		errors.Is(err, services.ErrAlreadyClaimed),
		errors.Is(err, services.ErrInsufficientPool),
		errors.Is(err, services.ErrSecondaryNotLinked):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrPoolClosed):
		return fiber.StatusGone
	case errors.Is(err, services.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status >= fiber.StatusInternalServerError {
		// driver messages stay in the logs
		msg = "storage unavailable, try again later"
		if status == fiber.StatusInternalServerError {
			msg = "internal error"
		}
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func poolIDParam(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, services.ErrInvalidParameters
	}
	return uint(id), nil
}
