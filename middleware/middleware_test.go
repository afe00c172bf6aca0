package middleware

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(RequestLogger(zerolog.Nop()))
	app.Use(GatewayAuthMiddleware("token", zerolog.Nop()))
	app.Get("/public", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("boom") })

	secured := app.Group("/s", UserContextMiddleware(zerolog.Nop()))
	secured.Get("/whoami", func(c *fiber.Ctx) error { return c.SendString(UserID(c)) })

	admin := secured.Group("/admin", AdminOnly(func(id string) bool { return id == "root" }, zerolog.Nop()))
	admin.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	return app
}

func do(t *testing.T, app *fiber.App, path, auth, userID string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, resp.Header.Get("X-Request-ID")
}

func TestGatewayAuth(t *testing.T) {
	app := newApp()

	status, _ := do(t, app, "/public", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = do(t, app, "/public", "Bearer nope", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = do(t, app, "/public", "Bearer token", "")
	assert.Equal(t, fiber.StatusOK, status)

	// raw token without the Bearer prefix is accepted too
	status, _ = do(t, app, "/public", "token", "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestUserContextRequiredUnderS(t *testing.T) {
	app := newApp()

	status, _ := do(t, app, "/s/whoami", "Bearer token", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	req := httptest.NewRequest("GET", "/s/whoami", nil)
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("X-User-ID", "42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "42", string(body))
}

func TestAdminOnly(t *testing.T) {
	app := newApp()

	status, _ := do(t, app, "/s/admin/ping", "Bearer token", "42")
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = do(t, app, "/s/admin/ping", "Bearer token", "root")
	assert.Equal(t, fiber.StatusOK, status)

	assert.Equal(t, fiber.StatusForbidden, func() int {
		app := fiber.New()
		app.Get("/x", AdminOnly(nil, zerolog.Nop()), func(c *fiber.Ctx) error { return nil })
		resp, err := app.Test(httptest.NewRequest("GET", "/x", nil), -1)
		require.NoError(t, err)
		return resp.StatusCode
	}())
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	app := newApp()

	_, id := do(t, app, "/public", "Bearer token", "")
	assert.NotEmpty(t, id)

	req := httptest.NewRequest("GET", "/public", nil)
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))

	status, _ := do(t, app, "/boom", "Bearer token", "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
}
