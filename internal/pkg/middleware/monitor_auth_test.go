package middleware

import (
	"encoding/base64"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func basicHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func newGuardedApp(h fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Get("/monitor", h, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestMonitorAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	app := newGuardedApp(MonitorAuth("ops", string(hash)))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: basicHeader("ops", "s3cret"), want: fiber.StatusOK},
		{name: "wrong password", header: basicHeader("ops", "nope"), want: fiber.StatusUnauthorized},
		{name: "wrong user", header: basicHeader("admin", "s3cret"), want: fiber.StatusUnauthorized},
		{name: "missing", header: "", want: fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/monitor", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestMonitorAuth_NotConfigured(t *testing.T) {
	app := newGuardedApp(MonitorAuth("", ""))

	req := httptest.NewRequest("GET", "/monitor", nil)
	req.Header.Set("Authorization", basicHeader("ops", "s3cret"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestMonitorLimiter(t *testing.T) {
	app := newGuardedApp(MonitorLimiter(nil))

	for i := 0; i < monitorLimiterMax; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/monitor", nil), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	resp, err := app.Test(httptest.NewRequest("GET", "/monitor", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}
