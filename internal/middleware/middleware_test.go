package middleware

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ToffenYT/varsly/internal/telemetry"
)

func TestAPIKeyRequired(t *testing.T) {
	app := fiber.New()
	app.Post("/run", APIKeyRequired("s3cret"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	cases := []struct {
		name string
		key  string
		want int
	}{
		{"valid", "s3cret", fiber.StatusAccepted},
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong", "guess", fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/run", nil)
			if tc.key != "" {
				req.Header.Set(APIKeyHeader, tc.key)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestAPIKeyUnconfiguredRejectsAll(t *testing.T) {
	app := fiber.New()
	app.Post("/run", APIKeyRequired(""), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("POST", "/run", nil)
	req.Header.Set(APIKeyHeader, "")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestPrometheus(t *testing.T) {
	app := fiber.New()
	app.Use(PrometheusMiddleware())
	app.Use(Tracing(telemetry.NewNoop(), "/healthz"))
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", PrometheusHandler())

	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `varsly_http_requests_total{method="GET",path="/healthz",status="200"}`)
}
