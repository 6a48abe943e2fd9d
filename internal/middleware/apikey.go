package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// APIKeyHeader header carrying the internal API key
const APIKeyHeader = "X-API-Key"

// APIKeyRequired guards internal routes. An empty configured key rejects every request.
func APIKeyRequired(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(APIKeyHeader)
		if key == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or missing API key",
			})
		}
		return c.Next()
	}
}
