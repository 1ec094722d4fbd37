package middleware

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"patientdocs/internal/auth"
)

// UserIDLocalKey is the key used to store the authenticated user's ID in
// Fiber's context locals.
const UserIDLocalKey = "user_id"

// Auth returns a middleware that requires a valid Bearer token.
// On success the token's user ID is stored under UserIDLocalKey; on any
// failure the request is rejected with 401 and the standard error envelope.
func Auth(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return unauthorized(c)
		}

		userID, err := auth.UserIDFromToken(token, secret)
		if err != nil {
			return unauthorized(c)
		}

		c.Locals(UserIDLocalKey, userID)
		return c.Next()
	}
}

// UserIDFromCtx extracts the authenticated user ID set by Auth.
func UserIDFromCtx(c *fiber.Ctx) string {
	if v, ok := c.Locals(UserIDLocalKey).(string); ok {
		return v
	}
	return ""
}

func unauthorized(c *fiber.Ctx) error {
	rid, _ := c.Locals(RequestIDLocalKey).(string)
	body, _ := json.Marshal(map[string]any{
		"request_id": rid,
		"error": map[string]string{
			"code":    "UNAUTHORIZED",
			"message": "missing or invalid access token",
		},
	})
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusUnauthorized).Send(body)
}
