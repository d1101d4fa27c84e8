package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"admissions-portal/internal/config"
	"admissions-portal/internal/models"
)

// Locals set by JWTAuth.
const (
	LocalUserID      = "user_id"
	LocalEmail       = "email"
	LocalFullName    = "full_name"
	LocalRole        = "role"
	LocalPermissions = "permissions"
)

// JWTAuth accepts "Authorization: Bearer <token>". Browsers cannot set
// headers on a WebSocket handshake, so upgrades may pass ?access_token=.
func JWTAuth(j *config.JWT) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Missing or malformed authorization header",
			})
		}

		claims, err := j.ValidateToken(raw)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid or expired token",
			})
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalEmail, claims.Email)
		c.Locals(LocalFullName, claims.FullName)
		c.Locals(LocalRole, claims.Role)
		c.Locals(LocalPermissions, claims.Permissions)

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		if websocket.IsWebSocketUpgrade(c) && c.Query("access_token") != "" {
			return c.Query("access_token"), true
		}
		return "", false
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// UserID returns the admin id stored by JWTAuth, or 0.
func UserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(LocalUserID).(int64)
	return id
}

func Permissions(c *fiber.Ctx) models.Permissions {
	p, _ := c.Locals(LocalPermissions).(models.Permissions)
	return p
}
