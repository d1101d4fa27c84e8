package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"admissions-portal/internal/auth"
	"admissions-portal/internal/helper"
	"admissions-portal/internal/models"
)

// AdminLookup loads the current profile for an email.
type AdminLookup interface {
	AdminByEmail(ctx context.Context, email string) (models.AdminProfile, error)
}

// EmailRoleAuth re-reads the profile behind the token so that a ban or a
// permission change takes effect before the token expires. It must run
// after JWTAuth.
func EmailRoleAuth(admins AdminLookup, perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email, _ := c.Locals(LocalEmail).(string)
		if email == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Missing session",
			})
		}

		profile, err := admins.AdminByEmail(c.UserContext(), email)
		if errors.Is(err, auth.ErrNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Account no longer exists",
			})
		}
		if err != nil {
			slog.Default().Error("load admin profile", slog.String("email", email), slog.String("err", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Failed to validate user",
			})
		}

		if err := helper.CheckAdmin(profile, perm); err != nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		}

		c.Locals(LocalRole, profile.Role)
		c.Locals(LocalPermissions, profile.Permissions)
		return c.Next()
	}
}
