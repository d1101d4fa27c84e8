package handler

import "github.com/gofiber/fiber/v2"

// Logout is a no-op server side; tokens are stateless and the client drops it.
func (h *Handler) Logout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "message": "Logged out"})
}
