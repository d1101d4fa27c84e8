package handler

import "github.com/gofiber/fiber/v2"

func (h *Handler) Dashboard(c *fiber.Ctx) error {
	d, err := h.console.Dashboard(c.UserContext(), h.loc)
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": d})
}
