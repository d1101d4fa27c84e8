package handler

import (
	"github.com/gofiber/fiber/v2"

	"admissions-portal/internal/wallet"
)

func statusToken(c *fiber.Ctx) string {
	if t := c.Params("token"); t != "" {
		return t
	}
	return c.Query("token")
}

// QueueStatus is the participant's view: people ahead, up next, admin note.
func (h *Handler) QueueStatus(c *fiber.Ctx) error {
	token := statusToken(c)
	if token == "" {
		return fail(c, fiber.StatusBadRequest, "Token is missing")
	}
	v, err := h.queues.Status(c.UserContext(), token)
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": v})
}

// MyEntries lists every entry whose token this browser has saved.
func (h *Handler) MyEntries(c *fiber.Ctx) error {
	entries, err := h.queues.MyEntries(c.UserContext(), wallet.Tokens(c))
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": entries})
}
