package handler

import (
	"github.com/gofiber/fiber/v2"

	"admissions-portal/internal/models"
	"admissions-portal/internal/wallet"
)

// publicSlug accepts /api/public/queues/:slug and the ?q= alias used by
// printed join links.
func publicSlug(c *fiber.Ctx) string {
	if s := c.Params("slug"); s != "" {
		return s
	}
	return c.Query("q")
}

// JoinForm tells the public page whether to show the join form.
func (h *Handler) JoinForm(c *fiber.Ctx) error {
	slug := publicSlug(c)
	if slug == "" {
		return fail(c, fiber.StatusBadRequest, "Queue link is missing")
	}
	form, err := h.queues.JoinForm(c.UserContext(), slug)
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": form})
}

// TakeQueue joins the queue and remembers the token in the wallet cookie.
func (h *Handler) TakeQueue(c *fiber.Ctx) error {
	slug := publicSlug(c)
	if slug == "" {
		return fail(c, fiber.StatusBadRequest, "Queue link is missing")
	}
	var req models.JoinQueueRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	res, err := h.queues.Join(c.UserContext(), slug, req)
	if err != nil {
		return h.failErr(c, err)
	}
	wallet.Remember(c, res.Token)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    res,
	})
}
