package handler

import (
	"github.com/gofiber/fiber/v2"

	"admissions-portal/internal/listing"
)

// ListRequestLogs pages through partner API calls, searchable by bank or
// queried student id and filterable to one day.
func (h *Handler) ListRequestLogs(c *fiber.Ctx) error {
	q := listQuery(c)
	res, err := h.console.Logs(c.UserContext(), q)
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    res.Data,
		"meta":    listing.NewMeta(q, res.Count),
	})
}
