package handler

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
)

/*
|--------------------------------------------------------------------------
| System settings
|--------------------------------------------------------------------------
*/

func (h *Handler) GetSettings(c *fiber.Ctx) error {
	entries, err := h.settings.All(c.UserContext())
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": entries})
}

// UpdateSettings takes {"key": value, ...}. Every value is checked against
// the schema before anything is written.
func (h *Handler) UpdateSettings(c *fiber.Ctx) error {
	var input map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &input); err != nil || len(input) == 0 {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.settings.Update(c.UserContext(), input); err != nil {
		return h.failErr(c, err)
	}

	entries, err := h.settings.All(c.UserContext())
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    entries,
		"message": "Settings saved",
	})
}
