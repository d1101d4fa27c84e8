package handler

import (
	"github.com/gofiber/fiber/v2"

	"admissions-portal/internal/listing"
	"admissions-portal/internal/models"
)

/*
|--------------------------------------------------------------------------
| Partner bank API keys
|--------------------------------------------------------------------------
*/

func (h *Handler) ListBanks(c *fiber.Ctx) error {
	q := listQuery(c)
	res, err := h.console.Banks(c.UserContext(), q)
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    res.Data,
		"meta":    listing.NewMeta(q, res.Count),
	})
}

// OnboardBank returns the raw key once. Only its hash is kept.
func (h *Handler) OnboardBank(c *fiber.Ctx) error {
	var req models.CreateBankRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	res, err := h.console.Onboard(c.UserContext(), req)
	if err != nil {
		return h.failErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    res,
		"message": "Copy the API key now, it will not be shown again",
	})
}

func (h *Handler) RevokeBank(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid bank id")
	}
	if err := h.console.Revoke(c.UserContext(), id); err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "API key revoked"})
}
