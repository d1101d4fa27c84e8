package handler

import (
	"github.com/gofiber/fiber/v2"

	"admissions-portal/internal/models"
	"admissions-portal/internal/queue"
)

/*
|--------------------------------------------------------------------------
| Monitor actions
|--------------------------------------------------------------------------
*/

// monitorQueueID accepts /api/queues/:id/... and the legacy ?id= alias.
func monitorQueueID(c *fiber.Ctx) (int64, bool) {
	if id, ok := paramID(c, "id"); ok {
		return id, true
	}
	id := int64(c.QueryInt("id", 0))
	return id, id > 0
}

func (h *Handler) Monitor(c *fiber.Ctx) error {
	id, ok := monitorQueueID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid queue id")
	}
	m, err := h.queues.Monitor(c.UserContext(), id)
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": m})
}

// CallNext serves the longest-waiting entry; ?order=position follows the
// manual order shown on the monitor instead.
func (h *Handler) CallNext(c *fiber.Ctx) error {
	id, ok := monitorQueueID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid queue id")
	}
	order := queue.OrderFIFO
	if c.Query("order") == "position" {
		order = queue.OrderPosition
	}

	e, err := h.queues.CallNext(c.UserContext(), id, order)
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    e,
		"message": "Now serving " + e.StudentIdentifier,
	})
}

func (h *Handler) ForceCall(c *fiber.Ctx) error {
	id, ok := paramID(c, "entryId")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid entry id")
	}
	e, err := h.queues.ForceCall(c.UserContext(), id)
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": e})
}

func (h *Handler) SetEntryStatus(c *fiber.Ctx) error {
	id, ok := paramID(c, "entryId")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid entry id")
	}
	var req models.UpdateEntryStatusRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	e, err := h.queues.SetEntryStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": e})
}

func (h *Handler) MoveDown(c *fiber.Ctx) error {
	id, ok := paramID(c, "entryId")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid entry id")
	}
	if err := h.queues.MoveDown(c.UserContext(), id); err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Entry moved down"})
}

func (h *Handler) SetAdminMessage(c *fiber.Ctx) error {
	id, ok := paramID(c, "entryId")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid entry id")
	}
	var req models.AdminMessageRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	if err := h.queues.SetAdminMessage(c.UserContext(), id, req.Message); err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Message saved"})
}

func (h *Handler) WalkIn(c *fiber.Ctx) error {
	id, ok := monitorQueueID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid queue id")
	}
	var req models.WalkInRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	e, err := h.queues.WalkIn(c.UserContext(), id, req)
	if err != nil {
		return h.failErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": e})
}
