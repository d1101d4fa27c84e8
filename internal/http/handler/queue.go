package handler

import (
	"github.com/gofiber/fiber/v2"

	"admissions-portal/internal/helper"
	"admissions-portal/internal/http/middleware"
	"admissions-portal/internal/listing"
	"admissions-portal/internal/models"
	"admissions-portal/internal/queue"
)

/*
|--------------------------------------------------------------------------
| Queue events (admin)
|--------------------------------------------------------------------------
*/

// ListQueues serves /api/queues?page&limit&search&date&view=active|archived.
func (h *Handler) ListQueues(c *fiber.Ctx) error {
	q := listQuery(c)
	rows, total, err := h.queues.ListQueues(c.UserContext(), queue.ListFilter{
		Query: q,
		View:  queue.View(c.Query("view", string(queue.ViewActive))),
	})
	if err != nil {
		return h.failErr(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    rows,
		"meta":    listing.NewMeta(q, total),
	})
}

// createQueueBody takes expires_at as typed into a datetime-local input.
type createQueueBody struct {
	models.CreateQueueRequest
	ExpiresAt string `json:"expires_at"`
}

func (h *Handler) CreateQueue(c *fiber.Ctx) error {
	var body createQueueBody
	if ok, err := h.parseBody(c, &body); !ok {
		return err
	}
	expires, err := helper.ParseLocalDateTime(body.ExpiresAt, h.loc)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	req := body.CreateQueueRequest
	req.ExpiresAt = expires

	q, err := h.queues.CreateQueue(c.UserContext(), req, middleware.UserID(c))
	if err != nil {
		return h.failErr(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    q,
	})
}

func (h *Handler) GetQueue(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid queue id")
	}
	q, err := h.queues.GetQueue(c.UserContext(), id)
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": q})
}

func (h *Handler) UpdateQueueStatus(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid queue id")
	}
	var req models.UpdateQueueStatusRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	if err := h.queues.SetQueueStatus(c.UserContext(), id, req.Status); err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Queue is now " + string(req.Status),
	})
}

func (h *Handler) ArchiveQueue(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid queue id")
	}
	if err := h.queues.ArchiveQueue(c.UserContext(), id); err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Queue archived"})
}

// DeleteQueue removes the queue and every entry in it.
func (h *Handler) DeleteQueue(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid queue id")
	}
	if err := h.queues.DeleteQueue(c.UserContext(), id); err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Queue deleted"})
}
