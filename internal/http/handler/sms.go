package handler

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"admissions-portal/internal/models"
	"admissions-portal/internal/sms"
)

/*
|--------------------------------------------------------------------------
| SMS templates (console)
|--------------------------------------------------------------------------
*/

func (h *Handler) ListTemplates(c *fiber.Ctx) error {
	rows, err := h.templates.ListTemplates(c.UserContext())
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": rows})
}

func (h *Handler) UpdateTemplate(c *fiber.Ctx) error {
	var req models.UpdateTemplateRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	t, err := h.templates.UpdateTemplate(c.UserContext(), c.Params("key"), req)
	if err != nil {
		return h.failErr(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": t})
}

/*
|--------------------------------------------------------------------------
| Trigger function
|--------------------------------------------------------------------------
*/

// ProcessSMSTrigger is called with a trigger row and sends it. Every outcome
// other than success is a 500, matching what callers of the function expect.
func (h *Handler) ProcessSMSTrigger(c *fiber.Ctx) error {
	var req sms.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}

	res, err := h.dispatcher.Dispatch(c.UserContext(), req)
	if err != nil {
		if !errors.Is(err, sms.ErrMissingFields) && !errors.Is(err, sms.ErrTemplateNotFound) {
			h.log.Error("process sms trigger", slog.Int64("trigger_id", req.TriggerID), slog.String("err", err.Error()))
		}
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}

	status := fiber.StatusOK
	if !res.Success {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(res)
}
