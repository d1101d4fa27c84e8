package handler

import (
	"github.com/gofiber/fiber/v2"

	"admissions-portal/internal/models"
)

func (h *Handler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	res, err := h.auth.Login(c.UserContext(), req)
	if err != nil {
		return h.failErr(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   res.Token,
		"user":    res.User,
		"message": "Welcome back, " + res.User.FullName,
	})
}
