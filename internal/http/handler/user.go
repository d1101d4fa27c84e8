package handler

import (
	"github.com/gofiber/fiber/v2"

	"admissions-portal/internal/auth"
	"admissions-portal/internal/models"
)

type createAdminRequest struct {
	Email       string             `json:"email" validate:"required,email"`
	Password    string             `json:"password" validate:"required,min=8"`
	FullName    string             `json:"full_name" validate:"required,max=255"`
	Role        string             `json:"role" validate:"required,oneof=SUPER_ADMIN ADMIN"`
	Permissions models.Permissions `json:"permissions"`
}

// CreateAdmin lets a super admin add another console user.
func (h *Handler) CreateAdmin(c *fiber.Ctx) error {
	var req createAdminRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}

	admin, err := h.auth.CreateAdmin(c.UserContext(), auth.NewAdmin{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		Role:        req.Role,
		Permissions: req.Permissions,
	})
	if err != nil {
		return h.failErr(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    models.ToAdminResponse(admin),
	})
}
