package handler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"admissions-portal/internal/auth"
	"admissions-portal/internal/console"
	"admissions-portal/internal/helper"
	"admissions-portal/internal/listing"
	"admissions-portal/internal/models"
	"admissions-portal/internal/queue"
	"admissions-portal/internal/realtime"
	"admissions-portal/internal/settings"
	"admissions-portal/internal/sms"
)

// TemplateStore backs the SMS template console.
type TemplateStore interface {
	ListTemplates(ctx context.Context) ([]models.SMSTemplate, error)
	UpdateTemplate(ctx context.Context, key string, req models.UpdateTemplateRequest) (models.SMSTemplate, error)
}

type Deps struct {
	Auth       *auth.Service
	Queues     *queue.Service
	Console    *console.Service
	Settings   *settings.Service
	Templates  TemplateStore
	Dispatcher *sms.Dispatcher
	Notifier   realtime.Notifier
	Logger     *slog.Logger
	Location   *time.Location
}

// Handler holds every dependency the HTTP surface needs. Routes are bound
// to its methods in Register.
type Handler struct {
	auth       *auth.Service
	queues     *queue.Service
	console    *console.Service
	settings   *settings.Service
	templates  TemplateStore
	dispatcher *sms.Dispatcher
	notifier   realtime.Notifier
	validate   *validator.Validate
	log        *slog.Logger
	loc        *time.Location

	// refreshDelay coalesces bursts of change events on live sessions.
	refreshDelay time.Duration
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	return &Handler{
		auth:         d.Auth,
		queues:       d.Queues,
		console:      d.Console,
		settings:     d.Settings,
		templates:    d.Templates,
		dispatcher:   d.Dispatcher,
		notifier:     d.Notifier,
		validate:     validator.New(),
		log:          d.Logger.With(slog.String("component", "http")),
		loc:          d.Location,
		refreshDelay: 50 * time.Millisecond,
	}
}

/*
|--------------------------------------------------------------------------
| Response helpers
|--------------------------------------------------------------------------
*/

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// parseBody decodes the JSON body into dst and runs its validate tags. When ok
// is false the 400 response has already been written and the caller returns err.
func (h *Handler) parseBody(c *fiber.Ctx, dst any) (ok bool, err error) {
	if err := c.BodyParser(dst); err != nil {
		return false, fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return false, fail(c, fiber.StatusBadRequest, validationMessage(verrs[0]))
		}
		return false, fail(c, fiber.StatusBadRequest, err.Error())
	}
	return true, nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	}
	return fe.Field() + " is invalid"
}

func paramID(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	return id, err == nil && id > 0
}

// listQuery reads the page/limit/search/date parameters.
func listQuery(c *fiber.Ctx) listing.Query {
	return listing.ParseQuery(c.QueryInt("page", 1), c.QueryInt("limit", listing.DefaultPageSize),
		c.Query("search"), c.Query("date"))
}

// errorStatus maps package sentinels onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, queue.ErrNotFound),
		errors.Is(err, console.ErrNotFound),
		errors.Is(err, sms.ErrTemplateNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, queue.ErrStudentNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, queue.ErrInvalidPhone),
		errors.Is(err, queue.ErrInvalidTransition),
		errors.Is(err, queue.ErrAlreadyLast),
		errors.Is(err, settings.ErrUnknownKey),
		errors.Is(err, settings.ErrKindMismatch),
		errors.Is(err, settings.ErrOutOfRange),
		errors.Is(err, listing.ErrInvalidDate):
		return fiber.StatusBadRequest
	case errors.Is(err, queue.ErrQueueClosed):
		return fiber.StatusForbidden
	case errors.Is(err, queue.ErrStaleEntry),
		errors.Is(err, queue.ErrNobodyWaiting),
		errors.Is(err, queue.ErrSlugTaken),
		errors.Is(err, console.ErrBankTaken),
		errors.Is(err, auth.ErrEmailTaken):
		return fiber.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, auth.ErrCaptchaRequired):
		return fiber.StatusBadRequest
	case errors.Is(err, auth.ErrCaptchaRejected),
		errors.Is(err, helper.ErrUserBanned):
		return fiber.StatusForbidden
	}
	return fiber.StatusInternalServerError
}

// failErr responds with the mapped status. Unexpected errors are logged and
// their message is still returned, the console shows it verbatim.
func (h *Handler) failErr(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		h.log.Error("request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("err", err.Error()))
	}
	return fail(c, status, err.Error())
}
