package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"admissions-portal/internal/config"
	"admissions-portal/internal/http/middleware"
	"admissions-portal/internal/models"
)

type RouteConfig struct {
	JWT          *config.JWT
	Admins       middleware.AdminLookup
	FunctionUser string
	FunctionPass string
}

// Register binds every route of the portal onto app.
func (h *Handler) Register(app *fiber.App, rc RouteConfig) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Admissions portal API is running"})
	})

	// Public
	public := app.Group("/api/public")
	public.Get("/queues", h.JoinForm)
	public.Get("/queues/:slug", h.JoinForm)
	public.Post("/queues/:slug/join", h.TakeQueue)
	public.Get("/status", h.QueueStatus)
	public.Get("/status/:token", h.QueueStatus)
	public.Get("/my-entries", h.MyEntries)
	app.Get("/ws/status/:token", UpgradeOnly, websocket.New(h.StatusWS))

	// Trigger function, called by the database webhook
	fn := app.Group("/functions/v1", cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "authorization, x-client-info, apikey, content-type",
		AllowMethods: "POST, OPTIONS",
	}), middleware.FunctionAuth(rc.FunctionUser, rc.FunctionPass))
	fn.Post("/process-sms-trigger", h.ProcessSMSTrigger)

	app.Post("/api/login", h.Login)

	// Base API (login required)
	api := app.Group("/api", middleware.JWTAuth(rc.JWT))
	api.Post("/logout", h.Logout)

	// ===== QUEUE ROUTES =====
	queues := api.Group("/queues", middleware.EmailRoleAuth(rc.Admins, models.PermissionQueue))
	queues.Get("", h.ListQueues)
	queues.Post("", h.CreateQueue)
	queues.Get("/monitor", h.Monitor)
	queues.Get("/:id", h.GetQueue)
	queues.Put("/:id/status", h.UpdateQueueStatus)
	queues.Post("/:id/archive", h.ArchiveQueue)
	queues.Delete("/:id", h.DeleteQueue)
	queues.Get("/:id/monitor", h.Monitor)
	queues.Post("/:id/call-next", h.CallNext)
	queues.Post("/:id/walk-in", h.WalkIn)
	queues.Get("/:id/export", h.ExportQueue)
	queues.Post("/entries/:entryId/force-call", h.ForceCall)
	queues.Put("/entries/:entryId/status", h.SetEntryStatus)
	queues.Post("/entries/:entryId/move-down", h.MoveDown)
	queues.Put("/entries/:entryId/message", h.SetAdminMessage)

	ws := app.Group("/ws", middleware.JWTAuth(rc.JWT))
	ws.Get("/queues/:id", middleware.EmailRoleAuth(rc.Admins, models.PermissionQueue), UpgradeOnly, websocket.New(h.MonitorWS))
	ws.Get("/lists/:name", middleware.EmailRoleAuth(rc.Admins, ""), h.ListUpgrade, websocket.New(h.ListWS))

	// ===== SUPER ADMIN ROUTES =====
	root := api.Group("/console", middleware.EmailRoleAuth(rc.Admins, models.PermissionRoot))
	root.Post("/admins", h.CreateAdmin)

	root.Get("/banks", h.ListBanks)
	root.Post("/banks", h.OnboardBank)
	root.Post("/banks/:id/revoke", h.RevokeBank)

	root.Get("/logs", h.ListRequestLogs)
	root.Get("/dashboard", h.Dashboard)

	root.Get("/settings", h.GetSettings)
	root.Put("/settings", h.UpdateSettings)

	root.Get("/templates", h.ListTemplates)
	root.Put("/templates/:key", h.UpdateTemplate)
}
