package handler

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"admissions-portal/internal/queue"
)

// ExportQueue downloads every entry of a queue as CSV.
func (h *Handler) ExportQueue(c *fiber.Ctx) error {
	id, ok := monitorQueueID(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid queue id")
	}
	q, entries, err := h.queues.Entries(c.UserContext(), id)
	if err != nil {
		return h.failErr(c, err)
	}

	var buf bytes.Buffer
	if err := queue.WriteCSV(&buf, entries); err != nil {
		return h.failErr(c, err)
	}

	fileName := fmt.Sprintf("%s-%s.csv", q.Slug, time.Now().In(h.loc).Format("20060102-150405"))
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, fileName))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}
