package queue

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"admissions-portal/internal/models"
)

var exportHeader = []string{
	"position", "name", "phone", "status", "verified", "admin_message", "joined_at", "updated_at",
}

// WriteCSV writes entries in the order given.
func WriteCSV(w io.Writer, entries []models.QueueEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, e := range entries {
		rec := []string{
			strconv.Itoa(e.Position),
			e.StudentIdentifier,
			e.StudentPhone,
			string(e.Status),
			strconv.FormatBool(e.IsVerified),
			e.AdminMessage,
			e.CreatedAt.Format(time.RFC3339),
			e.UpdatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
