package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/queue"
)

// OpsHandler exposes operator views of the triage queue.
type OpsHandler struct {
	jobs queue.Queue
}

// NewOpsHandler constructs handler.
func NewOpsHandler(jobs queue.Queue) *OpsHandler {
	return &OpsHandler{jobs: jobs}
}

// ListDeadJobs GET /ops/dead-jobs. Jobs land here after exhausting their
// retry attempts; they are never silently dropped.
func (h *OpsHandler) ListDeadJobs(c *fiber.Ctx) error {
	limit := parseIntQuery(c.Query("limit"), 50)
	dead, err := h.jobs.DeadJobs(c.Context(), limit)
	if err != nil {
		return err
	}
	items := make([]dto.DeadJobResponse, 0, len(dead))
	for _, entry := range dead {
		items = append(items, dto.DeadJobResponse{
			TicketID: entry.Job.TicketID,
			Attempts: entry.Job.Attempt,
			Reason:   entry.Reason,
			DiedAt:   entry.DiedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
