package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-ledger/internal/api/dto"
	"github.com/spec-kit/ticket-ledger/internal/service"
)

// TimelineHandler serves the reconstructed history panel data.
type TimelineHandler struct {
	service *service.TimelineService
}

// NewTimelineHandler constructs handler.
func NewTimelineHandler(timelineService *service.TimelineService) *TimelineHandler {
	return &TimelineHandler{service: timelineService}
}

// GetTimeline GET /tickets/:id/timeline.
func (h *TimelineHandler) GetTimeline(c *fiber.Ctx) error {
	entries, err := h.service.GetTimeline(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TimelineEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.TimelineEntryResponse{
			ID:               entry.Transition.ID,
			Kind:             entry.Kind,
			ChangedBy:        entry.Transition.ChangedBy,
			ChangedAt:        entry.Transition.ChangedAt,
			Style:            entry.Style,
			Lines:            entry.Lines,
			TimeInStatusText: entry.TimeInStatusText,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
