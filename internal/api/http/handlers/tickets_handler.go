package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-ledger/internal/api/dto"
	"github.com/spec-kit/ticket-ledger/internal/auth"
	"github.com/spec-kit/ticket-ledger/internal/domain"
	"github.com/spec-kit/ticket-ledger/internal/service"
	apperrors "github.com/spec-kit/ticket-ledger/pkg/util"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Subject) == "" {
		return apperrors.NewValidationError("subject required", nil)
	}

	ticket, err := h.service.CreateTicket(c.Context(), actorID(c), service.TicketCreateInput{
		Subject:       req.Subject,
		Description:   req.Description,
		RequesterName: req.RequesterName,
		Status:        req.Status,
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
		GroupID:       req.GroupID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.service.ListTickets(c.Context(), parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ChangeStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Status) == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	ticket, err := h.service.ChangeStatus(c.Context(), actorID(c), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Reassign PATCH /tickets/:id/assignee.
func (h *TicketsHandler) Reassign(c *fiber.Ctx) error {
	var req dto.ReassignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Reassign(c.Context(), actorID(c), c.Params("id"), req.Assignee)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Reclassify PATCH /tickets/:id/classification.
func (h *TicketsHandler) Reclassify(c *fiber.Ctx) error {
	var req dto.ReclassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CategoryID == nil && req.SubcategoryID == nil && req.GroupID == nil {
		return apperrors.NewValidationError("at least one classification axis required", nil)
	}
	ticket, err := h.service.Reclassify(c.Context(), actorID(c), c.Params("id"), service.ReclassifyInput{
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
		GroupID:       req.GroupID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	ticket, err := h.service.SoftDelete(c.Context(), actorID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTransitions GET /tickets/:id/transitions.
func (h *TicketsHandler) ListTransitions(c *fiber.Ctx) error {
	transitions, err := h.service.ListTransitions(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TransitionResponse, 0, len(transitions))
	for i := range transitions {
		items = append(items, transitionResponse(&transitions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func actorID(c *fiber.Ctx) string {
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.Agent != nil {
		return principal.Agent.ID
	}
	return ""
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListInput {
	input := service.TicketListInput{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			input.Statuses = append(input.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if assignee := c.Query("assignee"); assignee != "" {
		input.Assignee = &assignee
	}
	if categoryID := c.Query("category_id"); categoryID != "" {
		input.CategoryID = &categoryID
	}
	if search := c.Query("search"); search != "" {
		input.SearchTerm = &search
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		input.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		input.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	input.Offset = (page - 1) * pageSize
	input.Limit = pageSize
	return input
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:              ticket.ID,
		ExternalKey:     ticket.ExternalKey,
		Subject:         ticket.Subject,
		Description:     ticket.Description,
		RequesterName:   ticket.RequesterName,
		Assignee:        ticket.Assignee,
		CategoryID:      ticket.CategoryID,
		CategoryName:    ticket.CategoryName,
		SubcategoryID:   ticket.SubcategoryID,
		SubcategoryName: ticket.SubcategoryName,
		GroupID:         ticket.GroupID,
		GroupName:       ticket.GroupName,
		Status:          ticket.Status,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
		DeletedAt:       ticket.DeletedAt,
	}
}

func transitionResponse(transition *domain.Transition) dto.TransitionResponse {
	return dto.TransitionResponse{
		ID:         transition.ID,
		Kind:       transition.Classify(),
		ChangedBy:  transition.ChangedBy,
		ChangedAt:  transition.ChangedAt,
		Status:     transition.Status,
		Assignment: transition.Assignment,
		Category:   transition.Category,
	}
}
