package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/service"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// TicketsHandler manages end-user ticket endpoints.
type TicketsHandler struct {
	tickets   *service.TicketService
	lifecycle *service.LifecycleService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, lifecycle *service.LifecycleService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, lifecycle: lifecycle}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		return apperrors.NewValidationError("title and content required", nil)
	}

	creatorID := principal.User.ID
	ticket, err := h.tickets.CreateTicket(c.Context(), &creatorID, req.Title, req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	page := parseIntQuery(c.Query("page"), 1)
	pageSize := parseIntQuery(c.Query("page_size"), 20)
	tickets, err := h.tickets.ListUserTickets(c.Context(), principal.User.ID, pageSize, (page-1)*pageSize)
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
	principal, ticketID, err := h.principalAndID(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicketForUser(c.Context(), principal.User.ID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	principal, ticketID, err := h.principalAndID(c)
	if err != nil {
		return err
	}
	if err := h.tickets.DeleteTicket(c.Context(), principal.User.ID, ticketID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// EditDraft PATCH /tickets/:id/draft.
func (h *TicketsHandler) EditDraft(c *fiber.Ctx) error {
	principal, ticketID, err := h.principalAndID(c)
	if err != nil {
		return err
	}
	if _, err := h.tickets.GetTicketForUser(c.Context(), principal.User.ID, ticketID); err != nil {
		return err
	}
	var req dto.EditDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.EditDraft(c.Context(), ticketID, req.ResponseDraft, service.DraftActorHuman)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Resolve POST /tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	principal, ticketID, err := h.principalAndID(c)
	if err != nil {
		return err
	}
	if _, err := h.tickets.GetTicketForUser(c.Context(), principal.User.ID, ticketID); err != nil {
		return err
	}
	ticket, err := h.lifecycle.Resolve(c.Context(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Close POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	principal, ticketID, err := h.principalAndID(c)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.Close(c.Context(), ticketID, principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// RetriggerTriage POST /tickets/:id/triage.
func (h *TicketsHandler) RetriggerTriage(c *fiber.Ctx) error {
	principal, ticketID, err := h.principalAndID(c)
	if err != nil {
		return err
	}
	if err := h.tickets.RetriggerTriage(c.Context(), principal.User.ID, ticketID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusAccepted)
}

// ListProcessRecords GET /tickets/:id/attempts.
func (h *TicketsHandler) ListProcessRecords(c *fiber.Ctx) error {
	principal, ticketID, err := h.principalAndID(c)
	if err != nil {
		return err
	}
	page := parseIntQuery(c.Query("page"), 1)
	pageSize := parseIntQuery(c.Query("page_size"), 50)
	records, err := h.tickets.ListProcessRecords(c.Context(), principal.User.ID, ticketID, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.ProcessRecordResponse, 0, len(records))
	for _, record := range records {
		items = append(items, dto.ProcessRecordResponse{
			ID:             record.ID,
			WorkerID:       record.WorkerID,
			TicketID:       record.TicketID,
			Status:         record.Status,
			ReplyText:      record.ReplyText,
			RawModelOutput: record.RawModelOutput,
			ErrorMessage:   record.ErrorMessage,
			CreatedAt:      record.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *TicketsHandler) principalAndID(c *fiber.Ctx) (*auth.Principal, int64, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, 0, apperrors.NewUnauthorized("user required")
	}
	ticketID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return nil, 0, apperrors.NewValidationError("invalid ticket id", nil)
	}
	return principal, ticketID, nil
}

func parseIntQuery(val string, def int) int {
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
		ID:             ticket.ID,
		CreatorID:      ticket.CreatorID,
		Title:          ticket.Title,
		Content:        ticket.Content,
		Category:       ticket.Category,
		SentimentScore: ticket.SentimentScore,
		Urgency:        ticket.Urgency,
		ResponseDraft:  ticket.ResponseDraft,
		Response:       ticket.Response,
		ReplyMadeBy:    ticket.ReplyMadeBy,
		Status:         ticket.Status,
		Tag:            ticket.Tag,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
}
