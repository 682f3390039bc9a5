package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/smart-support/internal/api/dto"
	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/service"
	apperrors "github.com/spec-kit/smart-support/pkg/util/errorutil"
)

// TicketsHandler exposes ticket intake and the per-ticket conversation.
type TicketsHandler struct {
	tickets *service.TicketService
	chat    *service.ChatService
	auth    *service.AuthService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, chat *service.ChatService, authService *service.AuthService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, chat: chat, auth: authService}
}

// Create handles POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req dto.TicketCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.tickets.CreateTicket(c.UserContext(), service.TicketCreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Problem:  req.Problem,
		Category: domain.TicketCategory(req.Category),
		Priority: domain.TicketPriority(req.Priority),
	})
	if err != nil {
		return err
	}

	token, exp, err := h.auth.IssueTicketToken(result.Ticket.ID)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.TicketCreateResponse{
			Ticket:     dto.TicketFromDomain(result.Ticket),
			Suggestion: result.Suggestion,
			Session:    dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// List handles GET /tickets.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListTickets(c.UserContext())
	if err != nil {
		return err
	}

	out := make([]dto.TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, dto.TicketFromDomain(t))
	}
	return c.JSON(fiber.Map{"data": out})
}

// Get handles GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

// Conversation handles GET /tickets/:id/conversation.
func (h *TicketsHandler) Conversation(c *fiber.Ctx) error {
	turns, err := h.chat.ListConversation(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	out := make([]dto.TurnResponse, 0, len(turns))
	for _, turn := range turns {
		out = append(out, dto.TurnFromDomain(turn))
	}
	return c.JSON(fiber.Map{"data": out})
}

// SendMessage handles POST /tickets/:id/messages.
func (h *TicketsHandler) SendMessage(c *fiber.Ctx) error {
	var req dto.MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	turns, err := h.chat.SendMessage(c.UserContext(), c.Params("id"), req.Message)
	if err != nil {
		return err
	}

	out := make([]dto.TurnResponse, 0, len(turns))
	for _, turn := range turns {
		out = append(out, dto.TurnFromDomain(turn))
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": out})
}

// Feedback handles POST /tickets/:id/feedback.
func (h *TicketsHandler) Feedback(c *fiber.Ctx) error {
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.chat.RecordFeedback(c.UserContext(), c.Params("id"), domain.TurnFeedback(req.Feedback)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"recorded": true}})
}
