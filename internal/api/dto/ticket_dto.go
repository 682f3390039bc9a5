package dto

import (
	"time"

	"github.com/spec-kit/smart-support/internal/domain"
)

// TicketCreateRequest is the intake payload. Category is optional; when
// empty the classifier assigns one.
type TicketCreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Problem  string `json:"problem"`
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// TicketResponse is the wire shape of a ticket.
type TicketResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Problem   string `json:"problem"`
	Category  string `json:"category"`
	Priority  string `json:"priority"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// TicketFromDomain converts a domain ticket to its wire shape.
func TicketFromDomain(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:        t.ID,
		Name:      t.ReporterName,
		Email:     t.ReporterEmail,
		Problem:   t.Problem,
		Category:  string(t.Category),
		Priority:  string(t.Priority),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}

// TicketCreateResponse is returned from intake: the ticket, an optional
// knowledge-base suggestion and a session token scoped to the ticket.
type TicketCreateResponse struct {
	Ticket     TicketResponse `json:"ticket"`
	Suggestion string         `json:"suggestion,omitempty"`
	Session    AuthResponse   `json:"session"`
}

// MessageRequest is a reporter message on a ticket thread.
type MessageRequest struct {
	Message string `json:"message"`
}

// FeedbackRequest rates the latest agent reply on a ticket.
type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

// TurnResponse is the wire shape of one conversation turn.
type TurnResponse struct {
	TicketID  string `json:"ticket_id"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Feedback  string `json:"feedback,omitempty"`
	CreatedAt string `json:"created_at"`
}

// TurnFromDomain converts a conversation turn to its wire shape.
func TurnFromDomain(turn domain.ConversationTurn) TurnResponse {
	return TurnResponse{
		TicketID:  turn.TicketID,
		Sender:    string(turn.Sender),
		Message:   turn.Message,
		Feedback:  string(turn.Feedback),
		CreatedAt: turn.CreatedAt.Format(time.RFC3339),
	}
}

// SuggestionResponse is the wire shape of a knowledge-base lookup.
type SuggestionResponse struct {
	Matched    bool   `json:"matched"`
	Category   string `json:"category"`
	Problem    string `json:"problem,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}
