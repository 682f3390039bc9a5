package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/events"
	"github.com/spec-kit/smart-support/internal/observability"
	"github.com/spec-kit/smart-support/internal/store"
	apperrors "github.com/spec-kit/smart-support/pkg/util/errorutil"
)

const chatSystemPrompt = `You are a support agent for a consumer app. The reporter describes a problem; reply with short numbered troubleshooting steps (at most 5). Do not ask for personal data. End with exactly: Was this helpful? (Yes/No)`

const feedbackPrompt = "Was this helpful? (Yes/No)"

// fallbackSteps is the canned reply used when the model backend is
// unreachable.
var fallbackSteps = []string{
	"1. Restart the app and try the action again.",
	"2. Check that you are on the latest app version.",
	"3. If the problem continues, reply here and a human agent will follow up.",
}

// ChatCompleter is the slice of the chat client the responder needs.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ChatService runs the per-ticket conversation: user turns in, agent
// replies out, and a feedback verdict on the latest agent reply.
type ChatService struct {
	tickets       store.TicketStore
	conversations store.ConversationStore
	completer     ChatCompleter
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	metrics       *observability.Metrics
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	Tickets       store.TicketStore
	Conversations store.ConversationStore
	Completer     ChatCompleter
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	return &ChatService{
		tickets:       deps.Tickets,
		conversations: deps.Conversations,
		completer:     deps.Completer,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
	}
}

// SendMessage appends the reporter's turn, generates the agent reply and
// appends it. Both turns are returned in order.
func (s *ChatService) SendMessage(ctx context.Context, ticketID, message string) ([]domain.ConversationTurn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("message is required", nil)
	}

	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	userTurn, err := s.conversations.AppendTurn(ctx, ticket.ID, domain.SenderUser, message)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.publishTurn(ctx, ticket.ID, userTurn)

	reply := s.agentReply(ctx, ticket, message)
	agentTurn, err := s.conversations.AppendTurn(ctx, ticket.ID, domain.SenderAgent, reply)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.publishTurn(ctx, ticket.ID, agentTurn)

	return []domain.ConversationTurn{userTurn, agentTurn}, nil
}

// ListConversation returns the ticket's turns in append order.
func (s *ChatService) ListConversation(ctx context.Context, ticketID string) ([]domain.ConversationTurn, error) {
	if _, err := s.tickets.GetTicket(ctx, ticketID); err != nil {
		return nil, mapStoreError(err)
	}
	turns, err := s.conversations.ListConversation(ctx, ticketID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return turns, nil
}

// RecordFeedback rates the most recent agent turn of the ticket.
func (s *ChatService) RecordFeedback(ctx context.Context, ticketID string, value domain.TurnFeedback) error {
	if !domain.ValidFeedback(value) {
		return apperrors.NewValidationError("feedback must be Yes or No", nil)
	}
	if _, err := s.tickets.GetTicket(ctx, ticketID); err != nil {
		return mapStoreError(err)
	}
	if err := s.conversations.SetLastTurnFeedback(ctx, ticketID, value); err != nil {
		return mapStoreError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventFeedbackRecorded,
		TicketID: ticketID,
		Payload:  events.FeedbackRecordedPayload{Feedback: value},
	})
	return nil
}

// agentReply asks the model for troubleshooting steps, degrading to the
// canned steps when the backend is unreachable. The reply always ends
// with the feedback prompt.
func (s *ChatService) agentReply(ctx context.Context, ticket domain.Ticket, message string) string {
	if s.completer != nil {
		prompt := fmt.Sprintf("Category: %s\nOriginal problem: %s\nLatest message: %s", ticket.Category, ticket.Problem, message)
		reply, err := s.completer.Complete(ctx, chatSystemPrompt, prompt)
		if err == nil && strings.TrimSpace(reply) != "" {
			if !strings.HasSuffix(strings.TrimSpace(reply), feedbackPrompt) {
				reply = strings.TrimSpace(reply) + "\n\n" + feedbackPrompt
			}
			return reply
		}
		if err != nil {
			s.logger.Warn("chat model unavailable, using canned reply",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			s.metrics.RecordFallback("chat")
		}
	}
	return strings.Join(fallbackSteps, "\n") + "\n\n" + feedbackPrompt
}

func (s *ChatService) publishTurn(ctx context.Context, ticketID string, turn domain.ConversationTurn) {
	preview := turn.Message
	if len(preview) > 120 {
		preview = preview[:120]
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTurnAppended,
		TicketID: ticketID,
		Payload:  events.TurnAppendedPayload{Sender: turn.Sender, Preview: preview},
	})
}

func (s *ChatService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	_ = s.dispatcher.Publish(ctx, event)
}
