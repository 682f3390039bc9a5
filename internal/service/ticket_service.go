package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/smart-support/internal/classify"
	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/events"
	"github.com/spec-kit/smart-support/internal/store"
	"github.com/spec-kit/smart-support/internal/suggest"
	apperrors "github.com/spec-kit/smart-support/pkg/util/errorutil"
)

// TicketService coordinates ticket intake: validation, classification,
// durable creation, suggestion lookup and event publication.
type TicketService struct {
	tickets         store.TicketStore
	recommendations store.RecommendationLog
	classifier      classify.Classifier
	suggestions     *suggest.Index
	dispatcher      events.Dispatcher
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Tickets         store.TicketStore
	Recommendations store.RecommendationLog
	Classifier      classify.Classifier
	Suggestions     *suggest.Index
	Dispatcher      events.Dispatcher
}

// TicketCreateInput describes the ticket intake payload. Category is
// optional: when empty the classifier derives it from the problem text.
type TicketCreateInput struct {
	Name     string
	Email    string
	Problem  string
	Category domain.TicketCategory
	Priority domain.TicketPriority
}

// TicketCreateResult is what intake hands back to the caller.
type TicketCreateResult struct {
	Ticket     domain.Ticket
	Suggestion string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:         deps.Tickets,
		recommendations: deps.Recommendations,
		classifier:      deps.Classifier,
		suggestions:     deps.Suggestions,
		dispatcher:      deps.Dispatcher,
	}
}

// CreateTicket validates the intake payload, classifies it when no
// category was supplied, and creates the ticket. When the knowledge
// base has a close match, the suggestion is returned and recorded.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (TicketCreateResult, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	problem := strings.TrimSpace(input.Problem)

	if name == "" {
		return TicketCreateResult{}, apperrors.NewValidationError("name is required", nil)
	}
	if email == "" {
		return TicketCreateResult{}, apperrors.NewValidationError("email is required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return TicketCreateResult{}, apperrors.NewValidationError("email is not a valid address", nil)
	}
	if problem == "" {
		return TicketCreateResult{}, apperrors.NewValidationError("problem description is required", nil)
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return TicketCreateResult{}, apperrors.NewValidationError("priority must be Low, Medium or High", nil)
	}

	category := input.Category
	if category == "" {
		derived, err := s.classifier.Classify(ctx, problem)
		if err != nil {
			return TicketCreateResult{}, err
		}
		category = derived
	}
	if !domain.ValidCategory(category) {
		return TicketCreateResult{}, apperrors.NewValidationError("unknown category", nil)
	}

	ticket, err := s.tickets.CreateTicket(ctx, store.NewTicket{
		ReporterName:  name,
		ReporterEmail: email,
		Problem:       problem,
		Category:      category,
		Priority:      priority,
	})
	if err != nil {
		return TicketCreateResult{}, mapStoreError(err)
	}

	result := TicketCreateResult{Ticket: ticket}
	if s.suggestions != nil {
		if entry, ok := s.suggestions.Nearest(problem); ok {
			result.Suggestion = entry.Suggestion
			if s.recommendations != nil {
				_ = s.recommendations.Append(ctx, domain.RecommendationEntry{
					Time:       time.Now().UTC().Truncate(time.Second),
					TicketID:   ticket.ID,
					Problem:    problem,
					Suggestion: entry.Suggestion,
				})
			}
		}
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			ReporterName:  ticket.ReporterName,
			ReporterEmail: ticket.ReporterEmail,
			Category:      ticket.Category,
			Priority:      ticket.Priority,
			Problem:       ticket.Problem,
		},
	})
	return result, nil
}

// GetTicket fetches a ticket by ID.
func (s *TicketService) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	ticket, err := s.tickets.GetTicket(ctx, id)
	if err != nil {
		return domain.Ticket{}, mapStoreError(err)
	}
	return ticket, nil
}

// ListTickets returns all tickets, most recent first.
func (s *TicketService) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListTickets(ctx, store.SortCreatedDesc)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return tickets, nil
}

// ListRecommendations returns the served-suggestion log.
func (s *TicketService) ListRecommendations(ctx context.Context) ([]domain.RecommendationEntry, error) {
	entries, err := s.recommendations.List(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return entries, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	_ = s.dispatcher.Publish(ctx, event)
}

// mapStoreError converts store sentinel errors to transport-facing
// domain errors.
func mapStoreError(err error) error {
	var dup *store.DuplicateError
	switch {
	case errors.As(err, &dup):
		return apperrors.NewConflict("reporter already registered", map[string]any{"reason": dup.Reason})
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NewNotFound("record", nil)
	case errors.Is(err, store.ErrStorageUnavailable):
		return apperrors.NewStorageUnavailable(err)
	default:
		return apperrors.MapError(err)
	}
}
