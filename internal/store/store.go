// Package store defines the durable ticket collection contracts shared
// by the CSV, spreadsheet and Postgres backends.
//
// Every backend must treat "check uniqueness + allocate ID + append"
// as one serialized critical section per backing resource: two
// sessions deriving the next ID from the same snapshot would otherwise
// allocate the same ID, and full-table rewrites would silently drop
// concurrent appends.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/smart-support/internal/domain"
)

// Sort orders for ListTickets.
type TicketSort string

const (
	SortNone        TicketSort = ""
	SortCreatedDesc TicketSort = "created_desc"
)

// NewTicket carries intake fields; ID, Status and CreatedAt are
// assigned by the store.
type NewTicket struct {
	ReporterName  string
	ReporterEmail string
	Problem       string
	Category      domain.TicketCategory
	Priority      domain.TicketPriority
}

// TicketStore owns the durable ticket collection and ID allocation.
type TicketStore interface {
	// CreateTicket allocates the next ID and durably appends the
	// ticket as one atomic step. Under the strict reporter-uniqueness
	// policy it fails with *DuplicateError before any write.
	CreateTicket(ctx context.Context, in NewTicket) (domain.Ticket, error)
	GetTicket(ctx context.Context, id string) (domain.Ticket, error)
	ListTickets(ctx context.Context, sort TicketSort) ([]domain.Ticket, error)
}

// ConversationStore owns the per-ticket conversation log.
type ConversationStore interface {
	// AppendTurn appends a turn with empty feedback. It does not
	// verify the ticket exists; callers wanting referential integrity
	// check first.
	AppendTurn(ctx context.Context, ticketID string, sender domain.TurnSender, message string) (domain.ConversationTurn, error)
	// SetLastTurnFeedback rates the most recent Agent turn of the
	// given ticket. Feedback is scoped per ticket, not to the globally
	// last row.
	SetLastTurnFeedback(ctx context.Context, ticketID string, value domain.TurnFeedback) error
	// ListConversation returns the ticket's turns in append order.
	ListConversation(ctx context.Context, ticketID string) ([]domain.ConversationTurn, error)
}

// RecommendationLog records suggestions served to reporters.
type RecommendationLog interface {
	Append(ctx context.Context, entry domain.RecommendationEntry) error
	List(ctx context.Context) ([]domain.RecommendationEntry, error)
}

// ReporterStore persists registered reporter accounts.
type ReporterStore interface {
	CreateReporter(ctx context.Context, r domain.Reporter) error
	GetReporterByEmail(ctx context.Context, email string) (domain.Reporter, error)
}

// Duplicate reasons for the strict reporter-uniqueness policy. The
// name check runs before the email check; the first match is reported.
const (
	ReasonNameExists  = "name_exists"
	ReasonEmailExists = "email_exists"
)

// DuplicateError reports a reporter-uniqueness violation.
type DuplicateError struct {
	Reason string
}

func (e *DuplicateError) Error() string {
	return "duplicate reporter: " + e.Reason
}

// ErrNotFound indicates a referenced ticket or reporter does not exist.
var ErrNotFound = errors.New("not found")

// ErrStorageUnavailable indicates the backing file, sheet or database
// could not be read or written. It is always surfaced, never swallowed.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Unavailable wraps err as a storage failure.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// MalformedRecordError describes a stored row that failed to parse.
// Readers skip the row and record a diagnostic; it never aborts a
// listing operation.
type MalformedRecordError struct {
	Source string
	Line   int
	Cause  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record in %s line %d: %v", e.Source, e.Line, e.Cause)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Cause
}
