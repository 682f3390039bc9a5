package events

import (
	"time"

	"github.com/spec-kit/smart-support/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTurnAppended       EventType = "turn_appended"
	EventFeedbackRecorded   EventType = "feedback_recorded"
	EventContentGapDetected EventType = "content_gap_detected"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ReporterName  string                `json:"reporter_name"`
	ReporterEmail string                `json:"reporter_email"`
	Category      domain.TicketCategory `json:"category"`
	Priority      domain.TicketPriority `json:"priority"`
	Problem       string                `json:"problem"`
}

// TurnAppendedPayload payload.
type TurnAppendedPayload struct {
	Sender  domain.TurnSender `json:"sender"`
	Preview string            `json:"preview"`
}

// FeedbackRecordedPayload payload.
type FeedbackRecordedPayload struct {
	Feedback domain.TurnFeedback `json:"feedback"`
}

// ContentGapDetectedPayload payload.
type ContentGapDetectedPayload struct {
	Keyword   string  `json:"keyword"`
	Rate      float64 `json:"rate"`
	Threshold float64 `json:"threshold"`
	Total     int     `json:"total"`
	Matching  int     `json:"matching"`
}
