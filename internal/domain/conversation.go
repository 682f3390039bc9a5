package domain

import "time"

// TurnSender indicates who authored a conversation turn.
type TurnSender string

const (
	SenderUser  TurnSender = "User"
	SenderAgent TurnSender = "Agent"
)

// TurnFeedback is the optional helpfulness rating on an Agent turn.
type TurnFeedback string

const (
	FeedbackNone TurnFeedback = ""
	FeedbackYes  TurnFeedback = "Yes"
	FeedbackNo   TurnFeedback = "No"
)

// ValidFeedback reports whether value is an acceptable rating.
func ValidFeedback(value TurnFeedback) bool {
	return value == FeedbackYes || value == FeedbackNo
}

// ConversationTurn is one message on a ticket's thread. TicketID is a
// weak reference; the conversation log never owns ticket lifecycle.
// Feedback is the only field mutable after creation.
type ConversationTurn struct {
	TicketID  string
	Sender    TurnSender
	Message   string
	Feedback  TurnFeedback
	CreatedAt time.Time
}
