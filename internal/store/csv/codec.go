package csvstore

import (
	"fmt"
	"time"

	"github.com/spec-kit/smart-support/internal/domain"
)

// TimeLayout is the timestamp format persisted in every file.
const TimeLayout = "2006-01-02 15:04:05"

var (
	ticketHeader         = []string{"TicketID", "Name", "Email", "Problem", "Priority", "Timestamp", "Category", "Status"}
	conversationHeader   = []string{"TicketID", "Sender", "Message", "Feedback", "Timestamp"}
	recommendationHeader = []string{"Time", "TicketID", "Problem", "Recommended"}
	reporterHeader       = []string{"Name", "Email", "PasswordHash", "Timestamp"}
)

func encodeTicket(t domain.Ticket) []string {
	return []string{
		t.ID,
		t.ReporterName,
		t.ReporterEmail,
		t.Problem,
		string(t.Priority),
		t.CreatedAt.Format(TimeLayout),
		string(t.Category),
		string(t.Status),
	}
}

func decodeTicket(rec []string) (domain.Ticket, error) {
	if len(rec) < 6 {
		return domain.Ticket{}, fmt.Errorf("expected at least 6 fields, got %d", len(rec))
	}
	createdAt, err := time.Parse(TimeLayout, rec[5])
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("bad timestamp %q: %w", rec[5], err)
	}
	t := domain.Ticket{
		ID:            rec[0],
		ReporterName:  rec[1],
		ReporterEmail: rec[2],
		Problem:       rec[3],
		Priority:      domain.TicketPriority(rec[4]),
		CreatedAt:     createdAt,
		Category:      domain.CategoryOther,
		Status:        domain.TicketStatusOpen,
	}
	if len(rec) > 6 && rec[6] != "" {
		t.Category = domain.TicketCategory(rec[6])
	}
	if len(rec) > 7 && rec[7] != "" {
		t.Status = domain.TicketStatus(rec[7])
	}
	if t.ID == "" {
		return domain.Ticket{}, fmt.Errorf("empty ticket id")
	}
	return t, nil
}

func encodeTurn(turn domain.ConversationTurn) []string {
	return []string{
		turn.TicketID,
		string(turn.Sender),
		turn.Message,
		string(turn.Feedback),
		turn.CreatedAt.Format(TimeLayout),
	}
}

func decodeTurn(rec []string) (domain.ConversationTurn, error) {
	if len(rec) < 5 {
		return domain.ConversationTurn{}, fmt.Errorf("expected 5 fields, got %d", len(rec))
	}
	createdAt, err := time.Parse(TimeLayout, rec[4])
	if err != nil {
		return domain.ConversationTurn{}, fmt.Errorf("bad timestamp %q: %w", rec[4], err)
	}
	if rec[0] == "" {
		return domain.ConversationTurn{}, fmt.Errorf("empty ticket id")
	}
	return domain.ConversationTurn{
		TicketID:  rec[0],
		Sender:    domain.TurnSender(rec[1]),
		Message:   rec[2],
		Feedback:  domain.TurnFeedback(rec[3]),
		CreatedAt: createdAt,
	}, nil
}

func encodeRecommendation(e domain.RecommendationEntry) []string {
	return []string{
		e.Time.Format(TimeLayout),
		e.TicketID,
		e.Problem,
		e.Suggestion,
	}
}

func decodeRecommendation(rec []string) (domain.RecommendationEntry, error) {
	if len(rec) < 4 {
		return domain.RecommendationEntry{}, fmt.Errorf("expected 4 fields, got %d", len(rec))
	}
	at, err := time.Parse(TimeLayout, rec[0])
	if err != nil {
		return domain.RecommendationEntry{}, fmt.Errorf("bad timestamp %q: %w", rec[0], err)
	}
	return domain.RecommendationEntry{
		Time:       at,
		TicketID:   rec[1],
		Problem:    rec[2],
		Suggestion: rec[3],
	}, nil
}

func encodeReporter(r domain.Reporter) []string {
	return []string{
		r.Name,
		r.Email,
		r.PasswordHash,
		r.CreatedAt.Format(TimeLayout),
	}
}

func decodeReporter(rec []string) (domain.Reporter, error) {
	if len(rec) < 4 {
		return domain.Reporter{}, fmt.Errorf("expected 4 fields, got %d", len(rec))
	}
	createdAt, err := time.Parse(TimeLayout, rec[3])
	if err != nil {
		return domain.Reporter{}, fmt.Errorf("bad timestamp %q: %w", rec[3], err)
	}
	if rec[1] == "" {
		return domain.Reporter{}, fmt.Errorf("empty email")
	}
	return domain.Reporter{
		Name:         rec[0],
		Email:        rec[1],
		PasswordHash: rec[2],
		CreatedAt:    createdAt,
	}, nil
}
