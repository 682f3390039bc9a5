package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/events"
	"github.com/spec-kit/smart-support/internal/store"
)

// memStore is an in-memory implementation of the store contracts used
// by the service tests.
type memStore struct {
	mu      sync.Mutex
	tickets []domain.Ticket
	turns   []domain.ConversationTurn
	recs    []domain.RecommendationEntry
	nextID  int
	failAll bool
}

func newMemStore() *memStore {
	return &memStore{nextID: 1}
}

func (m *memStore) CreateTicket(_ context.Context, in store.NewTicket) (domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return domain.Ticket{}, store.Unavailable("create ticket", fmt.Errorf("backend down"))
	}
	t := domain.Ticket{
		ID:            fmt.Sprintf("TICKET-%d", m.nextID),
		ReporterName:  in.ReporterName,
		ReporterEmail: in.ReporterEmail,
		Problem:       in.Problem,
		Category:      in.Category,
		Priority:      in.Priority,
		Status:        domain.TicketStatusOpen,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	m.nextID++
	m.tickets = append(m.tickets, t)
	return t, nil
}

func (m *memStore) GetTicket(_ context.Context, id string) (domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Ticket{}, store.ErrNotFound
}

func (m *memStore) ListTickets(_ context.Context, sort store.TicketSort) ([]domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, store.Unavailable("list tickets", fmt.Errorf("backend down"))
	}
	return append([]domain.Ticket(nil), m.tickets...), nil
}

func (m *memStore) AppendTurn(_ context.Context, ticketID string, sender domain.TurnSender, message string) (domain.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turn := domain.ConversationTurn{
		TicketID:  ticketID,
		Sender:    sender,
		Message:   message,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	m.turns = append(m.turns, turn)
	return turn, nil
}

func (m *memStore) SetLastTurnFeedback(_ context.Context, ticketID string, value domain.TurnFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.turns) - 1; i >= 0; i-- {
		if m.turns[i].TicketID == ticketID && m.turns[i].Sender == domain.SenderAgent {
			m.turns[i].Feedback = value
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) ListConversation(_ context.Context, ticketID string) ([]domain.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ConversationTurn
	for _, turn := range m.turns {
		if turn.TicketID == ticketID {
			out = append(out, turn)
		}
	}
	return out, nil
}

func (m *memStore) Append(_ context.Context, entry domain.RecommendationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, entry)
	return nil
}

func (m *memStore) List(_ context.Context) ([]domain.RecommendationEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RecommendationEntry(nil), m.recs...), nil
}

func storeNewTicket(name, email, problem string) store.NewTicket {
	return store.NewTicket{
		ReporterName:  name,
		ReporterEmail: email,
		Problem:       problem,
		Category:      domain.CategoryOther,
		Priority:      domain.TicketPriorityMedium,
	}
}

// memReporters is an in-memory ReporterStore.
type memReporters struct {
	mu        sync.Mutex
	reporters map[string]domain.Reporter
}

func newMemReporters() *memReporters {
	return &memReporters{reporters: make(map[string]domain.Reporter)}
}

func (m *memReporters) CreateReporter(_ context.Context, r domain.Reporter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(r.Email)
	if _, exists := m.reporters[key]; exists {
		return &store.DuplicateError{Reason: store.ReasonEmailExists}
	}
	m.reporters[key] = r
	return nil
}

func (m *memReporters) GetReporterByEmail(_ context.Context, email string) (domain.Reporter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reporters[strings.ToLower(email)]
	if !ok {
		return domain.Reporter{}, store.ErrNotFound
	}
	return r, nil
}

// recordingDispatcher captures published events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) byType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// staticClassifier always returns the same category.
type staticClassifier struct {
	category domain.TicketCategory
}

func (c staticClassifier) Classify(context.Context, string) (domain.TicketCategory, error) {
	return c.category, nil
}

// scriptedCompleter returns queued replies, then errors.
type scriptedCompleter struct {
	replies []string
	err     error
}

func (c *scriptedCompleter) Complete(context.Context, string, string) (string, error) {
	if len(c.replies) == 0 {
		if c.err != nil {
			return "", c.err
		}
		return "", fmt.Errorf("no scripted reply")
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}
