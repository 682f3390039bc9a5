package csvstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/store"
	"github.com/spec-kit/smart-support/internal/ticketid"
)

func newTestStore(t *testing.T, strict bool) *Store {
	t.Helper()
	s, err := New(Options{Dir: t.TempDir(), StrictReporterUniqueness: strict})
	require.NoError(t, err)
	return s
}

func sampleTicket() store.NewTicket {
	return store.NewTicket{
		ReporterName:  "Alice",
		ReporterEmail: "a@x.com",
		Problem:       "Payment failed",
		Category:      domain.CategoryPayment,
		Priority:      domain.TicketPriorityHigh,
	}
}

func TestCreateTicketOnEmptyStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	created, err := s.CreateTicket(ctx, sampleTicket())
	require.NoError(t, err)
	assert.Equal(t, "TICKET-1", created.ID)
	assert.Equal(t, domain.TicketStatusOpen, created.Status)
	assert.False(t, created.CreatedAt.IsZero())

	tickets, err := s.ListTickets(ctx, store.SortNone)
	require.NoError(t, err)
	require.Len(t, tickets, 1)

	turns, err := s.ListConversation(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)

	_, err = s.AppendTurn(ctx, created.ID, domain.SenderUser, "Payment failed")
	require.NoError(t, err)

	turns, err = s.ListConversation(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, domain.SenderUser, turns[0].Sender)
}

func TestTicketIDsIncrement(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)
	for i := 1; i <= 3; i++ {
		in := sampleTicket()
		in.ReporterEmail = fmt.Sprintf("u%d@x.com", i)
		created, err := s.CreateTicket(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("TICKET-%d", i), created.ID)
	}
}

func TestStrictReporterUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	_, err := s.CreateTicket(ctx, store.NewTicket{ReporterName: "A", ReporterEmail: "x@x.com", Problem: "p"})
	require.NoError(t, err)

	_, err = s.CreateTicket(ctx, store.NewTicket{ReporterName: "A", ReporterEmail: "y@x.com", Problem: "p"})
	var dup *store.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, store.ReasonNameExists, dup.Reason)

	_, err = s.CreateTicket(ctx, store.NewTicket{ReporterName: "B", ReporterEmail: "x@x.com", Problem: "p"})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, store.ReasonEmailExists, dup.Reason)

	// A rejected create must not leave a partial append behind.
	tickets, err := s.ListTickets(ctx, store.SortNone)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
}

func TestDuplicateReportersAllowedWhenNotStrict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)
	for i := 0; i < 2; i++ {
		_, err := s.CreateTicket(ctx, sampleTicket())
		require.NoError(t, err)
	}
	tickets, err := s.ListTickets(ctx, store.SortNone)
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
}

func TestConcurrentCreatesProduceDistinctIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	const n = 25
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := sampleTicket()
			in.ReporterEmail = fmt.Sprintf("u%d@x.com", i)
			created, err := s.CreateTicket(ctx, in)
			assert.NoError(t, err)
			ids <- created.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	tickets, err := s.ListTickets(ctx, store.SortNone)
	require.NoError(t, err)
	assert.Len(t, tickets, n, "a concurrent append was lost")
}

func TestConcurrentCreatesAcrossStoreHandles(t *testing.T) {
	// Two Store instances on the same directory model two independent
	// processes; only the file lock serializes them.
	ctx := context.Background()
	dir := t.TempDir()
	s1, err := New(Options{Dir: dir})
	require.NoError(t, err)
	s2, err := New(Options{Dir: dir})
	require.NoError(t, err)

	const perHandle = 10
	ids := make(chan string, 2*perHandle)
	var wg sync.WaitGroup
	for _, s := range []*Store{s1, s2} {
		wg.Add(1)
		go func(s *Store) {
			defer wg.Done()
			for i := 0; i < perHandle; i++ {
				created, err := s.CreateTicket(ctx, sampleTicket())
				assert.NoError(t, err)
				ids <- created.ID
			}
		}(s)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 2*perHandle)
}

func TestTicketRoundTripPreservesFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	in := store.NewTicket{
		ReporterName:  `Quoted "Name", Esq.`,
		ReporterEmail: "q@x.com",
		Problem:       "line one\nline two, with comma",
		Category:      domain.CategoryAppBug,
		Priority:      domain.TicketPriorityMedium,
	}
	created, err := s.CreateTicket(ctx, in)
	require.NoError(t, err)

	got, err := s.GetTicket(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, in.ReporterName, got.ReporterName)
	assert.Equal(t, in.ReporterEmail, got.ReporterEmail)
	assert.Equal(t, in.Problem, got.Problem)
	assert.Equal(t, in.Category, got.Category)
	assert.Equal(t, in.Priority, got.Priority)
	assert.Equal(t, domain.TicketStatusOpen, got.Status)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt), "timestamp drifted through the store")
}

func TestConversationAppendOrderPreserved(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	const n = 10
	for i := 0; i < n; i++ {
		sender := domain.SenderUser
		if i%2 == 1 {
			sender = domain.SenderAgent
		}
		_, err := s.AppendTurn(ctx, "TICKET-1", sender, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}
	// Turns for another ticket must not leak in.
	_, err := s.AppendTurn(ctx, "TICKET-2", domain.SenderUser, "other thread")
	require.NoError(t, err)

	turns, err := s.ListConversation(ctx, "TICKET-1")
	require.NoError(t, err)
	require.Len(t, turns, n)
	for i, turn := range turns {
		assert.Equal(t, fmt.Sprintf("message %d", i), turn.Message)
	}
}

func TestFeedbackScopedToTicketLastAgentTurn(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	_, err := s.AppendTurn(ctx, "TICKET-1", domain.SenderUser, "help")
	require.NoError(t, err)
	_, err = s.AppendTurn(ctx, "TICKET-1", domain.SenderAgent, "try restarting")
	require.NoError(t, err)
	// Another ticket logs after; the globally last row belongs to it.
	_, err = s.AppendTurn(ctx, "TICKET-2", domain.SenderAgent, "clear the cache")
	require.NoError(t, err)

	require.NoError(t, s.SetLastTurnFeedback(ctx, "TICKET-1", domain.FeedbackYes))

	turns, err := s.ListConversation(ctx, "TICKET-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, domain.FeedbackYes, turns[1].Feedback)

	other, err := s.ListConversation(ctx, "TICKET-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, domain.FeedbackNone, other[0].Feedback, "feedback bled into another ticket")
}

func TestFeedbackWithoutAgentTurn(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)
	_, err := s.AppendTurn(ctx, "TICKET-1", domain.SenderUser, "hello")
	require.NoError(t, err)

	err = s.SetLastTurnFeedback(ctx, "TICKET-1", domain.FeedbackNo)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMalformedRowsSkippedNotFatal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	_, err := s.CreateTicket(ctx, sampleTicket())
	require.NoError(t, err)

	path := filepath.Join(s.dir, ticketsFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("garbage,row\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tickets, err := s.ListTickets(ctx, store.SortNone)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
	assert.Positive(t, s.MalformedRecords())
}

func TestAllocationRestartsAfterUnparseableTail(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	path := filepath.Join(s.dir, ticketsFile)
	content := "TicketID,Name,Email,Problem,Priority,Timestamp,Category,Status\n" +
		"not-an-id,N,e@x.com,p,Low,2024-01-01 10:00:00,Other,Open\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	created, err := s.CreateTicket(ctx, sampleTicket())
	require.NoError(t, err)
	assert.Equal(t, "TICKET-1", created.ID)
}

func TestPrefixRotationAtCeiling(t *testing.T) {
	ctx := context.Background()
	s, err := New(Options{Dir: t.TempDir(), Scheme: ticketid.RotatingScheme})
	require.NoError(t, err)

	path := filepath.Join(s.dir, ticketsFile)
	content := "TicketID,Name,Email,Problem,Priority,Timestamp,Category,Status\n" +
		"TICKET99,N,e@x.com,p,Low,2024-01-01 10:00:00,Other,Open\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	created, err := s.CreateTicket(ctx, sampleTicket())
	require.NoError(t, err)
	prefix, n, ok := ticketid.RotatingScheme.Parse(created.ID)
	require.True(t, ok)
	assert.Equal(t, 1, n)
	assert.NotEqual(t, "TICKET", prefix)
}

func TestListTicketsSortedByCreatedAtDesc(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	path := filepath.Join(s.dir, ticketsFile)
	content := "TicketID,Name,Email,Problem,Priority,Timestamp,Category,Status\n" +
		"TICKET-1,A,a@x.com,p,Low,2024-01-01 10:00:00,Other,Open\n" +
		"TICKET-2,B,b@x.com,p,Low,2024-01-03 10:00:00,Other,Open\n" +
		"TICKET-3,C,c@x.com,p,Low,2024-01-02 10:00:00,Other,Open\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tickets, err := s.ListTickets(ctx, store.SortCreatedDesc)
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	assert.Equal(t, "TICKET-2", tickets[0].ID)
	assert.Equal(t, "TICKET-3", tickets[1].ID)
	assert.Equal(t, "TICKET-1", tickets[2].ID)
}

func TestGetTicketNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)
	_, err := s.GetTicket(ctx, "TICKET-404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReporterStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	r := domain.Reporter{Name: "Alice", Email: "a@x.com", PasswordHash: "$2a$12$hash"}
	require.NoError(t, s.CreateReporter(ctx, r))

	got, err := s.GetReporterByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "$2a$12$hash", got.PasswordHash)

	err = s.CreateReporter(ctx, domain.Reporter{Name: "Other", Email: "a@x.com"})
	var dup *store.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, store.ReasonEmailExists, dup.Reason)

	_, err = s.GetReporterByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecommendationLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	require.NoError(t, s.Append(ctx, domain.RecommendationEntry{
		TicketID:   "TICKET-1",
		Problem:    "refund request",
		Suggestion: "request it from the orders section",
	}))
	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "TICKET-1", entries[0].TicketID)
	assert.False(t, entries[0].Time.IsZero())
}
