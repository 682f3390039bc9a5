package sheetstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/store"
)

// fakeRows is an in-memory RowAPI.
type fakeRows struct {
	mu      sync.Mutex
	rows    [][]string
	readErr error
}

func (f *fakeRows) ReadAll(context.Context) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([][]string, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeRows) AppendRow(_ context.Context, row []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	return nil
}

func TestCreateTicketOnEmptySheet(t *testing.T) {
	ctx := context.Background()
	rows := &fakeRows{}
	s := New(Options{Rows: rows})

	created, err := s.CreateTicket(ctx, store.NewTicket{
		ReporterName:  "Alice",
		ReporterEmail: "a@x.com",
		Problem:       "Payment failed",
		Category:      domain.CategoryPayment,
	})
	require.NoError(t, err)
	assert.Equal(t, "TICKET-1", created.ID)

	// Header plus one data row.
	require.Len(t, rows.rows, 2)
	assert.Equal(t, header, rows.rows[0])
	assert.Equal(t, "TICKET-1", rows.rows[1][0])
	assert.Equal(t, "Payment failed", rows.rows[1][1])
	assert.Equal(t, "Payment Issue", rows.rows[1][2])
	assert.Equal(t, "Alice", rows.rows[1][4])
	assert.Equal(t, "a@x.com", rows.rows[1][5])
}

func TestTicketIDFollowsTail(t *testing.T) {
	ctx := context.Background()
	rows := &fakeRows{rows: [][]string{
		header,
		{"TICKET-1", "p", "Other", "2024-01-01 10:00:00", "A", "a@x.com"},
		{"TICKET-2", "p", "Other", "2024-01-01 11:00:00", "B", "b@x.com"},
	}}
	s := New(Options{Rows: rows})

	created, err := s.CreateTicket(ctx, store.NewTicket{ReporterName: "C", ReporterEmail: "c@x.com", Problem: "p"})
	require.NoError(t, err)
	assert.Equal(t, "TICKET-3", created.ID)
}

func TestUnparseableTailRestartsSequence(t *testing.T) {
	ctx := context.Background()
	rows := &fakeRows{rows: [][]string{
		header,
		{"not-an-id", "p", "Other", "2024-01-01 10:00:00", "A", "a@x.com"},
	}}
	s := New(Options{Rows: rows})

	created, err := s.CreateTicket(ctx, store.NewTicket{ReporterName: "B", ReporterEmail: "b@x.com", Problem: "p"})
	require.NoError(t, err)
	assert.Equal(t, "TICKET-1", created.ID)
}

func TestStrictUniquenessNameBeforeEmail(t *testing.T) {
	ctx := context.Background()
	rows := &fakeRows{rows: [][]string{
		header,
		{"TICKET-1", "p", "Other", "2024-01-01 10:00:00", "Alice", "a@x.com"},
	}}
	s := New(Options{Rows: rows, StrictReporterUniqueness: true})

	var dup *store.DuplicateError
	_, err := s.CreateTicket(ctx, store.NewTicket{ReporterName: "Alice", ReporterEmail: "new@x.com", Problem: "p"})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, store.ReasonNameExists, dup.Reason)

	_, err = s.CreateTicket(ctx, store.NewTicket{ReporterName: "Bob", ReporterEmail: "a@x.com", Problem: "p"})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, store.ReasonEmailExists, dup.Reason)

	// Nothing was appended for the rejected creates.
	assert.Len(t, rows.rows, 2)
}

func TestConcurrentCreatesSerializedByLocker(t *testing.T) {
	ctx := context.Background()
	rows := &fakeRows{}
	s := New(Options{Rows: rows})

	const n = 16
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := s.CreateTicket(ctx, store.NewTicket{
				ReporterName:  fmt.Sprintf("user%d", i),
				ReporterEmail: fmt.Sprintf("u%d@x.com", i),
				Problem:       "p",
			})
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
}

func TestReadFailureSurfacesStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	rows := &fakeRows{readErr: errors.New("quota exceeded")}
	s := New(Options{Rows: rows})

	_, err := s.CreateTicket(ctx, store.NewTicket{ReporterName: "A", ReporterEmail: "a@x.com", Problem: "p"})
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)

	_, err = s.ListTickets(ctx, store.SortNone)
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
}

func TestListSkipsMalformedRows(t *testing.T) {
	ctx := context.Background()
	rows := &fakeRows{rows: [][]string{
		header,
		{"TICKET-1", "p", "Other", "2024-01-01 10:00:00", "A", "a@x.com"},
		{"TICKET-2", "short row"},
		{"TICKET-3", "p", "Other", "not a timestamp", "C", "c@x.com"},
	}}
	s := New(Options{Rows: rows})

	tickets, err := s.ListTickets(ctx, store.SortNone)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "TICKET-1", tickets[0].ID)
	assert.EqualValues(t, 2, s.MalformedRecords())
}
