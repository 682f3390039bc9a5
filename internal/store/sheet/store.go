// Package sheetstore keeps the ticket table in a remote spreadsheet.
// Columns: TicketID, Problem, Category, Timestamp, Name, Email. Only
// two sheet operations are ever used: read all rows and append a row,
// so writes are append-only and a race can at worst duplicate an ID,
// never drop a row. A Locker serializes the allocate+append step.
//
// Conversation turns are not kept in the sheet; deployments pair this
// store with the CSV conversation log.
package sheetstore

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/store"
	"github.com/spec-kit/smart-support/internal/ticketid"
)

// TimeLayout matches the CSV store so exports line up.
const TimeLayout = "2006-01-02 15:04:05"

var header = []string{"TicketID", "Problem", "Category", "Timestamp", "Name", "Email"}

// Options configures a Store.
type Options struct {
	Rows   RowAPI
	Locker Locker
	// Scheme controls ID allocation; defaults to TICKET-1 style.
	Scheme ticketid.Scheme
	// StrictReporterUniqueness rejects repeat reporter names/emails.
	StrictReporterUniqueness bool
	Logger                   *zap.Logger
}

// Store implements store.TicketStore over a spreadsheet.
type Store struct {
	rows      RowAPI
	locker    Locker
	scheme    ticketid.Scheme
	strict    bool
	logger    *zap.Logger
	malformed atomic.Int64
}

var _ store.TicketStore = (*Store)(nil)

// New builds the store. A nil Locker gets a process-local one.
func New(opts Options) *Store {
	if opts.Locker == nil {
		opts.Locker = NewLocalLocker()
	}
	if opts.Scheme == (ticketid.Scheme{}) {
		opts.Scheme = ticketid.DefaultScheme
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{
		rows:   opts.Rows,
		locker: opts.Locker,
		scheme: opts.Scheme,
		strict: opts.StrictReporterUniqueness,
		logger: opts.Logger,
	}
}

// MalformedRecords returns how many unparseable rows readers skipped.
func (s *Store) MalformedRecords() int64 {
	return s.malformed.Load()
}

// CreateTicket implements store.TicketStore.
func (s *Store) CreateTicket(ctx context.Context, in store.NewTicket) (domain.Ticket, error) {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return domain.Ticket{}, err
	}
	defer unlock()

	rows, err := s.rows.ReadAll(ctx)
	if err != nil {
		return domain.Ticket{}, store.Unavailable("read sheet", err)
	}

	if s.strict {
		for _, row := range dataRows(rows) {
			if len(row) < 6 {
				continue
			}
			if row[4] == in.ReporterName {
				return domain.Ticket{}, &store.DuplicateError{Reason: store.ReasonNameExists}
			}
			if row[5] == in.ReporterEmail {
				return domain.Ticket{}, &store.DuplicateError{Reason: store.ReasonEmailExists}
			}
		}
	}

	ticket := domain.Ticket{
		ID:            s.nextID(rows),
		ReporterName:  in.ReporterName,
		ReporterEmail: in.ReporterEmail,
		Problem:       in.Problem,
		Category:      in.Category,
		Priority:      in.Priority,
		Status:        domain.TicketStatusOpen,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}

	if len(rows) == 0 {
		if err := s.rows.AppendRow(ctx, header); err != nil {
			return domain.Ticket{}, store.Unavailable("append sheet header", err)
		}
	}
	row := []string{
		ticket.ID,
		ticket.Problem,
		string(ticket.Category),
		ticket.CreatedAt.Format(TimeLayout),
		ticket.ReporterName,
		ticket.ReporterEmail,
	}
	if err := s.rows.AppendRow(ctx, row); err != nil {
		return domain.Ticket{}, store.Unavailable("append sheet row", err)
	}
	return ticket, nil
}

// GetTicket implements store.TicketStore.
func (s *Store) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	tickets, err := s.ListTickets(ctx, store.SortNone)
	if err != nil {
		return domain.Ticket{}, err
	}
	for _, t := range tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Ticket{}, store.ErrNotFound
}

// ListTickets implements store.TicketStore. Priority and Status are
// not persisted in the sheet schema; listings carry the defaults.
func (s *Store) ListTickets(ctx context.Context, sortBy store.TicketSort) ([]domain.Ticket, error) {
	rows, err := s.rows.ReadAll(ctx)
	if err != nil {
		return nil, store.Unavailable("read sheet", err)
	}
	var tickets []domain.Ticket
	for _, row := range dataRows(rows) {
		t, ok := s.decodeRow(row)
		if !ok {
			continue
		}
		tickets = append(tickets, t)
	}
	if sortBy == store.SortCreatedDesc {
		sort.SliceStable(tickets, func(i, j int) bool {
			return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
		})
	}
	return tickets, nil
}

// nextID derives the next allocation from the sheet tail. Caller holds
// the lock.
func (s *Store) nextID(rows [][]string) string {
	data := dataRows(rows)
	if len(data) == 0 {
		return s.scheme.Initial()
	}
	prefixes := make(map[string]bool)
	for _, row := range data {
		if len(row) == 0 {
			continue
		}
		if prefix, _, ok := s.scheme.Parse(row[0]); ok {
			prefixes[prefix] = true
		}
	}
	last := data[len(data)-1]
	var lastID string
	if len(last) > 0 {
		lastID = last[0]
	}
	return s.scheme.Next(lastID, func(p string) bool { return prefixes[p] })
}

func (s *Store) decodeRow(row []string) (domain.Ticket, bool) {
	if len(row) < 6 || row[0] == "" {
		s.noteMalformed(row)
		return domain.Ticket{}, false
	}
	createdAt, err := time.Parse(TimeLayout, row[3])
	if err != nil {
		s.noteMalformed(row)
		return domain.Ticket{}, false
	}
	return domain.Ticket{
		ID:            row[0],
		Problem:       row[1],
		Category:      domain.TicketCategory(row[2]),
		CreatedAt:     createdAt,
		ReporterName:  row[4],
		ReporterEmail: row[5],
		Status:        domain.TicketStatusOpen,
	}, true
}

func (s *Store) noteMalformed(row []string) {
	s.malformed.Add(1)
	s.logger.Warn("skipping malformed sheet row", zap.Int("cells", len(row)))
}

func dataRows(rows [][]string) [][]string {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}
