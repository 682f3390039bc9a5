// Package csvstore persists tickets and conversation turns in
// delimited text files, the way the flat-file deployments run.
//
// Writes are append-only except for feedback updates, which rewrite
// the conversation file. Every critical section is guarded twice: a
// process-local RWMutex serializes goroutines sharing one Store, and a
// sidecar flock serializes independent processes appending to the same
// directory. ID allocation happens inside the write lock so read-tail,
// compute-next and append are one atomic step.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/store"
	"github.com/spec-kit/smart-support/internal/ticketid"
)

const (
	ticketsFile         = "tickets_log.csv"
	conversationsFile   = "conversations.csv"
	recommendationsFile = "recommendation_log.csv"
	reportersFile       = "reporters.csv"
	lockFile            = "store.lock"
)

// Options configures a Store.
type Options struct {
	// Dir holds the CSV files and the lock sidecar.
	Dir string
	// Scheme controls ticket ID allocation.
	Scheme ticketid.Scheme
	// StrictReporterUniqueness rejects tickets whose reporter name or
	// email already appears in the store.
	StrictReporterUniqueness bool
	Logger                   *zap.Logger
}

// Store is a CSV-backed implementation of the store contracts.
type Store struct {
	mu     sync.RWMutex
	flk    *flock.Flock
	dir    string
	scheme ticketid.Scheme
	strict bool
	logger *zap.Logger

	malformed atomic.Int64
}

var (
	_ store.TicketStore       = (*Store)(nil)
	_ store.ConversationStore = (*Store)(nil)
	_ store.RecommendationLog = (*Store)(nil)
	_ store.ReporterStore     = (*Store)(nil)
)

// New prepares the directory and lock sidecar.
func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("csvstore: dir required")
	}
	if opts.Scheme == (ticketid.Scheme{}) {
		opts.Scheme = ticketid.DefaultScheme
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, store.Unavailable("create store dir", err)
	}
	return &Store{
		flk:    flock.New(filepath.Join(opts.Dir, lockFile)),
		dir:    opts.Dir,
		scheme: opts.Scheme,
		strict: opts.StrictReporterUniqueness,
		logger: opts.Logger,
	}, nil
}

// MalformedRecords returns how many unparseable rows readers skipped.
func (s *Store) MalformedRecords() int64 {
	return s.malformed.Load()
}

// CreateTicket implements store.TicketStore.
func (s *Store) CreateTicket(_ context.Context, in store.NewTicket) (domain.Ticket, error) {
	var created domain.Ticket
	err := s.withWriteLock(func() error {
		tickets, lastID, prefixes := s.readTicketsLocked()
		if s.strict {
			for _, t := range tickets {
				if t.ReporterName == in.ReporterName {
					return &store.DuplicateError{Reason: store.ReasonNameExists}
				}
				if t.ReporterEmail == in.ReporterEmail {
					return &store.DuplicateError{Reason: store.ReasonEmailExists}
				}
			}
		}
		id := s.scheme.Next(lastID, func(p string) bool { return prefixes[p] })
		created = domain.Ticket{
			ID:            id,
			ReporterName:  in.ReporterName,
			ReporterEmail: in.ReporterEmail,
			Problem:       in.Problem,
			Category:      in.Category,
			Priority:      in.Priority,
			Status:        domain.TicketStatusOpen,
			CreatedAt:     now(),
		}
		return s.appendRowLocked(ticketsFile, ticketHeader, encodeTicket(created))
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return created, nil
}

// GetTicket implements store.TicketStore.
func (s *Store) GetTicket(_ context.Context, id string) (domain.Ticket, error) {
	var found *domain.Ticket
	err := s.withReadLock(func() error {
		tickets, _, _ := s.readTicketsLocked()
		for i := range tickets {
			if tickets[i].ID == id {
				found = &tickets[i]
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	if found == nil {
		return domain.Ticket{}, store.ErrNotFound
	}
	return *found, nil
}

// ListTickets implements store.TicketStore.
func (s *Store) ListTickets(_ context.Context, sortBy store.TicketSort) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	err := s.withReadLock(func() error {
		tickets, _, _ = s.readTicketsLocked()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if sortBy == store.SortCreatedDesc {
		sort.SliceStable(tickets, func(i, j int) bool {
			return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
		})
	}
	return tickets, nil
}

// AppendTurn implements store.ConversationStore.
func (s *Store) AppendTurn(_ context.Context, ticketID string, sender domain.TurnSender, message string) (domain.ConversationTurn, error) {
	turn := domain.ConversationTurn{
		TicketID:  ticketID,
		Sender:    sender,
		Message:   message,
		Feedback:  domain.FeedbackNone,
		CreatedAt: now(),
	}
	err := s.withWriteLock(func() error {
		return s.appendRowLocked(conversationsFile, conversationHeader, encodeTurn(turn))
	})
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	return turn, nil
}

// SetLastTurnFeedback implements store.ConversationStore. It updates
// the most recent Agent turn of the given ticket and rewrites the
// conversation file. Rows that fail to parse are carried through the
// rewrite untouched.
func (s *Store) SetLastTurnFeedback(_ context.Context, ticketID string, value domain.TurnFeedback) error {
	return s.withWriteLock(func() error {
		records := s.readRawLocked(conversationsFile)
		target := -1
		for i, rec := range records {
			turn, err := decodeTurn(rec)
			if err != nil {
				continue
			}
			if turn.TicketID == ticketID && turn.Sender == domain.SenderAgent {
				target = i
			}
		}
		if target < 0 {
			return store.ErrNotFound
		}
		records[target][3] = string(value)
		return s.rewriteLocked(conversationsFile, conversationHeader, records)
	})
}

// ListConversation implements store.ConversationStore.
func (s *Store) ListConversation(_ context.Context, ticketID string) ([]domain.ConversationTurn, error) {
	var turns []domain.ConversationTurn
	err := s.withReadLock(func() error {
		for _, rec := range s.readRawLocked(conversationsFile) {
			turn, err := decodeTurn(rec)
			if err != nil {
				s.noteMalformed(conversationsFile, err)
				continue
			}
			if turn.TicketID == ticketID {
				turns = append(turns, turn)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return turns, nil
}

// Append implements store.RecommendationLog.
func (s *Store) Append(_ context.Context, entry domain.RecommendationEntry) error {
	if entry.Time.IsZero() {
		entry.Time = now()
	}
	return s.withWriteLock(func() error {
		return s.appendRowLocked(recommendationsFile, recommendationHeader, encodeRecommendation(entry))
	})
}

// List implements store.RecommendationLog.
func (s *Store) List(_ context.Context) ([]domain.RecommendationEntry, error) {
	var entries []domain.RecommendationEntry
	err := s.withReadLock(func() error {
		for _, rec := range s.readRawLocked(recommendationsFile) {
			entry, err := decodeRecommendation(rec)
			if err != nil {
				s.noteMalformed(recommendationsFile, err)
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateReporter implements store.ReporterStore.
func (s *Store) CreateReporter(_ context.Context, r domain.Reporter) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now()
	}
	return s.withWriteLock(func() error {
		for _, rec := range s.readRawLocked(reportersFile) {
			existing, err := decodeReporter(rec)
			if err != nil {
				continue
			}
			if existing.Email == r.Email {
				return &store.DuplicateError{Reason: store.ReasonEmailExists}
			}
		}
		return s.appendRowLocked(reportersFile, reporterHeader, encodeReporter(r))
	})
}

// GetReporterByEmail implements store.ReporterStore.
func (s *Store) GetReporterByEmail(_ context.Context, email string) (domain.Reporter, error) {
	var found *domain.Reporter
	err := s.withReadLock(func() error {
		for _, rec := range s.readRawLocked(reportersFile) {
			r, err := decodeReporter(rec)
			if err != nil {
				s.noteMalformed(reportersFile, err)
				continue
			}
			if r.Email == email {
				found = &r
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return domain.Reporter{}, err
	}
	if found == nil {
		return domain.Reporter{}, store.ErrNotFound
	}
	return *found, nil
}

func (s *Store) withWriteLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flk.Lock(); err != nil {
		return store.Unavailable("acquire write lock", err)
	}
	defer s.flk.Unlock() //nolint:errcheck
	return fn()
}

func (s *Store) withReadLock(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.flk.RLock(); err != nil {
		return store.Unavailable("acquire read lock", err)
	}
	defer s.flk.Unlock() //nolint:errcheck
	return fn()
}

// readTicketsLocked returns all parseable tickets, the ID of the last
// stored row (the allocation tail) and the set of prefixes in use.
func (s *Store) readTicketsLocked() ([]domain.Ticket, string, map[string]bool) {
	prefixes := make(map[string]bool)
	var tickets []domain.Ticket
	var lastID string
	for _, rec := range s.readRawLocked(ticketsFile) {
		if len(rec) > 0 {
			lastID = rec[0]
		}
		t, err := decodeTicket(rec)
		if err != nil {
			s.noteMalformed(ticketsFile, err)
			continue
		}
		tickets = append(tickets, t)
		if prefix, _, ok := s.scheme.Parse(t.ID); ok {
			prefixes[prefix] = true
		}
	}
	return tickets, lastID, prefixes
}

// readRawLocked returns the data rows of a file, header excluded. A
// missing file reads as empty; parse failures skip the row.
func (s *Store) readRawLocked(name string) [][]string {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("open store file", zap.String("file", name), zap.Error(err))
		}
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var records [][]string
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.noteMalformed(name, err)
			continue
		}
		if first {
			first = false
			continue
		}
		records = append(records, rec)
	}
	return records
}

// appendRowLocked appends one record, writing the header when the file
// is new. Appending a single record keeps the blast radius of an
// unsynchronized writer to a duplicate ID rather than data loss.
func (s *Store) appendRowLocked(name string, header, rec []string) error {
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return store.Unavailable("open "+name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return store.Unavailable("stat "+name, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return store.Unavailable("write header "+name, err)
		}
	}
	if err := w.Write(rec); err != nil {
		return store.Unavailable("append "+name, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return store.Unavailable("flush "+name, err)
	}
	if err := f.Sync(); err != nil {
		return store.Unavailable("sync "+name, err)
	}
	return nil
}

// rewriteLocked replaces a file's contents via temp-file rename.
func (s *Store) rewriteLocked(name string, header []string, records [][]string) error {
	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return store.Unavailable("create temp "+name, err)
	}
	tmpPath := tmp.Name()
	w := csv.NewWriter(tmp)
	writeErr := w.Write(header)
	for _, rec := range records {
		if writeErr != nil {
			break
		}
		writeErr = w.Write(rec)
	}
	w.Flush()
	if writeErr == nil {
		writeErr = w.Error()
	}
	if writeErr == nil {
		writeErr = tmp.Sync()
	}
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmpPath)
		return store.Unavailable("rewrite "+name, writeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return store.Unavailable("replace "+name, err)
	}
	return nil
}

func (s *Store) noteMalformed(source string, err error) {
	s.malformed.Add(1)
	s.logger.Warn("skipping malformed record",
		zap.String("file", source),
		zap.Error(&store.MalformedRecordError{Source: source, Cause: err}))
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
