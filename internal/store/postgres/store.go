// Package pgstore is the transactional backend. Create runs inside a
// transaction holding an advisory lock, so uniqueness check, ID
// allocation and insert apply as one atomic step; a unique index on
// ticket_id backstops the lock.
package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/store"
	"github.com/spec-kit/smart-support/internal/ticketid"
)

// Advisory lock keys, one per serialized resource.
const (
	lockTicketAlloc  = int64(0x7469636b) // "tick"
	lockReporterRegn = int64(0x72657072) // "repr"
)

// Options configures a Store.
type Options struct {
	Pool                     *pgxpool.Pool
	Scheme                   ticketid.Scheme
	StrictReporterUniqueness bool
}

// Store implements the store contracts over Postgres.
type Store struct {
	pool   *pgxpool.Pool
	scheme ticketid.Scheme
	strict bool
}

var (
	_ store.TicketStore       = (*Store)(nil)
	_ store.ConversationStore = (*Store)(nil)
	_ store.RecommendationLog = (*Store)(nil)
	_ store.ReporterStore     = (*Store)(nil)
)

// New builds the store.
func New(opts Options) *Store {
	if opts.Scheme == (ticketid.Scheme{}) {
		opts.Scheme = ticketid.DefaultScheme
	}
	return &Store{pool: opts.Pool, scheme: opts.Scheme, strict: opts.StrictReporterUniqueness}
}

// CreateTicket implements store.TicketStore.
func (s *Store) CreateTicket(ctx context.Context, in store.NewTicket) (domain.Ticket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Ticket{}, store.Unavailable("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockTicketAlloc); err != nil {
		return domain.Ticket{}, store.Unavailable("acquire allocation lock", err)
	}

	if s.strict {
		var reason string
		err := tx.QueryRow(ctx, `
            SELECT CASE
                WHEN EXISTS (SELECT 1 FROM tickets WHERE reporter_name = $1) THEN $3
                WHEN EXISTS (SELECT 1 FROM tickets WHERE reporter_email = $2) THEN $4
                ELSE ''
            END`,
			in.ReporterName, in.ReporterEmail, store.ReasonNameExists, store.ReasonEmailExists,
		).Scan(&reason)
		if err != nil {
			return domain.Ticket{}, store.Unavailable("uniqueness check", err)
		}
		if reason != "" {
			return domain.Ticket{}, &store.DuplicateError{Reason: reason}
		}
	}

	id, err := s.nextIDLocked(ctx, tx)
	if err != nil {
		return domain.Ticket{}, err
	}

	ticket := domain.Ticket{
		ID:            id,
		ReporterName:  in.ReporterName,
		ReporterEmail: in.ReporterEmail,
		Problem:       in.Problem,
		Category:      in.Category,
		Priority:      in.Priority,
		Status:        domain.TicketStatusOpen,
	}
	err = tx.QueryRow(ctx, `
        INSERT INTO tickets (ticket_id, reporter_name, reporter_email, problem, category, priority, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`,
		ticket.ID,
		ticket.ReporterName,
		ticket.ReporterEmail,
		ticket.Problem,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
	).Scan(&ticket.CreatedAt)
	if err != nil {
		return domain.Ticket{}, store.Unavailable("insert ticket", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Ticket{}, store.Unavailable("commit ticket", err)
	}
	return ticket, nil
}

// nextIDLocked reads the allocation tail inside the locked transaction.
func (s *Store) nextIDLocked(ctx context.Context, tx pgx.Tx) (string, error) {
	var lastID string
	err := tx.QueryRow(ctx, `SELECT ticket_id FROM tickets ORDER BY seq DESC LIMIT 1`).Scan(&lastID)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.scheme.Initial(), nil
	}
	if err != nil {
		return "", store.Unavailable("read allocation tail", err)
	}

	prefixes := make(map[string]bool)
	rows, err := tx.Query(ctx, `SELECT ticket_id FROM tickets`)
	if err != nil {
		return "", store.Unavailable("read ticket ids", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", store.Unavailable("scan ticket id", err)
		}
		if prefix, _, ok := s.scheme.Parse(id); ok {
			prefixes[prefix] = true
		}
	}
	if err := rows.Err(); err != nil {
		return "", store.Unavailable("read ticket ids", err)
	}
	return s.scheme.Next(lastID, func(p string) bool { return prefixes[p] }), nil
}

// GetTicket implements store.TicketStore.
func (s *Store) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	var t domain.Ticket
	err := s.pool.QueryRow(ctx, `
        SELECT ticket_id, reporter_name, reporter_email, problem, category, priority, status, created_at
        FROM tickets WHERE ticket_id = $1`, id,
	).Scan(&t.ID, &t.ReporterName, &t.ReporterEmail, &t.Problem, &t.Category, &t.Priority, &t.Status, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ticket{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Ticket{}, store.Unavailable("get ticket", err)
	}
	return t, nil
}

// ListTickets implements store.TicketStore.
func (s *Store) ListTickets(ctx context.Context, sortBy store.TicketSort) ([]domain.Ticket, error) {
	order := "seq ASC"
	if sortBy == store.SortCreatedDesc {
		order = "created_at DESC, seq DESC"
	}
	rows, err := s.pool.Query(ctx, `
        SELECT ticket_id, reporter_name, reporter_email, problem, category, priority, status, created_at
        FROM tickets ORDER BY `+order)
	if err != nil {
		return nil, store.Unavailable("list tickets", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.ID, &t.ReporterName, &t.ReporterEmail, &t.Problem, &t.Category, &t.Priority, &t.Status, &t.CreatedAt); err != nil {
			return nil, store.Unavailable("scan ticket", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("list tickets", err)
	}
	return tickets, nil
}

// AppendTurn implements store.ConversationStore.
func (s *Store) AppendTurn(ctx context.Context, ticketID string, sender domain.TurnSender, message string) (domain.ConversationTurn, error) {
	turn := domain.ConversationTurn{
		TicketID: ticketID,
		Sender:   sender,
		Message:  message,
		Feedback: domain.FeedbackNone,
	}
	err := s.pool.QueryRow(ctx, `
        INSERT INTO conversation_turns (ticket_id, sender, message, feedback)
        VALUES ($1,$2,$3,'')
        RETURNING created_at`,
		ticketID, sender, message,
	).Scan(&turn.CreatedAt)
	if err != nil {
		return domain.ConversationTurn{}, store.Unavailable("append turn", err)
	}
	return turn, nil
}

// SetLastTurnFeedback implements store.ConversationStore, scoped to the
// ticket's most recent Agent turn.
func (s *Store) SetLastTurnFeedback(ctx context.Context, ticketID string, value domain.TurnFeedback) error {
	cmd, err := s.pool.Exec(ctx, `
        UPDATE conversation_turns SET feedback = $1
        WHERE seq = (
            SELECT seq FROM conversation_turns
            WHERE ticket_id = $2 AND sender = $3
            ORDER BY seq DESC LIMIT 1
        )`, value, ticketID, domain.SenderAgent)
	if err != nil {
		return store.Unavailable("set feedback", err)
	}
	if cmd.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListConversation implements store.ConversationStore.
func (s *Store) ListConversation(ctx context.Context, ticketID string) ([]domain.ConversationTurn, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT ticket_id, sender, message, feedback, created_at
        FROM conversation_turns WHERE ticket_id = $1 ORDER BY seq ASC`, ticketID)
	if err != nil {
		return nil, store.Unavailable("list conversation", err)
	}
	defer rows.Close()

	var turns []domain.ConversationTurn
	for rows.Next() {
		var turn domain.ConversationTurn
		if err := rows.Scan(&turn.TicketID, &turn.Sender, &turn.Message, &turn.Feedback, &turn.CreatedAt); err != nil {
			return nil, store.Unavailable("scan turn", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("list conversation", err)
	}
	return turns, nil
}

// Append implements store.RecommendationLog.
func (s *Store) Append(ctx context.Context, entry domain.RecommendationEntry) error {
	at := entry.Time
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx, `
        INSERT INTO recommendations (ticket_id, problem, suggestion, created_at)
        VALUES ($1,$2,$3,$4)`, entry.TicketID, entry.Problem, entry.Suggestion, at); err != nil {
		return store.Unavailable("append recommendation", err)
	}
	return nil
}

// List implements store.RecommendationLog.
func (s *Store) List(ctx context.Context) ([]domain.RecommendationEntry, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT created_at, ticket_id, problem, suggestion FROM recommendations ORDER BY seq ASC`)
	if err != nil {
		return nil, store.Unavailable("list recommendations", err)
	}
	defer rows.Close()

	var entries []domain.RecommendationEntry
	for rows.Next() {
		var entry domain.RecommendationEntry
		if err := rows.Scan(&entry.Time, &entry.TicketID, &entry.Problem, &entry.Suggestion); err != nil {
			return nil, store.Unavailable("scan recommendation", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("list recommendations", err)
	}
	return entries, nil
}

// CreateReporter implements store.ReporterStore.
func (s *Store) CreateReporter(ctx context.Context, r domain.Reporter) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return store.Unavailable("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockReporterRegn); err != nil {
		return store.Unavailable("acquire registration lock", err)
	}
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reporters WHERE email = $1)`, r.Email).Scan(&exists); err != nil {
		return store.Unavailable("reporter uniqueness check", err)
	}
	if exists {
		return &store.DuplicateError{Reason: store.ReasonEmailExists}
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO reporters (email, name, password_hash, created_at)
        VALUES ($1,$2,$3,$4)`, r.Email, r.Name, r.PasswordHash, createdAt); err != nil {
		return store.Unavailable("insert reporter", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return store.Unavailable("commit reporter", err)
	}
	return nil
}

// GetReporterByEmail implements store.ReporterStore.
func (s *Store) GetReporterByEmail(ctx context.Context, email string) (domain.Reporter, error) {
	var r domain.Reporter
	err := s.pool.QueryRow(ctx, `
        SELECT name, email, password_hash, created_at FROM reporters WHERE email = $1`, email,
	).Scan(&r.Name, &r.Email, &r.PasswordHash, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reporter{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Reporter{}, store.Unavailable("get reporter", err)
	}
	return r, nil
}
