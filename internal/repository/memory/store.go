// Package memory is an in-process implementation of repository.TxStore for local runs and
// tests. Transactions are serialised and work on a copy of the data that replaces the live
// copy only on commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/domain"
	"github.com/ayo6706/concert-ticketing/internal/models"
	"github.com/ayo6706/concert-ticketing/internal/repository"
)

// ErrTransient is returned for injected commit failures. It is classified as retryable.
var ErrTransient = transientError{}

type transientError struct{}

func (transientError) Error() string   { return "memory store: injected transient failure" }
func (transientError) Transient() bool { return true }

type concertRow struct {
	models.Concert
	priceMicros int64
}

type ticketRow struct {
	id        int64
	concertID int64
	userID    string
	createdAt time.Time
}

type state struct {
	concerts      map[int64]concertRow
	users         map[string]models.User
	tickets       map[int64]ticketRow
	ticketNumbers map[int64]models.TicketNumber
	nextID        int64
}

func newState() *state {
	return &state{
		concerts:      make(map[int64]concertRow),
		users:         make(map[string]models.User),
		tickets:       make(map[int64]ticketRow),
		ticketNumbers: make(map[int64]models.TicketNumber),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.concerts {
		c.concerts[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.ticketNumbers {
		if v.TicketID != nil {
			id := *v.TicketID
			v.TicketID = &id
		}
		c.ticketNumbers[k] = v
	}
	c.nextID = s.nextID
	return c
}

// Store keeps all rows in memory.
type Store struct {
	txMu  sync.Mutex // held for the duration of a transaction
	mu    sync.Mutex // guards live for single statements
	live  *state
	retry repository.RetryPolicy

	faultMu        sync.Mutex
	commitFailures int
	attempts       int
	closes         int
}

func NewStore() *Store {
	return &Store{
		live: newState(),
		retry: repository.RetryPolicy{
			MaxAttempts:   3,
			BackoffFactor: 1,
		},
	}
}

// WithRetryPolicy replaces the execution strategy used by RunInTx.
func (s *Store) WithRetryPolicy(p repository.RetryPolicy) *Store {
	s.retry = p
	return s
}

// FailCommits makes the next n transaction commits fail with ErrTransient.
func (s *Store) FailCommits(n int) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.commitFailures = n
}

// TxAttempts reports how many transaction attempts have started.
func (s *Store) TxAttempts() int {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.attempts
}

// Closes reports how many times Close has been called.
func (s *Store) Closes() int {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.closes
}

func (s *Store) Queries() repository.Querier {
	return &querier{mu: &s.mu, st: s.live}
}

func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	return s.retry.Do(ctx, func(ctx context.Context) error {
		return s.runOnce(ctx, fn)
	})
}

func (s *Store) runOnce(ctx context.Context, fn func(q repository.Querier) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.faultMu.Lock()
	s.attempts++
	s.faultMu.Unlock()

	s.mu.Lock()
	work := s.live.clone()
	s.mu.Unlock()

	if err := fn(&querier{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.faultMu.Lock()
	fail := s.commitFailures > 0
	if fail {
		s.commitFailures--
	}
	s.faultMu.Unlock()
	if fail {
		return fmt.Errorf("commit transaction: %w", ErrTransient)
	}

	s.mu.Lock()
	*s.live = *work
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.closes++
	return nil
}

var _ repository.TxStore = (*Store)(nil)

// querier runs statements against st. mu is nil inside a transaction, where the store's
// transaction lock already serialises access.
type querier struct {
	mu *sync.Mutex
	st *state
}

func (q *querier) lock() func() {
	if q.mu == nil {
		return func() {}
	}
	q.mu.Lock()
	return q.mu.Unlock
}

func (q *querier) id() int64 {
	q.st.nextID++
	return q.st.nextID
}

func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func toRow(c *models.Concert) concertRow {
	row := concertRow{Concert: *c, priceMicros: domain.FromDecimal(c.Price)}
	row.StartTime = normalize(c.StartTime)
	row.CreatedOn = normalize(c.CreatedOn)
	row.UpdatedOn = normalize(c.UpdatedOn)
	return row
}

func (r concertRow) concert() models.Concert {
	c := r.Concert
	c.Price = domain.ToDecimal(r.priceMicros)
	return c
}

func (q *querier) CreateConcert(ctx context.Context, c *models.Concert) (int64, error) {
	defer q.lock()()
	if c.Price.IsNegative() {
		return 0, errors.New("insert concert: price_micros check violated")
	}
	row := toRow(c)
	row.ID = q.id()
	row.UpdatedOn = row.CreatedOn
	q.st.concerts[row.ID] = row
	return row.ID, nil
}

func (q *querier) UpdateConcert(ctx context.Context, c *models.Concert) (int64, error) {
	defer q.lock()()
	existing, ok := q.st.concerts[c.ID]
	if !ok {
		return 0, nil
	}
	row := toRow(c)
	row.CreatedOn = existing.CreatedOn
	row.CreatedBy = existing.CreatedBy
	q.st.concerts[c.ID] = row
	return 1, nil
}

func (q *querier) DeleteConcert(ctx context.Context, id int64) (int64, error) {
	defer q.lock()()
	if _, ok := q.st.concerts[id]; !ok {
		return 0, nil
	}
	delete(q.st.concerts, id)
	// ON DELETE CASCADE
	for tid, t := range q.st.tickets {
		if t.concertID == id {
			delete(q.st.tickets, tid)
		}
	}
	for nid, n := range q.st.ticketNumbers {
		if n.ConcertID == id {
			delete(q.st.ticketNumbers, nid)
		}
	}
	return 1, nil
}

func (q *querier) GetConcert(ctx context.Context, id int64) (models.Concert, error) {
	defer q.lock()()
	row, ok := q.st.concerts[id]
	if !ok {
		return models.Concert{}, models.ErrNotFound
	}
	return row.concert(), nil
}

func (q *querier) ListConcertsByIDs(ctx context.Context, ids []int64) ([]models.Concert, error) {
	defer q.lock()()
	out := []models.Concert{}
	for _, id := range ids {
		if row, ok := q.st.concerts[id]; ok {
			out = append(out, row.concert())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *querier) ListUpcomingConcerts(ctx context.Context, after time.Time, limit int32) ([]models.Concert, error) {
	defer q.lock()()
	out := []models.Concert{}
	for _, row := range q.st.concerts {
		if row.IsVisible && row.StartTime.After(after) {
			out = append(out, row.concert())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	if limit < 0 {
		limit = 0
	}
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (q *querier) UpsertUser(ctx context.Context, u models.User) error {
	defer q.lock()()
	q.st.users[u.ID] = u
	return nil
}

func (q *querier) GetUser(ctx context.Context, id string) (models.User, error) {
	defer q.lock()()
	u, ok := q.st.users[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return u, nil
}

func (q *querier) CreateTicket(ctx context.Context, arg repository.CreateTicketParams) (int64, error) {
	defer q.lock()()
	if _, ok := q.st.concerts[arg.ConcertID]; !ok {
		return 0, fmt.Errorf("insert ticket: concert %d: foreign key violation", arg.ConcertID)
	}
	if _, ok := q.st.users[arg.UserID]; !ok {
		return 0, fmt.Errorf("insert ticket: user %q: foreign key violation", arg.UserID)
	}
	id := q.id()
	q.st.tickets[id] = ticketRow{id: id, concertID: arg.ConcertID, userID: arg.UserID, createdAt: normalize(time.Now())}
	return id, nil
}

func (q *querier) ticket(t ticketRow) models.Ticket {
	out := models.Ticket{ID: t.id, ConcertID: t.concertID, UserID: t.userID, CreatedAt: t.createdAt}
	if row, ok := q.st.concerts[t.concertID]; ok {
		c := row.concert()
		out.Concert = &c
	}
	return out
}

func (q *querier) GetTicket(ctx context.Context, id int64) (models.Ticket, error) {
	defer q.lock()()
	t, ok := q.st.tickets[id]
	if !ok {
		return models.Ticket{}, models.ErrNotFound
	}
	return q.ticket(t), nil
}

func (q *querier) CountTicketsByUser(ctx context.Context, userID string) (int64, error) {
	defer q.lock()()
	var n int64
	for _, t := range q.st.tickets {
		if t.userID == userID {
			n++
		}
	}
	return n, nil
}

func (q *querier) ListTicketsByUser(ctx context.Context, arg repository.ListTicketsByUserParams) ([]models.Ticket, error) {
	defer q.lock()()
	var rows []ticketRow
	for _, t := range q.st.tickets {
		if t.userID == arg.UserID {
			rows = append(rows, t)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].id > rows[j].id })

	out := []models.Ticket{}
	for i := max(int(arg.Offset), 0); i < len(rows) && len(out) < int(arg.Limit); i++ {
		out = append(out, q.ticket(rows[i]))
	}
	return out, nil
}

func (q *querier) CountTicketNumbers(ctx context.Context, concertID int64) (int64, error) {
	defer q.lock()()
	var n int64
	for _, tn := range q.st.ticketNumbers {
		if tn.ConcertID == concertID {
			n++
		}
	}
	return n, nil
}

func (q *querier) ListUnsoldTicketNumbers(ctx context.Context, concertID int64) ([]models.TicketNumber, error) {
	defer q.lock()()
	out := []models.TicketNumber{}
	for _, tn := range q.st.ticketNumbers {
		if tn.ConcertID == concertID && !tn.IsSold() {
			out = append(out, tn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *querier) CreateTicketNumber(ctx context.Context, arg repository.CreateTicketNumberParams) (int64, error) {
	defer q.lock()()
	if _, ok := q.st.concerts[arg.ConcertID]; !ok {
		return 0, fmt.Errorf("insert ticket number: concert %d: foreign key violation", arg.ConcertID)
	}
	for _, tn := range q.st.ticketNumbers {
		if tn.Number == arg.Number {
			return 0, fmt.Errorf("insert ticket number: %q: unique violation", arg.Number)
		}
	}
	id := q.id()
	q.st.ticketNumbers[id] = models.TicketNumber{ID: id, ConcertID: arg.ConcertID, Number: arg.Number}
	return id, nil
}

func (q *querier) DeleteTicketNumbers(ctx context.Context, ids []int64) (int64, error) {
	defer q.lock()()
	var n int64
	for _, id := range ids {
		tn, ok := q.st.ticketNumbers[id]
		if !ok || tn.IsSold() {
			continue
		}
		delete(q.st.ticketNumbers, id)
		n++
	}
	return n, nil
}

func (q *querier) AssignTicketNumber(ctx context.Context, arg repository.AssignTicketNumberParams) (int64, error) {
	defer q.lock()()
	tn, ok := q.st.ticketNumbers[arg.ID]
	if !ok || tn.IsSold() {
		return 0, nil
	}
	if _, ok := q.st.tickets[arg.TicketID]; !ok {
		return 0, fmt.Errorf("assign ticket number: ticket %d: foreign key violation", arg.TicketID)
	}
	ticketID := arg.TicketID
	tn.TicketID = &ticketID
	q.st.ticketNumbers[arg.ID] = tn
	return 1, nil
}
