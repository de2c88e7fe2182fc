package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/domain"
	"github.com/ayo6706/concert-ticketing/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Queries runs the postgres statements behind Querier.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

var _ Querier = (*Queries)(nil)

const concertColumns = `id, title, artist, genre, location, description, price_micros, start_time, is_visible, created_on, created_by, updated_on, updated_by`

const concertColumnsC = `c.id, c.title, c.artist, c.genre, c.location, c.description, c.price_micros, c.start_time, c.is_visible, c.created_on, c.created_by, c.updated_on, c.updated_by`

type concertScan struct {
	c           models.Concert
	priceMicros int64
}

func (s *concertScan) dest() []any {
	return []any{&s.c.ID, &s.c.Title, &s.c.Artist, &s.c.Genre, &s.c.Location, &s.c.Description,
		&s.priceMicros, &s.c.StartTime, &s.c.IsVisible, &s.c.CreatedOn, &s.c.CreatedBy, &s.c.UpdatedOn, &s.c.UpdatedBy}
}

func (s *concertScan) concert() models.Concert {
	c := s.c
	c.Price = domain.ToDecimal(s.priceMicros)
	c.StartTime = c.StartTime.UTC()
	c.CreatedOn = c.CreatedOn.UTC()
	c.UpdatedOn = c.UpdatedOn.UTC()
	return c
}

func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

const createConcert = `INSERT INTO concerts (title, artist, genre, location, description, price_micros, start_time, is_visible, created_on, created_by, updated_on, updated_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $9, $10)
RETURNING id`

func (q *Queries) CreateConcert(ctx context.Context, c *models.Concert) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, createConcert,
		c.Title, c.Artist, c.Genre, c.Location, c.Description, domain.FromDecimal(c.Price),
		c.StartTime, c.IsVisible, c.CreatedOn, c.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert concert: %w", err)
	}
	return id, nil
}

const updateConcert = `UPDATE concerts
SET title = $2, artist = $3, genre = $4, location = $5, description = $6, price_micros = $7,
    start_time = $8, is_visible = $9, updated_on = $10, updated_by = $11
WHERE id = $1`

func (q *Queries) UpdateConcert(ctx context.Context, c *models.Concert) (int64, error) {
	tag, err := q.db.Exec(ctx, updateConcert,
		c.ID, c.Title, c.Artist, c.Genre, c.Location, c.Description, domain.FromDecimal(c.Price),
		c.StartTime, c.IsVisible, c.UpdatedOn, c.UpdatedBy,
	)
	if err != nil {
		return 0, fmt.Errorf("update concert: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) DeleteConcert(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM concerts WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete concert: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) GetConcert(ctx context.Context, id int64) (models.Concert, error) {
	var s concertScan
	err := q.db.QueryRow(ctx, `SELECT `+concertColumns+` FROM concerts WHERE id = $1`, id).Scan(s.dest()...)
	if err != nil {
		return models.Concert{}, notFound("get concert", err)
	}
	return s.concert(), nil
}

func (q *Queries) ListConcertsByIDs(ctx context.Context, ids []int64) ([]models.Concert, error) {
	return q.listConcerts(ctx, `SELECT `+concertColumns+` FROM concerts WHERE id = ANY($1) ORDER BY id`, ids)
}

const listUpcomingConcerts = `SELECT ` + concertColumns + `
FROM concerts
WHERE is_visible = TRUE AND start_time > $1
ORDER BY start_time ASC, id ASC
LIMIT $2`

func (q *Queries) ListUpcomingConcerts(ctx context.Context, after time.Time, limit int32) ([]models.Concert, error) {
	return q.listConcerts(ctx, listUpcomingConcerts, after, limit)
}

func (q *Queries) listConcerts(ctx context.Context, query string, args ...any) ([]models.Concert, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list concerts: %w", err)
	}
	defer rows.Close()

	concerts := []models.Concert{}
	for rows.Next() {
		var s concertScan
		if err := rows.Scan(s.dest()...); err != nil {
			return nil, fmt.Errorf("scan concert: %w", err)
		}
		concerts = append(concerts, s.concert())
	}
	return concerts, rows.Err()
}

const upsertUser = `INSERT INTO users (id, display_name) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name`

func (q *Queries) UpsertUser(ctx context.Context, u models.User) error {
	if _, err := q.db.Exec(ctx, upsertUser, u.ID, u.DisplayName); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (q *Queries) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := q.db.QueryRow(ctx, `SELECT id, display_name FROM users WHERE id = $1`, id).Scan(&u.ID, &u.DisplayName)
	if err != nil {
		return models.User{}, notFound("get user", err)
	}
	return u, nil
}

func (q *Queries) CreateTicket(ctx context.Context, arg CreateTicketParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, `INSERT INTO tickets (concert_id, user_id, created_at) VALUES ($1, $2, NOW()) RETURNING id`,
		arg.ConcertID, arg.UserID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert ticket: %w", err)
	}
	return id, nil
}

const selectTicketWithConcert = `SELECT t.id, t.concert_id, t.user_id, t.created_at, ` + concertColumnsC + `
FROM tickets t
JOIN concerts c ON c.id = t.concert_id`

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var t models.Ticket
	var s concertScan
	dest := append([]any{&t.ID, &t.ConcertID, &t.UserID, &t.CreatedAt}, s.dest()...)
	if err := row.Scan(dest...); err != nil {
		return models.Ticket{}, err
	}
	concert := s.concert()
	t.Concert = &concert
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func (q *Queries) GetTicket(ctx context.Context, id int64) (models.Ticket, error) {
	t, err := scanTicket(q.db.QueryRow(ctx, selectTicketWithConcert+` WHERE t.id = $1`, id))
	if err != nil {
		return models.Ticket{}, notFound("get ticket", err)
	}
	return t, nil
}

func (q *Queries) CountTicketsByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

func (q *Queries) ListTicketsByUser(ctx context.Context, arg ListTicketsByUserParams) ([]models.Ticket, error) {
	rows, err := q.db.Query(ctx, selectTicketWithConcert+`
WHERE t.user_id = $1
ORDER BY t.id DESC
LIMIT $2 OFFSET $3`, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (q *Queries) CountTicketNumbers(ctx context.Context, concertID int64) (int64, error) {
	var n int64
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM ticket_numbers WHERE concert_id = $1`, concertID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ticket numbers: %w", err)
	}
	return n, nil
}

func (q *Queries) ListUnsoldTicketNumbers(ctx context.Context, concertID int64) ([]models.TicketNumber, error) {
	rows, err := q.db.Query(ctx, `SELECT id, concert_id, number, ticket_id
FROM ticket_numbers
WHERE concert_id = $1 AND ticket_id IS NULL
ORDER BY id`, concertID)
	if err != nil {
		return nil, fmt.Errorf("list unsold ticket numbers: %w", err)
	}
	defer rows.Close()

	numbers := []models.TicketNumber{}
	for rows.Next() {
		var n models.TicketNumber
		if err := rows.Scan(&n.ID, &n.ConcertID, &n.Number, &n.TicketID); err != nil {
			return nil, fmt.Errorf("scan ticket number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

func (q *Queries) CreateTicketNumber(ctx context.Context, arg CreateTicketNumberParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, `INSERT INTO ticket_numbers (concert_id, number) VALUES ($1, $2) RETURNING id`,
		arg.ConcertID, arg.Number).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert ticket number: %w", err)
	}
	return id, nil
}

func (q *Queries) DeleteTicketNumbers(ctx context.Context, ids []int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM ticket_numbers WHERE id = ANY($1) AND ticket_id IS NULL`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete ticket numbers: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) AssignTicketNumber(ctx context.Context, arg AssignTicketNumberParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE ticket_numbers SET ticket_id = $2 WHERE id = $1 AND ticket_id IS NULL`, arg.ID, arg.TicketID)
	if err != nil {
		return 0, fmt.Errorf("assign ticket number: %w", err)
	}
	return tag.RowsAffected(), nil
}
