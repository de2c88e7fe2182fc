package repository

import (
	"context"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/models"
)

// Querier is the statement set shared by the postgres and in-memory stores. Lookups of a
// single row return models.ErrNotFound when nothing matches.
type Querier interface {
	CreateConcert(ctx context.Context, c *models.Concert) (int64, error)
	UpdateConcert(ctx context.Context, c *models.Concert) (int64, error)
	DeleteConcert(ctx context.Context, id int64) (int64, error)
	GetConcert(ctx context.Context, id int64) (models.Concert, error)
	ListConcertsByIDs(ctx context.Context, ids []int64) ([]models.Concert, error)
	// ListUpcomingConcerts returns visible concerts starting strictly after the given time,
	// soonest first.
	ListUpcomingConcerts(ctx context.Context, after time.Time, limit int32) ([]models.Concert, error)

	UpsertUser(ctx context.Context, u models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)

	CreateTicket(ctx context.Context, arg CreateTicketParams) (int64, error)
	GetTicket(ctx context.Context, id int64) (models.Ticket, error)
	CountTicketsByUser(ctx context.Context, userID string) (int64, error)
	// ListTicketsByUser orders by descending ticket id and attaches each ticket's concert.
	ListTicketsByUser(ctx context.Context, arg ListTicketsByUserParams) ([]models.Ticket, error)

	CountTicketNumbers(ctx context.Context, concertID int64) (int64, error)
	// ListUnsoldTicketNumbers returns the concert's numbers with no ticket, lowest id first.
	ListUnsoldTicketNumbers(ctx context.Context, concertID int64) ([]models.TicketNumber, error)
	CreateTicketNumber(ctx context.Context, arg CreateTicketNumberParams) (int64, error)
	DeleteTicketNumbers(ctx context.Context, ids []int64) (int64, error)
	AssignTicketNumber(ctx context.Context, arg AssignTicketNumberParams) (int64, error)
}

type CreateTicketParams struct {
	ConcertID int64
	UserID    string
}

type ListTicketsByUserParams struct {
	UserID string
	Limit  int32
	Offset int32
}

type CreateTicketNumberParams struct {
	ConcertID int64
	Number    string
}

type AssignTicketNumberParams struct {
	ID       int64
	TicketID int64
}
