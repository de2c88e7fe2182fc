package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Concert struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Artist      string          `json:"artist"`
	Genre       string          `json:"genre"`
	Location    string          `json:"location"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	StartTime   time.Time       `json:"start_time"`
	IsVisible   bool            `json:"is_visible"`
	CreatedOn   time.Time       `json:"created_on"`
	CreatedBy   string          `json:"created_by"`
	UpdatedOn   time.Time       `json:"updated_on"`
	UpdatedBy   string          `json:"updated_by"`
}

// Validate returns one message per invalid field; an empty result means the concert can be saved.
func (c *Concert) Validate() []string {
	var errs []string
	if strings.TrimSpace(c.Title) == "" {
		errs = append(errs, "title is required")
	}
	if strings.TrimSpace(c.Artist) == "" {
		errs = append(errs, "artist is required")
	}
	if strings.TrimSpace(c.Location) == "" {
		errs = append(errs, "location is required")
	}
	if c.Price.IsNegative() {
		errs = append(errs, "price must not be negative")
	}
	if c.StartTime.IsZero() {
		errs = append(errs, "start_time is required")
	}
	return errs
}

type Ticket struct {
	ID        int64     `json:"id"`
	ConcertID int64     `json:"concert_id"`
	UserID    string    `json:"user_id"`
	Concert   *Concert  `json:"concert,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketNumber is one seat in a concert's pool. A nil TicketID means the number is unsold.
type TicketNumber struct {
	ID        int64  `json:"id"`
	ConcertID int64  `json:"concert_id"`
	Number    string `json:"number"`
	TicketID  *int64 `json:"ticket_id,omitempty"`
}

func (n TicketNumber) IsSold() bool {
	return n.TicketID != nil
}

type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// PagedResult is one page of a larger result set.
type PagedResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
}

func NewPagedResult[T any](items []T, total int) PagedResult[T] {
	if items == nil {
		items = []T{}
	}
	return PagedResult[T]{Items: items, TotalCount: total}
}
