package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	// CacheKeyUpcomingConcerts names the single cache entry holding the upcoming-concerts view.
	CacheKeyUpcomingConcerts = "concerts:upcoming"

	UpcomingConcertsTTL = time.Hour

	// Ticket-number reconciliation outcomes
	TicketNumbersAdded     = "added"
	TicketNumbersRemoved   = "removed"
	TicketNumbersUnchanged = "unchanged"
	TicketNumbersRejected  = "rejected"
)
