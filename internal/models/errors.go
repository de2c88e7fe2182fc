package models

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrRepositoryClosed = errors.New("repository is closed")

	// ErrInsufficientUnsoldTicketNumbers is returned when shrinking a ticket-number pool would
	// require deleting numbers already assigned to a ticket. It is never retried.
	ErrInsufficientUnsoldTicketNumbers = errors.New("not enough unsold ticket numbers to remove")
)
