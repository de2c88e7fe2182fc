package handler

import (
	"net/http"

	"github.com/ayo6706/concert-ticketing/internal/repository"
)

const (
	defaultTicketPageSize = 20
	maxTicketPageSize     = 100
)

type TicketHandler struct {
	repo *repository.ConcertRepository
}

func NewTicketHandler(repo *repository.ConcertRepository) *TicketHandler {
	return &TicketHandler{repo: repo}
}

// List returns a page of the caller's tickets, newest first.
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	skip, err := intQuery(r, "skip", 0)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-paging", err.Error())
		return
	}
	take, err := intQuery(r, "take", defaultTicketPageSize)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-paging", err.Error())
		return
	}
	take = min(take, maxTicketPageSize)

	page, err := h.repo.GetAllTickets(r.Context(), actorID, skip, take)
	if err != nil {
		respondRepoError(w, r, err, "ticket/list-failed", "Failed to list tickets")
		return
	}
	RespondJSON(w, http.StatusOK, page)
}

func (h *TicketHandler) Count(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	count, err := h.repo.GetCountForAllTickets(r.Context(), actorID)
	if err != nil {
		respondRepoError(w, r, err, "ticket/count-failed", "Failed to count tickets")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	id, err := int64Param(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-ticket-id", "Invalid ticket ID")
		return
	}

	ticket, err := h.repo.GetTicketByID(r.Context(), id)
	if err != nil {
		respondRepoError(w, r, err, "ticket/read-failed", "Failed to get ticket")
		return
	}
	// a foreign ticket is reported as missing
	if ticket == nil || (!isAdmin && ticket.UserID != actorID) {
		RespondError(w, r, http.StatusNotFound, "ticket/not-found", "Ticket not found")
		return
	}
	RespondJSON(w, http.StatusOK, ticket)
}
