package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/models"
	"github.com/ayo6706/concert-ticketing/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultUpcomingCount = 10
	maxUpcomingCount     = 100
	maxConcertIDs        = 100
)

type ConcertHandler struct {
	repo *repository.ConcertRepository
}

func NewConcertHandler(repo *repository.ConcertRepository) *ConcertHandler {
	return &ConcertHandler{repo: repo}
}

type concertRequest struct {
	Title       string          `json:"title"`
	Artist      string          `json:"artist"`
	Genre       string          `json:"genre"`
	Location    string          `json:"location"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	StartTime   time.Time       `json:"start_time"`
	IsVisible   bool            `json:"is_visible"`
}

func (req concertRequest) toConcert() *models.Concert {
	return &models.Concert{
		Title:       strings.TrimSpace(req.Title),
		Artist:      strings.TrimSpace(req.Artist),
		Genre:       strings.TrimSpace(req.Genre),
		Location:    strings.TrimSpace(req.Location),
		Description: req.Description,
		Price:       req.Price,
		StartTime:   req.StartTime,
		IsVisible:   req.IsVisible,
	}
}

func (h *ConcertHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	count, err := intQuery(r, "count", defaultUpcomingCount)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-count", err.Error())
		return
	}
	count = min(count, maxUpcomingCount)

	concerts, err := h.repo.GetUpcomingConcerts(r.Context(), count)
	if err != nil {
		respondRepoError(w, r, err, "concert/upcoming-read-failed", "Failed to get upcoming concerts")
		return
	}
	RespondJSON(w, http.StatusOK, concerts)
}

func (h *ConcertHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-concert-id", "Invalid concert ID")
		return
	}

	concert, err := h.repo.GetConcertByID(r.Context(), id)
	if err != nil {
		respondRepoError(w, r, err, "concert/read-failed", "Failed to get concert")
		return
	}
	if concert == nil {
		RespondError(w, r, http.StatusNotFound, "concert/not-found", "Concert not found")
		return
	}
	RespondJSON(w, http.StatusOK, concert)
}

// List returns the concerts named by the comma-separated ids query parameter.
func (h *ConcertHandler) List(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if strings.TrimSpace(raw) == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-ids", "ids query parameter is required")
		return
	}
	parts := strings.Split(raw, ",")
	if len(parts) > maxConcertIDs {
		RespondError(w, r, http.StatusBadRequest, "request/too-many-ids", "at most 100 ids per request")
		return
	}
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-concert-id", "Invalid concert ID "+strconv.Quote(p))
			return
		}
		ids = append(ids, id)
	}

	concerts, err := h.repo.GetConcertsByID(r.Context(), ids)
	if err != nil {
		respondRepoError(w, r, err, "concert/list-failed", "Failed to list concerts")
		return
	}
	RespondJSON(w, http.StatusOK, concerts)
}

func (h *ConcertHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req concertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	concert := req.toConcert()
	concert.CreatedBy = actorID
	concert.UpdatedBy = actorID

	res, err := h.repo.CreateConcert(r.Context(), concert)
	if err != nil {
		respondRepoError(w, r, err, "concert/create-failed", "Failed to create concert")
		return
	}
	if !res.Success {
		respondValidation(w, r, res.Errors)
		return
	}

	zap.L().Info("concert created", zap.Int64("concert_id", res.NewID), zap.String("actor", actorID))
	w.Header().Set("Location", "/v1/concerts/"+strconv.FormatInt(res.NewID, 10))
	RespondJSON(w, http.StatusCreated, concert)
}

func (h *ConcertHandler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	id, err := int64Param(r, "id")
	if err != nil || id <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-concert-id", "Invalid concert ID")
		return
	}

	var req concertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	concert := req.toConcert()
	concert.ID = id
	concert.UpdatedBy = actorID

	res, err := h.repo.UpdateConcert(r.Context(), concert)
	if err != nil {
		respondRepoError(w, r, err, "concert/update-failed", "Failed to update concert")
		return
	}
	if !res.Success {
		respondValidation(w, r, res.Errors)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

func (h *ConcertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-concert-id", "Invalid concert ID")
		return
	}

	res, err := h.repo.DeleteConcert(r.Context(), id)
	if err != nil {
		respondRepoError(w, r, err, "concert/delete-failed", "Failed to delete concert")
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

// SetTicketNumbers resizes the concert's ticket-number pool.
func (h *ConcertHandler) SetTicketNumbers(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil || id <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-concert-id", "Invalid concert ID")
		return
	}

	var req struct {
		NumberOfTickets *int `json:"number_of_tickets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NumberOfTickets == nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "number_of_tickets is required")
		return
	}
	if *req.NumberOfTickets < 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-number-of-tickets", "number_of_tickets must not be negative")
		return
	}

	res, err := h.repo.CreateOrUpdateTicketNumbers(r.Context(), id, *req.NumberOfTickets)
	if err != nil {
		respondRepoError(w, r, err, "ticket-numbers/update-failed", "Failed to update ticket numbers")
		return
	}
	RespondJSON(w, http.StatusOK, res)
}
