package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ayo6706/concert-ticketing/internal/models"
	"github.com/ayo6706/concert-ticketing/internal/repository"
	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	repo *repository.ConcertRepository
}

func NewUserHandler(repo *repository.ConcertRepository) *UserHandler {
	return &UserHandler{repo: repo}
}

// UpsertMe creates or renames the profile of the authenticated user.
func (h *UserHandler) UpsertMe(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		respondValidation(w, r, []string{"display_name is required"})
		return
	}

	user := &models.User{ID: actorID, DisplayName: name}
	if _, err := h.repo.CreateOrUpdateUser(r.Context(), user); err != nil {
		respondRepoError(w, r, err, "user/upsert-failed", "Failed to save user")
		return
	}
	RespondJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	id := chi.URLParam(r, "id")
	if !isAdmin && id != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	user, err := h.repo.GetUserByID(r.Context(), id)
	if err != nil {
		respondRepoError(w, r, err, "user/read-failed", "Failed to get user")
		return
	}
	if user == nil {
		RespondError(w, r, http.StatusNotFound, "user/not-found", "User not found")
		return
	}
	RespondJSON(w, http.StatusOK, user)
}
