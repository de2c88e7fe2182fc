package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/api/middleware"
	"github.com/ayo6706/concert-ticketing/internal/domain"
	"go.uber.org/zap"
)

const tokenTTL = 24 * time.Hour

type AuthHandler struct {
	admins map[string]struct{}
}

// NewAuthHandler issues admin tokens to the listed user ids and user tokens to everyone else.
func NewAuthHandler(adminUserIDs []string) *AuthHandler {
	admins := make(map[string]struct{}, len(adminUserIDs))
	for _, id := range adminUserIDs {
		admins[id] = struct{}{}
	}
	return &AuthHandler{admins: admins}
}

// Login is a mock identity provider: it trusts the supplied external user id.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid user_id")
		return
	}

	role := domain.RoleUser
	if _, ok := h.admins[userID]; ok {
		role = domain.RoleAdmin
	}

	tokenString, err := middleware.IssueToken(middleware.Identity{UserID: userID, Role: role}, time.Now(), tokenTTL)
	if err != nil {
		zap.L().Error("sign token failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "auth/token-signing-failed", "Failed to sign token")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"token": tokenString,
		"role":  role,
	})
}
