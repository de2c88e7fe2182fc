package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ayo6706/concert-ticketing/internal/api/middleware"
	"github.com/ayo6706/concert-ticketing/internal/api/problem"
	"github.com/ayo6706/concert-ticketing/internal/models"
	"github.com/ayo6706/concert-ticketing/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	problem.Write(w, r, status, problem.Type(problemType), http.StatusText(status), message)
}

// validationProblem is a problem document carrying per-field validation messages.
type validationProblem struct {
	problem.Details
	Errors []string `json:"errors"`
}

func respondValidation(w http.ResponseWriter, r *http.Request, errs []string) {
	problem.WriteDocument(w, http.StatusBadRequest, validationProblem{
		Details: problem.New(w, r, http.StatusBadRequest, problem.Type("request/validation-failed"), "", "request failed validation"),
		Errors:  errs,
	})
}

func requestActor(r *http.Request) (string, bool, error) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return "", false, errors.New("missing user in auth context")
	}
	return id.UserID, id.IsAdmin(), nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// intQuery parses an optional non-negative query parameter.
func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return v, nil
}

// respondRepoError maps repository failures onto problem responses.
func respondRepoError(w http.ResponseWriter, r *http.Request, err error, failType, failMsg string) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		RespondError(w, r, http.StatusBadRequest, "request/invalid-argument", err.Error())
	case errors.Is(err, models.ErrNotFound):
		RespondError(w, r, http.StatusNotFound, "resource/not-found", "resource not found")
	case errors.Is(err, models.ErrInsufficientUnsoldTicketNumbers):
		RespondError(w, r, http.StatusConflict, "ticket-numbers/insufficient-unsold", "cannot remove ticket numbers that are already sold")
	case errors.Is(err, models.ErrRepositoryClosed):
		RespondError(w, r, http.StatusServiceUnavailable, "service/unavailable", "service is shutting down")
	case errors.Is(err, repository.ErrRetriesExhausted):
		zap.L().Warn("request failed after transaction retries", zap.Error(err), zap.String("path", r.URL.Path))
		RespondError(w, r, http.StatusServiceUnavailable, "db/contention", "the store is busy, retry later")
	default:
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error(failMsg, zap.Error(err), zap.String("path", r.URL.Path))
		RespondError(w, r, http.StatusInternalServerError, failType, failMsg)
	}
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
