package middleware

import (
	"context"
	"net/http"

	"github.com/ayo6706/concert-ticketing/internal/api/problem"
	"github.com/google/uuid"
)

const maxTraceIDLength = 128

// TraceMiddleware propagates the caller's trace id, minting one when absent or oversized.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(problem.TraceHeader)
		if traceID == "" || len(traceID) > maxTraceIDLength {
			traceID = uuid.NewString()
			r.Header.Set(problem.TraceHeader, traceID)
		}
		w.Header().Set(problem.TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), traceContextKey, traceID)))
	})
}
