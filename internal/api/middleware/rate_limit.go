package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/api/problem"
	"github.com/go-chi/httprate"
)

// PublicRateLimiter limits anonymous routes (concert browsing, login, payments) per client IP.
func PublicRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(limitExceeded(rps, "IP")),
	)
}

// AuthRateLimiter limits authenticated routes per user, falling back to the client IP.
func AuthRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(keyByUser),
		httprate.WithLimitHandler(limitExceeded(rps, "user")),
	)
}

func keyByUser(r *http.Request) (string, error) {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return "user:" + id.UserID, nil
	}
	return httprate.KeyByIP(r)
}

func limitExceeded(rps int, scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		problem.Write(w, r, http.StatusTooManyRequests, problem.Type("rate-limit-exceeded"), "",
			fmt.Sprintf("Rate limit of %d req/s exceeded for this %s", rps, scope))
	}
}
