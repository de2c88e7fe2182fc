package api

import (
	"github.com/ayo6706/concert-ticketing/internal/api/handler"
	"github.com/ayo6706/concert-ticketing/internal/api/middleware"
	"github.com/ayo6706/concert-ticketing/internal/api/spec"
	"github.com/ayo6706/concert-ticketing/internal/config"
	"github.com/ayo6706/concert-ticketing/internal/domain"
	"github.com/ayo6706/concert-ticketing/internal/gateway"
	"github.com/ayo6706/concert-ticketing/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type Router struct {
	cfg    *config.Config
	logger *zap.Logger
	db     handler.Pinger
	redis  redis.Cmdable
	repo   *repository.ConcertRepository
	gw     gateway.Gateway
}

// NewRouter wires the HTTP surface. db and redis may be nil when the matching backend is not in use.
func NewRouter(cfg *config.Config, logger *zap.Logger, db handler.Pinger, redis redis.Cmdable, repo *repository.ConcertRepository, gw gateway.Gateway) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{cfg: cfg, logger: logger, db: db, redis: redis, repo: repo, gw: gw}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	// Handlers
	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	authHandler := handler.NewAuthHandler(api.cfg.AdminUserIDs)
	concertHandler := handler.NewConcertHandler(api.repo)
	userHandler := handler.NewUserHandler(api.repo)
	ticketHandler := handler.NewTicketHandler(api.repo)
	paymentHandler := handler.NewPaymentHandler(api.gw)

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Public Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Post("/v1/auth/login", authHandler.Login)

		r.Get("/v1/concerts/upcoming", concertHandler.Upcoming)
		r.Get("/v1/concerts/{id}", concertHandler.Get)
		r.Get("/v1/concerts", concertHandler.List)

		r.Get("/v1/payments/currencies", paymentHandler.Currencies)
		r.Post("/v1/payments/preauthorize", paymentHandler.PreAuthorize)
		r.Post("/v1/payments/capture", paymentHandler.Capture)
	})

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Put("/v1/users/me", userHandler.UpsertMe)
		r.Get("/v1/users/{id}", userHandler.Get)

		r.Get("/v1/tickets", ticketHandler.List)
		r.Get("/v1/tickets/count", ticketHandler.Count)
		r.Get("/v1/tickets/{id}", ticketHandler.Get)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))

			r.Post("/v1/concerts", concertHandler.Create)
			r.Put("/v1/concerts/{id}", concertHandler.Update)
			r.Delete("/v1/concerts/{id}", concertHandler.Delete)
			r.Put("/v1/concerts/{id}/ticket-numbers", concertHandler.SetTicketNumbers)
		})
	})

	return r
}
