package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/finance-tracker/internal/analytics"
	"github.com/frahmantamala/finance-tracker/internal/auth"
	"github.com/frahmantamala/finance-tracker/internal/cache"
	"github.com/frahmantamala/finance-tracker/internal/category"
	"github.com/frahmantamala/finance-tracker/internal/transaction"
	"github.com/frahmantamala/finance-tracker/internal/transport/middleware"
	"github.com/frahmantamala/finance-tracker/internal/transport/swagger"
	"github.com/frahmantamala/finance-tracker/internal/user"
)

// Handlers groups the HTTP handlers mounted under /api/v1. Nil handlers are
// skipped.
type Handlers struct {
	Auth        *auth.Handler
	User        *user.Handler
	Category    *category.Handler
	Transaction *transaction.Handler
	Analytics   *analytics.Handler
}

type RouterOptions struct {
	DB             *sql.DB
	Cache          cache.Store
	AllowedOrigins []string
	// Metrics is mounted at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
	OpenAPIPath string
	Logger      *slog.Logger
	// LogBodies adds redacted bodies to the access log.
	LogBodies bool
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts RouterOptions) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	healthHandler := NewHealthHandler(opts.DB, opts.Cache)

	// Apply global middleware
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger, middleware.AccessLogOptions{Bodies: opts.LogBodies}))

	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, opts.Metrics)
	}

	openAPIPath := opts.OpenAPIPath
	if openAPIPath == "" {
		openAPIPath = "./api/openapi.yml"
	}
	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, openAPIPath)
	})
	router.Handle("/swagger/*", swagger.Handler())

	writers := middleware.RequireRoles(logger, auth.RoleAdmin, auth.RoleUser)
	adminOnly := middleware.RequireRoles(logger, auth.RoleAdmin)

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Auth != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/register", h.Auth.Register)
				sr.Post("/login", h.Auth.Login)
				sr.Post("/refresh", h.Auth.RefreshToken)
			})
		}

		// Public categories route (no auth required)
		if h.Category != nil {
			r.Get("/categories", h.Category.GetCategories)
			r.Get("/categories/{id}", h.Category.GetCategory)
		}

		if h.Auth == nil {
			return
		}

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
				pr.Put("/users/me", h.User.UpdateCurrentUser)

				pr.Group(func(ar chi.Router) {
					ar.Use(adminOnly)
					ar.Get("/users", h.User.ListUsers)
					ar.Put("/users/{id}/role", h.User.UpdateUserRole)
					ar.Delete("/users/{id}", h.User.DeleteUser)
					ar.Get("/admin/stats", h.User.GetSystemStats)
				})
			}

			if h.Category != nil {
				pr.Group(func(ar chi.Router) {
					ar.Use(adminOnly)
					ar.Post("/categories", h.Category.CreateCategory)
					ar.Put("/categories/{id}", h.Category.UpdateCategory)
					ar.Delete("/categories/{id}", h.Category.DeleteCategory)
				})
			}

			if h.Transaction != nil {
				pr.Route("/transactions", func(tr chi.Router) {
					tr.Get("/", h.Transaction.ListTransactions)
					tr.Get("/{id}", h.Transaction.GetTransaction)

					tr.Group(func(wr chi.Router) {
						wr.Use(writers)
						wr.Post("/", h.Transaction.CreateTransaction)
						wr.Put("/{id}", h.Transaction.UpdateTransaction)
						wr.Delete("/{id}", h.Transaction.DeleteTransaction)
					})
				})

				pr.Route("/admin/transactions", func(ar chi.Router) {
					ar.Use(adminOnly)
					ar.Get("/", h.Transaction.AdminListTransactions)
					ar.Post("/", h.Transaction.AdminCreateTransaction)
					ar.Put("/{id}", h.Transaction.AdminUpdateTransaction)
					ar.Delete("/{id}", h.Transaction.AdminDeleteTransaction)
				})
			}

			if h.Analytics != nil {
				pr.Route("/analytics", func(ar chi.Router) {
					ar.Get("/user", h.Analytics.GetUserAnalytics)
					ar.Get("/global", h.Analytics.GetGlobalAnalytics)
					ar.Get("/categories", h.Analytics.GetCategoryAnalytics)
					ar.Get("/trends", h.Analytics.GetSpendingTrends)
				})
			}
		})
	})
}
