package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/taskforge/internal/api/auth"
	"github.com/good-yellow-bee/taskforge/internal/api/dashboard"
	"github.com/good-yellow-bee/taskforge/internal/api/middleware"
	"github.com/good-yellow-bee/taskforge/internal/api/notifications"
	"github.com/good-yellow-bee/taskforge/internal/api/projects"
	"github.com/good-yellow-bee/taskforge/internal/api/search"
	"github.com/good-yellow-bee/taskforge/internal/api/tasks"
	"github.com/good-yellow-bee/taskforge/internal/api/users"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	jwtService := auth.NewJWTService(s.config.JWTSecret, s.config.AccessTokenTTL)
	lockoutTracker := auth.NewLockoutTracker(s.config.LockoutThreshold, s.config.LockoutDuration)

	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)
	userLimiter := middleware.NewRateLimiter(s.config.RateLimitPerUser)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.PrometheusMiddleware)

	// JSON fallbacks so unmatched routes get the standard envelope
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, ErrMethodNotAllowed)
	})

	authHandler := auth.NewHandler(s.storage, jwtService, lockoutTracker, s.config.RefreshTokenTTL)
	userHandler := users.NewHandler(s.storage, s.recorder)
	projectHandler := projects.NewHandler(s.storage, s.recorder)
	taskHandler := tasks.NewHandler(s.storage, s.recorder)
	notificationHandler := notifications.NewHandler(s.storage)
	dashboardHandler := dashboard.NewHandler(s.storage)
	searchHandler := search.NewHandler(s.storage)

	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (mostly public)
		r.Route("/auth", func(r chi.Router) {
			// Public routes with IP rate limiting
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(ipLimiter))
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
			})

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.JWTAuth(jwtService))
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Everything below requires a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService))
			r.Use(middleware.RateLimitByUser(userLimiter))

			r.Route("/users", func(r chi.Router) {
				// Current user endpoints
				r.Get("/me", userHandler.GetCurrentUser)
				r.Put("/me/password", userHandler.ChangePassword)

				// Admin-only endpoints
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Get("/", userHandler.List)
					r.Post("/", userHandler.Create)
				})

				// Per-user endpoints
				r.Route("/{id}", func(r chi.Router) {
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireAdminOrSelf)
						r.Get("/", userHandler.GetByID)
						r.Put("/", userHandler.Update)
						r.Get("/activity", userHandler.Activity)
					})

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireAdmin)
						r.Delete("/", userHandler.Deactivate)
						r.Put("/role", userHandler.ChangeRole)
						r.Put("/activate", userHandler.Activate)
					})
				})
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireCanCreate)
					r.Post("/", projectHandler.Create)
				})

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", projectHandler.Get)
					r.Put("/", projectHandler.Update)
					r.Delete("/", projectHandler.Delete)

					r.Get("/members", projectHandler.ListMembers)
					r.Post("/members", projectHandler.AddMember)
					r.Delete("/members/{userID}", projectHandler.RemoveMember)
					r.Put("/members/{userID}/role", projectHandler.UpdateMemberRole)

					r.Get("/tasks", taskHandler.ListByProject)
					r.Post("/tasks", taskHandler.CreateForProject)

					r.Get("/labels", projectHandler.ListLabels)
					r.Post("/labels", projectHandler.CreateLabel)

					r.Get("/workload", projectHandler.Workload)
					r.Get("/activity", projectHandler.Activity)
				})
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.ListMine)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", taskHandler.Get)
					r.Put("/", taskHandler.Update)
					r.Delete("/", taskHandler.Delete)
					r.Get("/activity", taskHandler.Activity)

					r.Get("/comments", taskHandler.ListComments)
					r.Post("/comments", taskHandler.CreateComment)
				})
			})

			r.Route("/comments/{commentID}", func(r chi.Router) {
				r.Put("/", taskHandler.UpdateComment)
				r.Delete("/", taskHandler.DeleteComment)
			})

			r.Route("/labels/{id}", func(r chi.Router) {
				r.Put("/", projectHandler.UpdateLabel)
				r.Delete("/", projectHandler.DeleteLabel)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Post("/{id}/read", notificationHandler.MarkRead)
				r.Post("/read-all", notificationHandler.MarkAllRead)
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/overview", dashboardHandler.GetOverview)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Get("/stats", dashboardHandler.GetStats)
				})
			})

			r.Get("/search", searchHandler.Search)
		})
	})

	// Health check (public, no rate limit)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		OK(w, map[string]string{"status": "ok"})
	})

	return r
}
