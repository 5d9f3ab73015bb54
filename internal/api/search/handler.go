// Package search provides the cross-entity search API endpoint.
package search

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/taskforge/internal/api/middleware"
	"github.com/good-yellow-bee/taskforge/internal/metrics"
	"github.com/good-yellow-bee/taskforge/internal/models"
	"github.com/good-yellow-bee/taskforge/internal/storage"
)

const (
	defaultLimit = 20
	maxLimit     = 50
	minQueryLen  = 2
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

// Handler handles the search endpoint.
type Handler struct {
	storage storage.Storage
}

// NewHandler creates a new search handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// Results groups matches by entity type. Each slice is capped at the
// caller's limit; Total sums what was returned, not what exists.
type Results struct {
	Query    string            `json:"query"`
	Tasks    []*models.Task    `json:"tasks,omitempty"`
	Projects []*models.Project `json:"projects,omitempty"`
	Users    []*models.User    `json:"users,omitempty"`
	Comments []*models.Comment `json:"comments,omitempty"`
	Total    int               `json:"total"`
}

var validScopes = map[string]bool{
	"": true, "all": true, "tasks": true, "projects": true, "users": true, "comments": true,
}

// Search runs a case-insensitive substring search across the entities
// the caller may see. Tasks and comments are restricted to visible
// projects; users to active accounts.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) < minQueryLen {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "query must be at least 2 characters")
		return
	}

	scope := r.URL.Query().Get("scope")
	if !validScopes[scope] {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "scope must be all, tasks, projects, users, or comments")
		return
	}
	if scope == "" {
		scope = "all"
	}

	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			if n > maxLimit {
				n = maxLimit
			}
			limit = n
		}
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	isAdmin := middleware.GetRole(ctx) == models.RoleAdmin

	// Task and comment scopes are bounded by the projects the caller
	// can read, computed once up front.
	var projectIDs []string
	if scope == "all" || scope == "tasks" || scope == "comments" {
		var err error
		projectIDs, err = h.storage.Projects().VisibleProjectIDs(ctx, userID, isAdmin)
		if err != nil {
			log.Printf("search error: visible projects: %v", err)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
			return
		}
	}

	results := Results{Query: q}

	g, gctx := errgroup.WithContext(ctx)

	if scope == "all" || scope == "tasks" {
		g.Go(func() error {
			tasks, err := h.storage.Tasks().Search(gctx, projectIDs, q, limit)
			results.Tasks = tasks
			return err
		})
	}
	if scope == "all" || scope == "projects" {
		g.Go(func() error {
			projects, err := h.storage.Projects().Search(gctx, userID, isAdmin, q, limit)
			results.Projects = projects
			return err
		})
	}
	if scope == "all" || scope == "users" {
		g.Go(func() error {
			users, err := h.storage.Users().Search(gctx, q, limit)
			results.Users = users
			return err
		})
	}
	if scope == "all" || scope == "comments" {
		g.Go(func() error {
			comments, err := h.storage.Comments().Search(gctx, projectIDs, q, limit)
			results.Comments = comments
			return err
		})
	}

	if err := g.Wait(); err != nil {
		log.Printf("search error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	results.Total = len(results.Tasks) + len(results.Projects) + len(results.Users) + len(results.Comments)
	metrics.SearchQueriesTotal.Inc()

	jsonOK(w, &results)
}
