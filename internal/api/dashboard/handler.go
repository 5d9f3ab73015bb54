// Package dashboard provides aggregate reporting API endpoints.
package dashboard

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/taskforge/internal/api/middleware"
	"github.com/good-yellow-bee/taskforge/internal/models"
	"github.com/good-yellow-bee/taskforge/internal/reporting"
	"github.com/good-yellow-bee/taskforge/internal/storage"
)

const (
	dueSoonWindow  = 7 * 24 * time.Hour
	dueSoonLimit   = 10
	recentActivity = 10
	statsWindow    = 30 // days
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

const errCodeInternalError = "INTERNAL_ERROR"

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

// Handler handles dashboard endpoints.
type Handler struct {
	storage storage.Storage
}

// NewHandler creates a new dashboard handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// Overview is the per-user dashboard payload.
type Overview struct {
	OpenTasks           int64                       `json:"open_tasks"`
	OverdueTasks        int64                       `json:"overdue_tasks"`
	TasksByStatus       map[models.TaskStatus]int64 `json:"tasks_by_status"`
	OwnedProjects       int64                       `json:"owned_projects"`
	MemberProjects      int64                       `json:"member_projects"`
	DueSoon             []*models.Task              `json:"due_soon"`
	RecentActivity      []*models.Activity          `json:"recent_activity"`
	UnreadNotifications int64                       `json:"unread_notifications"`
}

// Stats is the admin-wide statistics payload.
type Stats struct {
	TotalUsers         int64                          `json:"total_users"`
	ActiveUsersByRole  map[models.Role]int64          `json:"active_users_by_role"`
	TotalProjects      int64                          `json:"total_projects"`
	ProjectsByStatus   map[models.ProjectStatus]int64 `json:"projects_by_status"`
	TotalTasks         int64                          `json:"total_tasks"`
	TasksByStatus      map[models.TaskStatus]int64    `json:"tasks_by_status"`
	DailyRegistrations []reporting.DailyCount         `json:"daily_registrations"`
	DailyCompletions   []reporting.DailyCount         `json:"daily_completions"`
}

// GetOverview returns the caller's dashboard. The independent reads run
// concurrently and join before the response is written.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	now := time.Now()

	var overview Overview

	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() error {
		n, err := h.storage.Tasks().CountOpenForAssignee(ctx, userID)
		overview.OpenTasks = n
		return err
	})
	g.Go(func() error {
		n, err := h.storage.Tasks().CountOverdueForAssignee(ctx, userID, now)
		overview.OverdueTasks = n
		return err
	})
	g.Go(func() error {
		counts, err := h.storage.Tasks().CountByStatusForAssignee(ctx, userID)
		overview.TasksByStatus = counts
		return err
	})
	g.Go(func() error {
		owned, member, err := h.storage.Projects().CountForUser(ctx, userID)
		overview.OwnedProjects = owned
		overview.MemberProjects = member
		return err
	})
	g.Go(func() error {
		tasks, err := h.storage.Tasks().ListDueSoon(ctx, userID, now, now.Add(dueSoonWindow), dueSoonLimit)
		overview.DueSoon = tasks
		return err
	})
	g.Go(func() error {
		entries, _, err := h.storage.Activities().ListByActor(ctx, userID, recentActivity, 0)
		overview.RecentActivity = entries
		return err
	})
	g.Go(func() error {
		n, err := h.storage.Notifications().CountUnread(ctx, userID)
		overview.UnreadNotifications = n
		return err
	})

	if err := g.Wait(); err != nil {
		log.Printf("dashboard overview error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, &overview)
}

// GetStats returns system-wide statistics over a trailing 30-day window
// (admin only).
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	var stats Stats

	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() error {
		n, err := h.storage.Users().Count(ctx)
		stats.TotalUsers = n
		return err
	})
	g.Go(func() error {
		counts, err := h.storage.Users().CountByRole(ctx)
		stats.ActiveUsersByRole = counts
		return err
	})
	g.Go(func() error {
		n, err := h.storage.Projects().Count(ctx)
		stats.TotalProjects = n
		return err
	})
	g.Go(func() error {
		counts, err := h.storage.Projects().CountByStatus(ctx)
		stats.ProjectsByStatus = counts
		return err
	})
	g.Go(func() error {
		n, err := h.storage.Tasks().Count(ctx)
		stats.TotalTasks = n
		return err
	})
	g.Go(func() error {
		counts, err := h.storage.Tasks().CountByStatus(ctx)
		stats.TasksByStatus = counts
		return err
	})
	g.Go(func() error {
		counts, err := h.storage.Users().DailyRegistrations(ctx, statsWindow, now)
		if err != nil {
			return err
		}
		stats.DailyRegistrations = reporting.FillDaily(counts, statsWindow, now)
		return nil
	})
	g.Go(func() error {
		counts, err := h.storage.Tasks().DailyCompletions(ctx, statsWindow, now)
		if err != nil {
			return err
		}
		stats.DailyCompletions = reporting.FillDaily(counts, statsWindow, now)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("dashboard stats error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, &stats)
}
