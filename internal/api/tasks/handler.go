// Package tasks provides task and comment API endpoints.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/taskforge/internal/activity"
	"github.com/good-yellow-bee/taskforge/internal/api/middleware"
	"github.com/good-yellow-bee/taskforge/internal/authz"
	"github.com/good-yellow-bee/taskforge/internal/metrics"
	"github.com/good-yellow-bee/taskforge/internal/models"
	"github.com/good-yellow-bee/taskforge/internal/pagination"
	"github.com/good-yellow-bee/taskforge/internal/storage"
)

// Response helpers (local to avoid import cycle)

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

// Error codes
const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeForbidden        = "FORBIDDEN"
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

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Handler handles task management endpoints.
type Handler struct {
	storage  storage.Storage
	recorder *activity.Recorder
}

// NewHandler creates a new task handler.
func NewHandler(store storage.Storage, rec *activity.Recorder) *Handler {
	return &Handler{storage: store, recorder: rec}
}

// CreateRequest is the request body for creating a task.
type CreateRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	Type           string     `json:"type,omitempty"`
	AssigneeID     string     `json:"assignee_id,omitempty"`
	ParentTaskID   string     `json:"parent_task_id,omitempty"`
	Labels         []string   `json:"labels,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	EstimatedHours float64    `json:"estimated_hours,omitempty"`
}

// UpdateRequest is the request body for updating a task. Pointer fields
// distinguish "absent" from "set to zero".
type UpdateRequest struct {
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Status         *string    `json:"status,omitempty"`
	Priority       *string    `json:"priority,omitempty"`
	Type           *string    `json:"type,omitempty"`
	AssigneeID     *string    `json:"assignee_id,omitempty"`
	ParentTaskID   *string    `json:"parent_task_id,omitempty"`
	Labels         *[]string  `json:"labels,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	ClearDueDate   bool       `json:"clear_due_date,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	Order          *int64     `json:"order,omitempty"`
}

// loadTask fetches a task and its project, enforcing read access.
// Invisible tasks read as 404.
func (h *Handler) loadTask(w http.ResponseWriter, r *http.Request) (*models.Task, *models.Project) {
	taskID := chi.URLParam(r, "id")
	ctx := r.Context()

	task, err := h.storage.Tasks().GetByID(ctx, taskID)
	if err != nil {
		log.Printf("get task error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil, nil
	}
	if task == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "task not found")
		return nil, nil
	}

	project, err := h.storage.Projects().GetByID(ctx, task.ProjectID)
	if err != nil {
		log.Printf("get task project error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil, nil
	}
	if project == nil || !authz.CanReadTask(project, middleware.GetUserID(ctx), middleware.GetRole(ctx)) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "task not found")
		return nil, nil
	}

	return task, project
}

// validateAssignee checks that the assignee holds a role in the project.
func (h *Handler) validateAssignee(ctx context.Context, project *models.Project, assigneeID string) error {
	if assigneeID == "" {
		return nil
	}
	if _, ok := authz.ResolveRole(project, assigneeID); !ok {
		return fmt.Errorf("assignee is not a member of the project")
	}
	user, err := h.storage.Users().GetByID(ctx, assigneeID)
	if err != nil {
		return fmt.Errorf("get assignee: %w", err)
	}
	if user == nil || !user.IsActive {
		return fmt.Errorf("assignee not found")
	}
	return nil
}

// validateLabels checks that every label ID belongs to the project.
func (h *Handler) validateLabels(ctx context.Context, projectID string, labelIDs []string) error {
	for _, id := range labelIDs {
		label, err := h.storage.Labels().GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get label: %w", err)
		}
		if label == nil || label.ProjectID != projectID {
			return fmt.Errorf("label %s does not belong to the project", id)
		}
	}
	return nil
}

// validateParent checks that the parent task exists in the same project.
func (h *Handler) validateParent(ctx context.Context, projectID, parentID string) error {
	if parentID == "" {
		return nil
	}
	parent, err := h.storage.Tasks().GetByID(ctx, parentID)
	if err != nil {
		return fmt.Errorf("get parent task: %w", err)
	}
	if parent == nil || parent.ProjectID != projectID {
		return fmt.Errorf("parent task does not belong to the project")
	}
	return nil
}

// CreateForProject creates a task under /projects/{id}/tasks. The task
// number comes from the project's counter and is never reused.
func (h *Handler) CreateForProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	ctx := r.Context()
	actorID := middleware.GetUserID(ctx)

	project, err := h.storage.Projects().GetByID(ctx, projectID)
	if err != nil {
		log.Printf("create task error: get project: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if project == nil || !authz.CanViewProject(project, actorID, middleware.GetRole(ctx)) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "project not found")
		return
	}

	if !authz.CanCreateContent(middleware.GetRole(ctx)) || !authz.CanMutateTask(project, actorID) {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "title is required")
		return
	}

	task := models.NewTask(project.ID, req.Title, actorID)
	task.ID = uuid.New().String()
	task.Description = req.Description
	task.Type = req.Type
	task.DueDate = req.DueDate
	task.EstimatedHours = req.EstimatedHours

	if req.Status != "" {
		status, err := models.ParseTaskStatus(req.Status)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		task.ApplyStatus(status, time.Now())
	}
	if req.Priority != "" {
		priority, err := models.ParseTaskPriority(req.Priority)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		task.Priority = priority
	}

	if err := h.validateAssignee(ctx, project, req.AssigneeID); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	task.AssigneeID = req.AssigneeID

	if err := h.validateParent(ctx, project.ID, req.ParentTaskID); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	task.ParentTaskID = req.ParentTaskID

	if err := h.validateLabels(ctx, project.ID, req.Labels); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	task.Labels = req.Labels

	if err := h.storage.Tasks().Create(ctx, task, project.Key); err != nil {
		log.Printf("create task error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	metrics.TasksCreatedTotal.Inc()

	if task.Status == models.TaskStatusDone {
		if err := h.storage.Tasks().RecountCompleted(ctx, project.ID); err != nil {
			log.Printf("create task: recount completed: %v", err)
		}
	}

	a := models.NewActivity(models.ActionTaskCreate, actorID, models.EntityTask, task.ID)
	a.ProjectID = project.ID
	a.Metadata = map[string]string{"task_number": task.TaskNumber}
	h.recorder.Record(ctx, a)

	if task.AssigneeID != "" && task.AssigneeID != actorID {
		h.notifyAssigned(ctx, task)
	}

	log.Printf("task created: %s (%s)", task.TaskNumber, task.ID)
	jsonCreated(w, task)
}

// ListByProject returns a project's tasks, filtered and paginated.
func (h *Handler) ListByProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	ctx := r.Context()

	project, err := h.storage.Projects().GetByID(ctx, projectID)
	if err != nil {
		log.Printf("list tasks error: get project: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if project == nil || !authz.CanViewProject(project, middleware.GetUserID(ctx), middleware.GetRole(ctx)) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "project not found")
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	page := pagination.ParsePage(r)

	tasks, total, err := h.storage.Tasks().ListByProject(ctx, project.ID, filter, page.Size, page.Offset())
	if err != nil {
		log.Printf("list tasks error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, pagination.NewPaginatedResponse(tasks, total, page))
}

// ListMine returns tasks assigned to the caller, due-date order.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseFilter(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	page := pagination.ParsePage(r)

	tasks, total, err := h.storage.Tasks().ListByAssignee(ctx, middleware.GetUserID(ctx), filter, page.Size, page.Offset())
	if err != nil {
		log.Printf("list my tasks error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, pagination.NewPaginatedResponse(tasks, total, page))
}

// parseFilter reads task filter query parameters.
func parseFilter(r *http.Request) (storage.TaskFilter, error) {
	var filter storage.TaskFilter
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		status, err := models.ParseTaskStatus(v)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if v := q.Get("priority"); v != "" {
		priority, err := models.ParseTaskPriority(v)
		if err != nil {
			return filter, err
		}
		filter.Priority = priority
	}
	filter.AssigneeID = q.Get("assignee_id")
	filter.Type = q.Get("type")

	return filter, nil
}

// Get returns one task.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	task, _ := h.loadTask(w, r)
	if task == nil {
		return
	}
	jsonOK(w, task)
}

// Update mutates task fields. Task number, project and reporter are
// immutable.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	task, project := h.loadTask(w, r)
	if task == nil {
		return
	}

	ctx := r.Context()
	actorID := middleware.GetUserID(ctx)

	if !authz.CanMutateTask(project, actorID) {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	before := *task
	before.Labels = append([]string(nil), task.Labels...)

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "title cannot be empty")
			return
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		status, err := models.ParseTaskStatus(*req.Status)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		task.ApplyStatus(status, time.Now())
	}
	if req.Priority != nil {
		priority, err := models.ParseTaskPriority(*req.Priority)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		task.Priority = priority
	}
	if req.Type != nil {
		task.Type = *req.Type
	}
	if req.AssigneeID != nil {
		if err := h.validateAssignee(ctx, project, *req.AssigneeID); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		task.AssigneeID = *req.AssigneeID
	}
	if req.ParentTaskID != nil {
		if *req.ParentTaskID == task.ID {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "task cannot be its own parent")
			return
		}
		if err := h.validateParent(ctx, project.ID, *req.ParentTaskID); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		task.ParentTaskID = *req.ParentTaskID
	}
	if req.Labels != nil {
		if err := h.validateLabels(ctx, project.ID, *req.Labels); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		task.Labels = *req.Labels
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	} else if req.ClearDueDate {
		task.DueDate = nil
	}
	if req.EstimatedHours != nil {
		task.EstimatedHours = *req.EstimatedHours
	}
	if req.ActualHours != nil {
		task.ActualHours = *req.ActualHours
	}
	if req.Order != nil {
		task.Order = *req.Order
	}

	task.UpdatedAt = time.Now()

	if err := h.storage.Tasks().Update(ctx, task); err != nil {
		log.Printf("update task error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	if task.Status != before.Status {
		metrics.TaskStatusChangesTotal.WithLabelValues(string(task.Status)).Inc()
		// Entering or leaving done moves the completed count; recount
		// rather than increment so concurrent updates self-heal.
		if task.Status == models.TaskStatusDone || before.Status == models.TaskStatusDone {
			if err := h.storage.Tasks().RecountCompleted(ctx, project.ID); err != nil {
				log.Printf("update task: recount completed: %v", err)
			}
		}
	}

	h.recorder.RecordTaskUpdate(ctx, actorID, &before, task)

	if task.AssigneeID != before.AssigneeID && task.AssigneeID != "" && task.AssigneeID != actorID {
		h.notifyAssigned(ctx, task)
	}

	jsonOK(w, task)
}

// Delete removes a task; its subtasks, comments and label links cascade
// away. The task's number is never reissued.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	task, project := h.loadTask(w, r)
	if task == nil {
		return
	}

	ctx := r.Context()
	actorID := middleware.GetUserID(ctx)

	if !authz.CanMutateTask(project, actorID) {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return
	}

	if err := h.storage.Tasks().Delete(ctx, task.ID); err != nil {
		log.Printf("delete task error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	a := models.NewActivity(models.ActionTaskDelete, actorID, models.EntityTask, task.ID)
	a.ProjectID = project.ID
	a.Metadata = map[string]string{"task_number": task.TaskNumber, "title": task.Title}
	h.recorder.Record(ctx, a)

	log.Printf("task deleted: %s (%s)", task.TaskNumber, task.ID)
	jsonNoContent(w)
}

// Activity returns the task's audit trail, newest first.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	task, _ := h.loadTask(w, r)
	if task == nil {
		return
	}

	page := pagination.ParsePage(r)

	entries, total, err := h.storage.Activities().ListByEntity(r.Context(), models.EntityTask, task.ID, page.Size, page.Offset())
	if err != nil {
		log.Printf("task activity error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, pagination.NewPaginatedResponse(entries, total, page))
}

// notifyAssigned tells the assignee about their new task; failures are
// logged, never fatal.
func (h *Handler) notifyAssigned(ctx context.Context, task *models.Task) {
	n := models.NewNotification(task.AssigneeID, models.NotificationTaskAssigned,
		fmt.Sprintf("You were assigned %s: %s", task.TaskNumber, task.Title))
	n.ID = uuid.New().String()
	n.EntityType = models.EntityTask
	n.EntityID = task.ID

	if err := h.storage.Notifications().Create(ctx, n); err != nil {
		log.Printf("notify task_assigned failed: %v", err)
		return
	}
	metrics.NotificationsCreatedTotal.WithLabelValues(string(models.NotificationTaskAssigned)).Inc()
}
