// Package projects provides project and membership API endpoints.
package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/taskforge/internal/activity"
	"github.com/good-yellow-bee/taskforge/internal/api/middleware"
	"github.com/good-yellow-bee/taskforge/internal/authz"
	"github.com/good-yellow-bee/taskforge/internal/metrics"
	"github.com/good-yellow-bee/taskforge/internal/models"
	"github.com/good-yellow-bee/taskforge/internal/pagination"
	"github.com/good-yellow-bee/taskforge/internal/reporting"
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
	errCodeConflict         = "CONFLICT"
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

// Handler handles project management endpoints.
type Handler struct {
	storage  storage.Storage
	recorder *activity.Recorder
}

// NewHandler creates a new project handler.
func NewHandler(store storage.Storage, rec *activity.Recorder) *Handler {
	return &Handler{storage: store, recorder: rec}
}

// CreateRequest is the request body for creating a project.
type CreateRequest struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	Description string `json:"description,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
}

// UpdateRequest is the request body for updating a project. Pointer
// fields distinguish "absent" from "set to empty".
type UpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Visibility  *string `json:"visibility,omitempty"`
}

// MemberRequest is the request body for adding a member.
type MemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// MemberRoleRequest is the request body for changing a member's role.
type MemberRoleRequest struct {
	Role string `json:"role"`
}

// load fetches a project, writing 404 on miss. Returns nil if the
// response has been written.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) *models.Project {
	projectID := chi.URLParam(r, "id")

	project, err := h.storage.Projects().GetByID(r.Context(), projectID)
	if err != nil {
		log.Printf("get project error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil
	}
	if project == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "project not found")
		return nil
	}
	return project
}

// loadVisible fetches a project and enforces read access. Invisible
// private projects read as 404 rather than 403 so their existence does
// not leak.
func (h *Handler) loadVisible(w http.ResponseWriter, r *http.Request) *models.Project {
	project := h.load(w, r)
	if project == nil {
		return nil
	}

	ctx := r.Context()
	if !authz.CanViewProject(project, middleware.GetUserID(ctx), middleware.GetRole(ctx)) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "project not found")
		return nil
	}
	return project
}

// Create creates a new project owned by the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "name is required")
		return
	}

	key := strings.ToUpper(strings.TrimSpace(req.Key))
	if err := models.ValidateProjectKey(key); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()

	existing, err := h.storage.Projects().GetByKey(ctx, key)
	if err != nil {
		log.Printf("create project error: check key: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, errCodeConflict, fmt.Sprintf("project key %s already exists", key))
		return
	}

	project := models.NewProject(req.Name, key, req.Description, middleware.GetUserID(ctx))
	project.ID = uuid.New().String()

	if req.Visibility != "" {
		visibility, err := models.ParseVisibility(req.Visibility)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		project.Visibility = visibility
	}

	if err := h.storage.Projects().Create(ctx, project); err != nil {
		log.Printf("create project error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	a := models.NewActivity(models.ActionProjectCreate, project.OwnerID, models.EntityProject, project.ID)
	a.ProjectID = project.ID
	h.recorder.Record(ctx, a)

	log.Printf("project created: %s (%s)", project.Key, project.ID)
	jsonCreated(w, project)
}

// List returns the caller's projects, paginated. Admins see every
// project; everyone else sees what they own or belong to.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := pagination.ParsePage(r)

	var (
		list  []*models.Project
		total int64
		err   error
	)
	if middleware.GetRole(ctx) == models.RoleAdmin {
		list, total, err = h.storage.Projects().ListAll(ctx, page.Size, page.Offset())
	} else {
		list, total, err = h.storage.Projects().ListForUser(ctx, middleware.GetUserID(ctx), page.Size, page.Offset())
	}
	if err != nil {
		log.Printf("list projects error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, pagination.NewPaginatedResponse(list, total, page))
}

// Get returns one project.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	project := h.loadVisible(w, r)
	if project == nil {
		return
	}
	jsonOK(w, project)
}

// Update updates project fields (owner or project admin).
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	project := h.loadVisible(w, r)
	if project == nil {
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	actorID := middleware.GetUserID(ctx)

	if !authz.CanUpdateProject(project, actorID) {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return
	}

	before := *project

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "name cannot be empty")
			return
		}
		project.Name = name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Status != nil {
		status, err := models.ParseProjectStatus(*req.Status)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		project.Status = status
	}
	if req.Visibility != nil {
		visibility, err := models.ParseVisibility(*req.Visibility)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		project.Visibility = visibility
	}

	if err := h.storage.Projects().Update(ctx, project); err != nil {
		log.Printf("update project error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	if changes := activity.DiffProject(&before, project); changes != nil {
		a := models.NewActivity(models.ActionProjectUpdate, actorID, models.EntityProject, project.ID)
		a.ProjectID = project.ID
		a.Changes = changes
		h.recorder.Record(ctx, a)
	}

	jsonOK(w, project)
}

// Delete removes a project and everything under it (owner only).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	project := h.loadVisible(w, r)
	if project == nil {
		return
	}

	ctx := r.Context()
	actorID := middleware.GetUserID(ctx)

	if !authz.CanDeleteProject(project, actorID) {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "only the project owner may delete the project")
		return
	}

	// Tasks, labels, memberships, comments and the counter go with it.
	if err := h.storage.Projects().Delete(ctx, project.ID); err != nil {
		log.Printf("delete project error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	a := models.NewActivity(models.ActionProjectDelete, actorID, models.EntityProject, project.ID)
	a.ProjectID = project.ID
	a.Metadata = map[string]string{"key": project.Key, "name": project.Name}
	h.recorder.Record(ctx, a)

	log.Printf("project deleted: %s (%s)", project.Key, project.ID)
	jsonNoContent(w)
}

// ListMembers returns the project's membership rows, joined order.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	project := h.loadVisible(w, r)
	if project == nil {
		return
	}

	members, err := h.storage.Projects().GetMembers(r.Context(), project.ID)
	if err != nil {
		log.Printf("list members error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, members)
}

// AddMember adds a user to the project (owner or project admin).
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	project := h.loadVisible(w, r)
	if project == nil {
		return
	}

	var req MemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "user_id is required")
		return
	}

	role, err := models.ParseProjectRole(req.Role)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	actorID := middleware.GetUserID(ctx)

	if err := authz.CheckAddMember(project, actorID, req.UserID); err != nil {
		switch {
		case errors.Is(err, authz.ErrAlreadyMember):
			jsonError(w, http.StatusConflict, errCodeConflict, err.Error())
		case errors.Is(err, authz.ErrForbidden):
			jsonError(w, http.StatusForbidden, errCodeForbidden, err.Error())
		default:
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, err.Error())
		}
		return
	}

	target, err := h.storage.Users().GetByID(ctx, req.UserID)
	if err != nil {
		log.Printf("add member error: get user: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if target == nil || !target.IsActive {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
		return
	}

	if err := h.storage.Projects().AddMember(ctx, project.ID, req.UserID, role); err != nil {
		log.Printf("add member error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	a := models.NewActivity(models.ActionProjectMemberAdd, actorID, models.EntityProject, project.ID)
	a.ProjectID = project.ID
	a.Metadata = map[string]string{"user_id": req.UserID, "role": string(role)}
	h.recorder.Record(ctx, a)

	notify(ctx, h.storage, target.ID, models.NotificationMemberAdded,
		fmt.Sprintf("You were added to project %s", project.Name),
		models.EntityProject, project.ID)

	log.Printf("member added: project=%s user=%s role=%s", project.Key, req.UserID, role)
	jsonNoContent(w)
}

// RemoveMember removes a member (owner/project admin, or the member
// themselves). The owner cannot be removed.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	project := h.loadVisible(w, r)
	if project == nil {
		return
	}

	targetID := chi.URLParam(r, "userID")
	ctx := r.Context()
	actorID := middleware.GetUserID(ctx)

	if err := authz.CheckRemoveMember(project, actorID, targetID); err != nil {
		switch {
		case errors.Is(err, authz.ErrOwnerProtected):
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, err.Error())
		case errors.Is(err, authz.ErrForbidden):
			jsonError(w, http.StatusForbidden, errCodeForbidden, err.Error())
		default:
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, err.Error())
		}
		return
	}

	if err := h.storage.Projects().RemoveMember(ctx, project.ID, targetID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "member not found")
			return
		}
		log.Printf("remove member error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	a := models.NewActivity(models.ActionProjectMemberRemove, actorID, models.EntityProject, project.ID)
	a.ProjectID = project.ID
	a.Metadata = map[string]string{"user_id": targetID}
	h.recorder.Record(ctx, a)

	log.Printf("member removed: project=%s user=%s", project.Key, targetID)
	jsonNoContent(w)
}

// UpdateMemberRole changes a member's project role (owner only).
func (h *Handler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	project := h.loadVisible(w, r)
	if project == nil {
		return
	}

	var req MemberRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	role, err := models.ParseProjectRole(req.Role)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	targetID := chi.URLParam(r, "userID")
	ctx := r.Context()
	actorID := middleware.GetUserID(ctx)

	if err := authz.CheckChangeMemberRole(project, actorID, targetID); err != nil {
		switch {
		case errors.Is(err, authz.ErrOwnerProtected):
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, err.Error())
		default:
			jsonError(w, http.StatusForbidden, errCodeForbidden, err.Error())
		}
		return
	}

	previous, isMember := project.Members[targetID]
	if !isMember {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "member not found")
		return
	}

	if err := h.storage.Projects().UpdateMemberRole(ctx, project.ID, targetID, role); err != nil {
		log.Printf("update member role error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	a := models.NewActivity(models.ActionProjectMemberRoleChange, actorID, models.EntityProject, project.ID)
	a.ProjectID = project.ID
	a.Changes = &models.Changes{
		Before: map[string]any{"role": previous},
		After:  map[string]any{"role": role},
	}
	a.Metadata = map[string]string{"user_id": targetID}
	h.recorder.Record(ctx, a)

	log.Printf("member role changed: project=%s user=%s role=%s", project.Key, targetID, role)
	jsonNoContent(w)
}

// Workload returns per-assignee open-task summaries for the project.
func (h *Handler) Workload(w http.ResponseWriter, r *http.Request) {
	project := h.loadVisible(w, r)
	if project == nil {
		return
	}

	ctx := r.Context()

	tasks, err := h.storage.Tasks().ListOpenByProject(ctx, project.ID)
	if err != nil {
		log.Printf("workload error: list tasks: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	workload := reporting.BuildWorkload(tasks)

	// Fill display names from the user table.
	for _, bucket := range workload {
		if bucket.UserID == "" {
			bucket.Name = "Unassigned"
			continue
		}
		user, err := h.storage.Users().GetByID(ctx, bucket.UserID)
		if err != nil {
			log.Printf("workload error: get user %s: %v", bucket.UserID, err)
			continue
		}
		if user != nil {
			bucket.Name = user.FullName()
		}
	}

	jsonOK(w, workload)
}

// Activity returns the project's audit trail, newest first.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	project := h.loadVisible(w, r)
	if project == nil {
		return
	}

	page := pagination.ParsePage(r)

	entries, total, err := h.storage.Activities().ListByProject(r.Context(), project.ID, page.Size, page.Offset())
	if err != nil {
		log.Printf("project activity error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, pagination.NewPaginatedResponse(entries, total, page))
}

// notify writes an in-app notification; failures are logged, never fatal.
func notify(ctx context.Context, store storage.Storage, recipientID string, typ models.NotificationType, message string, entityType models.EntityType, entityID string) {
	n := models.NewNotification(recipientID, typ, message)
	n.ID = uuid.New().String()
	n.EntityType = entityType
	n.EntityID = entityID

	if err := store.Notifications().Create(ctx, n); err != nil {
		log.Printf("notify %s failed: %v", typ, err)
		return
	}
	metrics.NotificationsCreatedTotal.WithLabelValues(string(typ)).Inc()
}
