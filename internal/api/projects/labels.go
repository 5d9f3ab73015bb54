package projects

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/taskforge/internal/api/middleware"
	"github.com/good-yellow-bee/taskforge/internal/authz"
	"github.com/good-yellow-bee/taskforge/internal/models"
)

// LabelRequest is the request body for creating or updating a label.
type LabelRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// canEditLabels reports whether the actor may manage the project's
// labels: any resolved role above viewer.
func canEditLabels(p *models.Project, userID string) bool {
	role, ok := authz.ResolveRole(p, userID)
	return ok && role != models.ProjectRoleViewer
}

// ListLabels returns the project's labels, name order.
func (h *Handler) ListLabels(w http.ResponseWriter, r *http.Request) {
	project := h.loadVisible(w, r)
	if project == nil {
		return
	}

	labels, err := h.storage.Labels().ListByProject(r.Context(), project.ID)
	if err != nil {
		log.Printf("list labels error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, labels)
}

// CreateLabel creates a label in the project. Names are unique per
// project.
func (h *Handler) CreateLabel(w http.ResponseWriter, r *http.Request) {
	project := h.loadVisible(w, r)
	if project == nil {
		return
	}

	var req LabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "name is required")
		return
	}

	ctx := r.Context()
	actorID := middleware.GetUserID(ctx)

	if !canEditLabels(project, actorID) {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return
	}

	existing, err := h.storage.Labels().GetByName(ctx, project.ID, req.Name)
	if err != nil {
		log.Printf("create label error: check name: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, errCodeConflict, "label name already exists in project")
		return
	}

	label := models.NewLabel(project.ID, req.Name, req.Color)
	label.ID = uuid.New().String()

	if err := h.storage.Labels().Create(ctx, label); err != nil {
		log.Printf("create label error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	a := models.NewActivity(models.ActionLabelCreate, actorID, models.EntityLabel, label.ID)
	a.ProjectID = project.ID
	h.recorder.Record(ctx, a)

	jsonCreated(w, label)
}

// loadLabel fetches a label and its project, enforcing edit access.
func (h *Handler) loadLabel(w http.ResponseWriter, r *http.Request) (*models.Label, *models.Project) {
	labelID := chi.URLParam(r, "id")
	ctx := r.Context()

	label, err := h.storage.Labels().GetByID(ctx, labelID)
	if err != nil {
		log.Printf("get label error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil, nil
	}
	if label == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "label not found")
		return nil, nil
	}

	project, err := h.storage.Projects().GetByID(ctx, label.ProjectID)
	if err != nil {
		log.Printf("get label project error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil, nil
	}
	if project == nil || !authz.CanViewProject(project, middleware.GetUserID(ctx), middleware.GetRole(ctx)) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "label not found")
		return nil, nil
	}

	if !canEditLabels(project, middleware.GetUserID(ctx)) {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return nil, nil
	}

	return label, project
}

// UpdateLabel renames or recolors a label.
func (h *Handler) UpdateLabel(w http.ResponseWriter, r *http.Request) {
	label, project := h.loadLabel(w, r)
	if label == nil {
		return
	}

	var req LabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()

	if name := strings.TrimSpace(req.Name); name != "" && name != label.Name {
		existing, err := h.storage.Labels().GetByName(ctx, project.ID, name)
		if err != nil {
			log.Printf("update label error: check name: %v", err)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
			return
		}
		if existing != nil {
			jsonError(w, http.StatusConflict, errCodeConflict, "label name already exists in project")
			return
		}
		label.Name = name
	}
	if req.Color != "" {
		label.Color = req.Color
	}

	if err := h.storage.Labels().Update(ctx, label); err != nil {
		log.Printf("update label error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	a := models.NewActivity(models.ActionLabelUpdate, middleware.GetUserID(ctx), models.EntityLabel, label.ID)
	a.ProjectID = project.ID
	h.recorder.Record(ctx, a)

	jsonOK(w, label)
}

// DeleteLabel removes a label; its task attachments cascade away.
func (h *Handler) DeleteLabel(w http.ResponseWriter, r *http.Request) {
	label, project := h.loadLabel(w, r)
	if label == nil {
		return
	}

	ctx := r.Context()

	if err := h.storage.Labels().Delete(ctx, label.ID); err != nil {
		log.Printf("delete label error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	a := models.NewActivity(models.ActionLabelDelete, middleware.GetUserID(ctx), models.EntityLabel, label.ID)
	a.ProjectID = project.ID
	a.Metadata = map[string]string{"name": label.Name}
	h.recorder.Record(ctx, a)

	jsonNoContent(w)
}
