package tasks

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/taskforge/internal/api/middleware"
	"github.com/good-yellow-bee/taskforge/internal/authz"
	"github.com/good-yellow-bee/taskforge/internal/metrics"
	"github.com/good-yellow-bee/taskforge/internal/models"
	"github.com/good-yellow-bee/taskforge/internal/pagination"
)

// CommentRequest is the request body for creating or editing a comment.
type CommentRequest struct {
	Content string `json:"content"`
}

// ListComments returns a task's comment thread, oldest first. Deleted
// comments stay in the thread with blank content.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	task, _ := h.loadTask(w, r)
	if task == nil {
		return
	}

	page := pagination.ParsePage(r)

	comments, total, err := h.storage.Comments().ListByTask(r.Context(), task.ID, page.Size, page.Offset())
	if err != nil {
		log.Printf("list comments error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, pagination.NewPaginatedResponse(comments, total, page))
}

// CreateComment adds a comment to the task.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
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

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "content is required")
		return
	}

	comment := models.NewComment(task.ID, actorID, req.Content)
	comment.ID = uuid.New().String()

	if err := h.storage.Comments().Create(ctx, comment); err != nil {
		log.Printf("create comment error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	a := models.NewActivity(models.ActionCommentCreate, actorID, models.EntityComment, comment.ID)
	a.ProjectID = project.ID
	a.Metadata = map[string]string{"task_id": task.ID, "task_number": task.TaskNumber}
	h.recorder.Record(ctx, a)

	// Tell the people on the task, but not the commenter themselves.
	seen := map[string]bool{actorID: true}
	for _, recipient := range []string{task.AssigneeID, task.ReporterID} {
		if recipient == "" || seen[recipient] {
			continue
		}
		seen[recipient] = true

		n := models.NewNotification(recipient, models.NotificationCommentAdded,
			fmt.Sprintf("New comment on %s: %s", task.TaskNumber, task.Title))
		n.ID = uuid.New().String()
		n.EntityType = models.EntityTask
		n.EntityID = task.ID

		if err := h.storage.Notifications().Create(ctx, n); err != nil {
			log.Printf("notify comment_added failed: %v", err)
			continue
		}
		metrics.NotificationsCreatedTotal.WithLabelValues(string(models.NotificationCommentAdded)).Inc()
	}

	jsonCreated(w, comment)
}

// loadComment fetches a comment with its task and project, enforcing
// read access on the project.
func (h *Handler) loadComment(w http.ResponseWriter, r *http.Request) (*models.Comment, *models.Task, *models.Project) {
	commentID := chi.URLParam(r, "commentID")
	ctx := r.Context()

	comment, err := h.storage.Comments().GetByID(ctx, commentID)
	if err != nil {
		log.Printf("get comment error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil, nil, nil
	}
	if comment == nil || comment.IsDeleted {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "comment not found")
		return nil, nil, nil
	}

	task, err := h.storage.Tasks().GetByID(ctx, comment.TaskID)
	if err != nil {
		log.Printf("get comment task error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil, nil, nil
	}
	if task == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "comment not found")
		return nil, nil, nil
	}

	project, err := h.storage.Projects().GetByID(ctx, task.ProjectID)
	if err != nil {
		log.Printf("get comment project error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return nil, nil, nil
	}
	if project == nil || !authz.CanReadTask(project, middleware.GetUserID(ctx), middleware.GetRole(ctx)) {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "comment not found")
		return nil, nil, nil
	}

	return comment, task, project
}

// UpdateComment edits a comment's content (author only).
func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	comment, _, project := h.loadComment(w, r)
	if comment == nil {
		return
	}

	ctx := r.Context()
	actorID := middleware.GetUserID(ctx)

	if comment.AuthorID != actorID {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "only the author may edit a comment")
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "content is required")
		return
	}

	comment.Content = req.Content
	comment.UpdatedAt = time.Now()

	if err := h.storage.Comments().Update(ctx, comment); err != nil {
		if strings.Contains(err.Error(), "not found") {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "comment not found")
			return
		}
		log.Printf("update comment error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	a := models.NewActivity(models.ActionCommentUpdate, actorID, models.EntityComment, comment.ID)
	a.ProjectID = project.ID
	h.recorder.Record(ctx, a)

	jsonOK(w, comment)
}

// DeleteComment soft-deletes a comment (author, or project owner/admin).
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	comment, _, project := h.loadComment(w, r)
	if comment == nil {
		return
	}

	ctx := r.Context()
	actorID := middleware.GetUserID(ctx)

	if comment.AuthorID != actorID && !authz.CanUpdateProject(project, actorID) {
		jsonError(w, http.StatusForbidden, errCodeForbidden, "access denied")
		return
	}

	if err := h.storage.Comments().SoftDelete(ctx, comment.ID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "comment not found")
			return
		}
		log.Printf("delete comment error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	a := models.NewActivity(models.ActionCommentDelete, actorID, models.EntityComment, comment.ID)
	a.ProjectID = project.ID
	h.recorder.Record(ctx, a)

	jsonNoContent(w)
}
