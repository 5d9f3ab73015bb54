// Package notifications provides in-app notification API endpoints.
package notifications

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/taskforge/internal/api/middleware"
	"github.com/good-yellow-bee/taskforge/internal/pagination"
	"github.com/good-yellow-bee/taskforge/internal/storage"
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
	errCodeNotFound      = "NOT_FOUND"
	errCodeInternalError = "INTERNAL_ERROR"
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

// Handler handles notification endpoints. Everything is scoped to the
// authenticated recipient.
type Handler struct {
	storage storage.Storage
}

// NewHandler creates a new notification handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// List returns the caller's notifications, newest first. ?unread=true
// narrows to unread ones.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	page := pagination.ParsePage(r)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	items, total, err := h.storage.Notifications().ListForUser(ctx, userID, unreadOnly, page.Size, page.Offset())
	if err != nil {
		log.Printf("list notifications error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	unread, err := h.storage.Notifications().CountUnread(ctx, userID)
	if err != nil {
		log.Printf("count unread error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, map[string]any{
		"notifications": pagination.NewPaginatedResponse(items, total, page),
		"unread_count":  unread,
	})
}

// MarkRead marks one notification read. Only the recipient can do this;
// anyone else sees a 404.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.storage.Notifications().MarkRead(ctx, id, middleware.GetUserID(ctx)); err != nil {
		if strings.Contains(err.Error(), "not found") {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "notification not found")
			return
		}
		log.Printf("mark read error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead marks every unread notification read and reports how many.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.storage.Notifications().MarkAllRead(ctx, middleware.GetUserID(ctx))
	if err != nil {
		log.Printf("mark all read error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, map[string]int64{"marked": n})
}
