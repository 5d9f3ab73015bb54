package users

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/good-yellow-bee/taskforge/internal/activity"
	"github.com/good-yellow-bee/taskforge/internal/api/auth"
	"github.com/good-yellow-bee/taskforge/internal/api/middleware"
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

// Handler handles user management endpoints.
type Handler struct {
	storage  storage.Storage
	recorder *activity.Recorder
}

// NewHandler creates a new user handler.
func NewHandler(store storage.Storage, rec *activity.Recorder) *Handler {
	return &Handler{storage: store, recorder: rec}
}

// CreateRequest is the request body for creating a user.
type CreateRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// UpdateRequest is the request body for updating a user's profile.
type UpdateRequest struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// RoleRequest is the request body for changing a user's system role.
type RoleRequest struct {
	Role string `json:"role"`
}

// ChangePasswordRequest is the request body for changing password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// List returns users, paginated (admin only).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := pagination.ParsePage(r)

	users, total, err := h.storage.Users().List(ctx, page.Size, page.Offset())
	if err != nil {
		log.Printf("list users error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, pagination.NewPaginatedResponse(users, total, page))
}

// Create creates a new user with an explicit role (admin only).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if err := ValidateEmail(req.Email); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	if err := ValidateName("first_name", req.FirstName); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	if err := ValidateName("last_name", req.LastName); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	role, err := ValidateRole(req.Role)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := h.storage.Users().GetByEmail(ctx, email)
	if err != nil {
		log.Printf("create user error: check email: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, errCodeConflict, "email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("create user error: hash password: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	user := models.NewUser(email, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName), role)
	user.ID = uuid.New().String()
	user.PasswordHash = string(hash)

	if err := h.storage.Users().Create(ctx, user); err != nil {
		log.Printf("create user error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	h.recorder.Record(ctx, models.NewActivity(
		models.ActionUserCreate, middleware.GetUserID(ctx), models.EntityUser, user.ID))

	log.Printf("user created: %s (%s)", user.Email, user.ID)
	jsonCreated(w, user)
}

// GetByID returns a user by ID (admin or self).
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	ctx := r.Context()

	user, err := h.storage.Users().GetByID(ctx, userID)
	if err != nil {
		log.Printf("get user error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
		return
	}

	jsonOK(w, user)
}

// Update updates a user's profile fields (admin or self). Role and
// active-flag changes go through their dedicated endpoints.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()

	user, err := h.storage.Users().GetByID(ctx, userID)
	if err != nil {
		log.Printf("update user error: get user: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
		return
	}

	before := map[string]any{}
	after := map[string]any{}

	if req.Email != "" {
		if err := ValidateEmail(req.Email); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))

		existing, err := h.storage.Users().GetByEmail(ctx, email)
		if err != nil {
			log.Printf("update user error: check email: %v", err)
			jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
			return
		}
		if existing != nil && existing.ID != userID {
			jsonError(w, http.StatusConflict, errCodeConflict, "email already exists")
			return
		}

		if email != user.Email {
			before["email"], after["email"] = user.Email, email
			user.Email = email
		}
	}

	if req.FirstName != "" && req.FirstName != user.FirstName {
		if err := ValidateName("first_name", req.FirstName); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		before["first_name"], after["first_name"] = user.FirstName, req.FirstName
		user.FirstName = strings.TrimSpace(req.FirstName)
	}
	if req.LastName != "" && req.LastName != user.LastName {
		if err := ValidateName("last_name", req.LastName); err != nil {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
			return
		}
		before["last_name"], after["last_name"] = user.LastName, req.LastName
		user.LastName = strings.TrimSpace(req.LastName)
	}

	user.UpdatedAt = time.Now()

	if err := h.storage.Users().Update(ctx, user); err != nil {
		log.Printf("update user error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	if len(after) > 0 {
		a := models.NewActivity(models.ActionUserUpdate, middleware.GetUserID(ctx), models.EntityUser, user.ID)
		a.Changes = &models.Changes{Before: before, After: after}
		h.recorder.Record(ctx, a)
	}

	jsonOK(w, user)
}

// ChangeRole changes a user's system role (admin only). Demoting the
// last active admin is rejected with a conflict.
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req RoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	role, err := ValidateRole(req.Role)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()

	user, err := h.storage.Users().GetByID(ctx, userID)
	if err != nil {
		log.Printf("change role error: get user: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
		return
	}
	if user.Role == role {
		jsonOK(w, user)
		return
	}

	if err := h.storage.Users().ChangeRole(ctx, userID, role); err != nil {
		if errors.Is(err, storage.ErrLastAdmin) {
			jsonError(w, http.StatusConflict, errCodeConflict, err.Error())
			return
		}
		log.Printf("change role error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	a := models.NewActivity(models.ActionUserRoleChange, middleware.GetUserID(ctx), models.EntityUser, userID)
	a.Changes = &models.Changes{
		Before: map[string]any{"role": user.Role},
		After:  map[string]any{"role": role},
	}
	h.recorder.Record(ctx, a)

	user.Role = role
	log.Printf("role changed: user %s -> %s", userID, role)
	jsonOK(w, user)
}

// Deactivate soft-deletes a user (admin only). The last active admin
// cannot be deactivated.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	ctx := r.Context()

	if userID == middleware.GetUserID(ctx) {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "cannot deactivate own account")
		return
	}

	if err := h.storage.Users().Deactivate(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrLastAdmin) {
			jsonError(w, http.StatusConflict, errCodeConflict, err.Error())
			return
		}
		if strings.Contains(err.Error(), "not found") {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
			return
		}
		log.Printf("deactivate user error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	// Deactivated accounts lose their sessions immediately.
	if err := h.storage.Tokens().RevokeAllForUser(ctx, userID); err != nil {
		log.Printf("deactivate user: revoke tokens: %v", err)
	}

	h.recorder.Record(ctx, models.NewActivity(
		models.ActionUserDeactivate, middleware.GetUserID(ctx), models.EntityUser, userID))

	log.Printf("user deactivated: %s", userID)
	jsonNoContent(w)
}

// Activate re-enables a deactivated user (admin only).
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	ctx := r.Context()

	if err := h.storage.Users().Activate(ctx, userID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
			return
		}
		log.Printf("activate user error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("user activated: %s", userID)
	jsonNoContent(w)
}

// GetCurrentUser returns the current authenticated user.
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	user, err := h.storage.Users().GetByID(ctx, userID)
	if err != nil {
		log.Printf("get current user error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
		return
	}

	jsonOK(w, user)
}

// ChangePassword changes the current user's password and revokes all of
// their refresh tokens.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "current_password is required")
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	user, err := h.storage.Users().GetByID(ctx, userID)
	if err != nil {
		log.Printf("change password error: get user: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "user not found")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("change password error: hash password: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	user.PasswordHash = string(hash)
	user.UpdatedAt = time.Now()

	if err := h.storage.Users().Update(ctx, user); err != nil {
		log.Printf("change password error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	// Force re-login on other devices.
	if err := h.storage.Tokens().RevokeAllForUser(ctx, userID); err != nil {
		log.Printf("change password warning: revoke tokens: %v", err)
	}

	log.Printf("password changed: user %s", user.Email)
	jsonNoContent(w)
}

// Activity returns the audit trail of actions performed by a user
// (admin or self).
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	ctx := r.Context()
	page := pagination.ParsePage(r)

	entries, total, err := h.storage.Activities().ListByActor(ctx, userID, page.Size, page.Offset())
	if err != nil {
		log.Printf("user activity error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, pagination.NewPaginatedResponse(entries, total, page))
}
