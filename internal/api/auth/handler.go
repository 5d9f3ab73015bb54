package auth

import (
	"encoding/json"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/good-yellow-bee/taskforge/internal/metrics"
	"github.com/good-yellow-bee/taskforge/internal/models"
	"github.com/good-yellow-bee/taskforge/internal/storage"
)

// Handler handles authentication endpoints.
type Handler struct {
	storage        storage.Storage
	jwtService     *JWTService
	tokenService   *TokenService
	lockoutTracker *LockoutTracker
}

// NewHandler creates a new auth handler.
func NewHandler(store storage.Storage, jwt *JWTService, lockout *LockoutTracker, refreshTTL time.Duration) *Handler {
	return &Handler{
		storage:        store,
		jwtService:     jwt,
		tokenService:   NewTokenService(store, refreshTTL),
		lockoutTracker: lockout,
	}
}

// Response helpers (local to avoid import cycle with api package)

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

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Error codes and messages
const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeConflict         = "CONFLICT"
	errCodeUnauthorized     = "UNAUTHORIZED"
	errCodeAccountLocked    = "ACCOUNT_LOCKED"
	errCodeInternalError    = "INTERNAL_ERROR"
)

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest is the request body for logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles self-service account creation. New accounts always get
// the member role; admins are promoted through the user admin API.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(req.Email); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "valid email required")
		return
	}
	if req.FirstName == "" || req.LastName == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "first_name and last_name required")
		return
	}
	if err := ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()

	existing, err := h.storage.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		log.Printf("register error: check email: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, errCodeConflict, "email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("register error: hash password: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	user := models.NewUser(req.Email, req.FirstName, req.LastName, models.RoleMember)
	user.ID = uuid.New().String()
	user.PasswordHash = string(hash)

	if err := h.storage.Users().Create(ctx, user); err != nil {
		log.Printf("register error: create user: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("register success: user %s", user.Email)
	jsonData(w, http.StatusCreated, user)
}

// Login handles user login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "email and password required")
		return
	}

	// Check lockout
	if h.lockoutTracker.IsLocked(req.Email) {
		remaining := h.lockoutTracker.RemainingLockoutTime(req.Email)
		log.Printf("login blocked: account %s locked for %v", req.Email, remaining)
		metrics.AuthAttemptsTotal.WithLabelValues("locked").Inc()
		jsonError(w, http.StatusTooManyRequests, errCodeAccountLocked, "account temporarily locked due to too many failed attempts")
		return
	}

	ctx := r.Context()
	user, err := h.storage.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		log.Printf("login error: get user: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	if user == nil || !user.IsActive {
		h.lockoutTracker.RecordFailure(req.Email)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		log.Printf("login failed: %s", req.Email)
		jsonError(w, http.StatusUnauthorized, errCodeUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.lockoutTracker.RecordFailure(req.Email)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		log.Printf("login failed: invalid password for %s", req.Email)
		jsonError(w, http.StatusUnauthorized, errCodeUnauthorized, "invalid credentials")
		return
	}

	// Clear lockout on success
	h.lockoutTracker.ClearFailures(req.Email)

	accessToken, err := h.jwtService.GenerateToken(user)
	if err != nil {
		log.Printf("login error: generate access token: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	metrics.AuthTokensIssued.WithLabelValues("access").Inc()

	refreshToken, err := h.tokenService.CreateRefreshToken(ctx, user.ID)
	if err != nil {
		log.Printf("login error: generate refresh token: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	if err := h.storage.Users().UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		// Non-fatal; the timestamp is advisory.
		log.Printf("login: update last login: %v", err)
	}

	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	log.Printf("login success: user %s", req.Email)

	jsonData(w, http.StatusOK, &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    h.jwtService.TTLSeconds(),
		TokenType:    "Bearer",
	})
}

// Refresh handles token refresh with rotation.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if req.RefreshToken == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "refresh_token required")
		return
	}

	ctx := r.Context()

	user, err := h.tokenService.ValidateRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		log.Printf("refresh failed: %v", err)
		jsonError(w, http.StatusUnauthorized, errCodeUnauthorized, "invalid or expired token")
		return
	}

	accessToken, err := h.jwtService.GenerateToken(user)
	if err != nil {
		log.Printf("refresh error: generate access token: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}
	metrics.AuthTokensIssued.WithLabelValues("access").Inc()

	newRefreshToken, err := h.tokenService.RotateRefreshToken(ctx, req.RefreshToken, user.ID)
	if err != nil {
		log.Printf("refresh error: rotate refresh token: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	log.Printf("token refresh success: user %s", user.Email)

	jsonData(w, http.StatusOK, &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    h.jwtService.TTLSeconds(),
		TokenType:    "Bearer",
	})
}

// Logout revokes every refresh token the user holds, ending all of
// their sessions, not just the one presenting the token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if req.RefreshToken == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "refresh_token required")
		return
	}

	if err := h.tokenService.RevokeAllByToken(r.Context(), req.RefreshToken); err != nil {
		// Token might already be revoked; logout is idempotent.
		log.Printf("logout: revoke tokens: %v", err)
	}

	log.Printf("logout success")
	w.WriteHeader(http.StatusNoContent)
}
