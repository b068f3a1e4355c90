package handlers

import (
	"net/http"

	"go.uber.org/zap"

	mW "github.com/cricketduel/backend/internal/middleware"
	"github.com/cricketduel/backend/internal/services"
)

type AuthHandler struct {
	auth      *services.AuthService
	validator *services.ValidationHelper
	log       *zap.Logger
}

func NewAuthHandler(auth *services.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		validator: services.NewValidationHelper(),
		log:       log.Named("http.auth"),
	}
}

// Register handles user registration
// @Summary Register a new user
// @Description Creates the user with an end-user profile and an empty wallet
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.RegisterRequest true "Registration request"
// @Success 201 {object} services.AuthResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	resp, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Login handles user authentication
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.LoginRequest true "Login request"
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout handles user logout
// @Summary Logout user
// @Description Blacklists the bearer token until it expires
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := mW.BearerToken(r); ok {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			h.log.Warn("failed to blacklist token", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// Me returns the authenticated account
// @Summary Current account
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.Account
// @Failure 401 {object} services.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	acc, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}
