package handler

import (
	"errors"
	"net/http"

	"github.com/Rrens/bloombuddy/internal/api/middleware"
	"github.com/Rrens/bloombuddy/internal/api/response"
	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/Rrens/bloombuddy/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// UserHandler serves user profile records
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Get handles GET /api/users/{userID}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.allowed(w, r, userID) {
		return
	}

	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "user not found")
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("failed to get user")
		response.InternalError(w, "failed to get user")
		return
	}

	response.OK(w, user)
}

// Update handles PUT /api/users/{userID}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if !h.allowed(w, r, userID) {
		return
	}

	var input domain.UserUpdate
	if err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := h.userService.Update(r.Context(), userID, input)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to update user")
		response.InternalError(w, "failed to update user")
		return
	}

	response.OK(w, user)
}

// allowed restricts authenticated callers to their own record
func (h *UserHandler) allowed(w http.ResponseWriter, r *http.Request, userID string) bool {
	if caller, ok := middleware.GetUserID(r.Context()); ok && caller != userID {
		response.Forbidden(w, "cannot access another user's record")
		return false
	}
	return true
}
