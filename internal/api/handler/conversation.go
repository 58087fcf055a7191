package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Rrens/bloombuddy/internal/api/middleware"
	"github.com/Rrens/bloombuddy/internal/api/response"
	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/Rrens/bloombuddy/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ConversationHandler serves the conversation archive
type ConversationHandler struct {
	conversationService *service.ConversationService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversationService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// Create handles POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input domain.ConversationCreate
	if err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		input.UserID = userID
	}

	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	conv, err := h.conversationService.Create(r.Context(), input)
	if err != nil {
		log.Error().Err(err).Msg("failed to create conversation")
		response.InternalError(w, "failed to create conversation")
		return
	}

	response.Created(w, conv)
}

// AppendMessage handles POST /api/conversations/{conversationID}/messages
func (h *ConversationHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	var input domain.MessageCreate
	if err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	msg, err := h.conversationService.AppendMessage(r.Context(), conversationID, input)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "conversation not found")
			return
		}
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to append message")
		response.InternalError(w, "failed to save message")
		return
	}

	response.Created(w, msg)
}

// List handles GET /api/conversations?userId=&topic=&limit=
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ConversationFilter{
		UserID: q.Get("userId"),
		Topic:  q.Get("topic"),
	}
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		filter.UserID = userID
	}
	if filter.UserID == "" {
		response.BadRequest(w, "userId is required")
		return
	}
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			filter.Limit = v
		}
	}

	conversations, err := h.conversationService.List(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to list conversations")
		response.InternalError(w, "failed to list conversations")
		return
	}

	response.OK(w, conversations)
}

// Get handles GET /api/conversations/{conversationID}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	detail, err := h.conversationService.Get(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.NotFound(w, "conversation not found")
			return
		}
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to get conversation")
		response.InternalError(w, "failed to get conversation")
		return
	}

	if userID, ok := middleware.GetUserID(r.Context()); ok && detail.Conversation.UserID != userID {
		response.NotFound(w, "conversation not found")
		return
	}

	response.OK(w, detail)
}
