package handler

import (
	"errors"
	"net/http"

	"github.com/Rrens/bloombuddy/internal/api/middleware"
	"github.com/Rrens/bloombuddy/internal/api/response"
	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/Rrens/bloombuddy/internal/service"
	"github.com/rs/zerolog/log"
)

// ChatHandler serves the chat proxy endpoint
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat handles POST /api/chat. Success bodies are the bare reply; failures
// carry {error, message}.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request", "Message array is required and cannot be empty")
		return
	}

	// An authenticated identity wins over the body
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		req.UserID = userID
	}

	log.Info().Str("user_id", req.UserID).Str("topic", req.Topic).Int("messages", len(req.Messages)).Msg("chat request received")

	reply, err := h.chatService.Chat(r.Context(), req)
	if err != nil {
		var epErr *domain.EndpointError
		if errors.As(err, &epErr) {
			response.EndpointError(w, epErr)
			return
		}
		log.Error().Err(err).Msg("chat failed")
		response.Error(w, http.StatusInternalServerError, "Chat service error", "Unable to process your message at this time")
		return
	}

	response.Raw(w, http.StatusOK, reply)
}
