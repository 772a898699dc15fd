package handlers

import (
	"net/http"

	"github.com/bazaar-market/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// MessageHandler provides HTTP handlers for direct messages.
type MessageHandler struct {
	messageService *services.MessageService
}

func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// MessageRouter registers messaging routes on the given router. Every route
// requires authentication.
func MessageRouter(r chi.Router, messageService *services.MessageService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewMessageHandler(messageService)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/conversations", handler.ListConversations)
		r.Get("/messages/{otherID}", handler.LoadConversation)
		r.Post("/messages/{otherID}", handler.Send)
	})
}

func (h *MessageHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summaries, err := h.messageService.ListConversations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *MessageHandler) LoadConversation(w http.ResponseWriter, r *http.Request) {
	userID, otherID, ok := actorAndCounterpart(w, r)
	if !ok {
		return
	}

	messages, err := h.messageService.LoadConversation(r.Context(), userID, otherID)
	if err != nil {
		writeServiceError(w, err, "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, otherID, ok := actorAndCounterpart(w, r)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.messageService.Send(r.Context(), userID, otherID, req.Content)
	if err != nil {
		writeServiceError(w, err, "failed to send message")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func actorAndCounterpart(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	otherID, err := parseIDParam(r, "otherID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return uuid.Nil, uuid.Nil, false
	}
	return userID, otherID, true
}

type SendMessageRequest struct {
	Content string `json:"content"`
}
