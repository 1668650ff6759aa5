package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"quitcoach/auth"
	"quitcoach/domain"
	"quitcoach/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type MessageHandler struct {
	log      *slog.Logger
	messages *services.MessageService
	validate *validator.Validate
}

func NewMessageHandler(log *slog.Logger, messages *services.MessageService) *MessageHandler {
	return &MessageHandler{log: log, messages: messages, validate: validator.New()}
}

// RegisterRoutes mounts the conversation endpoints under an appointment.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}/messages", h.handleList)
	r.Post("/{id}/messages", h.handleSend)
	r.Post("/{id}/messages/read", h.handleMarkRead)
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

func (h *MessageHandler) handleSend(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := appointmentID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var payload sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.messages.Send(r.Context(), p, id, payload.Text)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) handleList(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := appointmentID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	msgs, err := h.messages.List(r.Context(), p, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (h *MessageHandler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	id, err := appointmentID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	if err := h.messages.MarkRead(r.Context(), p, id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
