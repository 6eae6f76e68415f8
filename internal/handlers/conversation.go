package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"multichat-backend/internal/chat"
	"multichat-backend/internal/models"
)

type conversationService interface {
	Models() []string
	Start(ctx context.Context) (uuid.UUID, error)
	Conversation(ctx context.Context, id uuid.UUID) (chat.History, string, error)
	Submit(ctx context.Context, id uuid.UUID, message, model string) (*chat.TurnResult, error)
	End(ctx context.Context, id uuid.UUID) error
}

type turnQueue interface {
	Enqueue(job models.TurnJob) (models.TurnJob, error)
}

type ConversationHandler struct {
	service conversationService
	queue   turnQueue
}

func NewConversationHandler(service conversationService, queue turnQueue) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		queue:   queue,
	}
}

func (h *ConversationHandler) Models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.ModelsResponse{
		Models:  h.service.Models(),
		Default: string(chat.DefaultSelector),
	})
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := h.service.Start(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.CreateConversationResponse{ID: id})
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	history, rendered, err := h.service.Conversation(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ConversationResponse{ID: id, History: history, Log: rendered})
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	if err := h.service.End(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage runs one turn. With async set, the turn is queued and its
// result is pushed over the conversation's WebSocket.
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}
	if req.Model == "" {
		req.Model = string(chat.DefaultSelector)
	}

	if req.Async {
		h.enqueue(w, r, id, req)
		return
	}

	result, err := h.service.Submit(r.Context(), id, req.Message, req.Model)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewTurnResponse(id, result))
}

func (h *ConversationHandler) enqueue(w http.ResponseWriter, r *http.Request, id uuid.UUID, req models.SendMessageRequest) {
	// Reject unknown conversations now rather than over the socket.
	if _, _, err := h.service.Conversation(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	job, err := h.queue.Enqueue(models.TurnJob{
		ConversationID: id,
		Message:        req.Message,
		Model:          req.Model,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, models.AcceptedResponse{JobID: job.ID, ConversationID: id})
}

func conversationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return uuid.Nil, false
	}
	return id, true
}
