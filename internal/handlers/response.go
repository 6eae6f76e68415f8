package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"multichat-backend/internal/adapter"
	"multichat-backend/internal/chat"
	"multichat-backend/internal/models"
	"multichat-backend/internal/worker"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: chimiddleware.GetReqID(r.Context()),
		},
	}
}

// classifyError maps service and adapter errors to a status, code and message.
func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, chat.ErrConversationNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Conversation not found"
	case errors.Is(err, chat.ErrTurnInProgress):
		return http.StatusConflict, "TURN_IN_PROGRESS", "A message is already being answered in this conversation"
	case errors.Is(err, worker.ErrQueueFull):
		return http.StatusServiceUnavailable, "QUEUE_FULL", "Too many pending messages. Please try again later."
	case errors.Is(err, worker.ErrPoolStopped):
		return http.StatusServiceUnavailable, "UNAVAILABLE", "Server is shutting down"
	case adapter.IsResponseShape(err):
		return http.StatusBadGateway, "AI_ERROR", "Model returned an unexpected response"
	case adapter.IsTransport(err):
		return http.StatusBadGateway, "AI_ERROR", "Failed to get AI response"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorResp(code, message, r))
}
