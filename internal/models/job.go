package models

import "github.com/google/uuid"

// TurnJob is a turn queued for background execution.
type TurnJob struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Message        string    `json:"message"`
	Model          string    `json:"model"`
}

// AcceptedResponse is returned when a turn has been queued.
type AcceptedResponse struct {
	JobID          uuid.UUID `json:"job_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// WebSocket message types
const (
	WSTurnCompleted = "turn_completed"
	WSTurnFailed    = "turn_failed"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type TurnUpdate struct {
	JobID          uuid.UUID     `json:"job_id"`
	ConversationID uuid.UUID     `json:"conversation_id"`
	Turn           *TurnResponse `json:"turn,omitempty"`
	Error          string        `json:"error,omitempty"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
