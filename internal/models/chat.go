package models

import (
	"github.com/google/uuid"

	"multichat-backend/internal/chat"
)

// SendMessageRequest is the payload of POST /conversations/{id}/messages.
type SendMessageRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
	Async   bool   `json:"async"`
}

// TurnResponse is returned once a turn has completed.
type TurnResponse struct {
	ConversationID uuid.UUID    `json:"conversation_id"`
	Reply          string       `json:"reply"`
	Supported      bool         `json:"supported"`
	History        chat.History `json:"history"`
	Log            string       `json:"log"`
}

type ConversationResponse struct {
	ID      uuid.UUID    `json:"id"`
	History chat.History `json:"history"`
	Log     string       `json:"log"`
}

type CreateConversationResponse struct {
	ID uuid.UUID `json:"id"`
}

type ModelsResponse struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
}

func NewTurnResponse(id uuid.UUID, result *chat.TurnResult) TurnResponse {
	return TurnResponse{
		ConversationID: id,
		Reply:          result.Reply,
		Supported:      result.Supported,
		History:        result.History,
		Log:            result.Log,
	}
}
