package handlers

import (
	_ "embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"multichat-backend/internal/chat"
)

const conversationCookie = "conversation_id"

//go:embed templates/chat.html
var chatPageSource string

var chatPage = template.Must(template.New("chat").Parse(chatPageSource))

type pageData struct {
	Stylesheet template.CSS
	Models     []string
	Selected   string
	History    chat.History
	Log        string
	Input      string
	Error      string
}

// PageHandler serves the browser chat page. The conversation is tracked in a
// cookie; pressing Enter and clicking Send post the same form.
type PageHandler struct {
	service    conversationService
	stylesheet template.CSS
}

// NewPageHandler takes the stylesheet contents read at startup; "" means none.
func NewPageHandler(service conversationService, stylesheet string) *PageHandler {
	return &PageHandler{
		service:    service,
		stylesheet: template.CSS(stylesheet),
	}
}

func (h *PageHandler) Show(w http.ResponseWriter, r *http.Request) {
	data := h.newPageData(string(chat.DefaultSelector))

	if id, ok := h.existingConversation(r); ok {
		history, rendered, err := h.service.Conversation(r.Context(), id)
		if err == nil {
			data.History, data.Log = history, rendered
		}
	}
	h.render(w, http.StatusOK, data)
}

func (h *PageHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	message := r.PostFormValue("message")
	model := r.PostFormValue("model")
	if model == "" {
		model = string(chat.DefaultSelector)
	}
	data := h.newPageData(model)

	id, err := h.conversation(w, r)
	if err != nil {
		log.Printf("Chat page: failed to start conversation: %v", err)
		data.Error = "Could not start a conversation."
		h.render(w, http.StatusInternalServerError, data)
		return
	}

	if strings.TrimSpace(message) == "" {
		data.History, data.Log, _ = h.service.Conversation(r.Context(), id)
		h.render(w, http.StatusOK, data)
		return
	}

	result, err := h.service.Submit(r.Context(), id, message, model)
	if err != nil {
		status, _, text := classifyError(err)
		if status >= http.StatusInternalServerError {
			log.Printf("Chat page: turn failed: %v", err)
		}
		data.History, data.Log, _ = h.service.Conversation(r.Context(), id)
		data.Input = message
		data.Error = text
		h.render(w, status, data)
		return
	}

	data.History, data.Log = result.History, result.Log
	h.render(w, http.StatusOK, data)
}

func (h *PageHandler) newPageData(selected string) pageData {
	return pageData{
		Stylesheet: h.stylesheet,
		Models:     h.service.Models(),
		Selected:   selected,
	}
}

func (h *PageHandler) existingConversation(r *http.Request) (uuid.UUID, bool) {
	c, err := r.Cookie(conversationCookie)
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// conversation returns the cookie's conversation, starting a new one when the
// cookie is missing or points at a conversation that no longer exists.
func (h *PageHandler) conversation(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	if id, ok := h.existingConversation(r); ok {
		_, _, err := h.service.Conversation(r.Context(), id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, chat.ErrConversationNotFound) {
			return uuid.Nil, err
		}
	}

	id, err := h.service.Start(r.Context())
	if err != nil {
		return uuid.Nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     conversationCookie,
		Value:    id.String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

func (h *PageHandler) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := chatPage.Execute(w, data); err != nil {
		log.Printf("Chat page: render failed: %v", err)
	}
}
