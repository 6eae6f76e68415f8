package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"multichat-backend/internal/adapter"
)

func submitForm(h *PageHandler, values url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.Submit(rr, req)
	return rr
}

func conversationCookieFrom(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == conversationCookie {
			return c
		}
	}
	t.Fatal("conversation cookie not set")
	return nil
}

func TestPageHandler_SubmitStartsConversation(t *testing.T) {
	h := NewPageHandler(newTestService(), "body { color: teal; }")

	rr := submitForm(h, url.Values{"message": {"Hi"}, "model": {"Gemini"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	conversationCookieFrom(t, rr)

	body := rr.Body.String()
	for _, want := range []string{"Q1: Hi\nA1: gemini reply", "body { color: teal; }", `<option value="Gemini" selected>`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, ">Hi</textarea>") {
		t.Error("input should be cleared after a successful turn")
	}
}

func TestPageHandler_CookieKeepsConversation(t *testing.T) {
	h := NewPageHandler(newTestService(), "")

	first := submitForm(h, url.Values{"message": {"A"}, "model": {"Gemini"}})
	cookie := conversationCookieFrom(t, first)

	second := submitForm(h, url.Values{"message": {"B"}, "model": {"Mistral"}}, cookie)
	body := second.Body.String()
	if !strings.Contains(body, "Q1: A\nA1: gemini reply\n\nQ2: B\nA2: mistral reply") {
		t.Errorf("second turn did not continue the conversation:\n%s", body)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.Show(rr, req)
	if !strings.Contains(rr.Body.String(), "Q2: B") {
		t.Error("reloading the page lost the conversation")
	}
}

func TestPageHandler_EscapesMessages(t *testing.T) {
	h := NewPageHandler(newTestService(&stubProvider{name: "Gemini", reply: "<b>bold</b>"}), "")

	rr := submitForm(h, url.Values{"message": {"<script>x</script>"}, "model": {"Gemini"}})
	body := rr.Body.String()
	if strings.Contains(body, "<script>x</script>") || strings.Contains(body, "<b>bold</b>") {
		t.Error("user or model text rendered unescaped")
	}
}

func TestPageHandler_AdapterFailureKeepsInput(t *testing.T) {
	failing := &stubProvider{name: "Gemini", err: &adapter.Error{Backend: "Gemini", Kind: adapter.KindTransport, Err: errors.New("down")}}
	h := NewPageHandler(newTestService(failing), "")

	rr := submitForm(h, url.Values{"message": {"Hi"}, "model": {"Gemini"}})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Failed to get AI response") {
		t.Error("error not shown")
	}
	if !strings.Contains(body, ">Hi</textarea>") {
		t.Error("input should be kept after a failed turn")
	}
	if strings.Contains(body, "Q1:") {
		t.Error("failed turn recorded in log")
	}
}

func TestPageHandler_ShowWithoutConversation(t *testing.T) {
	h := NewPageHandler(newTestService(), "")

	rr := httptest.NewRecorder()
	h.Show(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Multi-Model LLM Chatbot") {
		t.Error("page header missing")
	}
	if strings.Contains(rr.Body.String(), "<style>") {
		t.Error("no stylesheet configured, none should be inlined")
	}
}
