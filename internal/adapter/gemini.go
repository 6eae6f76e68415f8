package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const GeminiName = "Gemini"

// chunkStream yields streamed Gemini responses until iterator.Done.
type chunkStream interface {
	Next() (*genai.GenerateContentResponse, error)
}

// GeminiProvider owns the Gemini client. The client is created on first use
// so a missing API key only surfaces when a conversation picks Gemini.
type GeminiProvider struct {
	apiKey    string
	modelName string

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiProvider(apiKey, modelName string) *GeminiProvider {
	return &GeminiProvider{
		apiKey:    apiKey,
		modelName: modelName,
	}
}

func (p *GeminiProvider) Name() string { return GeminiName }

// NewSession starts a conversation-owned chat session. Server-side history
// accumulates per conversation, never across conversations.
func (p *GeminiProvider) NewSession() Adapter {
	return newGeminiSession(p.startChat)
}

func (p *GeminiProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

func (p *GeminiProvider) startChat(ctx context.Context) (*geminiChat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		p.client = client
	}

	cs := p.client.GenerativeModel(p.modelName).StartChat()
	return &geminiChat{
		history: &cs.History,
		stream: func(ctx context.Context, prompt string) chunkStream {
			return cs.SendMessageStream(ctx, genai.Text(prompt))
		},
	}, nil
}

// geminiChat is the provider-side chat. The SDK appends the prompt to history
// before sending and the reply only after a clean end of stream, so a failed
// stream would leave an orphan user turn behind without truncation.
type geminiChat struct {
	history *[]*genai.Content
	stream  func(ctx context.Context, prompt string) chunkStream
}

func (c *geminiChat) send(ctx context.Context, prompt string) chunkStream {
	n := len(*c.history)
	return &rollbackStream{
		stream: c.stream(ctx, prompt),
		failed: func() { c.truncate(n) },
	}
}

func (c *geminiChat) truncate(n int) {
	if n < len(*c.history) {
		*c.history = (*c.history)[:n]
	}
}

// rollbackStream calls failed once if the stream ends in an error.
type rollbackStream struct {
	stream chunkStream
	failed func()
	done   bool
}

func (r *rollbackStream) Next() (*genai.GenerateContentResponse, error) {
	resp, err := r.stream.Next()
	if err != nil && !errors.Is(err, iterator.Done) && !r.done {
		r.done = true
		r.failed()
	}
	return resp, err
}

type geminiSession struct {
	start func(ctx context.Context) (*geminiChat, error)

	mu   sync.Mutex
	chat *geminiChat
	// history length before the last successful exchange, -1 when there is
	// nothing to undo.
	undoTo int
}

func newGeminiSession(start func(ctx context.Context) (*geminiChat, error)) *geminiSession {
	return &geminiSession{start: start, undoTo: -1}
}

// Send streams the reply and returns it only once every chunk has arrived.
// The mutex keeps the chat session's history in submission order.
func (s *geminiSession) Send(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chat == nil {
		chat, err := s.start(ctx)
		if err != nil {
			return "", transportError(GeminiName, err)
		}
		s.chat = chat
	}

	before := len(*s.chat.history)
	text, err := collectStream(s.chat.send(ctx, prompt))
	if err != nil {
		s.undoTo = -1
		return "", transportError(GeminiName, err)
	}
	s.undoTo = before
	return text, nil
}

// UndoLast drops the last successful exchange from the chat history, for
// turns that were answered but could not be recorded.
func (s *geminiSession) UndoLast() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chat != nil && s.undoTo >= 0 {
		s.chat.truncate(s.undoTo)
	}
	s.undoTo = -1
}

func collectStream(stream chunkStream) (string, error) {
	var b strings.Builder
	for {
		resp, err := stream.Next()
		if errors.Is(err, iterator.Done) {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		b.WriteString(extractText(resp))
	}
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
