package adapter

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
)

type fakeStream struct {
	chunks []string
	err    error
	pos    int
	onDone func(reply string)
}

func (f *fakeStream) Next() (*genai.GenerateContentResponse, error) {
	if f.pos >= len(f.chunks) {
		if f.err != nil {
			return nil, f.err
		}
		if f.onDone != nil {
			f.onDone(strings.Join(f.chunks, ""))
			f.onDone = nil
		}
		return nil, iterator.Done
	}
	text := f.chunks[f.pos]
	f.pos++
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(text)}}},
		},
	}, nil
}

// fakeChat keeps history the way genai.ChatSession does: the prompt is
// appended before sending, the reply only once the stream ends cleanly.
type fakeChat struct {
	history []*genai.Content
	prompts []string
	starts  int
}

func newFakeGeminiSession(streams ...*fakeStream) (*geminiSession, *fakeChat) {
	fc := &fakeChat{}
	i := 0
	s := newGeminiSession(func(ctx context.Context) (*geminiChat, error) {
		fc.starts++
		return &geminiChat{
			history: &fc.history,
			stream: func(ctx context.Context, prompt string) chunkStream {
				fc.prompts = append(fc.prompts, prompt)
				fc.history = append(fc.history, genai.NewUserContent(genai.Text(prompt)))
				st := streams[i]
				i++
				st.onDone = func(reply string) {
					fc.history = append(fc.history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(reply)}})
				}
				return st
			},
		}, nil
	})
	return s, fc
}

func historyText(history []*genai.Content) []string {
	var out []string
	for _, c := range history {
		out = append(out, c.Role+":"+string(c.Parts[0].(genai.Text)))
	}
	return out
}

func TestGeminiSend_ConcatenatesChunksInOrder(t *testing.T) {
	s, fc := newFakeGeminiSession(&fakeStream{chunks: []string{"Hel", "lo"}})

	got, err := s.Send(context.Background(), "Hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello" {
		t.Errorf("got %q, want %q", got, "Hello")
	}
	if len(fc.prompts) != 1 || fc.prompts[0] != "Hi" {
		t.Errorf("prompts sent: %v", fc.prompts)
	}
}

func TestGeminiSend_StartsChatOncePerSession(t *testing.T) {
	s, fc := newFakeGeminiSession(
		&fakeStream{chunks: []string{"one"}},
		&fakeStream{chunks: []string{"two"}},
	)

	for _, want := range []string{"one", "two"} {
		got, err := s.Send(context.Background(), "q")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
	if fc.starts != 1 {
		t.Errorf("chat started %d times, want 1", fc.starts)
	}
}

func TestGeminiSend_StreamErrorIsTransportFailure(t *testing.T) {
	boom := errors.New("stream reset")
	s, _ := newFakeGeminiSession(&fakeStream{chunks: []string{"partial"}, err: boom})

	got, err := s.Send(context.Background(), "Hi")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got != "" {
		t.Errorf("partial reply leaked: %q", got)
	}
	if !IsTransport(err) {
		t.Errorf("expected transport failure, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped stream error, got %v", err)
	}
}

func TestGeminiSend_StartFailureIsTransportFailure(t *testing.T) {
	s := newGeminiSession(func(ctx context.Context) (*geminiChat, error) {
		return nil, errors.New("no credentials")
	})

	_, err := s.Send(context.Background(), "Hi")
	if !IsTransport(err) {
		t.Fatalf("expected transport failure, got %v", err)
	}
}

func TestGeminiSend_FailedStreamLeavesNoOrphanPrompt(t *testing.T) {
	s, fc := newFakeGeminiSession(
		&fakeStream{chunks: []string{"one"}},
		&fakeStream{chunks: []string{"half"}, err: errors.New("stream reset")},
		&fakeStream{chunks: []string{"three"}},
	)
	ctx := context.Background()

	s.Send(ctx, "first")
	if _, err := s.Send(ctx, "lost"); err == nil {
		t.Fatal("expected error, got nil")
	}

	want := []string{"user:first", "model:one"}
	if got := historyText(fc.history); !reflect.DeepEqual(got, want) {
		t.Fatalf("after failure: got %v, want %v", got, want)
	}

	s.Send(ctx, "third")
	want = append(want, "user:third", "model:three")
	if got := historyText(fc.history); !reflect.DeepEqual(got, want) {
		t.Errorf("after recovery: got %v, want %v", got, want)
	}
}

func TestGeminiSession_UndoLast(t *testing.T) {
	s, fc := newFakeGeminiSession(
		&fakeStream{chunks: []string{"one"}},
		&fakeStream{chunks: []string{"two"}},
	)
	ctx := context.Background()

	s.Send(ctx, "first")
	s.Send(ctx, "second")
	s.UndoLast()

	want := []string{"user:first", "model:one"}
	if got := historyText(fc.history); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// Only the most recent exchange can be undone.
	s.UndoLast()
	if got := historyText(fc.history); !reflect.DeepEqual(got, want) {
		t.Errorf("second undo changed history: %v", got)
	}
}

func TestGeminiSession_UndoBeforeFirstSend(t *testing.T) {
	s, fc := newFakeGeminiSession()
	s.UndoLast()
	if fc.starts != 0 {
		t.Error("undo should not start a chat")
	}
}

func TestGeminiProvider_SessionsAreIndependent(t *testing.T) {
	p := NewGeminiProvider("key", "gemini-2.0-flash")
	a := p.NewSession()
	b := p.NewSession()
	if a == b {
		t.Fatal("expected a distinct chat session per conversation")
	}
	if p.Name() != GeminiName {
		t.Errorf("got %q, want %q", p.Name(), GeminiName)
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"nil response", nil, ""},
		{"no candidates", &genai.GenerateContentResponse{}, ""},
		{"nil content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, ""},
		{
			"text parts joined",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []genai.Part{genai.Text("a"), genai.Blob{MIMEType: "image/png"}, genai.Text("b")}}},
			}},
			"ab",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractText(tc.resp); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
