package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"multichat-backend/internal/chat"
	"multichat-backend/internal/models"
)

type stubSubmitter struct {
	mu      sync.Mutex
	calls   []string
	err     error
	release chan struct{}
}

func (s *stubSubmitter) Submit(ctx context.Context, id uuid.UUID, message, model string) (*chat.TurnResult, error) {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	s.calls = append(s.calls, message)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	history := chat.History{{UserMessage: message, BotReply: "re: " + message}}
	return &chat.TurnResult{History: history, Log: chat.Render(history), Reply: "re: " + message, Supported: true}, nil
}

type completion struct {
	job    models.TurnJob
	result *chat.TurnResult
	err    error
}

func collect() (CompletionFunc, chan completion) {
	ch := make(chan completion, 16)
	return func(job models.TurnJob, result *chat.TurnResult, err error) {
		ch <- completion{job, result, err}
	}, ch
}

func waitCompletion(t *testing.T, ch chan completion) completion {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
		return completion{}
	}
}

func TestPool_RunsJobAndReportsResult(t *testing.T) {
	onComplete, ch := collect()
	p := NewPool(&stubSubmitter{}, onComplete, 2, 4)
	p.Start()
	defer p.Stop()

	conv := uuid.New()
	job, err := p.Enqueue(models.TurnJob{ConversationID: conv, Message: "Hi", Model: "Gemini"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.ID == uuid.Nil {
		t.Fatal("expected job ID to be assigned")
	}

	c := waitCompletion(t, ch)
	if c.err != nil {
		t.Fatalf("unexpected error: %v", c.err)
	}
	if c.job.ID != job.ID || c.job.ConversationID != conv {
		t.Errorf("completion for wrong job: %+v", c.job)
	}
	if c.result.Reply != "re: Hi" {
		t.Errorf("reply: got %q", c.result.Reply)
	}
}

func TestPool_ReportsFailure(t *testing.T) {
	boom := errors.New("backend down")
	onComplete, ch := collect()
	p := NewPool(&stubSubmitter{err: boom}, onComplete, 1, 1)
	p.Start()
	defer p.Stop()

	if _, err := p.Enqueue(models.TurnJob{ConversationID: uuid.New(), Message: "Hi"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	c := waitCompletion(t, ch)
	if !errors.Is(c.err, boom) || c.result != nil {
		t.Errorf("got (%v, %v), want failure %v", c.result, c.err, boom)
	}
}

func TestPool_QueueFull(t *testing.T) {
	onComplete, _ := collect()
	p := NewPool(&stubSubmitter{}, onComplete, 1, 1)

	if _, err := p.Enqueue(models.TurnJob{Message: "first"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := p.Enqueue(models.TurnJob{Message: "second"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestPool_StopReportsQueuedJobs(t *testing.T) {
	onComplete, ch := collect()
	p := NewPool(&stubSubmitter{}, onComplete, 1, 2)

	job, _ := p.Enqueue(models.TurnJob{Message: "never run"})
	p.Stop()

	c := waitCompletion(t, ch)
	if c.job.ID != job.ID || !errors.Is(c.err, ErrPoolStopped) {
		t.Errorf("got %+v", c)
	}

	if _, err := p.Enqueue(models.TurnJob{Message: "late"}); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped, got %v", err)
	}
	p.Stop()
}

func TestPool_StopWaitsForInFlightTurn(t *testing.T) {
	sub := &stubSubmitter{release: make(chan struct{})}
	onComplete, ch := collect()
	p := NewPool(sub, onComplete, 1, 1)
	p.Start()

	p.Enqueue(models.TurnJob{Message: "slow"})

	stopped := make(chan struct{})
	go func() {
		// Give the worker time to pick the job up before stopping.
		time.Sleep(50 * time.Millisecond)
		p.Stop()
		close(stopped)
	}()

	time.Sleep(100 * time.Millisecond)
	select {
	case <-stopped:
		t.Fatal("Stop returned while a turn was still in flight")
	default:
	}

	close(sub.release)
	<-stopped

	c := waitCompletion(t, ch)
	if c.err != nil || c.result.Reply != "re: slow" {
		t.Errorf("in-flight turn not completed: %+v", c)
	}
}

type serialSubmitter struct {
	mu        sync.Mutex
	active    map[uuid.UUID]int
	maxActive int
	order     []string
}

func (s *serialSubmitter) Submit(ctx context.Context, id uuid.UUID, message, model string) (*chat.TurnResult, error) {
	s.mu.Lock()
	s.active[id]++
	if s.active[id] > s.maxActive {
		s.maxActive = s.active[id]
	}
	s.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	s.mu.Lock()
	s.active[id]--
	s.order = append(s.order, message)
	s.mu.Unlock()
	return &chat.TurnResult{Reply: "re: " + message, Supported: true}, nil
}

func TestPool_SameConversationTurnsRunInOrder(t *testing.T) {
	sub := &serialSubmitter{active: make(map[uuid.UUID]int)}
	onComplete, ch := collect()
	p := NewPool(sub, onComplete, 3, 4)
	p.Start()
	defer p.Stop()

	conv := uuid.New()
	for _, msg := range []string{"a", "b", "c"} {
		if _, err := p.Enqueue(models.TurnJob{ConversationID: conv, Message: msg}); err != nil {
			t.Fatalf("Enqueue %s: %v", msg, err)
		}
	}

	for i := 0; i < 3; i++ {
		if c := waitCompletion(t, ch); c.err != nil {
			t.Fatalf("turn %q failed: %v", c.job.Message, c.err)
		}
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.maxActive != 1 {
		t.Errorf("turns of one conversation overlapped: max in flight %d", sub.maxActive)
	}
	if strings.Join(sub.order, "") != "abc" {
		t.Errorf("order: got %v", sub.order)
	}
}

func TestPool_WaitingTurnsCountAgainstQueueSize(t *testing.T) {
	onComplete, _ := collect()
	p := NewPool(&stubSubmitter{}, onComplete, 1, 2)

	conv := uuid.New()
	for _, msg := range []string{"first", "second"} {
		if _, err := p.Enqueue(models.TurnJob{ConversationID: conv, Message: msg}); err != nil {
			t.Fatalf("Enqueue %s: %v", msg, err)
		}
	}
	if _, err := p.Enqueue(models.TurnJob{ConversationID: uuid.New(), Message: "third"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestPool_StopReportsTurnsWaitingBehindInFlightTurn(t *testing.T) {
	sub := &stubSubmitter{release: make(chan struct{})}
	onComplete, ch := collect()
	p := NewPool(sub, onComplete, 2, 4)
	p.Start()

	conv := uuid.New()
	p.Enqueue(models.TurnJob{ConversationID: conv, Message: "slow"})
	waiting, _ := p.Enqueue(models.TurnJob{ConversationID: conv, Message: "waiting"})

	stopped := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		p.Stop()
		close(stopped)
	}()
	time.Sleep(100 * time.Millisecond)
	close(sub.release)
	<-stopped

	got := map[string]error{}
	for i := 0; i < 2; i++ {
		c := waitCompletion(t, ch)
		got[c.job.Message] = c.err
	}
	if err, ok := got["slow"]; !ok || err != nil {
		t.Errorf("in-flight turn: got %v (reported %v)", err, ok)
	}
	if err := got["waiting"]; !errors.Is(err, ErrPoolStopped) {
		t.Errorf("waiting turn %s: expected ErrPoolStopped, got %v", waiting.ID, err)
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.calls) != 1 {
		t.Errorf("waiting turn must not run after Stop: calls %v", sub.calls)
	}
}
