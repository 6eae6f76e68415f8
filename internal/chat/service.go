package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"multichat-backend/internal/adapter"
	"multichat-backend/internal/metrics"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrTurnInProgress       = errors.New("a turn is already in progress for this conversation")
)

// Store keeps each conversation's history, keyed by conversation ID.
// Load returns ErrConversationNotFound for unknown or expired IDs and counts
// as activity; Exists does not.
type Store interface {
	Create(ctx context.Context, id uuid.UUID) error
	Load(ctx context.Context, id uuid.UUID) (History, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Save(ctx context.Context, id uuid.UUID, history History) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service owns per-conversation state: stored history, the adapter sessions
// bound to the conversation, and whether a turn is currently awaiting a reply.
type Service struct {
	store    Store
	registry *adapter.Registry

	mu       sync.Mutex
	sessions map[uuid.UUID]*adapter.Sessions
	busy     map[uuid.UUID]struct{}
}

func NewService(store Store, registry *adapter.Registry) *Service {
	return &Service{
		store:    store,
		registry: registry,
		sessions: make(map[uuid.UUID]*adapter.Sessions),
		busy:     make(map[uuid.UUID]struct{}),
	}
}

// Models lists the selectors that reach a backend.
func (s *Service) Models() []string {
	return s.registry.Names()
}

// Start opens a new, empty conversation.
func (s *Service) Start(ctx context.Context) (uuid.UUID, error) {
	id := uuid.New()
	if err := s.store.Create(ctx, id); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

// Conversation returns the stored history and its rendered log.
func (s *Service) Conversation(ctx context.Context, id uuid.UUID) (History, string, error) {
	history, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return history, Render(history), nil
}

// Submit runs one turn for the conversation. Only one turn per conversation
// may await a backend reply at a time.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, message, model string) (*TurnResult, error) {
	if !s.acquire(id) {
		return nil, ErrTurnInProgress
	}
	defer s.release(id)

	history, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	sessions := s.sessionsFor(id)
	result, err := HandleTurn(ctx, message, Selector(model), history, sessions)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(model, metrics.OutcomeFailed).Inc()
		return nil, err
	}
	if result.Supported {
		metrics.TurnsTotal.WithLabelValues(model, metrics.OutcomeOK).Inc()
	} else {
		metrics.TurnsTotal.WithLabelValues("unknown", metrics.OutcomeUnsupported).Inc()
	}

	if err := s.store.Save(ctx, id, result.History); err != nil {
		// The backend must not remember a turn the history does not have.
		if result.Supported {
			sessions.UndoLast(model)
		}
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}
	return result, nil
}

// End discards the conversation's history and its backend sessions.
func (s *Service) End(ctx context.Context, id uuid.UUID) error {
	s.dropSessions(id)
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// PruneSessions releases the adapter sessions of conversations that have
// expired from the store without an explicit End. It returns how many were
// released.
func (s *Service) PruneSessions(ctx context.Context) (int, error) {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.sessions))
	for id := range s.sessions {
		if _, busy := s.busy[id]; !busy {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	pruned := 0
	for _, id := range ids {
		ok, err := s.store.Exists(ctx, id)
		if err != nil {
			return pruned, fmt.Errorf("failed to check conversation %s: %w", id, err)
		}
		if !ok {
			s.dropSessions(id)
			pruned++
		}
	}
	return pruned, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (History, error) {
	history, err := s.store.Load(ctx, id)
	if errors.Is(err, ErrConversationNotFound) {
		// An expired conversation must not resurrect old backend sessions.
		s.dropSessions(id)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return history, nil
}

func (s *Service) sessionsFor(id uuid.UUID) *adapter.Sessions {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = s.registry.NewSessions()
		s.sessions[id] = sess
	}
	return sess
}

func (s *Service) dropSessions(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Service) acquire(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.busy[id]; ok {
		return false
	}
	s.busy[id] = struct{}{}
	return true
}

func (s *Service) release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, id)
}
