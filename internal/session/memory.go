package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"multichat-backend/internal/chat"
)

type memoryEntry struct {
	history  chat.History
	lastUsed time.Time
}

// MemoryStore keeps conversations in process memory with the same sliding
// TTL as RedisStore. Everything is lost on restart.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*memoryEntry
	ttl           time.Duration
	now           func() time.Time
}

// NewMemoryStore returns a store whose conversations expire after ttl without
// a Load or Save. A ttl of 0 keeps them until Delete.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		conversations: make(map[uuid.UUID]*memoryEntry),
		ttl:           ttl,
		now:           time.Now,
	}
}

func (m *MemoryStore) Create(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[id] = &memoryEntry{history: chat.History{}, lastUsed: m.now()}
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, id uuid.UUID) (chat.History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(id, m.now())
	if !ok {
		return nil, chat.ErrConversationNotFound
	}
	e.lastUsed = m.now()
	return e.history, nil
}

func (m *MemoryStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.live(id, m.now())
	return ok, nil
}

func (m *MemoryStore) Save(ctx context.Context, id uuid.UUID, history chat.History) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(id, m.now())
	if !ok {
		return chat.ErrConversationNotFound
	}
	e.history = history
	e.lastUsed = m.now()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, id)
	return nil
}

// Sweep drops every conversation idle for longer than the TTL.
func (m *MemoryStore) Sweep(ctx context.Context, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.conversations {
		m.live(id, now)
	}
}

// live returns the entry for id, deleting it if it has expired. m.mu must be held.
func (m *MemoryStore) live(id uuid.UUID, now time.Time) (*memoryEntry, bool) {
	e, ok := m.conversations[id]
	if !ok {
		return nil, false
	}
	if m.ttl > 0 && now.Sub(e.lastUsed) > m.ttl {
		delete(m.conversations, id)
		return nil, false
	}
	return e, true
}
