package adapter

import (
	"context"
	"sync"
	"time"

	"multichat-backend/internal/metrics"
)

// Adapter sends a prompt to one backend and returns the complete text reply.
type Adapter interface {
	Send(ctx context.Context, prompt string) (string, error)
}

// Provider builds the adapter a single conversation talks to. Providers whose
// backend keeps no per-conversation state may hand out the same adapter to
// every caller.
type Provider interface {
	Name() string
	NewSession() Adapter
}

// Undoer is implemented by adapters that keep provider-side history. UndoLast
// forgets the most recent successful exchange.
type Undoer interface {
	UndoLast()
}

// Registry maps selector names to providers, preserving registration order.
type Registry struct {
	order     []string
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider already registered under its name.
func (r *Registry) Register(p Provider) {
	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

func (r *Registry) Lookup(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names lists the supported selectors in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// NewSessions returns an empty adapter set for one conversation.
func (r *Registry) NewSessions() *Sessions {
	return &Sessions{
		registry: r,
		adapters: make(map[string]Adapter),
	}
}

// Sessions holds the adapters bound to one conversation. Adapters are created
// on first use, so a provider-side chat session only exists for backends the
// conversation actually talked to.
type Sessions struct {
	registry *Registry

	mu       sync.Mutex
	adapters map[string]Adapter
}

// Dispatch sends prompt to the backend registered as name. ok is false when no
// such backend exists; no call is made in that case.
func (s *Sessions) Dispatch(ctx context.Context, name, prompt string) (reply string, ok bool, err error) {
	a, ok := s.adapter(name)
	if !ok {
		return "", false, nil
	}

	start := time.Now()
	reply, err = a.Send(ctx, prompt)
	metrics.BackendDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendErrors.WithLabelValues(name, errorKind(err).String()).Inc()
	}
	return reply, true, err
}

func (s *Sessions) adapter(name string) (Adapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.adapters[name]; ok {
		return a, true
	}
	p, ok := s.registry.Lookup(name)
	if !ok {
		return nil, false
	}
	a := p.NewSession()
	s.adapters[name] = a
	return a, true
}

// UndoLast rolls back the last exchange of the named backend's adapter, if it
// keeps history. It never creates an adapter.
func (s *Sessions) UndoLast(name string) {
	s.mu.Lock()
	a, ok := s.adapters[name]
	s.mu.Unlock()

	if u, isUndoer := a.(Undoer); ok && isUndoer {
		u.UndoLast()
	}
}
