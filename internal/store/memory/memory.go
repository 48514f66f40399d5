// Package memory provides an in-memory Store implementation, used in tests
// and as a fallback when no NATS server is configured.
package memory

import (
	"context"
	"sync"

	"github.com/assistly/assistant-platform/internal/model"
	"github.com/assistly/assistant-platform/internal/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu         sync.RWMutex
	assistants map[string]model.Assistant
	configs    map[string]model.AssistantConfig
	sessions   map[string]model.ChatSession
	registry   model.RegistryState
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		assistants: make(map[string]model.Assistant),
		configs:    make(map[string]model.AssistantConfig),
		sessions:   make(map[string]model.ChatSession),
	}
}

func (s *Store) PutAssistant(ctx context.Context, a *model.Assistant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assistants[a.ID] = *a
	return nil
}

func (s *Store) GetAssistant(ctx context.Context, id string) (*model.Assistant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assistants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := a
	return &out, nil
}

func (s *Store) ListAssistants(ctx context.Context) ([]model.Assistant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Assistant, 0, len(s.assistants))
	for _, a := range s.assistants {
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) DeleteAssistant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assistants[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.assistants, id)
	return nil
}

func (s *Store) PutRegistryState(ctx context.Context, st *model.RegistryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = *st
	return nil
}

func (s *Store) GetRegistryState(ctx context.Context) (*model.RegistryState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.registry
	return &out, nil
}

func (s *Store) PutConfig(ctx context.Context, c *model.AssistantConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[c.ID] = *c
	return nil
}

func (s *Store) GetConfig(ctx context.Context, id string) (*model.AssistantConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := c
	return &out, nil
}

func (s *Store) DeleteConfig(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.configs, id)
	return nil
}

func (s *Store) PutSession(ctx context.Context, sess *model.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := sess
	return &out, nil
}

func (s *Store) ListSessions(ctx context.Context, assistantID string) ([]model.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ChatSession, 0)
	for _, sess := range s.sessions {
		if assistantID == "" || sess.AssistantID == assistantID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}
