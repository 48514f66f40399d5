// Package store defines persistence contracts for the assistant platform.
package store

import (
	"context"
	"errors"

	"github.com/assistly/assistant-platform/internal/model"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// Store is the persistence interface backing the three platform stores:
// the assistant registry (plus its UI selection state), the per-assistant
// configuration map, and the chat session list. Each record is written back
// in full on every mutation; last write wins.
type Store interface {
	// Assistant registry
	PutAssistant(ctx context.Context, a *model.Assistant) error
	GetAssistant(ctx context.Context, id string) (*model.Assistant, error)
	ListAssistants(ctx context.Context) ([]model.Assistant, error)
	DeleteAssistant(ctx context.Context, id string) error

	// Registry UI state (active assistant + search filter)
	PutRegistryState(ctx context.Context, s *model.RegistryState) error
	GetRegistryState(ctx context.Context) (*model.RegistryState, error)

	// Assistant configurations, keyed by assistant ID
	PutConfig(ctx context.Context, c *model.AssistantConfig) error
	GetConfig(ctx context.Context, id string) (*model.AssistantConfig, error)
	DeleteConfig(ctx context.Context, id string) error

	// Chat sessions
	PutSession(ctx context.Context, s *model.ChatSession) error
	GetSession(ctx context.Context, id string) (*model.ChatSession, error)
	ListSessions(ctx context.Context, assistantID string) ([]model.ChatSession, error)
	DeleteSession(ctx context.Context, id string) error
}
