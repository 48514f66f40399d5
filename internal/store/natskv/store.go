// Package natskv implements the platform store on NATS JetStream KV buckets.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/assistly/assistant-platform/internal/model"
	natsclient "github.com/assistly/assistant-platform/internal/nats"
	"github.com/assistly/assistant-platform/internal/store"
)

// registryStateKey holds the registry UI state record inside the assistants
// bucket. Assistant IDs always carry a timestamp suffix, so no collision.
const registryStateKey = "registry.state"

// Store persists records in three JetStream KV buckets, one per platform
// store. Records are written back in full on every mutation.
type Store struct {
	assistants jetstream.KeyValue
	configs    jetstream.KeyValue
	sessions   jetstream.KeyValue
}

// New opens the KV buckets. EnsureBuckets must have been called first.
func New(ctx context.Context, manager *natsclient.StreamManager) (*Store, error) {
	assistants, err := manager.Bucket(ctx, natsclient.BucketAssistants)
	if err != nil {
		return nil, fmt.Errorf("failed to open assistants bucket: %w", err)
	}
	configs, err := manager.Bucket(ctx, natsclient.BucketConfigs)
	if err != nil {
		return nil, fmt.Errorf("failed to open configs bucket: %w", err)
	}
	sessions, err := manager.Bucket(ctx, natsclient.BucketSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to open sessions bucket: %w", err)
	}

	return &Store{
		assistants: assistants,
		configs:    configs,
		sessions:   sessions,
	}, nil
}

func put(ctx context.Context, kv jetstream.KeyValue, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if _, err := kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}
	return nil
}

func get(ctx context.Context, kv jetstream.KeyValue, key string, v interface{}) error {
	entry, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to get record: %w", err)
	}
	if err := json.Unmarshal(entry.Value(), v); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}

func del(ctx context.Context, kv jetstream.KeyValue, key string) error {
	if _, err := kv.Get(ctx, key); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to get record: %w", err)
	}
	if err := kv.Purge(ctx, key); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func keys(ctx context.Context, kv jetstream.KeyValue) ([]string, error) {
	lister, err := kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	var out []string
	for key := range lister.Keys() {
		out = append(out, key)
	}
	return out, nil
}

func (s *Store) PutAssistant(ctx context.Context, a *model.Assistant) error {
	return put(ctx, s.assistants, a.ID, a)
}

func (s *Store) GetAssistant(ctx context.Context, id string) (*model.Assistant, error) {
	var a model.Assistant
	if err := get(ctx, s.assistants, id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAssistants(ctx context.Context) ([]model.Assistant, error) {
	ks, err := keys(ctx, s.assistants)
	if err != nil {
		return nil, err
	}

	out := make([]model.Assistant, 0, len(ks))
	for _, key := range ks {
		if key == registryStateKey {
			continue
		}
		var a model.Assistant
		if err := get(ctx, s.assistants, key, &a); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // deleted between list and get
			}
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) DeleteAssistant(ctx context.Context, id string) error {
	return del(ctx, s.assistants, id)
}

func (s *Store) PutRegistryState(ctx context.Context, st *model.RegistryState) error {
	return put(ctx, s.assistants, registryStateKey, st)
}

func (s *Store) GetRegistryState(ctx context.Context) (*model.RegistryState, error) {
	var st model.RegistryState
	if err := get(ctx, s.assistants, registryStateKey, &st); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &model.RegistryState{}, nil
		}
		return nil, err
	}
	return &st, nil
}

func (s *Store) PutConfig(ctx context.Context, c *model.AssistantConfig) error {
	return put(ctx, s.configs, c.ID, c)
}

func (s *Store) GetConfig(ctx context.Context, id string) (*model.AssistantConfig, error) {
	var c model.AssistantConfig
	if err := get(ctx, s.configs, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) DeleteConfig(ctx context.Context, id string) error {
	return del(ctx, s.configs, id)
}

func (s *Store) PutSession(ctx context.Context, sess *model.ChatSession) error {
	return put(ctx, s.sessions, sess.ID, sess)
}

func (s *Store) GetSession(ctx context.Context, id string) (*model.ChatSession, error) {
	var sess model.ChatSession
	if err := get(ctx, s.sessions, id, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) ListSessions(ctx context.Context, assistantID string) ([]model.ChatSession, error) {
	ks, err := keys(ctx, s.sessions)
	if err != nil {
		return nil, err
	}

	out := make([]model.ChatSession, 0, len(ks))
	for _, key := range ks {
		var sess model.ChatSession
		if err := get(ctx, s.sessions, key, &sess); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if assistantID == "" || sess.AssistantID == assistantID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return del(ctx, s.sessions, id)
}
