package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/assistly/assistant-platform/internal/model"
	"github.com/assistly/assistant-platform/internal/store"
	"github.com/assistly/assistant-platform/pkg/logger"
)

// ConfigService manages per-assistant configuration records, created on
// demand from the default template. Validation of field bounds happens at
// the handler layer; the service accepts whatever it is given.
type ConfigService struct {
	store  store.Store
	logger *logger.Logger
}

// NewConfigService creates a new configuration service.
func NewConfigService(st store.Store, log *logger.Logger) *ConfigService {
	return &ConfigService{
		store:  st,
		logger: log,
	}
}

// LoadOrCreate returns the existing configuration for an assistant, or
// creates one from the default template stamped with the given identity.
// A second call for the same ID is a pure read.
func (s *ConfigService) LoadOrCreate(ctx context.Context, id, name string) (*model.AssistantConfig, error) {
	c, err := s.store.GetConfig(ctx, id)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	c = model.DefaultConfig(id, name)
	if err := s.store.PutConfig(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to store config: %w", err)
	}

	s.logger.Info("default config created", "assistant_id", id)
	return c, nil
}

// Get retrieves a configuration by assistant ID.
func (s *ConfigService) Get(ctx context.Context, id string) (*model.AssistantConfig, error) {
	return s.store.GetConfig(ctx, id)
}

// Update shallow-merges non-nil fields into the stored configuration. When
// no record exists yet, one is synthesized from the defaults plus the
// partial first (self-healing write). Fields not named in the update are
// always retained.
func (s *ConfigService) Update(ctx context.Context, id string, req *model.UpdateConfigRequest) (*model.AssistantConfig, error) {
	c, err := s.loadOrHeal(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Provider != nil {
		c.Provider = *req.Provider
	}
	if req.Model != nil {
		c.Model = *req.Model
	}
	if req.FirstMessage != nil {
		c.FirstMessage = *req.FirstMessage
	}
	if req.SystemPrompt != nil {
		c.SystemPrompt = *req.SystemPrompt
	}
	if req.MaxTokens != nil {
		c.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		c.Temperature = *req.Temperature
	}
	if req.DetectEmotion != nil {
		c.DetectEmotion = *req.DetectEmotion
	}
	if req.HIPAAEnabled != nil {
		c.HIPAAEnabled = *req.HIPAAEnabled
	}
	if req.Voice != nil {
		v := *req.Voice
		c.Voice = &v
	}
	if req.Transcriber != nil {
		t := *req.Transcriber
		c.Transcriber = &t
	}
	c.UpdatedAt = time.Now()

	if err := s.store.PutConfig(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to store config: %w", err)
	}

	return c, nil
}

// Delete removes a configuration record.
func (s *ConfigService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteConfig(ctx, id)
}

// RecordLatency stores the most recent test-chat reply latency for an
// assistant. Last value only, no history.
func (s *ConfigService) RecordLatency(ctx context.Context, id string, latencyMs int64) error {
	c, err := s.loadOrHeal(ctx, id)
	if err != nil {
		return err
	}

	c.LastLatencyMs = latencyMs
	c.UpdatedAt = time.Now()

	if err := s.store.PutConfig(ctx, c); err != nil {
		return fmt.Errorf("failed to store config: %w", err)
	}
	return nil
}

// AddFile registers file metadata on a configuration. File bytes are never
// stored.
func (s *ConfigService) AddFile(ctx context.Context, id string, req *model.AddFileRequest) (*model.FileMeta, error) {
	c, err := s.loadOrHeal(ctx, id)
	if err != nil {
		return nil, err
	}

	file := model.FileMeta{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Name:        req.Name,
		Size:        req.Size,
		ContentType: req.ContentType,
		UploadedAt:  time.Now(),
	}
	c.Files = append(c.Files, file)
	c.UpdatedAt = time.Now()

	if err := s.store.PutConfig(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to store config: %w", err)
	}

	return &file, nil
}

// RemoveFile removes a file metadata entry from a configuration.
func (s *ConfigService) RemoveFile(ctx context.Context, id, fileID string) error {
	c, err := s.store.GetConfig(ctx, id)
	if err != nil {
		return err
	}

	found := false
	files := c.Files[:0]
	for _, f := range c.Files {
		if f.ID == fileID {
			found = true
			continue
		}
		files = append(files, f)
	}
	if !found {
		return store.ErrNotFound
	}
	c.Files = files
	c.UpdatedAt = time.Now()

	if err := s.store.PutConfig(ctx, c); err != nil {
		return fmt.Errorf("failed to store config: %w", err)
	}
	return nil
}

// loadOrHeal fetches a configuration, synthesizing a default record when
// none exists. The assistant's name is carried over when the identity is
// known.
func (s *ConfigService) loadOrHeal(ctx context.Context, id string) (*model.AssistantConfig, error) {
	c, err := s.store.GetConfig(ctx, id)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	name := ""
	if a, err := s.store.GetAssistant(ctx, id); err == nil {
		name = a.Name
	}
	return model.DefaultConfig(id, name), nil
}
