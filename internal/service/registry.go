// Package service provides business logic for the assistant platform.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/assistly/assistant-platform/internal/model"
	"github.com/assistly/assistant-platform/internal/store"
	"github.com/assistly/assistant-platform/pkg/logger"
	"github.com/assistly/assistant-platform/pkg/metrics"
)

// RegistryService manages the assistant identity list plus the active
// selection and search filter.
type RegistryService struct {
	store   store.Store
	configs *ConfigService
	logger  *logger.Logger
}

// NewRegistryService creates a new registry service.
func NewRegistryService(st store.Store, configs *ConfigService, log *logger.Logger) *RegistryService {
	return &RegistryService{
		store:   st,
		configs: configs,
		logger:  log,
	}
}

// Create creates a new assistant. The ID is derived from the name plus a
// timestamp, so two assistants never share an ID. A default configuration
// record is created alongside the identity.
func (s *RegistryService) Create(ctx context.Context, req *model.CreateAssistantRequest) (*model.Assistant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.New("name cannot be empty")
	}

	now := time.Now()
	a := &model.Assistant{
		ID:          Slugify(name) + "-" + strconv.FormatInt(now.UnixMilli(), 10),
		Name:        name,
		Description: req.Description,
		Category:    req.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.PutAssistant(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to store assistant: %w", err)
	}

	// Stamp a default configuration for the new identity.
	if _, err := s.configs.LoadOrCreate(ctx, a.ID, a.Name); err != nil {
		return nil, fmt.Errorf("failed to create default config: %w", err)
	}

	metrics.AssistantsTotal.Inc()
	s.logger.Info("assistant created", "assistant_id", a.ID, "name", a.Name)

	return a, nil
}

// Get retrieves an assistant by ID.
func (s *RegistryService) Get(ctx context.Context, id string) (*model.Assistant, error) {
	return s.store.GetAssistant(ctx, id)
}

// List retrieves assistants matching the search filter. An empty filter
// falls back to the persisted search query; matching is case-insensitive
// over name and description.
func (s *RegistryService) List(ctx context.Context, query string) (*model.ListAssistantsResponse, error) {
	state, err := s.store.GetRegistryState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry state: %w", err)
	}
	if query == "" {
		query = state.SearchQuery
	}

	all, err := s.store.ListAssistants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assistants: %w", err)
	}

	q := strings.ToLower(query)
	out := make([]model.Assistant, 0, len(all))
	for _, a := range all {
		if q == "" ||
			strings.Contains(strings.ToLower(a.Name), q) ||
			strings.Contains(strings.ToLower(a.Description), q) {
			out = append(out, a)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return &model.ListAssistantsResponse{
		Assistants: out,
		Total:      len(out),
		ActiveID:   state.ActiveID,
	}, nil
}

// Update merges non-nil fields into an assistant and bumps UpdatedAt.
func (s *RegistryService) Update(ctx context.Context, id string, req *model.UpdateAssistantRequest) (*model.Assistant, error) {
	a, err := s.store.GetAssistant(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, errors.New("name cannot be empty")
		}
		a.Name = name
	}
	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.Category != nil {
		a.Category = *req.Category
	}
	a.UpdatedAt = time.Now()

	if err := s.store.PutAssistant(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to store assistant: %w", err)
	}

	return a, nil
}

// Delete removes an assistant together with its configuration record.
// If it was the active assistant, the active selection is cleared.
func (s *RegistryService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteAssistant(ctx, id); err != nil {
		return err
	}

	// No orphaned config may survive the identity.
	if err := s.configs.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete config: %w", err)
	}

	state, err := s.store.GetRegistryState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load registry state: %w", err)
	}
	if state.ActiveID == id {
		state.ActiveID = ""
		if err := s.store.PutRegistryState(ctx, state); err != nil {
			return fmt.Errorf("failed to clear active assistant: %w", err)
		}
	}

	s.logger.Info("assistant deleted", "assistant_id", id)
	return nil
}

// SetActive selects the active assistant, or clears the selection when id
// is nil.
func (s *RegistryService) SetActive(ctx context.Context, id *string) error {
	state, err := s.store.GetRegistryState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load registry state: %w", err)
	}

	if id == nil {
		state.ActiveID = ""
	} else {
		if _, err := s.store.GetAssistant(ctx, *id); err != nil {
			return err
		}
		state.ActiveID = *id
	}

	return s.store.PutRegistryState(ctx, state)
}

// SetSearchQuery persists the registry search filter.
func (s *RegistryService) SetSearchQuery(ctx context.Context, query string) error {
	state, err := s.store.GetRegistryState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load registry state: %w", err)
	}
	state.SearchQuery = query
	return s.store.PutRegistryState(ctx, state)
}

// State returns the persisted registry UI state.
func (s *RegistryService) State(ctx context.Context) (*model.RegistryState, error) {
	return s.store.GetRegistryState(ctx)
}

// Slugify lowercases a name and replaces runs of non-alphanumeric
// characters with single dashes.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
