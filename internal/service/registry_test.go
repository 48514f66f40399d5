package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/assistly/assistant-platform/internal/model"
	"github.com/assistly/assistant-platform/internal/store"
	"github.com/assistly/assistant-platform/internal/store/memory"
	"github.com/assistly/assistant-platform/pkg/logger"
)

func newTestRegistry() (*RegistryService, *ConfigService, store.Store) {
	st := memory.New()
	log := logger.NewNop()
	configs := NewConfigService(st, log)
	return NewRegistryService(st, configs, log), configs, st
}

func TestCreateAssistant(t *testing.T) {
	registry, configs, _ := newTestRegistry()
	ctx := context.Background()

	a, err := registry.Create(ctx, &model.CreateAssistantRequest{
		Name:        "Demo Bot",
		Description: "A demo",
		Category:    "support",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if !strings.HasPrefix(a.ID, "demo-bot-") {
		t.Errorf("expected ID prefix demo-bot-, got %s", a.ID)
	}
	suffix := strings.TrimPrefix(a.ID, "demo-bot-")
	if _, err := strconv.ParseInt(suffix, 10, 64); err != nil {
		t.Errorf("expected numeric ID suffix, got %s", suffix)
	}

	// A default config must exist alongside the identity.
	cfg, err := configs.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("expected default config, got error: %v", err)
	}
	if cfg.Name != "Demo Bot" {
		t.Errorf("expected config name Demo Bot, got %s", cfg.Name)
	}
}

func TestCreateAssistantDistinctIDs(t *testing.T) {
	registry, _, _ := newTestRegistry()
	ctx := context.Background()

	first, err := registry.Create(ctx, &model.CreateAssistantRequest{Name: "Demo Bot"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := registry.Create(ctx, &model.CreateAssistantRequest{Name: "Demo Bot"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if first.ID == second.ID {
		t.Errorf("expected distinct IDs, both are %s", first.ID)
	}
}

func TestCreateAssistantEmptyName(t *testing.T) {
	registry, _, _ := newTestRegistry()

	if _, err := registry.Create(context.Background(), &model.CreateAssistantRequest{Name: "   "}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestListAssistantsSearch(t *testing.T) {
	registry, _, _ := newTestRegistry()
	ctx := context.Background()

	names := []struct{ name, description string }{
		{"Sales Helper", "handles quotes"},
		{"Support Bot", "answers support tickets"},
		{"Scheduler", "books SUPPORT calls"},
	}
	for _, n := range names {
		if _, err := registry.Create(ctx, &model.CreateAssistantRequest{Name: n.name, Description: n.description}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"no filter", "", 3},
		{"name match", "sales", 1},
		{"description match case-insensitive", "support", 2},
		{"no match", "billing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := registry.List(ctx, tt.query)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if resp.Total != tt.want {
				t.Errorf("expected %d assistants, got %d", tt.want, resp.Total)
			}
		})
	}
}

func TestListAssistantsPersistedQuery(t *testing.T) {
	registry, _, _ := newTestRegistry()
	ctx := context.Background()

	if _, err := registry.Create(ctx, &model.CreateAssistantRequest{Name: "Sales Helper"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := registry.Create(ctx, &model.CreateAssistantRequest{Name: "Support Bot"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := registry.SetSearchQuery(ctx, "sales"); err != nil {
		t.Fatalf("SetSearchQuery failed: %v", err)
	}

	// An empty query falls back to the persisted filter.
	resp, err := registry.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("expected 1 assistant via persisted query, got %d", resp.Total)
	}

	// An explicit query overrides it.
	resp, err = registry.List(ctx, "support")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("expected 1 assistant via explicit query, got %d", resp.Total)
	}
}

func TestUpdateAssistantMerge(t *testing.T) {
	registry, _, _ := newTestRegistry()
	ctx := context.Background()

	a, err := registry.Create(ctx, &model.CreateAssistantRequest{Name: "Demo Bot", Description: "before"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	desc := "after"
	updated, err := registry.Update(ctx, a.ID, &model.UpdateAssistantRequest{Description: &desc})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if updated.Name != "Demo Bot" {
		t.Errorf("expected name retained, got %s", updated.Name)
	}
	if updated.Description != "after" {
		t.Errorf("expected description after, got %s", updated.Description)
	}
	if !updated.UpdatedAt.After(a.CreatedAt) && !updated.UpdatedAt.Equal(a.CreatedAt) {
		t.Error("expected UpdatedAt to advance")
	}
}

func TestDeleteAssistantCascades(t *testing.T) {
	registry, configs, _ := newTestRegistry()
	ctx := context.Background()

	a, err := registry.Create(ctx, &model.CreateAssistantRequest{Name: "Demo Bot"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := registry.SetActive(ctx, &a.ID); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	if err := registry.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := registry.Get(ctx, a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted assistant, got %v", err)
	}
	if _, err := configs.Get(ctx, a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected config to be deleted, got %v", err)
	}

	state, err := registry.State(ctx)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.ActiveID != "" {
		t.Errorf("expected active selection cleared, got %s", state.ActiveID)
	}
}

func TestSetActive(t *testing.T) {
	registry, _, _ := newTestRegistry()
	ctx := context.Background()

	a, err := registry.Create(ctx, &model.CreateAssistantRequest{Name: "Demo Bot"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	unknown := "nope"
	if err := registry.SetActive(ctx, &unknown); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown assistant, got %v", err)
	}

	if err := registry.SetActive(ctx, &a.ID); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	state, err := registry.State(ctx)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.ActiveID != a.ID {
		t.Errorf("expected active %s, got %s", a.ID, state.ActiveID)
	}

	if err := registry.SetActive(ctx, nil); err != nil {
		t.Fatalf("SetActive(nil) failed: %v", err)
	}
	state, _ = registry.State(ctx)
	if state.ActiveID != "" {
		t.Errorf("expected cleared selection, got %s", state.ActiveID)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Demo Bot", "demo-bot"},
		{"  Sales!! Helper  ", "sales-helper"},
		{"already-slugged", "already-slugged"},
		{"MiXeD CaSe 42", "mixed-case-42"},
		{"---", ""},
	}

	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
