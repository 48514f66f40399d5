// Package model defines data structures for the assistant platform.
package model

import (
	"time"
)

// Assistant represents a configurable assistant identity.
type Assistant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RegistryState holds the persisted UI selection state for the registry:
// the currently active assistant and the search filter.
type RegistryState struct {
	ActiveID    string `json:"active_id,omitempty"`
	SearchQuery string `json:"search_query,omitempty"`
}

// CreateAssistantRequest is the request to create a new assistant.
type CreateAssistantRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// UpdateAssistantRequest is the request to update an assistant.
// Nil fields are left unchanged.
type UpdateAssistantRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// SetActiveRequest selects (or clears) the active assistant.
type SetActiveRequest struct {
	ID *string `json:"id"`
}

// ListAssistantsResponse is the response for listing assistants.
type ListAssistantsResponse struct {
	Assistants []Assistant `json:"assistants"`
	Total      int         `json:"total"`
	ActiveID   string      `json:"active_id,omitempty"`
}
