package model

import (
	"time"
)

// VoiceConfig holds speech-synthesis provider settings for an assistant.
type VoiceConfig struct {
	Provider        string  `json:"provider,omitempty"`
	VoiceID         string  `json:"voice_id,omitempty"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	SpeakerBoost    bool    `json:"speaker_boost"`
}

// TranscriberConfig holds speech-to-text provider settings for an assistant.
type TranscriberConfig struct {
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model,omitempty"`
	Language    string `json:"language,omitempty"`
	Punctuate   bool   `json:"punctuate"`
	SmartFormat bool   `json:"smart_format"`
	// Keywords is a custom vocabulary list passed through to the provider.
	Keywords []string `json:"keywords,omitempty"`
}

// FileMeta describes an attached knowledge file. Only metadata is stored;
// file bytes are never persisted.
type FileMeta struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// AssistantConfig is the full tunable configuration for one assistant.
// Its ID always equals the owning Assistant's ID.
type AssistantConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Model settings
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	FirstMessage string  `json:"first_message"`
	SystemPrompt string  `json:"system_prompt"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`

	// Enforcement flags
	DetectEmotion bool `json:"detect_emotion"`
	HIPAAEnabled  bool `json:"hipaa_enabled"`

	Files       []FileMeta         `json:"files,omitempty"`
	Voice       *VoiceConfig       `json:"voice,omitempty"`
	Transcriber *TranscriberConfig `json:"transcriber,omitempty"`

	// LastLatencyMs holds the most recent test-chat reply latency (last value only).
	LastLatencyMs int64 `json:"last_latency_ms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateConfigRequest is a partial configuration update. Nil fields are left
// unchanged; the merge never drops unrelated fields.
type UpdateConfigRequest struct {
	Provider      *string            `json:"provider,omitempty"`
	Model         *string            `json:"model,omitempty"`
	FirstMessage  *string            `json:"first_message,omitempty"`
	SystemPrompt  *string            `json:"system_prompt,omitempty"`
	MaxTokens     *int               `json:"max_tokens,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	DetectEmotion *bool              `json:"detect_emotion,omitempty"`
	HIPAAEnabled  *bool              `json:"hipaa_enabled,omitempty"`
	Voice         *VoiceConfig       `json:"voice,omitempty"`
	Transcriber   *TranscriberConfig `json:"transcriber,omitempty"`
}

// AddFileRequest registers file metadata on a configuration.
type AddFileRequest struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

// DefaultConfig returns the default configuration template stamped with the
// given assistant identity.
func DefaultConfig(id, name string) *AssistantConfig {
	now := time.Now()
	return &AssistantConfig{
		ID:           id,
		Name:         name,
		Provider:     "openai",
		Model:        "gpt-4o",
		FirstMessage: "Hello! How can I help you today?",
		SystemPrompt: "You are a helpful, friendly assistant. Keep your answers concise and conversational.",
		MaxTokens:    1024,
		Temperature:  0.7,
		Voice: &VoiceConfig{
			Provider:        "elevenlabs",
			VoiceID:         "21m00Tcm4TlvDq8ikWAM",
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
		Transcriber: &TranscriberConfig{
			Provider:    "deepgram",
			Model:       "nova-2",
			Language:    "en",
			Punctuate:   true,
			SmartFormat: true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
