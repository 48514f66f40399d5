package middleware

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validation bounds for assistant configuration. Enforced at the API layer;
// the store itself accepts any record.
const (
	MaxNameLength      = 120
	MinPromptLength    = 10
	MaxPromptLength    = 20000
	MinMaxTokens       = 1
	MaxMaxTokens       = 16384
	MaxFiles           = 10
	MaxFileSize        = 5 * 1024 * 1024
	MaxTurnContentSize = 100000
)

// ValidateAssistantName validates an assistant name.
func ValidateAssistantName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return errors.New("name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("name must be valid UTF-8")
	}
	return nil
}

// ValidateSystemPrompt validates a system prompt.
func ValidateSystemPrompt(prompt string) error {
	if len(prompt) < MinPromptLength {
		return fmt.Errorf("prompt must be at least %d characters", MinPromptLength)
	}
	if len(prompt) > MaxPromptLength {
		return errors.New("prompt exceeds maximum length")
	}
	if !utf8.ValidString(prompt) {
		return errors.New("prompt must be valid UTF-8")
	}
	return nil
}

// ValidateMaxTokens validates the max tokens bound.
func ValidateMaxTokens(maxTokens int) error {
	if maxTokens < MinMaxTokens || maxTokens > MaxMaxTokens {
		return fmt.Errorf("max tokens must be between %d and %d", MinMaxTokens, MaxMaxTokens)
	}
	return nil
}

// ValidateTemperature validates the temperature bound.
func ValidateTemperature(temperature float64) error {
	if temperature < 0 || temperature > 1 {
		return errors.New("temperature must be between 0 and 1")
	}
	return nil
}

// ValidateFile validates file metadata against count and size limits.
func ValidateFile(name string, size int64, existingCount int) error {
	if name == "" {
		return errors.New("file name cannot be empty")
	}
	if size <= 0 || size > MaxFileSize {
		return errors.New("file size must be between 1 byte and 5MB")
	}
	if existingCount >= MaxFiles {
		return fmt.Errorf("at most %d files are allowed", MaxFiles)
	}
	return nil
}

// ValidateTurnContent validates a chat turn's content.
func ValidateTurnContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > MaxTurnContentSize {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}
