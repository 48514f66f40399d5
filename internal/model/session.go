package model

import (
	"time"
)

// Role represents the role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one turn in a recorded chat session. Immutable once created.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatSession is a recorded conversation for an assistant.
type ChatSession struct {
	ID          string        `json:"id"`
	AssistantID string        `json:"assistant_id"`
	UserID      string        `json:"user_id,omitempty"`
	StartTime   time.Time     `json:"start_time"`
	Messages    []ChatMessage `json:"messages"`
}

// CreateSessionRequest is the request to create a new chat session.
type CreateSessionRequest struct {
	AssistantID string `json:"assistant_id"`
}

// AppendMessageRequest appends one message to a session.
type AppendMessageRequest struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ListSessionsResponse is the response for listing chat sessions.
type ListSessionsResponse struct {
	Sessions []ChatSession `json:"sessions"`
	Total    int           `json:"total"`
}
