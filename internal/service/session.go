package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/assistly/assistant-platform/internal/model"
	"github.com/assistly/assistant-platform/internal/store"
	"github.com/assistly/assistant-platform/pkg/logger"
)

// SessionService manages recorded chat sessions. Messages are immutable
// once appended; sessions are never auto-deleted.
type SessionService struct {
	store  store.Store
	logger *logger.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(st store.Store, log *logger.Logger) *SessionService {
	return &SessionService{
		store:  st,
		logger: log,
	}
}

// Create creates an empty chat session for an assistant.
func (s *SessionService) Create(ctx context.Context, assistantID, userID string) (*model.ChatSession, error) {
	sess := &model.ChatSession{
		ID:          uuid.Must(uuid.NewV7()).String(),
		AssistantID: assistantID,
		UserID:      userID,
		StartTime:   time.Now(),
		Messages:    []model.ChatMessage{},
	}

	if err := s.store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// CreateFromMessages creates a session pre-populated with messages, used to
// snapshot a test-dialog transcript.
func (s *SessionService) CreateFromMessages(ctx context.Context, assistantID, userID string, messages []model.ChatMessage) (*model.ChatSession, error) {
	sess := &model.ChatSession{
		ID:          uuid.Must(uuid.NewV7()).String(),
		AssistantID: assistantID,
		UserID:      userID,
		StartTime:   time.Now(),
		Messages:    messages,
	}
	if sess.Messages == nil {
		sess.Messages = []model.ChatMessage{}
	}

	if err := s.store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// Get retrieves a session by ID.
func (s *SessionService) Get(ctx context.Context, id string) (*model.ChatSession, error) {
	return s.store.GetSession(ctx, id)
}

// List retrieves sessions, optionally filtered by assistant.
func (s *SessionService) List(ctx context.Context, assistantID string) (*model.ListSessionsResponse, error) {
	sessions, err := s.store.ListSessions(ctx, assistantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})

	return &model.ListSessionsResponse{
		Sessions: sessions,
		Total:    len(sessions),
	}, nil
}

// Delete removes a session.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteSession(ctx, id)
}

// Append adds one message to a session. The whole record is written back.
func (s *SessionService) Append(ctx context.Context, sessionID string, role model.Role, content string) (*model.ChatMessage, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	msg := model.ChatMessage{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	sess.Messages = append(sess.Messages, msg)

	if err := s.store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return &msg, nil
}
