package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/assistly/assistant-platform/internal/model"
)

const (
	// AuditStreamName is the name of the test-chat audit stream.
	AuditStreamName = "TESTCHAT_AUDIT"

	// SubjectPrefix is the prefix for all audit subjects.
	SubjectPrefix = "testchat"
)

// KV bucket names for the three platform stores.
const (
	BucketAssistants = "assistants"
	BucketConfigs    = "assistant_configs"
	BucketSessions   = "chat_sessions"
)

// StreamManager handles JetStream stream and KV bucket operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the audit stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, AuditStreamName)
	if err == nil {
		return nil // Stream already exists
	}

	// Create stream
	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        AuditStreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024, // 10GB
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Completed test-chat turns",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EnsureBuckets ensures the KV buckets backing the platform stores exist.
func (m *StreamManager) EnsureBuckets(ctx context.Context) error {
	js := m.client.JetStream()

	for _, bucket := range []string{BucketAssistants, BucketConfigs, BucketSessions} {
		if _, err := js.KeyValue(ctx, bucket); err == nil {
			continue
		}
		_, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:  bucket,
			Storage: jetstream.FileStorage,
			History: 1,
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	return nil
}

// Bucket returns a handle to a KV bucket.
func (m *StreamManager) Bucket(ctx context.Context, name string) (jetstream.KeyValue, error) {
	return m.client.JetStream().KeyValue(ctx, name)
}

// TurnSubject returns the audit subject for a turn.
func TurnSubject(assistantID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.turn.%s", SubjectPrefix, assistantID, role)
}

// PublishTurn publishes a completed turn to the audit stream.
func (m *StreamManager) PublishTurn(ctx context.Context, event *model.TurnAuditEvent) (uint64, error) {
	subject := TurnSubject(event.AssistantID, event.Role)

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal turn event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish turn event: %w", err)
	}

	return ack.Sequence, nil
}
