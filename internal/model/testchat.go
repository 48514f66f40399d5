package model

import (
	"time"
)

// DialogState is the workflow state of a test chat dialog.
type DialogState string

const (
	DialogIdle         DialogState = "idle"
	DialogRecording    DialogState = "recording"
	DialogTranscribing DialogState = "transcribing"
	DialogThinking     DialogState = "thinking"
	DialogSynthesizing DialogState = "synthesizing"
	DialogSpeaking     DialogState = "speaking"
)

// Permission is the cached microphone permission for a dialog.
type Permission string

const (
	PermissionUnknown Permission = "unknown"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// TestTurn is one turn in the ephemeral test dialog transcript. Unlike
// ChatMessage it carries transient workflow flags and is discarded when the
// dialog closes.
type TestTurn struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`

	Thinking     bool `json:"thinking,omitempty"`
	Transcribing bool `json:"transcribing,omitempty"`
	Synthesizing bool `json:"synthesizing,omitempty"`

	AudioDataURI string    `json:"audio_data_uri,omitempty"`
	LatencyMs    int64     `json:"latency_ms,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NoticeLevel classifies a dialog notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-visible notification emitted by the test chat workflow,
// the server-side analog of a toast.
type Notice struct {
	Level     NoticeLevel `json:"level"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
}

// DialogEventType identifies a dialog event.
type DialogEventType string

const (
	EventStateChanged DialogEventType = "state_changed"
	EventTurnAdded    DialogEventType = "turn_added"
	EventTurnUpdated  DialogEventType = "turn_updated"
	EventTurnRemoved  DialogEventType = "turn_removed"
	EventNotice       DialogEventType = "notice"
	EventDialogClosed DialogEventType = "dialog_closed"
)

// DialogEvent is pushed to SSE subscribers as the workflow progresses.
type DialogEvent struct {
	Type      DialogEventType `json:"type"`
	DialogID  string          `json:"dialog_id"`
	State     DialogState     `json:"state,omitempty"`
	Turn      *TestTurn       `json:"turn,omitempty"`
	TurnID    string          `json:"turn_id,omitempty"`
	Notice    *Notice         `json:"notice,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// DialogSnapshot is a point-in-time view of a dialog for API reads.
type DialogSnapshot struct {
	ID            string      `json:"id"`
	AssistantID   string      `json:"assistant_id"`
	State         DialogState `json:"state"`
	Permission    Permission  `json:"permission"`
	Turns         []TestTurn  `json:"turns"`
	Notices       []Notice    `json:"notices,omitempty"`
	PlayingTurnID string      `json:"playing_turn_id,omitempty"`
	LastLatencyMs int64       `json:"last_latency_ms,omitempty"`
	OpenedAt      time.Time   `json:"opened_at"`
}

// OpenDialogRequest opens a test dialog against an assistant.
type OpenDialogRequest struct {
	AssistantID string `json:"assistant_id"`
}

// SetPermissionRequest records the microphone permission outcome.
type SetPermissionRequest struct {
	Granted bool `json:"granted"`
}

// StopRecordingRequest finalizes a recording with the captured audio.
type StopRecordingRequest struct {
	AudioDataURI string `json:"audio_data_uri"`
}

// SendTurnRequest submits a typed user turn.
type SendTurnRequest struct {
	Content string `json:"content"`
}

// TurnAuditEvent is published to the audit stream for each completed turn.
type TurnAuditEvent struct {
	ID          string    `json:"id"`
	DialogID    string    `json:"dialog_id"`
	AssistantID string    `json:"assistant_id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	LatencyMs   int64     `json:"latency_ms,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
