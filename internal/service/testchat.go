package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/assistly/assistant-platform/internal/llm"
	"github.com/assistly/assistant-platform/internal/model"
	"github.com/assistly/assistant-platform/internal/speech"
	"github.com/assistly/assistant-platform/pkg/logger"
	"github.com/assistly/assistant-platform/pkg/metrics"
)

// Workflow errors surfaced to the API layer.
var (
	ErrDialogNotFound       = errors.New("dialog not found")
	ErrDialogBusy           = errors.New("dialog is busy with another turn")
	ErrDialogClosed         = errors.New("dialog is closed")
	ErrPermissionRequired   = errors.New("microphone permission has not been granted")
	ErrMicrophoneDenied     = errors.New("microphone permission was denied")
	ErrNotRecording         = errors.New("dialog is not recording")
	ErrRecordingUnavailable = errors.New("no transcription provider is configured")
)

// apologyMessage replaces the thinking placeholder when reply generation
// fails.
const apologyMessage = "I'm sorry, I ran into a problem generating a response. Please try again."

// AuditPublisher records completed turns on a durable stream. May be nil.
type AuditPublisher interface {
	PublishTurn(ctx context.Context, event *model.TurnAuditEvent) (uint64, error)
}

// TestChatService drives interactive test conversations. Each dialog
// coordinates three independently-failing collaborators: the transcriber,
// the LLM client, and the synthesizer. Collaborator failures never
// propagate as faults; they become dialog notices and the workflow
// returns to idle with no retry.
type TestChatService struct {
	registry    *RegistryService
	configs     *ConfigService
	llmClients  map[llm.Provider]llm.Client
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	auditor     AuditPublisher
	logger      *logger.Logger

	mu      sync.RWMutex
	dialogs map[string]*Dialog
}

// NewTestChatService creates a new test chat service. Any of llmClients'
// entries, transcriber, synthesizer, and auditor may be nil; the matching
// workflow branch degrades gracefully.
func NewTestChatService(
	registry *RegistryService,
	configs *ConfigService,
	llmClients map[llm.Provider]llm.Client,
	transcriber speech.Transcriber,
	synthesizer speech.Synthesizer,
	auditor AuditPublisher,
	log *logger.Logger,
) *TestChatService {
	return &TestChatService{
		registry:    registry,
		configs:     configs,
		llmClients:  llmClients,
		transcriber: transcriber,
		synthesizer: synthesizer,
		auditor:     auditor,
		logger:      log,
		dialogs:     make(map[string]*Dialog),
	}
}

// OpenDialog opens a test dialog against an assistant, loading (or lazily
// creating) its configuration.
func (s *TestChatService) OpenDialog(ctx context.Context, assistantID string) (*model.DialogSnapshot, error) {
	a, err := s.registry.Get(ctx, assistantID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.configs.LoadOrCreate(ctx, a.ID, a.Name)
	if err != nil {
		return nil, err
	}

	d := newDialog(uuid.Must(uuid.NewV7()).String(), a.ID, cfg)

	s.mu.Lock()
	s.dialogs[d.id] = d
	s.mu.Unlock()

	metrics.DialogsActive.Inc()
	s.logger.Info("test dialog opened", "dialog_id", d.id, "assistant_id", a.ID)

	return d.Snapshot(), nil
}

// Dialog returns a dialog by ID.
func (s *TestChatService) Dialog(dialogID string) (*Dialog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dialogs[dialogID]
	if !ok {
		return nil, ErrDialogNotFound
	}
	return d, nil
}

// Snapshot returns a point-in-time view of a dialog.
func (s *TestChatService) Snapshot(dialogID string) (*model.DialogSnapshot, error) {
	d, err := s.Dialog(dialogID)
	if err != nil {
		return nil, err
	}
	return d.Snapshot(), nil
}

// Subscribe attaches an event channel to a dialog. The returned cancel
// function must be called when the subscriber goes away.
func (s *TestChatService) Subscribe(dialogID string) (<-chan model.DialogEvent, func(), error) {
	d, err := s.Dialog(dialogID)
	if err != nil {
		return nil, nil, err
	}
	ch := d.subscribe()
	return ch, func() { d.unsubscribe(ch) }, nil
}

// SetPermission records the microphone permission outcome. The outcome is
// cached for the dialog's lifetime; a denial disables recording until the
// user retries.
func (s *TestChatService) SetPermission(dialogID string, granted bool) (*model.DialogSnapshot, error) {
	d, err := s.Dialog(dialogID)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDialogClosed
	}
	if granted {
		d.permission = model.PermissionGranted
	} else {
		d.permission = model.PermissionDenied
		d.notice(model.NoticeError, "Microphone access was denied. Voice input is disabled until you allow it.")
	}
	d.mu.Unlock()

	return d.Snapshot(), nil
}

// StartRecording opens the single recording slot. Requires granted
// microphone permission and an idle dialog.
func (s *TestChatService) StartRecording(dialogID string) (*model.DialogSnapshot, error) {
	d, err := s.Dialog(dialogID)
	if err != nil {
		return nil, err
	}
	if s.transcriber == nil {
		return nil, ErrRecordingUnavailable
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDialogClosed
	}
	switch d.permission {
	case model.PermissionGranted:
	case model.PermissionDenied:
		d.mu.Unlock()
		return nil, ErrMicrophoneDenied
	default:
		d.mu.Unlock()
		return nil, ErrPermissionRequired
	}
	if d.state != model.DialogIdle {
		d.mu.Unlock()
		return nil, ErrDialogBusy
	}
	d.setState(model.DialogRecording)
	d.mu.Unlock()

	return d.Snapshot(), nil
}

// StopRecording finalizes the recording with the captured audio. An empty
// capture aborts the turn with a notice and no transcription call. A
// successful non-empty transcript becomes the user's turn and immediately
// triggers the reply pipeline.
func (s *TestChatService) StopRecording(ctx context.Context, dialogID string, audioDataURI string) (*model.DialogSnapshot, error) {
	d, err := s.Dialog(dialogID)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDialogClosed
	}
	if d.state != model.DialogRecording {
		d.mu.Unlock()
		return nil, ErrNotRecording
	}

	if emptyAudio(audioDataURI) {
		d.notice(model.NoticeInfo, "No audio was captured.")
		d.setState(model.DialogIdle)
		d.mu.Unlock()
		return d.Snapshot(), nil
	}

	// The transcribing placeholder reserves the user's slot in the
	// transcript while the call is in flight.
	placeholder := &model.TestTurn{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Role:         model.RoleUser,
		Transcribing: true,
		CreatedAt:    time.Now(),
	}
	d.appendTurn(placeholder)
	d.setState(model.DialogTranscribing)
	cfg := d.config
	d.mu.Unlock()

	tr := cfg.Transcriber
	if tr == nil {
		tr = &model.TranscriberConfig{}
	}

	start := time.Now()
	text, terr := s.transcriber.Transcribe(ctx, &speech.TranscribeRequest{
		AudioDataURI: audioDataURI,
		Model:        tr.Model,
		Language:     tr.Language,
		Punctuate:    tr.Punctuate,
		SmartFormat:  tr.SmartFormat,
		Keywords:     tr.Keywords,
	})
	status := "success"
	if terr != nil {
		status = "error"
	}
	metrics.TranscriptionDuration.WithLabelValues(s.transcriber.Name(), status).Observe(time.Since(start).Seconds())

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDialogClosed
	}
	turn := d.findTurn(placeholder.ID)
	if turn == nil {
		d.mu.Unlock()
		return d.Snapshot(), nil
	}

	if terr != nil {
		d.removeTurn(turn.ID)
		d.notice(model.NoticeError, "Transcription failed. Please try again.")
		d.setState(model.DialogIdle)
		d.mu.Unlock()
		s.logger.Error("transcription failed", "dialog_id", d.id, "error", terr)
		return d.Snapshot(), nil
	}

	if strings.TrimSpace(text) == "" {
		d.removeTurn(turn.ID)
		d.notice(model.NoticeInfo, "No speech was detected in the recording.")
		d.setState(model.DialogIdle)
		d.mu.Unlock()
		return d.Snapshot(), nil
	}

	turn.Content = text
	turn.Transcribing = false
	d.updateTurn(turn)

	thinking := s.appendThinkingLocked(d)
	d.mu.Unlock()

	metrics.TurnsTotal.WithLabelValues(string(model.RoleUser)).Inc()
	s.audit(ctx, d, model.RoleUser, text, 0)

	s.generateReply(ctx, d, thinking)

	return d.Snapshot(), nil
}

// SendText submits a typed user turn and runs the reply pipeline.
func (s *TestChatService) SendText(ctx context.Context, dialogID, content string) (*model.DialogSnapshot, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("content cannot be empty")
	}

	d, err := s.Dialog(dialogID)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDialogClosed
	}
	if d.state != model.DialogIdle {
		d.mu.Unlock()
		return nil, ErrDialogBusy
	}

	userTurn := &model.TestTurn{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	d.appendTurn(userTurn)

	thinking := s.appendThinkingLocked(d)
	d.mu.Unlock()

	metrics.TurnsTotal.WithLabelValues(string(model.RoleUser)).Inc()
	s.audit(ctx, d, model.RoleUser, content, 0)

	s.generateReply(ctx, d, thinking)

	return d.Snapshot(), nil
}

// FinishPlayback signals that audio playback for the speaking turn ended.
func (s *TestChatService) FinishPlayback(dialogID string) (*model.DialogSnapshot, error) {
	d, err := s.Dialog(dialogID)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDialogClosed
	}
	if d.state == model.DialogSpeaking {
		d.stopPlayback()
		d.setState(model.DialogIdle)
	}
	d.mu.Unlock()

	return d.Snapshot(), nil
}

// CloseDialog cancels any in-flight recording, stops playback, and
// discards all transient workflow state. The transcript is not persisted.
func (s *TestChatService) CloseDialog(dialogID string) error {
	s.mu.Lock()
	d, ok := s.dialogs[dialogID]
	if ok {
		delete(s.dialogs, dialogID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrDialogNotFound
	}

	d.mu.Lock()
	d.closed = true
	d.stopPlayback()
	d.emit(model.DialogEvent{Type: model.EventDialogClosed})
	for ch := range d.subscribers {
		delete(d.subscribers, ch)
		close(ch)
	}
	d.mu.Unlock()

	metrics.DialogsActive.Dec()
	s.logger.Info("test dialog closed", "dialog_id", dialogID)
	return nil
}

// SaveTranscript snapshots the dialog's completed turns into a persisted
// chat session. Dialog close never does this implicitly.
func (s *TestChatService) SaveTranscript(ctx context.Context, sessions *SessionService, dialogID, userID string) (*model.ChatSession, error) {
	d, err := s.Dialog(dialogID)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	messages := d.history("")
	assistantID := d.assistantID
	d.mu.Unlock()

	return sessions.CreateFromMessages(ctx, assistantID, userID, messages)
}

// appendThinkingLocked appends the assistant placeholder turn and moves the
// FSM to thinking. Must be called with d.mu held.
func (s *TestChatService) appendThinkingLocked(d *Dialog) *model.TestTurn {
	placeholder := &model.TestTurn{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      model.RoleAssistant,
		Thinking:  true,
		CreatedAt: time.Now(),
	}
	d.appendTurn(placeholder)
	d.setState(model.DialogThinking)
	return placeholder
}

// generateReply runs the LLM call for the thinking placeholder, then the
// optional synthesis step. The reply always replaces the placeholder in
// place, keeping transcript ordering stable.
func (s *TestChatService) generateReply(ctx context.Context, d *Dialog, placeholder *model.TestTurn) {
	d.mu.Lock()
	cfg := d.config
	history := d.history(placeholder.ID)
	d.mu.Unlock()

	chat := make([]llm.ChatMessage, len(history))
	for i, msg := range history {
		chat[i] = llm.ChatMessage{Role: string(msg.Role), Content: msg.Content}
	}

	client := s.clientFor(cfg.Provider)

	start := time.Now()
	var resp *llm.CompletionResponse
	var cerr error
	if client == nil {
		cerr = errors.New("no LLM provider is configured")
	} else {
		resp, cerr = client.Complete(ctx, &llm.CompletionRequest{
			Model:       cfg.Model,
			System:      cfg.SystemPrompt,
			Messages:    chat,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
	}
	latencyMs := time.Since(start).Milliseconds()

	// Latency is recorded whether or not the call succeeded.
	if err := s.configs.RecordLatency(ctx, d.assistantID, latencyMs); err != nil {
		s.logger.Warn("failed to record latency", "assistant_id", d.assistantID, "error", err)
	}

	d.mu.Lock()
	d.lastLatencyMs = latencyMs
	turn := d.findTurn(placeholder.ID)
	if turn == nil || d.closed {
		d.mu.Unlock()
		return
	}
	turn.Thinking = false
	turn.LatencyMs = latencyMs

	if cerr != nil {
		turn.Content = apologyMessage
		d.updateTurn(turn)
		d.notice(model.NoticeError, "Failed to generate a reply. Please try again.")
		d.setState(model.DialogIdle)
		d.mu.Unlock()
		metrics.RecordLLMTurn(cfg.Model, "error", float64(latencyMs)/1000, 0, 0)
		s.logger.Error("reply generation failed", "dialog_id", d.id, "error", cerr)
		return
	}

	turn.Content = resp.Content
	d.updateTurn(turn)

	voiceConfigured := cfg.Voice != nil && cfg.Voice.Provider != "" && s.synthesizer != nil
	if voiceConfigured {
		turn.Synthesizing = true
		d.updateTurn(turn)
		d.setState(model.DialogSynthesizing)
	} else {
		d.setState(model.DialogIdle)
	}
	replyText := turn.Content
	d.mu.Unlock()

	metrics.TurnsTotal.WithLabelValues(string(model.RoleAssistant)).Inc()
	metrics.RecordLLMTurn(resp.Model, "success", float64(latencyMs)/1000, resp.TokensIn, resp.TokensOut)
	s.audit(ctx, d, model.RoleAssistant, replyText, latencyMs)

	if voiceConfigured {
		s.synthesize(ctx, d, placeholder.ID, cfg, replyText)
	}
}

// synthesize runs the speech-synthesis step for a completed reply. On
// success playback starts immediately, replacing any prior playback; on
// failure the turn stays text-only.
func (s *TestChatService) synthesize(ctx context.Context, d *Dialog, turnID string, cfg *model.AssistantConfig, text string) {
	start := time.Now()
	uri, serr := s.synthesizer.Synthesize(ctx, &speech.SynthesizeRequest{
		Text:            text,
		VoiceID:         cfg.Voice.VoiceID,
		Stability:       cfg.Voice.Stability,
		SimilarityBoost: cfg.Voice.SimilarityBoost,
		Style:           cfg.Voice.Style,
		SpeakerBoost:    cfg.Voice.SpeakerBoost,
	})
	status := "success"
	if serr != nil {
		status = "error"
	}
	metrics.SynthesisDuration.WithLabelValues(s.synthesizer.Name(), status).Observe(time.Since(start).Seconds())

	d.mu.Lock()
	defer d.mu.Unlock()

	turn := d.findTurn(turnID)
	if turn == nil || d.closed {
		return
	}
	turn.Synthesizing = false

	if serr != nil {
		d.updateTurn(turn)
		d.notice(model.NoticeError, "Voice synthesis failed; the reply is shown as text only.")
		d.setState(model.DialogIdle)
		s.logger.Error("synthesis failed", "dialog_id", d.id, "error", serr)
		return
	}

	turn.AudioDataURI = uri
	d.updateTurn(turn)
	d.startPlayback(turn.ID)
}

// clientFor picks the LLM client for a configured provider, falling back
// to any available client.
func (s *TestChatService) clientFor(provider string) llm.Client {
	if c, ok := s.llmClients[llm.Provider(provider)]; ok && c != nil {
		return c
	}
	for _, c := range s.llmClients {
		if c != nil {
			return c
		}
	}
	return nil
}

// audit publishes a completed turn to the audit stream, if one is wired.
func (s *TestChatService) audit(ctx context.Context, d *Dialog, role model.Role, content string, latencyMs int64) {
	if s.auditor == nil {
		return
	}
	_, err := s.auditor.PublishTurn(ctx, &model.TurnAuditEvent{
		ID:          uuid.Must(uuid.NewV7()).String(),
		DialogID:    d.id,
		AssistantID: d.assistantID,
		Role:        role,
		Content:     content,
		LatencyMs:   latencyMs,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		s.logger.Warn("failed to publish turn audit event", "dialog_id", d.id, "error", err)
	}
}

func emptyAudio(audioDataURI string) bool {
	if audioDataURI == "" {
		return true
	}
	_, data, err := speech.DecodeDataURI(audioDataURI)
	if err != nil {
		return true
	}
	return len(data) == 0
}
