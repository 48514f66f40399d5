package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/assistly/assistant-platform/internal/llm"
	"github.com/assistly/assistant-platform/internal/model"
	"github.com/assistly/assistant-platform/internal/speech"
	"github.com/assistly/assistant-platform/internal/store/memory"
	"github.com/assistly/assistant-platform/pkg/logger"
)

type mockLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	lastReq *llm.CompletionRequest
}

func (m *mockLLM) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &llm.CompletionResponse{Content: m.reply, Model: req.Model, TokensIn: 10, TokensOut: 20}, nil
}

func (m *mockLLM) Name() string     { return "mock" }
func (m *mockLLM) Models() []string { return []string{"mock-model"} }

type mockTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (m *mockTranscriber) Transcribe(_ context.Context, _ *speech.TranscribeRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.text, m.err
}

func (m *mockTranscriber) Name() string { return "mock" }

type mockSynthesizer struct {
	mu    sync.Mutex
	uri   string
	err   error
	calls int
}

func (m *mockSynthesizer) Synthesize(_ context.Context, _ *speech.SynthesizeRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.uri, m.err
}

func (m *mockSynthesizer) Name() string { return "mock" }

type mockAuditor struct {
	mu     sync.Mutex
	events []*model.TurnAuditEvent
}

func (m *mockAuditor) PublishTurn(_ context.Context, event *model.TurnAuditEvent) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return uint64(len(m.events)), nil
}

type testChatFixture struct {
	service     *TestChatService
	configs     *ConfigService
	sessions    *SessionService
	llm         *mockLLM
	transcriber *mockTranscriber
	synthesizer *mockSynthesizer
	auditor     *mockAuditor
	assistantID string
}

// newTestChatFixture wires a full test chat service against an in-memory
// store with one assistant created. Pass nil to leave a collaborator
// unconfigured.
func newTestChatFixture(t *testing.T, tr *mockTranscriber, sy *mockSynthesizer) *testChatFixture {
	t.Helper()

	st := memory.New()
	log := logger.NewNop()
	configs := NewConfigService(st, log)
	registry := NewRegistryService(st, configs, log)
	sessions := NewSessionService(st, log)

	client := &mockLLM{reply: "Hello! How can I help?"}
	auditor := &mockAuditor{}

	var transcriber speech.Transcriber
	if tr != nil {
		transcriber = tr
	}
	var synthesizer speech.Synthesizer
	if sy != nil {
		synthesizer = sy
	}

	svc := NewTestChatService(
		registry,
		configs,
		map[llm.Provider]llm.Client{llm.ProviderOpenAI: client},
		transcriber,
		synthesizer,
		auditor,
		log,
	)

	a, err := registry.Create(context.Background(), &model.CreateAssistantRequest{Name: "Demo Bot"})
	if err != nil {
		t.Fatalf("failed to create assistant: %v", err)
	}

	return &testChatFixture{
		service:     svc,
		configs:     configs,
		sessions:    sessions,
		llm:         client,
		transcriber: tr,
		synthesizer: sy,
		auditor:     auditor,
		assistantID: a.ID,
	}
}

func (f *testChatFixture) openDialog(t *testing.T) string {
	t.Helper()
	snap, err := f.service.OpenDialog(context.Background(), f.assistantID)
	if err != nil {
		t.Fatalf("OpenDialog failed: %v", err)
	}
	return snap.ID
}

func audioURI(payload string) string {
	return speech.EncodeDataURI("audio/webm", []byte(payload))
}

func TestOpenDialogUnknownAssistant(t *testing.T) {
	f := newTestChatFixture(t, nil, nil)

	if _, err := f.service.OpenDialog(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown assistant")
	}
}

func TestSendTextWithoutVoice(t *testing.T) {
	f := newTestChatFixture(t, nil, nil)
	id := f.openDialog(t)

	snap, err := f.service.SendText(context.Background(), id, "What are your hours?")
	if err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	if snap.State != model.DialogIdle {
		t.Errorf("expected idle after text-only reply, got %s", snap.State)
	}
	if len(snap.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(snap.Turns))
	}
	reply := snap.Turns[1]
	if reply.Role != model.RoleAssistant || reply.Content != "Hello! How can I help?" {
		t.Errorf("unexpected reply turn: %+v", reply)
	}
	if reply.Thinking || reply.Synthesizing {
		t.Error("expected transient flags cleared")
	}
	if reply.AudioDataURI != "" {
		t.Error("expected no audio without a synthesizer")
	}
	if f.llm.calls != 1 {
		t.Errorf("expected 1 LLM call, got %d", f.llm.calls)
	}
	if len(f.auditor.events) != 2 {
		t.Errorf("expected 2 audit events, got %d", len(f.auditor.events))
	}
}

func TestSendTextWithVoice(t *testing.T) {
	sy := &mockSynthesizer{uri: "data:audio/mpeg;base64,QUJD"}
	f := newTestChatFixture(t, nil, sy)
	id := f.openDialog(t)

	snap, err := f.service.SendText(context.Background(), id, "Say something")
	if err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	if snap.State != model.DialogSpeaking {
		t.Errorf("expected speaking after synthesis, got %s", snap.State)
	}
	reply := snap.Turns[1]
	if reply.AudioDataURI != sy.uri {
		t.Errorf("expected synthesized audio on the turn, got %q", reply.AudioDataURI)
	}
	if snap.PlayingTurnID != reply.ID {
		t.Errorf("expected playback on %s, got %s", reply.ID, snap.PlayingTurnID)
	}

	done, err := f.service.FinishPlayback(id)
	if err != nil {
		t.Fatalf("FinishPlayback failed: %v", err)
	}
	if done.State != model.DialogIdle || done.PlayingTurnID != "" {
		t.Errorf("expected idle with playback cleared, got %s/%s", done.State, done.PlayingTurnID)
	}
}

func TestSendTextRejectedWhileSpeaking(t *testing.T) {
	sy := &mockSynthesizer{uri: "data:audio/mpeg;base64,QUJD"}
	f := newTestChatFixture(t, nil, sy)
	id := f.openDialog(t)

	if _, err := f.service.SendText(context.Background(), id, "first"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	// Playback is still running; a second turn must be refused.
	if _, err := f.service.SendText(context.Background(), id, "second"); !errors.Is(err, ErrDialogBusy) {
		t.Errorf("expected ErrDialogBusy, got %v", err)
	}
}

func TestSendTextLLMFailure(t *testing.T) {
	f := newTestChatFixture(t, nil, nil)
	f.llm.err = errors.New("rate limited")
	id := f.openDialog(t)

	snap, err := f.service.SendText(context.Background(), id, "hello")
	if err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	if snap.State != model.DialogIdle {
		t.Errorf("expected idle after failure, got %s", snap.State)
	}
	if len(snap.Turns) != 2 {
		t.Fatalf("expected placeholder replaced in place, got %d turns", len(snap.Turns))
	}
	reply := snap.Turns[1]
	if reply.Content != apologyMessage {
		t.Errorf("expected apology message, got %q", reply.Content)
	}
	if reply.Thinking {
		t.Error("expected thinking flag cleared")
	}

	foundError := false
	for _, n := range snap.Notices {
		if n.Level == model.NoticeError {
			foundError = true
		}
	}
	if !foundError {
		t.Error("expected an error notice")
	}

	// Latency is recorded even when the call fails.
	cfg, err := f.configs.Get(context.Background(), f.assistantID)
	if err != nil {
		t.Fatalf("Get config failed: %v", err)
	}
	if cfg.LastLatencyMs != snap.LastLatencyMs {
		t.Errorf("expected recorded latency %d, got %d", snap.LastLatencyMs, cfg.LastLatencyMs)
	}
}

func TestSendTextEmptyContent(t *testing.T) {
	f := newTestChatFixture(t, nil, nil)
	id := f.openDialog(t)

	if _, err := f.service.SendText(context.Background(), id, "   "); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestRecordingPermissionFlow(t *testing.T) {
	tr := &mockTranscriber{text: "what is your return policy"}
	f := newTestChatFixture(t, tr, nil)
	id := f.openDialog(t)

	// Permission has not been asked for yet.
	if _, err := f.service.StartRecording(id); !errors.Is(err, ErrPermissionRequired) {
		t.Errorf("expected ErrPermissionRequired, got %v", err)
	}

	// A denial is cached and surfaces a notice.
	snap, err := f.service.SetPermission(id, false)
	if err != nil {
		t.Fatalf("SetPermission failed: %v", err)
	}
	if snap.Permission != model.PermissionDenied {
		t.Errorf("expected denied permission, got %s", snap.Permission)
	}
	if len(snap.Notices) == 0 {
		t.Error("expected a denial notice")
	}
	if _, err := f.service.StartRecording(id); !errors.Is(err, ErrMicrophoneDenied) {
		t.Errorf("expected ErrMicrophoneDenied, got %v", err)
	}

	// A retry that grants access unblocks recording.
	if _, err := f.service.SetPermission(id, true); err != nil {
		t.Fatalf("SetPermission failed: %v", err)
	}
	snap, err = f.service.StartRecording(id)
	if err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if snap.State != model.DialogRecording {
		t.Errorf("expected recording state, got %s", snap.State)
	}
}

func TestStartRecordingWithoutTranscriber(t *testing.T) {
	f := newTestChatFixture(t, nil, nil)
	id := f.openDialog(t)

	if _, err := f.service.StartRecording(id); !errors.Is(err, ErrRecordingUnavailable) {
		t.Errorf("expected ErrRecordingUnavailable, got %v", err)
	}
}

func TestStopRecordingEmptyCapture(t *testing.T) {
	tr := &mockTranscriber{text: "ignored"}
	f := newTestChatFixture(t, tr, nil)
	id := f.openDialog(t)

	if _, err := f.service.SetPermission(id, true); err != nil {
		t.Fatalf("SetPermission failed: %v", err)
	}
	if _, err := f.service.StartRecording(id); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	snap, err := f.service.StopRecording(context.Background(), id, "")
	if err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}

	if snap.State != model.DialogIdle {
		t.Errorf("expected idle, got %s", snap.State)
	}
	if len(snap.Turns) != 0 {
		t.Errorf("expected no turns for empty capture, got %d", len(snap.Turns))
	}
	if tr.calls != 0 {
		t.Errorf("expected no transcription call, got %d", tr.calls)
	}
	if len(snap.Notices) == 0 {
		t.Error("expected a notice for the empty capture")
	}
}

func TestStopRecordingTranscriptionFailure(t *testing.T) {
	tr := &mockTranscriber{err: errors.New("upstream 500")}
	f := newTestChatFixture(t, tr, nil)
	id := f.openDialog(t)

	if _, err := f.service.SetPermission(id, true); err != nil {
		t.Fatalf("SetPermission failed: %v", err)
	}
	if _, err := f.service.StartRecording(id); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	snap, err := f.service.StopRecording(context.Background(), id, audioURI("pcm-bytes"))
	if err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}

	if snap.State != model.DialogIdle {
		t.Errorf("expected idle after failure, got %s", snap.State)
	}
	// The pending user turn is withdrawn; nothing reaches the LLM.
	if len(snap.Turns) != 0 {
		t.Errorf("expected placeholder removed, got %d turns", len(snap.Turns))
	}
	if f.llm.calls != 0 {
		t.Errorf("expected no LLM call, got %d", f.llm.calls)
	}
}

func TestStopRecordingEmptyTranscript(t *testing.T) {
	tr := &mockTranscriber{text: "   "}
	f := newTestChatFixture(t, tr, nil)
	id := f.openDialog(t)

	if _, err := f.service.SetPermission(id, true); err != nil {
		t.Fatalf("SetPermission failed: %v", err)
	}
	if _, err := f.service.StartRecording(id); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	snap, err := f.service.StopRecording(context.Background(), id, audioURI("pcm-bytes"))
	if err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}

	if len(snap.Turns) != 0 {
		t.Errorf("expected no turns for silent audio, got %d", len(snap.Turns))
	}
	if f.llm.calls != 0 {
		t.Errorf("expected no LLM call, got %d", f.llm.calls)
	}
}

func TestStopRecordingSuccess(t *testing.T) {
	tr := &mockTranscriber{text: "what is your return policy"}
	f := newTestChatFixture(t, tr, nil)
	id := f.openDialog(t)

	if _, err := f.service.SetPermission(id, true); err != nil {
		t.Fatalf("SetPermission failed: %v", err)
	}
	if _, err := f.service.StartRecording(id); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	snap, err := f.service.StopRecording(context.Background(), id, audioURI("pcm-bytes"))
	if err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}

	if len(snap.Turns) != 2 {
		t.Fatalf("expected user turn plus reply, got %d turns", len(snap.Turns))
	}
	user := snap.Turns[0]
	if user.Role != model.RoleUser || user.Content != "what is your return policy" {
		t.Errorf("unexpected user turn: %+v", user)
	}
	if user.Transcribing {
		t.Error("expected transcribing flag cleared")
	}
	if f.llm.calls != 1 {
		t.Errorf("expected 1 LLM call, got %d", f.llm.calls)
	}
	if snap.State != model.DialogIdle {
		t.Errorf("expected idle, got %s", snap.State)
	}
}

func TestStopRecordingWhenNotRecording(t *testing.T) {
	tr := &mockTranscriber{text: "hello"}
	f := newTestChatFixture(t, tr, nil)
	id := f.openDialog(t)

	if _, err := f.service.StopRecording(context.Background(), id, audioURI("x")); !errors.Is(err, ErrNotRecording) {
		t.Errorf("expected ErrNotRecording, got %v", err)
	}
}

func TestSynthesisFailureFallsBackToText(t *testing.T) {
	sy := &mockSynthesizer{err: errors.New("voice service down")}
	f := newTestChatFixture(t, nil, sy)
	id := f.openDialog(t)

	snap, err := f.service.SendText(context.Background(), id, "hello")
	if err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	if snap.State != model.DialogIdle {
		t.Errorf("expected idle after synthesis failure, got %s", snap.State)
	}
	reply := snap.Turns[1]
	if reply.Content != "Hello! How can I help?" {
		t.Errorf("expected reply text preserved, got %q", reply.Content)
	}
	if reply.AudioDataURI != "" {
		t.Error("expected no audio after synthesis failure")
	}
	if reply.Synthesizing {
		t.Error("expected synthesizing flag cleared")
	}

	foundError := false
	for _, n := range snap.Notices {
		if n.Level == model.NoticeError {
			foundError = true
		}
	}
	if !foundError {
		t.Error("expected a synthesis failure notice")
	}
}

func TestCompletionRequestUsesConfig(t *testing.T) {
	f := newTestChatFixture(t, nil, nil)

	prompt := "You answer questions about the Demo Bot product line."
	temp := 0.3
	maxTokens := 512
	if _, err := f.configs.Update(context.Background(), f.assistantID, &model.UpdateConfigRequest{
		SystemPrompt: &prompt,
		Temperature:  &temp,
		MaxTokens:    &maxTokens,
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// The dialog pins the config loaded at open time, so open after updating.
	id := f.openDialog(t)

	if _, err := f.service.SendText(context.Background(), id, "hello"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	req := f.llm.lastReq
	if req == nil {
		t.Fatal("expected an LLM request")
	}
	if req.System != prompt {
		t.Errorf("expected system prompt passed through, got %q", req.System)
	}
	if req.Temperature != 0.3 || req.MaxTokens != 512 {
		t.Errorf("expected tuned sampling params, got temp=%v maxTokens=%d", req.Temperature, req.MaxTokens)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
		t.Errorf("expected single user message, got %+v", req.Messages)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	f := newTestChatFixture(t, nil, nil)
	id := f.openDialog(t)

	events, cancel, err := f.service.Subscribe(id)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	if _, err := f.service.SendText(context.Background(), id, "hello"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	seen := map[model.DialogEventType]bool{}
	for {
		select {
		case ev := <-events:
			seen[ev.Type] = true
		default:
			goto done
		}
	}
done:
	for _, want := range []model.DialogEventType{model.EventTurnAdded, model.EventTurnUpdated, model.EventStateChanged} {
		if !seen[want] {
			t.Errorf("expected a %s event", want)
		}
	}
}

func TestCloseDialogDiscardsState(t *testing.T) {
	f := newTestChatFixture(t, nil, nil)
	id := f.openDialog(t)

	events, cancel, err := f.service.Subscribe(id)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	if _, err := f.service.SendText(context.Background(), id, "hello"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	if err := f.service.CloseDialog(id); err != nil {
		t.Fatalf("CloseDialog failed: %v", err)
	}

	if _, err := f.service.Snapshot(id); !errors.Is(err, ErrDialogNotFound) {
		t.Errorf("expected ErrDialogNotFound after close, got %v", err)
	}
	if err := f.service.CloseDialog(id); !errors.Is(err, ErrDialogNotFound) {
		t.Errorf("expected ErrDialogNotFound on double close, got %v", err)
	}

	// The subscriber channel is drained and closed.
	closed := false
	for {
		if _, ok := <-events; !ok {
			closed = true
			break
		}
	}
	if !closed {
		t.Error("expected subscriber channel closed")
	}
}

func TestSaveTranscript(t *testing.T) {
	f := newTestChatFixture(t, nil, nil)
	id := f.openDialog(t)

	if _, err := f.service.SendText(context.Background(), id, "hello"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	sess, err := f.service.SaveTranscript(context.Background(), f.sessions, id, "user-1")
	if err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}

	if sess.AssistantID != f.assistantID {
		t.Errorf("expected assistant %s, got %s", f.assistantID, sess.AssistantID)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sess.Messages))
	}
	if sess.Messages[0].Role != model.RoleUser || sess.Messages[1].Role != model.RoleAssistant {
		t.Errorf("unexpected roles: %s/%s", sess.Messages[0].Role, sess.Messages[1].Role)
	}

	got, err := f.sessions.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("expected persisted session: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Errorf("expected persisted transcript, got %d messages", len(got.Messages))
	}
}
