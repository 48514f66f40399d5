package service

import (
	"sync"
	"time"

	"github.com/assistly/assistant-platform/internal/model"
)

// Dialog is one interactive test conversation against an assistant's
// configuration. It is an explicit finite-state machine: transitions out of
// idle are guarded under the dialog lock, so overlapping turns are rejected
// rather than merely discouraged. All dialog state is transient and is
// discarded on close.
type Dialog struct {
	mu sync.Mutex

	id          string
	assistantID string
	config      *model.AssistantConfig

	state      model.DialogState
	permission model.Permission

	turns   []*model.TestTurn
	notices []model.Notice

	// playingTurnID identifies the single active audio playback slot.
	// Starting a new playback replaces the previous one.
	playingTurnID string

	lastLatencyMs int64
	openedAt      time.Time
	closed        bool

	subscribers map[chan model.DialogEvent]struct{}
}

func newDialog(id, assistantID string, config *model.AssistantConfig) *Dialog {
	return &Dialog{
		id:          id,
		assistantID: assistantID,
		config:      config,
		state:       model.DialogIdle,
		permission:  model.PermissionUnknown,
		openedAt:    time.Now(),
		subscribers: make(map[chan model.DialogEvent]struct{}),
	}
}

// ID returns the dialog identifier.
func (d *Dialog) ID() string {
	return d.id
}

// Snapshot returns a point-in-time copy of the dialog state.
func (d *Dialog) Snapshot() *model.DialogSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	turns := make([]model.TestTurn, len(d.turns))
	for i, t := range d.turns {
		turns[i] = *t
	}
	notices := make([]model.Notice, len(d.notices))
	copy(notices, d.notices)

	return &model.DialogSnapshot{
		ID:            d.id,
		AssistantID:   d.assistantID,
		State:         d.state,
		Permission:    d.permission,
		Turns:         turns,
		Notices:       notices,
		PlayingTurnID: d.playingTurnID,
		LastLatencyMs: d.lastLatencyMs,
		OpenedAt:      d.openedAt,
	}
}

// subscribe registers an event channel. The caller must drain it.
func (d *Dialog) subscribe() chan model.DialogEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan model.DialogEvent, 64)
	d.subscribers[ch] = struct{}{}
	return ch
}

func (d *Dialog) unsubscribe(ch chan model.DialogEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[ch]; ok {
		delete(d.subscribers, ch)
		close(ch)
	}
}

// emit fans an event out to subscribers. Must be called with d.mu held.
// Slow subscribers drop events rather than blocking the workflow.
func (d *Dialog) emit(event model.DialogEvent) {
	event.DialogID = d.id
	event.CreatedAt = time.Now()
	for ch := range d.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// setState transitions the FSM and notifies subscribers. Must be called
// with d.mu held.
func (d *Dialog) setState(state model.DialogState) {
	if d.state == state {
		return
	}
	d.state = state
	d.emit(model.DialogEvent{Type: model.EventStateChanged, State: state})
}

// notice records a user-visible notification. Must be called with d.mu held.
func (d *Dialog) notice(level model.NoticeLevel, message string) {
	n := model.Notice{
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	}
	d.notices = append(d.notices, n)
	d.emit(model.DialogEvent{Type: model.EventNotice, Notice: &n})
}

// appendTurn adds a turn to the transcript. Must be called with d.mu held.
func (d *Dialog) appendTurn(turn *model.TestTurn) {
	d.turns = append(d.turns, turn)
	t := *turn
	d.emit(model.DialogEvent{Type: model.EventTurnAdded, Turn: &t})
}

// updateTurn notifies subscribers of an in-place turn change. Must be
// called with d.mu held.
func (d *Dialog) updateTurn(turn *model.TestTurn) {
	t := *turn
	d.emit(model.DialogEvent{Type: model.EventTurnUpdated, Turn: &t})
}

// removeTurn deletes a turn from the transcript. Must be called with d.mu
// held.
func (d *Dialog) removeTurn(turnID string) {
	for i, t := range d.turns {
		if t.ID == turnID {
			d.turns = append(d.turns[:i], d.turns[i+1:]...)
			d.emit(model.DialogEvent{Type: model.EventTurnRemoved, TurnID: turnID})
			return
		}
	}
}

// findTurn looks a turn up by ID. Must be called with d.mu held.
func (d *Dialog) findTurn(turnID string) *model.TestTurn {
	for _, t := range d.turns {
		if t.ID == turnID {
			return t
		}
	}
	return nil
}

// startPlayback makes turnID the active playback slot, replacing any prior
// playback. Must be called with d.mu held.
func (d *Dialog) startPlayback(turnID string) {
	d.playingTurnID = turnID
	d.setState(model.DialogSpeaking)
}

// stopPlayback clears the playback slot. Must be called with d.mu held.
func (d *Dialog) stopPlayback() {
	d.playingTurnID = ""
}

// history returns prior turns as role/content pairs, stripped of transient
// flags and of any still-pending placeholders. Must be called with d.mu
// held.
func (d *Dialog) history(excludeTurnID string) []model.ChatMessage {
	out := make([]model.ChatMessage, 0, len(d.turns))
	for _, t := range d.turns {
		if t.ID == excludeTurnID || t.Thinking || t.Transcribing || t.Content == "" {
			continue
		}
		out = append(out, model.ChatMessage{
			ID:        t.ID,
			Role:      t.Role,
			Content:   t.Content,
			CreatedAt: t.CreatedAt,
		})
	}
	return out
}
