// Package transcript keeps the conversation history of a session,
// including the lifecycle of every tool invocation.
package transcript

import (
	"sync"
	"time"

	"meridian/models"
	"meridian/services/intelligence"

	"github.com/google/uuid"
)

// Transcript is append-only: messages are never removed and invocation
// states only move forward. It implements intelligence.Sink so the loop
// can record a turn directly.
type Transcript struct {
	mu        sync.Mutex
	sessionID string
	messages  []models.ConversationMessage
	open      int  // index of the assistant message being streamed, -1 if none
	stepEnded bool // a model step finished since the last text delta
	now       func() time.Time
}

func New(sessionID string) *Transcript {
	return FromMessages(sessionID, nil)
}

func FromMessages(sessionID string, msgs []models.ConversationMessage) *Transcript {
	t := &Transcript{sessionID: sessionID, open: -1, now: time.Now}
	t.messages = cloneMessages(msgs)
	return t
}

func (t *Transcript) SessionID() string { return t.sessionID }

// SetClock overrides the timestamp source.
func (t *Transcript) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

func (t *Transcript) AppendUser(content string) models.ConversationMessage {
	return t.append(models.RoleUser, content)
}

func (t *Transcript) AppendSystem(content string) models.ConversationMessage {
	return t.append(models.RoleSystem, content)
}

func (t *Transcript) AppendAssistant(content string) models.ConversationMessage {
	return t.append(models.RoleAssistant, content)
}

func (t *Transcript) append(role models.Role, content string) models.ConversationMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = -1
	t.stepEnded = false
	msg := models.ConversationMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: t.now().UTC(),
	}
	t.messages = append(t.messages, msg)
	return msg
}

// openAssistant returns the streaming assistant message, creating it on
// first use. Caller holds the lock.
func (t *Transcript) openAssistant() *models.ConversationMessage {
	if t.open < 0 {
		t.messages = append(t.messages, models.ConversationMessage{
			ID:        uuid.NewString(),
			Role:      models.RoleAssistant,
			Timestamp: t.now().UTC(),
		})
		t.open = len(t.messages) - 1
	}
	return &t.messages[t.open]
}

// Emit records a loop frame.
func (t *Transcript) Emit(fr intelligence.Frame) error {
	switch fr.Type {
	case intelligence.FrameText:
		t.mu.Lock()
		msg := t.openAssistant()
		// Text from separate model steps goes on separate lines.
		if t.stepEnded && msg.Content != "" {
			msg.Content += "\n"
		}
		t.stepEnded = false
		msg.Content += fr.Text
		t.mu.Unlock()
	case intelligence.FrameToolCall, intelligence.FrameToolResult:
		if fr.Invocation == nil {
			return nil
		}
		return t.Apply(*fr.Invocation)
	case intelligence.FrameStep:
		t.mu.Lock()
		t.stepEnded = true
		t.mu.Unlock()
	case intelligence.FrameFinish:
		t.mu.Lock()
		t.open = -1
		t.stepEnded = false
		t.mu.Unlock()
	}
	return nil
}

// Apply records an invocation update. A new id is attached to the
// streaming assistant message; an existing one only moves forward.
func (t *Transcript) Apply(inv models.ToolInvocation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if mi, ii, ok := t.find(inv.ToolCallID); ok {
		cur := &t.messages[mi].ToolInvocations[ii]
		if inv.State.Rank() <= cur.State.Rank() {
			return nil
		}
		if inv.Args == nil {
			inv.Args = cur.Args
		}
		if inv.ToolName == "" {
			inv.ToolName = cur.ToolName
		}
		*cur = inv
		return nil
	}

	msg := t.openAssistant()
	msg.ToolInvocations = append(msg.ToolInvocations, inv)
	return nil
}

func (t *Transcript) find(id string) (int, int, bool) {
	for mi := len(t.messages) - 1; mi >= 0; mi-- {
		for ii, inv := range t.messages[mi].ToolInvocations {
			if inv.ToolCallID == id {
				return mi, ii, true
			}
		}
	}
	return 0, 0, false
}

// Invocation looks up an invocation by tool call id.
func (t *Transcript) Invocation(id string) (models.ToolInvocation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi, ii, ok := t.find(id)
	if !ok {
		return models.ToolInvocation{}, false
	}
	return cloneInvocation(t.messages[mi].ToolInvocations[ii]), true
}

// Invocations lists every invocation in transcript order.
func (t *Transcript) Invocations() []models.ToolInvocation {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []models.ToolInvocation
	for _, m := range t.messages {
		for _, inv := range m.ToolInvocations {
			out = append(out, cloneInvocation(inv))
		}
	}
	return out
}

// Messages returns a deep copy.
func (t *Transcript) Messages() []models.ConversationMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneMessages(t.messages)
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// History converts the transcript into model history. System notes are
// host-side only and skipped; unfinished invocations are left out since
// the model cannot be shown a call without its result.
func (t *Transcript) History() []intelligence.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []intelligence.Message
	for _, m := range t.messages {
		switch m.Role {
		case models.RoleUser:
			out = append(out, intelligence.Message{Role: intelligence.RoleUser, Content: m.Content})
		case models.RoleAssistant:
			var calls []intelligence.ToolCall
			var results []intelligence.ToolResult
			for _, inv := range m.ToolInvocations {
				if inv.State != models.StateResult {
					continue
				}
				calls = append(calls, intelligence.ToolCall{ID: inv.ToolCallID, Name: inv.ToolName, Args: inv.Args})
				results = append(results, intelligence.ToolResult{
					CallID:  inv.ToolCallID,
					Name:    inv.ToolName,
					Payload: intelligence.ResultPayload(inv),
				})
			}
			if len(calls) > 0 {
				out = append(out,
					intelligence.Message{Role: intelligence.RoleAssistant, ToolCalls: calls},
					intelligence.Message{Role: intelligence.RoleTool, ToolResults: results},
				)
			}
			if m.Content != "" {
				out = append(out, intelligence.Message{Role: intelligence.RoleAssistant, Content: m.Content})
			}
		}
	}
	return out
}

func cloneMessages(msgs []models.ConversationMessage) []models.ConversationMessage {
	out := make([]models.ConversationMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.ToolInvocations != nil {
			out[i].ToolInvocations = make([]models.ToolInvocation, len(m.ToolInvocations))
			for j, inv := range m.ToolInvocations {
				out[i].ToolInvocations[j] = cloneInvocation(inv)
			}
		}
	}
	return out
}

func cloneInvocation(inv models.ToolInvocation) models.ToolInvocation {
	if inv.Args != nil {
		args := make(map[string]any, len(inv.Args))
		for k, v := range inv.Args {
			args[k] = v
		}
		inv.Args = args
	}
	if inv.Error != nil {
		te := *inv.Error
		te.Fields = append([]models.FieldIssue(nil), inv.Error.Fields...)
		inv.Error = &te
	}
	return inv
}

var _ intelligence.Sink = (*Transcript)(nil)
