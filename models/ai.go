package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ChatRequest is the payload coming from the frontend into POST /chat.
// Messages stays raw so that a non-array value can be told apart from a
// missing one.
type ChatRequest struct {
	Messages  json.RawMessage `json:"messages"`
	SessionID string          `json:"sessionId,omitempty"` // optional server-side transcript
}

// ChatMessage is one {role, content} entry of the inbound history.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var ErrMessagesRequired = errors.New("messages array required")

// DecodeMessages validates and decodes the raw message list.
func (r ChatRequest) DecodeMessages() ([]ChatMessage, error) {
	raw := bytes.TrimSpace(r.Messages)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, ErrMessagesRequired
	}
	var msgs []ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessagesRequired, err)
	}
	if len(msgs) == 0 {
		return nil, ErrMessagesRequired
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return nil, fmt.Errorf("%w: message %d has unknown role %q", ErrMessagesRequired, i, m.Role)
		}
	}
	return msgs, nil
}

// WidgetActionRequest is posted by the client when a widget emits an action.
type WidgetActionRequest struct {
	ToolCallID string          `json:"toolCallId" binding:"required"`
	Type       string          `json:"type" binding:"required"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
