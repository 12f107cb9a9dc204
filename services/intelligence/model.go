// Package intelligence runs the bounded model/tool dispatch loop and
// adapts language model providers to it.
package intelligence

import (
	"context"

	"meridian/services/tools"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResult is fed back to the model after a tool ran. Payload holds
// either the result or an "error" object.
type ToolResult struct {
	CallID  string         `json:"callId"`
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
}

// Message is one entry of the history sent to the model. System
// instructions travel in Request.System, never here.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"toolCalls,omitempty"`
	ToolResults []ToolResult `json:"toolResults,omitempty"`
}

type ToolSpec struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Parameters  tools.Schema `json:"parameters"`
}

type Request struct {
	System      string
	Messages    []Message
	Tools       []ToolSpec
	Temperature float32
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}

type EventType int

const (
	EventTextDelta EventType = iota
	EventToolCallDelta
	EventToolCallReady
	EventStepFinish
	EventError
)

// Event is one item of a model stream. A stream ends with EventStepFinish
// or EventError and then the channel is closed.
type Event struct {
	Type  EventType
	Text  string
	Call  ToolCall
	Usage Usage
	Err   error
}

// Model streams one step of a conversation.
type Model interface {
	Stream(ctx context.Context, req Request) (<-chan Event, error)
}

// ToolSpecs converts registry definitions into the catalogue sent to the
// model.
func ToolSpecs(defs []tools.Definition) []ToolSpec {
	out := make([]ToolSpec, 0, len(defs))
	for _, d := range defs {
		out = append(out, ToolSpec{Name: d.Name.String(), Description: d.Description, Parameters: d.Parameters})
	}
	return out
}
