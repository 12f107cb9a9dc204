package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// InvocationState tracks a tool call from first sighting to its result.
type InvocationState string

const (
	StatePartialCall InvocationState = "partial-call" // arguments still streaming
	StatePendingCall InvocationState = "pending-call" // arguments complete, executing
	StateResult      InvocationState = "result"
)

// Rank orders states so that transitions can only move forward.
func (s InvocationState) Rank() int {
	switch s {
	case StatePartialCall:
		return 0
	case StatePendingCall:
		return 1
	case StateResult:
		return 2
	}
	return -1
}

// ToolError is the structured failure attached to a finished invocation.
type ToolError struct {
	Type    string       `json:"type"` // invalid_input, unknown_tool, execution_failed
	Message string       `json:"message"`
	Fields  []FieldIssue `json:"fields,omitempty"`
}

// FieldIssue identifies one offending argument.
type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type ToolInvocation struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	State      InvocationState `json:"state"`
	Args       map[string]any  `json:"args,omitempty"`
	Result     any             `json:"result,omitempty"`
	Error      *ToolError      `json:"error,omitempty"`
}

// Failed reports whether the invocation finished with a tool error.
func (t ToolInvocation) Failed() bool {
	return t.State == StateResult && t.Error != nil
}

type ConversationMessage struct {
	ID              string           `json:"id"`
	Role            Role             `json:"role"`
	Content         string           `json:"content"`
	Timestamp       time.Time        `json:"timestamp"`
	ToolInvocations []ToolInvocation `json:"toolInvocations,omitempty"`
}
