package tools

import (
	"errors"
	"fmt"
	"strings"

	"meridian/models"
)

// Tool error types as recorded on a finished invocation.
const (
	ErrTypeUnknownTool     = "unknown_tool"
	ErrTypeInvalidInput    = "invalid_input"
	ErrTypeExecutionFailed = "execution_failed"
)

var ErrUnknownTool = errors.New("unknown tool")

type FieldError struct {
	Field  string
	Reason string
}

// InvalidInputError is returned when arguments fail decoding or
// validation. The executor is never reached in that case.
type InvalidInputError struct {
	Tool   Name
	Fields []FieldError
}

func (e *InvalidInputError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return fmt.Sprintf("invalid input for %s: %s", e.Tool, strings.Join(parts, "; "))
}

func invalidField(tool Name, field, reason string) *InvalidInputError {
	return &InvalidInputError{Tool: tool, Fields: []FieldError{{Field: field, Reason: reason}}}
}

type ExecutionError struct {
	Tool Name
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ToToolError converts an execution failure into its transcript form.
func ToToolError(err error) *models.ToolError {
	if err == nil {
		return nil
	}

	var invalid *InvalidInputError
	if errors.As(err, &invalid) {
		te := &models.ToolError{Type: ErrTypeInvalidInput, Message: invalid.Error()}
		for _, f := range invalid.Fields {
			te.Fields = append(te.Fields, models.FieldIssue{Field: f.Field, Reason: f.Reason})
		}
		return te
	}
	if errors.Is(err, ErrUnknownTool) {
		return &models.ToolError{Type: ErrTypeUnknownTool, Message: err.Error()}
	}
	return &models.ToolError{Type: ErrTypeExecutionFailed, Message: err.Error()}
}
