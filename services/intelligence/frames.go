package intelligence

import (
	"errors"

	"meridian/models"
)

type FrameType string

const (
	FrameText       FrameType = "text"
	FrameToolCall   FrameType = "tool_call"
	FrameToolResult FrameType = "tool_result"
	FrameStep       FrameType = "step"
	FrameError      FrameType = "error"
	FrameFinish     FrameType = "finish"
)

// Frame is what the loop reports to the host while a turn runs.
type Frame struct {
	Type         FrameType              `json:"type"`
	Text         string                 `json:"text,omitempty"`
	Invocation   *models.ToolInvocation `json:"invocation,omitempty"`
	Step         int                    `json:"step,omitempty"`
	Usage        *Usage                 `json:"usage,omitempty"`
	FinishReason string                 `json:"finishReason,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

type Sink interface {
	Emit(Frame) error
}

type SinkFunc func(Frame) error

func (f SinkFunc) Emit(fr Frame) error { return f(fr) }

// MultiSink fans a frame out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Emit(fr Frame) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(fr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
