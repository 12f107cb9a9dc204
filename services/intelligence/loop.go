package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"meridian/models"
	"meridian/services/prompt"
	"meridian/services/temporal"
	"meridian/services/tools"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxSteps      = 5
	DefaultStreamTimeout = 30 * time.Second
	DefaultTemperature   = 0.7

	FinishStop     = "stop"
	FinishMaxSteps = "max_steps"
	FinishError    = "error"
)

type State string

const (
	StateAwaitingModel   State = "awaiting_model"
	StateModelResponding State = "model_responding"
	StateToolExecuting   State = "tool_executing"
	StateComplete        State = "complete"
)

var transitions = map[State][]State{
	StateAwaitingModel:   {StateModelResponding, StateComplete},
	StateModelResponding: {StateToolExecuting, StateComplete},
	StateToolExecuting:   {StateAwaitingModel, StateComplete},
}

type machine struct {
	current State
	path    []State
}

func newMachine() *machine {
	return &machine{current: StateAwaitingModel, path: []State{StateAwaitingModel}}
}

func (m *machine) to(next State) error {
	for _, allowed := range transitions[m.current] {
		if allowed == next {
			m.current = next
			m.path = append(m.path, next)
			return nil
		}
	}
	return fmt.Errorf("dispatch: illegal transition %s -> %s", m.current, next)
}

type Options struct {
	MaxSteps      int
	StreamTimeout time.Duration
	Temperature   float32
}

type Resident struct {
	Name string
	Unit string
}

// Turn is everything the loop needs for one user turn. Temporal must be
// produced by the server for this request.
type Turn struct {
	SessionID string
	Messages  []Message
	Temporal  models.TemporalContext
	Resident  Resident
}

type Outcome struct {
	Text         string
	Invocations  []models.ToolInvocation
	Steps        int
	Usage        Usage
	FinishReason string
	Path         []State
}

type Loop struct {
	registry *tools.Registry
	model    Model
	logger   *zap.Logger
	opts     Options
}

func NewLoop(registry *tools.Registry, model Model, logger *zap.Logger, opts Options) *Loop {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = DefaultStreamTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{registry: registry, model: model, logger: logger, opts: opts}
}

type lockedSink struct {
	mu     sync.Mutex
	sink   Sink
	logger *zap.Logger
}

// emit never fails the turn; a broken sink is logged and skipped.
func (s *lockedSink) emit(fr Frame) {
	if s.sink == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sink.Emit(fr); err != nil {
		s.logger.Warn("frame dropped", zap.String("type", string(fr.Type)), zap.Error(err))
	}
}

type toolOutcome struct {
	call    ToolCall
	inv     models.ToolInvocation
	payload map[string]any
}

// Run drives model steps until the model stops calling tools, MaxSteps is
// reached, or the stream fails. On failure the partial outcome is
// returned together with an *UpstreamError.
func (l *Loop) Run(ctx context.Context, turn Turn, sink Sink) (Outcome, error) {
	logger := l.logger.With(zap.String("sessionId", turn.SessionID))
	out := Outcome{}
	sm := newMachine()
	ls := &lockedSink{sink: sink, logger: logger}

	tc := turn.Temporal
	if tc.IsZero() {
		now, err := temporal.Now("", "")
		if err != nil {
			return out, err
		}
		tc = now
	}

	system, err := prompt.BuildSystemPrompt(prompt.Options{
		ResidentName: turn.Resident.Name,
		Unit:         turn.Resident.Unit,
		Temporal:     tc,
		Tools:        l.registry.Definitions(),
	})
	if err != nil {
		return out, err
	}
	specs := ToolSpecs(l.registry.Definitions())

	ctx, cancel := context.WithTimeout(ctx, l.opts.StreamTimeout)
	defer cancel()

	history := make([]Message, len(turn.Messages))
	copy(history, turn.Messages)
	var text strings.Builder

	finish := func(reason string) {
		out.FinishReason = reason
		out.Text = text.String()
		if err := sm.to(StateComplete); err != nil {
			logger.Error("state machine", zap.Error(err))
		}
		out.Path = sm.path
	}

	for step := 1; step <= l.opts.MaxSteps; step++ {
		if err := sm.to(StateModelResponding); err != nil {
			return out, err
		}
		out.Steps = step

		events, err := l.model.Stream(ctx, Request{
			System:      system,
			Messages:    history,
			Tools:       specs,
			Temperature: l.opts.Temperature,
		})
		if err != nil {
			finish(FinishError)
			return out, CategorizeError(err)
		}

		var (
			g         errgroup.Group
			stepText  strings.Builder
			calls     []ToolCall
			outcomes  []*toolOutcome
			stepUsage Usage
			streamErr error
			partial   = map[string]bool{}
			ready     = map[string]bool{}
		)

	consume:
		for {
			select {
			case <-ctx.Done():
				streamErr = ctx.Err()
				break consume
			case ev, ok := <-events:
				if !ok {
					break consume
				}
				switch ev.Type {
				case EventTextDelta:
					if ev.Text == "" {
						continue
					}
					stepText.WriteString(ev.Text)
					ls.emit(Frame{Type: FrameText, Text: ev.Text})
				case EventToolCallDelta:
					if ev.Call.ID == "" || partial[ev.Call.ID] || ready[ev.Call.ID] {
						continue
					}
					partial[ev.Call.ID] = true
					ls.emit(Frame{Type: FrameToolCall, Invocation: &models.ToolInvocation{
						ToolCallID: ev.Call.ID,
						ToolName:   ev.Call.Name,
						State:      models.StatePartialCall,
					}})
				case EventToolCallReady:
					call := ev.Call
					if call.ID == "" {
						call.ID = "call_" + uuid.NewString()
					}
					if ready[call.ID] {
						continue
					}
					ready[call.ID] = true
					calls = append(calls, call)
					ls.emit(Frame{Type: FrameToolCall, Invocation: &models.ToolInvocation{
						ToolCallID: call.ID,
						ToolName:   call.Name,
						State:      models.StatePendingCall,
						Args:       call.Args,
					}})

					o := &toolOutcome{call: call}
					outcomes = append(outcomes, o)
					g.Go(func() error {
						l.execute(ctx, o, tc, logger)
						inv := o.inv
						ls.emit(Frame{Type: FrameToolResult, Invocation: &inv})
						return nil
					})
				case EventStepFinish:
					stepUsage.Add(ev.Usage)
				case EventError:
					streamErr = ev.Err
					break consume
				}
			}
		}

		_ = g.Wait()
		out.Usage.Add(stepUsage)
		for _, o := range outcomes {
			out.Invocations = append(out.Invocations, o.inv)
		}
		if stepText.Len() > 0 {
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(stepText.String())
		}
		ls.emit(Frame{Type: FrameStep, Step: step, Usage: &stepUsage})

		if streamErr != nil {
			finish(FinishError)
			ue := CategorizeError(streamErr)
			logger.Warn("model stream failed", zap.Int("step", step), zap.String("category", ue.Category), zap.Error(streamErr))
			return out, ue
		}

		history = append(history, Message{Role: RoleAssistant, Content: stepText.String(), ToolCalls: calls})
		if len(calls) == 0 {
			finish(FinishStop)
			break
		}

		if err := sm.to(StateToolExecuting); err != nil {
			return out, err
		}
		results := make([]ToolResult, 0, len(outcomes))
		for _, o := range outcomes {
			results = append(results, ToolResult{CallID: o.call.ID, Name: o.call.Name, Payload: o.payload})
		}
		history = append(history, Message{Role: RoleTool, ToolResults: results})

		if step == l.opts.MaxSteps {
			finish(FinishMaxSteps)
			logger.Warn("step limit reached", zap.Int("maxSteps", l.opts.MaxSteps))
			break
		}
		if err := sm.to(StateAwaitingModel); err != nil {
			return out, err
		}
	}

	ls.emit(Frame{Type: FrameFinish, Usage: &out.Usage, FinishReason: out.FinishReason})
	logger.Info("turn completed",
		zap.Int("steps", out.Steps),
		zap.Int("toolCalls", len(out.Invocations)),
		zap.Int("promptTokens", out.Usage.PromptTokens),
		zap.Int("completionTokens", out.Usage.CompletionTokens),
		zap.String("finishReason", out.FinishReason),
	)
	return out, nil
}

func (l *Loop) execute(ctx context.Context, o *toolOutcome, tc models.TemporalContext, logger *zap.Logger) {
	o.inv = models.ToolInvocation{
		ToolCallID: o.call.ID,
		ToolName:   o.call.Name,
		State:      models.StateResult,
		Args:       o.call.Args,
	}

	start := time.Now()
	res, err := l.registry.Execute(ctx, o.call.Name, o.call.Args, tc)
	if err != nil {
		o.inv.Error = tools.ToToolError(err)
		o.payload = ResultPayload(o.inv)
		logger.Warn("tool failed",
			zap.String("tool", o.call.Name),
			zap.String("toolCallId", o.call.ID),
			zap.String("type", o.inv.Error.Type),
			zap.Error(err))
		return
	}

	o.inv.Result = res
	o.payload = ResultPayload(o.inv)
	logger.Debug("tool executed",
		zap.String("tool", o.call.Name),
		zap.String("toolCallId", o.call.ID),
		zap.Duration("took", time.Since(start)))
}

// ResultPayload is the function-response body the model receives for a
// finished invocation.
func ResultPayload(inv models.ToolInvocation) map[string]any {
	if inv.Error != nil {
		return map[string]any{"error": toPayload(inv.Error)}
	}
	return toPayload(inv.Result)
}

// toPayload flattens a value into plain JSON maps, the only form provider
// SDKs can convert into function responses.
func toPayload(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"result": fmt.Sprint(v)}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		var scalar any
		_ = json.Unmarshal(raw, &scalar)
		return map[string]any{"result": scalar}
	}
	return m
}
