package intelligence

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"meridian/services/tools"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiModel streams steps from Google's Gemini API.
type GeminiModel struct {
	client *genai.Client
	name   string
}

func NewGeminiModel(ctx context.Context, apiKey, modelName string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiModel{client: client, name: modelName}, nil
}

func (g *GeminiModel) Close() error {
	return g.client.Close()
}

func (g *GeminiModel) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("gemini: empty conversation")
	}

	model := g.client.GenerativeModel(g.name)
	model.SetTemperature(req.Temperature)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: functionDeclarations(req.Tools)}}
	}

	contents := toContents(req.Messages)
	last := contents[len(contents)-1]
	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	it := cs.SendMessageStream(ctx, last.Parts...)

	ch := make(chan Event)
	go func() {
		defer close(ch)
		send := func(ev Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var usage Usage
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				send(Event{Type: EventError, Err: fmt.Errorf("gemini stream: %w", err)})
				return
			}
			if resp.UsageMetadata != nil {
				usage = Usage{
					PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
					CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
					TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
				}
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					switch p := part.(type) {
					case genai.Text:
						if !send(Event{Type: EventTextDelta, Text: string(p)}) {
							return
						}
					case genai.FunctionCall:
						call := ToolCall{ID: "call_" + uuid.NewString(), Name: p.Name, Args: p.Args}
						if !send(Event{Type: EventToolCallReady, Call: call}) {
							return
						}
					}
				}
			}
		}
		send(Event{Type: EventStepFinish, Usage: usage})
	}()
	return ch, nil
}

// toContents maps history onto Gemini roles. Tool results travel as
// function responses in a user turn.
func toContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			c := &genai.Content{Role: "model"}
			if m.Content != "" {
				c.Parts = append(c.Parts, genai.Text(m.Content))
			}
			for _, call := range m.ToolCalls {
				c.Parts = append(c.Parts, genai.FunctionCall{Name: call.Name, Args: call.Args})
			}
			if len(c.Parts) == 0 {
				c.Parts = append(c.Parts, genai.Text(""))
			}
			out = append(out, c)
		case RoleTool:
			c := &genai.Content{Role: "user"}
			for _, r := range m.ToolResults {
				c.Parts = append(c.Parts, genai.FunctionResponse{Name: r.Name, Response: r.Payload})
			}
			out = append(out, c)
		default:
			out = append(out, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	return out
}

func functionDeclarations(specs []ToolSpec) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		out = append(out, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  toGenaiSchema(s.Parameters),
		})
	}
	return out
}

func toGenaiSchema(s tools.Schema) *genai.Schema {
	props := make(map[string]*genai.Schema, len(s.Properties))
	names := make([]string, 0, len(s.Properties))
	for n := range s.Properties {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		p := s.Properties[n]
		ps := &genai.Schema{Type: genaiType(p.Type), Description: p.Description}
		if len(p.Enum) > 0 {
			ps.Format = "enum"
			ps.Enum = p.Enum
		}
		props[n] = ps
	}
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: s.Required}
}

func genaiType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
