package intelligence

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"meridian/models"
	"meridian/services/temporal"
	"meridian/services/tools"

	"github.com/google/uuid"
)

// LocalModel is a keyword-driven stand-in for a hosted model. It needs no
// credential and is used for offline runs and end-to-end tests.
type LocalModel struct {
	registry *tools.Registry
}

func NewLocalModel(registry *tools.Registry) *LocalModel {
	return &LocalModel{registry: registry}
}

var (
	isoDateRe   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	clockTimeRe = regexp.MustCompile(`\b([01]?\d|2[0-3])[:h]([0-5]\d)\b`)

	chatReplies = []string{
		"¿En qué puedo ayudarte hoy?",
		"Estoy aquí para ayudarte. ¿Qué necesitas?",
		"Gracias por tu mensaje. ¿Cómo puedo ayudarte?",
	}
)

func (m *LocalModel) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("local model: empty conversation")
	}

	var events []Event
	last := req.Messages[len(req.Messages)-1]
	switch last.Role {
	case RoleTool:
		events = append(events, Event{Type: EventTextDelta, Text: summarize(last.ToolResults)})
	default:
		events = m.respond(last.Content)
	}
	events = append(events, Event{Type: EventStepFinish, Usage: Usage{
		PromptTokens:     countTokens(req),
		CompletionTokens: len(events),
		TotalTokens:      countTokens(req) + len(events),
	}})

	ch := make(chan Event)
	go func() {
		defer close(ch)
		for _, ev := range events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (m *LocalModel) respond(text string) []Event {
	lower := strings.ToLower(text)
	amenity, hasAmenity := detectAmenity(lower)

	if !hasAmenity {
		if m.wantsTool(lower) {
			return []Event{{Type: EventTextDelta, Text: "¿Qué espacio quieres reservar? Pádel, tenis, piscina, gimnasio, spa, coworking, cine o rooftop."}}
		}
		return []Event{{Type: EventTextDelta, Text: chatReplies[rand.IntN(len(chatReplies))]}}
	}

	args := map[string]any{
		"amenityType": string(amenity),
		"date":        detectDate(lower),
	}
	if t := detectTime(lower); t != "" {
		args["preferredTime"] = t
	}
	call := ToolCall{ID: "call_" + uuid.NewString(), Name: tools.BookAmenity.String(), Args: args}
	return []Event{
		{Type: EventToolCallDelta, Call: ToolCall{ID: call.ID, Name: call.Name}},
		{Type: EventToolCallReady, Call: call},
	}
}

func (m *LocalModel) wantsTool(lower string) bool {
	if m.registry == nil {
		return false
	}
	for _, d := range m.registry.Definitions() {
		if mentions(lower, d.Keywords) {
			return true
		}
	}
	return false
}

func detectAmenity(lower string) (models.AmenityType, bool) {
	for _, a := range models.AmenityTypes {
		if mentions(lower, tools.Catalogue[a].Keywords) {
			return a, true
		}
	}
	return "", false
}

// mentions reports whether any word of text starts with one of keywords,
// so "películas" matches "película" but "espacio" does not match "spa".
func mentions(text string, keywords []string) bool {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		for _, kw := range keywords {
			if strings.HasPrefix(w, kw) {
				return true
			}
		}
	}
	return false
}

func detectDate(lower string) string {
	switch {
	case isoDateRe.MatchString(lower):
		return isoDateRe.FindString(lower)
	case strings.Contains(lower, "hoy") || strings.Contains(lower, "today"):
		return temporal.Today
	case strings.Contains(lower, "mañana") || strings.Contains(lower, "tomorrow"):
		return temporal.Tomorrow
	case strings.Contains(lower, "próxima semana") || strings.Contains(lower, "semana que viene") || strings.Contains(lower, "next week"):
		return temporal.NextWeek
	default:
		return temporal.Today
	}
}

func detectTime(lower string) string {
	if m := clockTimeRe.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("%02d:%s", hour, m[2])
	}
	switch {
	case strings.Contains(lower, "por la tarde") || strings.Contains(lower, "afternoon"):
		return "17:00"
	case strings.Contains(lower, "por la noche") || strings.Contains(lower, "evening"):
		return "20:00"
	}
	return ""
}

func summarize(results []ToolResult) string {
	if len(results) == 0 {
		return "Listo."
	}
	r := results[0]
	if errObj, ok := r.Payload["error"]; ok {
		if te, ok := errObj.(map[string]any); ok {
			if msg, _ := te["message"].(string); msg != "" {
				return "No he podido completar la consulta: " + msg
			}
		}
		return "No he podido completar la consulta."
	}
	name, _ := r.Payload["amenityName"].(string)
	date, _ := r.Payload["date"].(string)
	if name == "" {
		return "Aquí tienes el resultado."
	}
	return fmt.Sprintf("Aquí tienes las horas disponibles para %s el %s.", name, date)
}

func countTokens(req Request) int {
	n := len(strings.Fields(req.System))
	for _, m := range req.Messages {
		n += len(strings.Fields(m.Content))
	}
	return n
}
