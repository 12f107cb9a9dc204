package models

// TemporalContext is the server-authoritative snapshot of "now". It is
// built per request and never read from client input.
type TemporalContext struct {
	CurrentDate     string `json:"currentDate"`     // 2024-01-15
	CurrentTime     string `json:"currentTime"`     // 14:30
	CurrentDateTime string `json:"currentDateTime"` // RFC 3339 instant
	DayOfWeek       string `json:"dayOfWeek"`       // localized, e.g. "lunes"
	Timezone        string `json:"timezone"`        // Europe/Madrid
	Locale          string `json:"locale"`          // es-ES
}

// IsZero reports whether the context was never populated.
func (t TemporalContext) IsZero() bool {
	return t == TemporalContext{}
}
