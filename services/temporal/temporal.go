// Package temporal produces the authoritative notion of "now" handed to
// the model and resolves relative date references against it.
package temporal

import (
	"fmt"
	"strings"
	"time"

	"meridian/models"

	"golang.org/x/text/language"
)

const (
	DefaultTimezone  = "Europe/Madrid"
	DefaultLocale    = "es-ES"
	DefaultDaysAhead = 14

	isoDate   = "2006-01-02"
	clockTime = "15:04"
)

// Now snapshots the wall clock. Empty timezone or locale select the
// defaults; malformed values fail instead of silently defaulting.
func Now(timezone, locale string) (models.TemporalContext, error) {
	return At(time.Now(), timezone, locale)
}

// At builds the context for an arbitrary instant.
func At(t time.Time, timezone, locale string) (models.TemporalContext, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	if locale == "" {
		locale = DefaultLocale
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return models.TemporalContext{}, fmt.Errorf("temporal: invalid timezone %q: %w", timezone, err)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return models.TemporalContext{}, fmt.Errorf("temporal: invalid locale %q: %w", locale, err)
	}

	local := t.In(loc)
	return models.TemporalContext{
		CurrentDate:     local.Format(isoDate),
		CurrentTime:     local.Format(clockTime),
		CurrentDateTime: t.UTC().Format(time.RFC3339),
		DayOfWeek:       weekdayName(tag, local.Weekday()),
		Timezone:        timezone,
		Locale:          locale,
	}, nil
}

// FormatForPrompt renders the temporal block injected into the system prompt.
func FormatForPrompt(tc models.TemporalContext) string {
	var b strings.Builder
	b.WriteString("## CONTEXTO TEMPORAL (Información en tiempo real)\n")
	fmt.Fprintf(&b, "- Fecha actual: %s (%s)\n", tc.CurrentDate, tc.DayOfWeek)
	fmt.Fprintf(&b, "- Hora actual: %s\n", tc.CurrentTime)
	fmt.Fprintf(&b, "- Zona horaria: %s\n\n", tc.Timezone)
	b.WriteString("Utiliza esta información para interpretar referencias temporales del usuario:\n")
	fmt.Fprintf(&b, "- \"hoy\" = %s\n", tc.CurrentDate)
	fmt.Fprintf(&b, "- \"mañana\" = %s\n", ResolveRelativeDate(Tomorrow, tc))
	fmt.Fprintf(&b, "- \"esta semana\" = la semana que contiene %s\n", tc.CurrentDate)
	fmt.Fprintf(&b, "- Fechas reservables: de %s a %s", tc.CurrentDate, lastBookableDate(tc))
	return b.String()
}

func lastBookableDate(tc models.TemporalContext) string {
	dates := AvailableDates(tc, DefaultDaysAhead)
	if len(dates) == 0 {
		return tc.CurrentDate
	}
	return dates[len(dates)-1]
}
