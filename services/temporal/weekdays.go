package temporal

import (
	"time"

	"golang.org/x/text/language"
)

// Weekday names indexed by time.Weekday (Sunday first). English leads the
// list so the matcher falls back to it.
var (
	weekdayTags = []language.Tag{
		language.English,
		language.Spanish,
		language.French,
		language.German,
		language.Italian,
		language.Portuguese,
	}
	weekdayNames = [][7]string{
		{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"},
		{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"},
		{"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"},
		{"domenica", "lunedì", "martedì", "mercoledì", "giovedì", "venerdì", "sabato"},
		{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"},
	}
	weekdayMatcher = language.NewMatcher(weekdayTags)
)

func weekdayName(tag language.Tag, day time.Weekday) string {
	_, idx, _ := weekdayMatcher.Match(tag)
	if idx < 0 || idx >= len(weekdayNames) {
		idx = 0
	}
	return weekdayNames[idx][day]
}
