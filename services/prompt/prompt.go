// Package prompt assembles the system prompt sent on every model call.
package prompt

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"meridian/models"
	"meridian/services/temporal"
	"meridian/services/tools"
)

//go:embed system.tmpl
var systemTemplate string

var tmpl = template.Must(template.New("system").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(systemTemplate))

type Options struct {
	ResidentName string
	Unit         string
	Temporal     models.TemporalContext
	Tools        []tools.Definition
}

type toolView struct {
	Name        string
	Category    string
	Description string
	Params      []paramView
}

type paramView struct {
	Name        string
	Description string
	Required    bool
}

// BuildSystemPrompt renders the prompt. The same options always produce
// the same text. A zero Temporal is replaced by a fresh default context.
func BuildSystemPrompt(opts Options) (string, error) {
	tc := opts.Temporal
	if tc.IsZero() {
		now, err := temporal.Now("", "")
		if err != nil {
			return "", fmt.Errorf("prompt: temporal context: %w", err)
		}
		tc = now
	}

	unit := opts.Unit
	if unit == "" {
		unit = "N/A"
	}

	data := struct {
		TemporalBlock string
		ResidentName  string
		Unit          string
		Tomorrow      string
		Tools         []toolView
	}{
		TemporalBlock: temporal.FormatForPrompt(tc),
		ResidentName:  strings.TrimSpace(opts.ResidentName),
		Unit:          unit,
		Tomorrow:      temporal.ResolveRelativeDate(temporal.Tomorrow, tc),
		Tools:         catalog(opts.Tools),
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("prompt: render: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

func catalog(defs []tools.Definition) []toolView {
	out := make([]toolView, 0, len(defs))
	for _, d := range defs {
		out = append(out, toolView{
			Name:        d.Name.String(),
			Category:    d.Category,
			Description: d.Description,
			Params:      params(d.Parameters),
		})
	}
	return out
}

// params lists required parameters first, then the rest by name.
func params(s tools.Schema) []paramView {
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	names := make([]string, 0, len(s.Properties))
	for n := range s.Properties {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if required[names[i]] != required[names[j]] {
			return required[names[i]]
		}
		return names[i] < names[j]
	})

	out := make([]paramView, 0, len(names))
	for _, n := range names {
		out = append(out, paramView{Name: n, Description: s.Properties[n].Description, Required: required[n]})
	}
	return out
}
