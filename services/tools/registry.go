package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"meridian/models"
	"meridian/services/widgets"
)

// Definition describes one tool: what the model sees, how it runs, and
// how its result is rendered.
type Definition struct {
	Name        Name
	DisplayName string
	Category    string
	Description string
	Keywords    []string // intent hints for the offline model
	Parameters  Schema
	Executor    Executor
	Component   widgets.Component
	Skeleton    widgets.Skeleton
}

// Registry is built once at start-up and never mutated afterwards.
type Registry struct {
	defs  map[Name]Definition
	order []Name
}

func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[Name]Definition, len(defs))}
	for _, d := range defs {
		if _, ok := ParseName(string(d.Name)); !ok {
			return nil, fmt.Errorf("registry: unknown tool name %q", d.Name)
		}
		if _, dup := r.defs[d.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate tool %q", d.Name)
		}
		if d.Executor == nil || d.Component == nil || d.Skeleton == nil {
			return nil, fmt.Errorf("registry: tool %q needs an executor, a component and a skeleton", d.Name)
		}
		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return r, nil
}

// Lookup finds a definition by wire name. Not found is a normal outcome.
func (r *Registry) Lookup(name string) (Definition, bool) {
	n, ok := ParseName(name)
	if !ok {
		return Definition{}, false
	}
	d, ok := r.defs[n]
	return d, ok
}

// Definitions returns all tools ordered by name.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.defs[n])
	}
	return out
}

// Resolve implements widgets.Resolver.
func (r *Registry) Resolve(toolName string) (widgets.Pair, bool) {
	d, ok := r.Lookup(toolName)
	if !ok {
		return widgets.Pair{}, false
	}
	return widgets.Pair{Component: d.Component, Skeleton: d.Skeleton, Title: d.DisplayName}, true
}

// Execute runs the named tool. Unknown names yield ErrUnknownTool, bad
// arguments *InvalidInputError, and every other failure (panics included)
// an *ExecutionError.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, tc models.TemporalContext) (result any, err error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = &ExecutionError{Tool: d.Name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	result, err = d.Executor.Execute(ctx, args, tc)
	if err == nil {
		return result, nil
	}

	var invalid *InvalidInputError
	if errors.As(err, &invalid) {
		return nil, invalid
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return nil, execErr
	}
	return nil, &ExecutionError{Tool: d.Name, Err: err}
}

var _ widgets.Resolver = (*Registry)(nil)
