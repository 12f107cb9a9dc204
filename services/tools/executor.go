package tools

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"meridian/models"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Executor runs a tool with raw model-supplied arguments.
type Executor interface {
	Execute(ctx context.Context, args map[string]any, tc models.TemporalContext) (any, error)
}

// TypedExecutor decodes and validates raw arguments into In before
// calling Fn. Decoding or validation failures surface as
// *InvalidInputError and Fn is not called.
type TypedExecutor[In, Out any] struct {
	Tool Name
	Fn   func(ctx context.Context, in In, tc models.TemporalContext) (Out, error)
}

func (e TypedExecutor[In, Out]) Execute(ctx context.Context, args map[string]any, tc models.TemporalContext) (any, error) {
	in, err := DecodeArgs[In](e.Tool, args)
	if err != nil {
		return nil, err
	}
	return e.Fn(ctx, in, tc)
}

// Schema derives the parameter schema from In.
func (e TypedExecutor[In, Out]) Schema() Schema {
	var in In
	return SchemaFor(in)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeArgs decodes args into In using json tag names and validates the
// result.
func DecodeArgs[In any](tool Name, args map[string]any) (In, error) {
	var in In
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &in,
	})
	if err != nil {
		return in, fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(args); err != nil {
		return in, &InvalidInputError{Tool: tool, Fields: decodeIssues(err)}
	}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return in, &InvalidInputError{Tool: tool, Fields: []FieldError{{Field: "arguments", Reason: err.Error()}}}
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Reason: reasonFor(fe)})
		}
		return in, &InvalidInputError{Tool: tool, Fields: fields}
	}
	return in, nil
}

var quotedField = regexp.MustCompile(`'([^']*)'`)

func decodeIssues(err error) []FieldError {
	var msgs []string
	var merr *mapstructure.Error
	if errors.As(err, &merr) {
		msgs = merr.Errors
	} else {
		msgs = []string{err.Error()}
	}

	out := make([]FieldError, 0, len(msgs))
	for _, m := range msgs {
		field := "arguments"
		if match := quotedField.FindStringSubmatch(m); match != nil && match[1] != "" {
			field = match[1]
		}
		out = append(out, FieldError{Field: field, Reason: m})
	}
	return out
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must use the HH:mm format"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
