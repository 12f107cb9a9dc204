package tools

import (
	"context"
	"errors"
	"testing"

	"meridian/models"
	"meridian/services/widgets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExecutor struct {
	calls int
	fn    func() (any, error)
}

func (c *countingExecutor) Execute(ctx context.Context, args map[string]any, tc models.TemporalContext) (any, error) {
	c.calls++
	return c.fn()
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(BookAmenityDefinition(&AmenityBooker{Slots: NewSlotGenerator(AlwaysAvailable{})}))
	require.NoError(t, err)
	return reg
}

func TestRegistryLookup(t *testing.T) {
	reg := testRegistry(t)

	def, ok := reg.Lookup("book_amenity")
	require.True(t, ok)
	assert.Equal(t, BookAmenity, def.Name)
	assert.NotNil(t, def.Executor)
	assert.NotNil(t, def.Component)
	assert.NotNil(t, def.Skeleton)

	_, ok = reg.Lookup("nonexistent_tool")
	assert.False(t, ok)
	_, ok = reg.Lookup("")
	assert.False(t, ok)

	pair, ok := reg.Resolve("book_amenity")
	require.True(t, ok)
	assert.IsType(t, widgets.AmenityBookingComponent{}, pair.Component)

	_, ok = reg.Resolve("nonexistent_tool")
	assert.False(t, ok)
}

func TestRegistryRejectsBadDefinitions(t *testing.T) {
	good := BookAmenityDefinition(&AmenityBooker{})

	_, err := NewRegistry(good, good)
	assert.ErrorContains(t, err, "duplicate")

	bad := good
	bad.Name = "send_email"
	_, err = NewRegistry(bad)
	assert.ErrorContains(t, err, "unknown tool name")

	noSkeleton := good
	noSkeleton.Skeleton = nil
	_, err = NewRegistry(noSkeleton)
	assert.Error(t, err)
}

func TestRegistryDefinitionsOrdered(t *testing.T) {
	reg := testRegistry(t)
	defs := reg.Definitions()
	require.Len(t, defs, len(Names()))
	assert.Equal(t, BookAmenity, defs[0].Name)
}

func TestExecuteUnknownTool(t *testing.T) {
	reg := testRegistry(t)

	_, err := reg.Execute(context.Background(), "launch_rocket", nil, models.TemporalContext{})
	require.ErrorIs(t, err, ErrUnknownTool)
	assert.Equal(t, ErrTypeUnknownTool, ToToolError(err).Type)
}

func TestUnknownToolWidgetIsNeutralNotice(t *testing.T) {
	reg := testRegistry(t)

	_, err := reg.Execute(context.Background(), "launch_rocket", map[string]any{"target": "moon"}, models.TemporalContext{})
	inv := models.ToolInvocation{
		ToolCallID: "call_7",
		ToolName:   "launch_rocket",
		State:      models.StateResult,
		Error:      ToToolError(err),
	}

	v := widgets.FromInvocation(reg, inv, nil).View()
	assert.Equal(t, widgets.KindNotice, v.Kind)
	assert.Equal(t, "Widget no disponible: launch_rocket", v.Message)
	assert.NotContains(t, v.Actions, widgets.ActionRetry)
	assert.Equal(t, "call_7", v.ToolCallID)

	// Registered tools still surface their failures.
	failed := models.ToolInvocation{
		ToolCallID: "call_8",
		ToolName:   "book_amenity",
		State:      models.StateResult,
		Error:      &models.ToolError{Type: ErrTypeExecutionFailed, Message: "inventory offline"},
	}
	v = widgets.FromInvocation(reg, failed, nil).View()
	assert.Equal(t, widgets.KindError, v.Kind)
	assert.Equal(t, []string{widgets.ActionRetry}, v.Actions)
}

func TestResolveCarriesDisplayName(t *testing.T) {
	reg := testRegistry(t)
	v := widgets.NewInstance(reg, "call_1", "book_amenity", nil).View()
	assert.Equal(t, widgets.KindAmenitySkel, v.Kind)
	assert.Equal(t, "Reserva de Amenity", v.Title)
}

func TestInvalidInputNeverReachesExecutor(t *testing.T) {
	exec := &countingExecutor{fn: func() (any, error) { return "ok", nil }}
	typed := TypedExecutor[BookAmenityInput, any]{
		Tool: BookAmenity,
		Fn: func(ctx context.Context, in BookAmenityInput, tc models.TemporalContext) (any, error) {
			return exec.Execute(ctx, nil, tc)
		},
	}
	def := BookAmenityDefinition(&AmenityBooker{})
	def.Executor = typed
	reg, err := NewRegistry(def)
	require.NoError(t, err)

	cases := []struct {
		name  string
		args  map[string]any
		field string
	}{
		{"missing everything", map[string]any{}, "amenityType"},
		{"amenity outside enum", map[string]any{"amenityType": "bowling", "date": "today"}, "amenityType"},
		{"wrong type", map[string]any{"amenityType": 42, "date": "today"}, "amenityType"},
		{"bad preferred time", map[string]any{"amenityType": "gym", "date": "today", "preferredTime": "2pm"}, "preferredTime"},
		{"negative duration", map[string]any{"amenityType": "gym", "date": "today", "duration": -30}, "duration"},
		{"missing date", map[string]any{"amenityType": "gym"}, "date"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Execute(context.Background(), "book_amenity", tc.args, models.TemporalContext{})

			var invalid *InvalidInputError
			require.ErrorAs(t, err, &invalid)
			fields := make([]string, 0, len(invalid.Fields))
			for _, f := range invalid.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tc.field)

			te := ToToolError(err)
			assert.Equal(t, ErrTypeInvalidInput, te.Type)
			assert.NotEmpty(t, te.Fields)
		})
	}
	assert.Zero(t, exec.calls)
}

func TestExecuteWrapsFailuresAndPanics(t *testing.T) {
	boom := errors.New("inventory offline")
	for name, fn := range map[string]func() (any, error){
		"error": func() (any, error) { return nil, boom },
		"panic": func() (any, error) { panic("nil map") },
	} {
		t.Run(name, func(t *testing.T) {
			def := BookAmenityDefinition(&AmenityBooker{})
			def.Executor = &countingExecutor{fn: fn}
			reg, err := NewRegistry(def)
			require.NoError(t, err)

			_, err = reg.Execute(context.Background(), "book_amenity", map[string]any{}, models.TemporalContext{})

			var execErr *ExecutionError
			require.ErrorAs(t, err, &execErr)
			assert.Equal(t, BookAmenity, execErr.Tool)
			assert.Equal(t, ErrTypeExecutionFailed, ToToolError(err).Type)
		})
	}
}

func TestParseName(t *testing.T) {
	n, ok := ParseName("book_amenity")
	assert.True(t, ok)
	assert.Equal(t, BookAmenity, n)

	_, ok = ParseName("Book_Amenity")
	assert.False(t, ok)
}
