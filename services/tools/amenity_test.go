package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"meridian/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march10 = models.TemporalContext{
	CurrentDate: "2024-03-10",
	CurrentTime: "10:00",
	DayOfWeek:   "domingo",
	Timezone:    "Europe/Madrid",
	Locale:      "es-ES",
}

func TestBookAmenityPadelTomorrow(t *testing.T) {
	reg := testRegistry(t)

	out, err := reg.Execute(context.Background(), "book_amenity", map[string]any{
		"amenityType": "padel",
		"date":        "tomorrow",
	}, march10)
	require.NoError(t, err)

	data, ok := out.(models.AmenityBookingData)
	require.True(t, ok)
	assert.Equal(t, models.AmenityPadel, data.AmenityType)
	assert.Equal(t, "2024-03-11", data.Date)
	assert.Equal(t, "Pista de Pádel", data.AmenityName)
	assert.Equal(t, "Nivel -1, Zona Deportiva", data.Location)
	assert.Equal(t, 90, data.MaxDuration)
	assert.Len(t, data.Rules, 3)
	assert.NotEmpty(t, data.SuggestedSlots)
}

func TestBookAmenityDateValidation(t *testing.T) {
	reg := testRegistry(t)

	cases := map[string]string{
		"past":          "2024-03-09",
		"beyond window": "2024-03-24",
		"free text":     "el sábado",
		"bad calendar":  "2024-02-30",
	}
	for name, date := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Execute(context.Background(), "book_amenity", map[string]any{
				"amenityType": "gym",
				"date":        date,
			}, march10)

			var invalid *InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "date", invalid.Fields[0].Field)
		})
	}

	// Last bookable day is inside the window.
	_, err := reg.Execute(context.Background(), "book_amenity", map[string]any{
		"amenityType": "gym",
		"date":        "2024-03-23",
	}, march10)
	assert.NoError(t, err)
}

func TestBookAmenityDurationCap(t *testing.T) {
	reg := testRegistry(t)

	_, err := reg.Execute(context.Background(), "book_amenity", map[string]any{
		"amenityType": "padel",
		"date":        "today",
		"duration":    float64(120),
	}, march10)

	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "duration", invalid.Fields[0].Field)

	_, err = reg.Execute(context.Background(), "book_amenity", map[string]any{
		"amenityType": "coworking",
		"date":        "today",
		"duration":    float64(240),
	}, march10)
	assert.NoError(t, err)
}

func TestBookAmenityLatencyHonoursContext(t *testing.T) {
	booker := &AmenityBooker{Slots: NewSlotGenerator(AlwaysAvailable{}), Latency: time.Hour}
	reg, err := NewRegistry(BookAmenityDefinition(booker))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = reg.Execute(ctx, "book_amenity", map[string]any{"amenityType": "spa", "date": "today"}, march10)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBookAmenitySchema(t *testing.T) {
	def := BookAmenityDefinition(&AmenityBooker{})
	s := def.Parameters

	assert.Equal(t, "object", s.Type)
	assert.ElementsMatch(t, []string{"amenityType", "date"}, s.Required)
	assert.Equal(t, "integer", s.Properties["duration"].Type)
	assert.Equal(t, "string", s.Properties["preferredTime"].Type)
	assert.True(t, strings.HasPrefix(def.Description, "Reservar un amenity"))

	want := make([]string, 0, len(models.AmenityTypes))
	for _, a := range models.AmenityTypes {
		want = append(want, string(a))
	}
	assert.Equal(t, want, s.Properties["amenityType"].Enum)
}

func TestCatalogueCoversEveryAmenity(t *testing.T) {
	for _, a := range models.AmenityTypes {
		info, ok := Catalogue[a]
		require.True(t, ok, a)
		assert.NotEmpty(t, info.Name)
		assert.NotEmpty(t, info.Location)
		assert.Positive(t, info.MaxDuration)
		assert.Len(t, info.Rules, 3)
	}
	assert.Len(t, Catalogue, len(models.AmenityTypes))
}
