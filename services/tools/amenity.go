package tools

import (
	"context"
	"time"

	"meridian/models"
	"meridian/services/temporal"
	"meridian/services/widgets"
)

// AmenityInfo is the static catalogue entry for one amenity.
type AmenityInfo struct {
	Name        string
	Location    string
	MaxDuration int // minutes
	SlotMinutes int
	OpenMinute  int
	CloseMinute int
	Price       *float64
	Rules       []string
	Keywords    []string
}

func price(v float64) *float64 { return &v }

var Catalogue = map[models.AmenityType]AmenityInfo{
	models.AmenityPadel: {
		Name: "Pista de Pádel", Location: "Nivel -1, Zona Deportiva", MaxDuration: 90,
		SlotMinutes: 60, OpenMinute: 8 * 60, CloseMinute: 22 * 60,
		Rules:    []string{"Máximo 4 jugadores por reserva", "Calzado deportivo obligatorio", "Cancelación gratuita hasta 2h antes"},
		Keywords: []string{"pádel", "padel", "paddle"},
	},
	models.AmenityTennis: {
		Name: "Pista de Tenis", Location: "Nivel -1, Zona Deportiva", MaxDuration: 120,
		SlotMinutes: 60, OpenMinute: 8 * 60, CloseMinute: 22 * 60,
		Rules:    []string{"Máximo 4 jugadores", "Raquetas disponibles en recepción", "Cancelación gratuita hasta 2h antes"},
		Keywords: []string{"tenis", "tennis"},
	},
	models.AmenityPool: {
		Name: "Piscina Climatizada", Location: "Nivel 2, Área Wellness", MaxDuration: 120,
		SlotMinutes: 60, OpenMinute: 8 * 60, CloseMinute: 22 * 60,
		Rules:    []string{"Aforo máximo: 20 personas", "Gorro de baño obligatorio", "Duchas antes de entrar"},
		Keywords: []string{"piscina", "pool", "nadar", "swim"},
	},
	models.AmenityGym: {
		Name: "Gimnasio", Location: "Nivel 2, Área Wellness", MaxDuration: 120,
		SlotMinutes: 60, OpenMinute: 8 * 60, CloseMinute: 22 * 60,
		Rules:    []string{"Toalla obligatoria", "Limpiar equipos después de usar", "Entrenadores disponibles bajo cita"},
		Keywords: []string{"gimnasio", "gym", "entrenar"},
	},
	models.AmenitySpa: {
		Name: "Spa & Wellness", Location: "Nivel 2, Área Wellness", MaxDuration: 90,
		SlotMinutes: 60, OpenMinute: 8 * 60, CloseMinute: 22 * 60, Price: price(25),
		Rules:    []string{"Reserva requerida", "Llegar 10 min antes", "Servicios adicionales disponibles"},
		Keywords: []string{"spa", "masaje", "massage", "wellness"},
	},
	models.AmenityCoworking: {
		Name: "Sala de Coworking", Location: "Nivel 1, Business Center", MaxDuration: 480,
		SlotMinutes: 60, OpenMinute: 8 * 60, CloseMinute: 22 * 60,
		Rules:    []string{"WiFi premium incluido", "Café y snacks disponibles", "Salas de reuniones bajo reserva"},
		Keywords: []string{"coworking", "oficina", "trabajar", "office"},
	},
	models.AmenityCinema: {
		Name: "Cine Privado", Location: "Nivel -1, Área de Entretenimiento", MaxDuration: 180,
		SlotMinutes: 60, OpenMinute: 8 * 60, CloseMinute: 22 * 60,
		Rules:    []string{"Capacidad: 12 personas", "Catálogo de películas en tablet", "Servicio de catering disponible"},
		Keywords: []string{"cine", "cinema", "película", "movie"},
	},
	models.AmenityRooftop: {
		Name: "Rooftop Lounge", Location: "Nivel 15, Terraza", MaxDuration: 180,
		SlotMinutes: 60, OpenMinute: 18 * 60, CloseMinute: 24 * 60,
		Rules:    []string{"Solo adultos después de las 21h", "Bar service disponible", "Reserva obligatoria para grupos > 6"},
		Keywords: []string{"rooftop", "terraza", "azotea", "lounge"},
	},
}

// BookAmenityInput is the argument shape of book_amenity.
type BookAmenityInput struct {
	AmenityType   models.AmenityType `json:"amenityType" validate:"required,oneof=padel tennis pool gym spa coworking cinema rooftop" enum:"padel,tennis,pool,gym,spa,coworking,cinema,rooftop" description:"El tipo de amenity a reservar: padel, tennis, pool, gym, spa, coworking, cinema, rooftop"`
	Date          string             `json:"date" validate:"required" description:"La fecha para la reserva. Puede ser 'today', 'tomorrow', 'next_week' o una fecha ISO (YYYY-MM-DD)"`
	PreferredTime string             `json:"preferredTime,omitempty" validate:"omitempty,datetime=15:04" description:"Hora preferida en formato HH:mm (opcional)"`
	Duration      int                `json:"duration,omitempty" validate:"omitempty,gt=0" description:"Duración deseada en minutos (opcional)"`
}

const bookAmenityDescription = "Reservar un amenity del complejo residencial. Usa esta herramienta cuando el usuario quiera reservar o consultar disponibilidad de: pista de pádel, pista de tenis, piscina, gimnasio, spa, sala de coworking, cine privado o rooftop lounge."

// AmenityBooker looks up availability for an amenity. It never books
// anything; the confirmation happens in the widget.
type AmenityBooker struct {
	Slots     *SlotGenerator
	Latency   time.Duration
	DaysAhead int
}

func (b *AmenityBooker) Book(ctx context.Context, in BookAmenityInput, tc models.TemporalContext) (models.AmenityBookingData, error) {
	date := temporal.ResolveRelativeDate(in.Date, tc)
	daysAhead := b.DaysAhead
	if daysAhead <= 0 {
		daysAhead = temporal.DefaultDaysAhead
	}

	days, err := temporal.DaysFromToday(date, tc)
	switch {
	case err != nil:
		return models.AmenityBookingData{}, invalidField(BookAmenity, "date", "must be today, tomorrow, next_week or a YYYY-MM-DD date")
	case days < 0:
		return models.AmenityBookingData{}, invalidField(BookAmenity, "date", "is in the past")
	case days >= daysAhead:
		return models.AmenityBookingData{}, invalidField(BookAmenity, "date", "is beyond the bookable window")
	}

	info := Catalogue[in.AmenityType]
	if in.Duration > info.MaxDuration {
		return models.AmenityBookingData{}, invalidField(BookAmenity, "duration", "exceeds the maximum duration for this amenity")
	}

	if b.Latency > 0 {
		timer := time.NewTimer(b.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.AmenityBookingData{}, ctx.Err()
		case <-timer.C:
		}
	}

	slots := b.Slots
	if slots == nil {
		slots = NewSlotGenerator(nil)
	}

	rules := make([]string, len(info.Rules))
	copy(rules, info.Rules)
	return models.AmenityBookingData{
		AmenityType:    in.AmenityType,
		AmenityName:    info.Name,
		Date:           date,
		SuggestedSlots: slots.Generate(in.AmenityType, date, in.PreferredTime),
		Location:       info.Location,
		MaxDuration:    info.MaxDuration,
		Rules:          rules,
	}, nil
}

// BookAmenityDefinition wires the booker into a registry definition.
func BookAmenityDefinition(b *AmenityBooker) Definition {
	exec := TypedExecutor[BookAmenityInput, models.AmenityBookingData]{
		Tool: BookAmenity,
		Fn:   b.Book,
	}
	return Definition{
		Name:        BookAmenity,
		DisplayName: "Reserva de Amenity",
		Category:    "amenities",
		Description: bookAmenityDescription,
		Keywords:    []string{"reservar", "reserva", "book", "disponibilidad", "availability", "quiero", "jugar"},
		Parameters:  exec.Schema(),
		Executor:    exec,
		Component:   widgets.AmenityBookingComponent{},
		Skeleton:    widgets.AmenityBookingSkeleton{},
	}
}
