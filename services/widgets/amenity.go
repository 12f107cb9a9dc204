package widgets

import (
	"encoding/json"
	"fmt"

	"meridian/models"
)

// AmenityBookingSkeleton is shown while availability is being fetched.
type AmenityBookingSkeleton struct{}

func (AmenityBookingSkeleton) Render() View {
	return View{
		Kind:    KindAmenitySkel,
		State:   StateSkeleton,
		Message: "Buscando disponibilidad...",
	}
}

// AmenityBookingComponent renders the slot picker for a book_amenity result.
type AmenityBookingComponent struct{}

func (AmenityBookingComponent) Render(payload any) (View, error) {
	data, err := DecodeBookingData(payload)
	if err != nil {
		return View{}, err
	}
	var free string
	switch n := len(data.AvailableSlots()); n {
	case 0:
		free = "sin disponibilidad"
	case 1:
		free = "1 horario libre"
	default:
		free = fmt.Sprintf("%d horarios libres", n)
	}
	msg := fmt.Sprintf("%s · %s · %s", data.Location, data.Date, free)
	return View{
		Kind:    KindAmenityBooking,
		State:   StateResult,
		Title:   data.AmenityName,
		Message: msg,
		Data:    data,
		Actions: []string{ActionBookingConfirmed},
	}, nil
}

// DecodeBookingData accepts the typed payload or its JSON-decoded form
// (as found in a stored transcript).
func DecodeBookingData(payload any) (models.AmenityBookingData, error) {
	var data models.AmenityBookingData
	switch p := payload.(type) {
	case models.AmenityBookingData:
		data = p
	case *models.AmenityBookingData:
		if p == nil {
			return data, fmt.Errorf("amenity booking: empty payload")
		}
		data = *p
	default:
		raw, err := json.Marshal(payload)
		if err != nil {
			return data, fmt.Errorf("amenity booking: encode payload: %w", err)
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return data, fmt.Errorf("amenity booking: decode payload: %w", err)
		}
	}
	if !data.AmenityType.Valid() {
		return data, fmt.Errorf("amenity booking: unknown amenity %q", data.AmenityType)
	}
	return data, nil
}
