package models

// AmenityType is the closed set of bookable amenities.
type AmenityType string

const (
	AmenityPadel     AmenityType = "padel"
	AmenityTennis    AmenityType = "tennis"
	AmenityPool      AmenityType = "pool"
	AmenityGym       AmenityType = "gym"
	AmenitySpa       AmenityType = "spa"
	AmenityCoworking AmenityType = "coworking"
	AmenityCinema    AmenityType = "cinema"
	AmenityRooftop   AmenityType = "rooftop"
)

// AmenityTypes lists every amenity in catalogue order.
var AmenityTypes = []AmenityType{
	AmenityPadel,
	AmenityTennis,
	AmenityPool,
	AmenityGym,
	AmenitySpa,
	AmenityCoworking,
	AmenityCinema,
	AmenityRooftop,
}

// Valid reports whether a is part of the closed amenity set.
func (a AmenityType) Valid() bool {
	for _, t := range AmenityTypes {
		if t == a {
			return true
		}
	}
	return false
}

// TimeSlot is a half-open booking window [StartTime, EndTime).
type TimeSlot struct {
	ID        string   `json:"id"`
	StartTime string   `json:"startTime"` // HH:mm
	EndTime   string   `json:"endTime"`   // HH:mm, "24:00" closes the day
	Available bool     `json:"available"`
	Price     *float64 `json:"price,omitempty"`
}

// AmenityBookingData is the payload produced by the book_amenity tool.
// Date is always a resolved ISO date and SuggestedSlots are sorted by
// StartTime with unique ids.
type AmenityBookingData struct {
	AmenityType    AmenityType `json:"amenityType"`
	AmenityName    string      `json:"amenityName"`
	Date           string      `json:"date"`
	SuggestedSlots []TimeSlot  `json:"suggestedSlots"`
	Location       string      `json:"location"`
	MaxDuration    int         `json:"maxDuration"` // minutes
	Rules          []string    `json:"rules"`
}

// AvailableSlots returns the subset of suggested slots that can be booked.
func (d AmenityBookingData) AvailableSlots() []TimeSlot {
	var out []TimeSlot
	for _, s := range d.SuggestedSlots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

// Slot finds a suggested slot by id.
func (d AmenityBookingData) Slot(id string) (TimeSlot, bool) {
	for _, s := range d.SuggestedSlots {
		if s.ID == id {
			return s, true
		}
	}
	return TimeSlot{}, false
}
