package models

import "time"

// BookingConfirmation is returned to the host after a widget confirms a
// slot. It is not persisted anywhere.
type BookingConfirmation struct {
	BookingID        string      `json:"bookingId"`
	AmenityType      AmenityType `json:"amenityType"`
	AmenityName      string      `json:"amenityName"`
	Date             string      `json:"date"`
	TimeSlot         TimeSlot    `json:"timeSlot"`
	ConfirmationCode string      `json:"confirmationCode"` // MRD-XXXXXX
	CreatedAt        time.Time   `json:"createdAt"`
}
