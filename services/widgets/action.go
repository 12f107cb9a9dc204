package widgets

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"meridian/models"

	"github.com/google/uuid"
)

const (
	ActionBookingConfirmed = "BOOKING_CONFIRMED"
	ActionRetry            = "RETRY"
)

// Action is an event a widget sends to its host.
type Action struct {
	ToolCallID string `json:"toolCallId"`
	Type       string `json:"type"`
	Payload    any    `json:"payload"`
}

// ActionHandler receives widget actions. Instances never write to the
// transcript themselves.
type ActionHandler func(Action) error

type BookingConfirmedPayload struct {
	AmenityType models.AmenityType `json:"amenityType"`
	Date        string             `json:"date"`
	Slot        models.TimeSlot    `json:"slot"`
}

// SlotSelection is what the client posts along with BOOKING_CONFIRMED.
type SlotSelection struct {
	SlotID string `json:"slotId"`
}

func ParseSlotSelection(raw json.RawMessage) (SlotSelection, error) {
	var sel SlotSelection
	if len(raw) == 0 {
		return sel, fmt.Errorf("slotId is required")
	}
	if err := json.Unmarshal(raw, &sel); err != nil {
		return sel, fmt.Errorf("invalid payload: %w", err)
	}
	if sel.SlotID == "" {
		return sel, fmt.Errorf("slotId is required")
	}
	return sel, nil
}

// ConfirmBooking turns a BOOKING_CONFIRMED action into a confirmation.
// Nothing is persisted.
func ConfirmBooking(action Action, amenityName string, now time.Time) (models.BookingConfirmation, error) {
	if action.Type != ActionBookingConfirmed {
		return models.BookingConfirmation{}, fmt.Errorf("unsupported action %q", action.Type)
	}
	p, ok := action.Payload.(BookingConfirmedPayload)
	if !ok {
		return models.BookingConfirmation{}, fmt.Errorf("unexpected payload %T", action.Payload)
	}

	id := uuid.New()
	code := strings.ToUpper(id.String()[:6])
	return models.BookingConfirmation{
		BookingID:        id.String(),
		AmenityType:      p.AmenityType,
		AmenityName:      amenityName,
		Date:             p.Date,
		TimeSlot:         p.Slot,
		ConfirmationCode: "MRD-" + code,
		CreatedAt:        now.UTC(),
	}, nil
}
