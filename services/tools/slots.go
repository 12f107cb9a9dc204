package tools

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"meridian/models"
)

const (
	DefaultUnavailableRatio = 0.3
	DefaultPreferenceWindow = 120 // minutes either side of the preferred hour
)

// Availability decides whether a generated slot can be booked.
type Availability interface {
	Available(amenity models.AmenityType, date string, startMinute int) bool
}

// RandomAvailability marks a fixed share of slots as taken.
type RandomAvailability struct {
	mu          sync.Mutex
	rng         *rand.Rand
	unavailable float64
}

func NewRandomAvailability(unavailable float64, seed uint64) *RandomAvailability {
	return &RandomAvailability{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		unavailable: unavailable,
	}
}

func (r *RandomAvailability) Available(models.AmenityType, string, int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() >= r.unavailable
}

// AlwaysAvailable is handy for demos and tests.
type AlwaysAvailable struct{}

func (AlwaysAvailable) Available(models.AmenityType, string, int) bool { return true }

// SlotGenerator produces the suggested slots for an amenity on a date.
type SlotGenerator struct {
	Availability     Availability
	PreferenceWindow int
}

func NewSlotGenerator(a Availability) *SlotGenerator {
	if a == nil {
		a = NewRandomAvailability(DefaultUnavailableRatio, uint64(time.Now().UnixNano()))
	}
	return &SlotGenerator{Availability: a, PreferenceWindow: DefaultPreferenceWindow}
}

// Generate returns half-open slots sorted by start time with unique ids.
// Slots whose start hour is within PreferenceWindow minutes of the
// preferred hour (HH:mm, minutes ignored) are always available.
func (g *SlotGenerator) Generate(amenity models.AmenityType, date, preferred string) []models.TimeSlot {
	info, ok := Catalogue[amenity]
	if !ok || info.SlotMinutes <= 0 {
		return []models.TimeSlot{}
	}

	pref, hasPref := parseClock(preferred)
	slots := make([]models.TimeSlot, 0, (info.CloseMinute-info.OpenMinute)/info.SlotMinutes)
	for start := info.OpenMinute; start+info.SlotMinutes <= info.CloseMinute; start += info.SlotMinutes {
		slot := models.TimeSlot{
			ID:        fmt.Sprintf("slot-%s-%s", date, compactClock(start)),
			StartTime: formatClock(start),
			EndTime:   formatClock(start + info.SlotMinutes),
		}
		if hasPref && nearPreferred(start, pref, g.PreferenceWindow) {
			slot.Available = true
		} else {
			slot.Available = g.Availability.Available(amenity, date, start)
		}
		if info.Price != nil {
			p := *info.Price
			slot.Price = &p
		}
		slots = append(slots, slot)
	}
	return slots
}

func parseClock(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// formatClock renders minutes since midnight; 1440 is "24:00".
func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func compactClock(minutes int) string {
	return fmt.Sprintf("%02d%02d", minutes/60, minutes%60)
}

// nearPreferred compares whole hours, so 14:30 behaves like 14:00.
func nearPreferred(start, preferred, window int) bool {
	return abs(start/60-preferred/60)*60 <= window
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
