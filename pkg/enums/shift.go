package enums

import "fmt"

// ShiftSlot is assigned by check-in order within one operational day.
type ShiftSlot string

const (
	ShiftMorning   ShiftSlot = "MORNING"
	ShiftAfternoon ShiftSlot = "AFTERNOON"
	ShiftNight     ShiftSlot = "NIGHT"
)

// ShiftSlots is ordered by arrival: the n-th check-in of the day gets ShiftSlots[n].
var ShiftSlots = []ShiftSlot{ShiftMorning, ShiftAfternoon, ShiftNight}

// IsValid reports whether the value matches a known slot.
func (s ShiftSlot) IsValid() bool {
	for _, candidate := range ShiftSlots {
		if candidate == s {
			return true
		}
	}
	return false
}

// SlotForCount returns the slot for a station that already has count shifts today.
func SlotForCount(count int64) (ShiftSlot, bool) {
	if count < 0 || count >= int64(len(ShiftSlots)) {
		return "", false
	}
	return ShiftSlots[count], true
}

// ShiftStatus tracks an operator shift.
type ShiftStatus string

const (
	ShiftStarted   ShiftStatus = "STARTED"
	ShiftCompleted ShiftStatus = "COMPLETED"
)

// IsValid reports whether the value matches a known shift status.
func (s ShiftStatus) IsValid() bool {
	return s == ShiftStarted || s == ShiftCompleted
}

// ParseShiftStatus converts raw input into ShiftStatus.
func ParseShiftStatus(value string) (ShiftStatus, error) {
	if status := ShiftStatus(value); status.IsValid() {
		return status, nil
	}
	return "", fmt.Errorf("invalid shift status %q", value)
}

// ReadingType distinguishes opening and closing totalizer readings.
type ReadingType string

const (
	ReadingOpen  ReadingType = "OPEN"
	ReadingClose ReadingType = "CLOSE"
)

// IsValid reports whether the value matches a known reading type.
func (r ReadingType) IsValid() bool {
	return r == ReadingOpen || r == ReadingClose
}

// ParseReadingType converts raw input into ReadingType.
func ParseReadingType(value string) (ReadingType, error) {
	switch ReadingType(value) {
	case ReadingOpen, ReadingClose:
		return ReadingType(value), nil
	}
	return "", fmt.Errorf("invalid reading type %q", value)
}
