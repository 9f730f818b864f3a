package tankstock

import (
	"fmt"
	"time"

	// Station timezones must resolve on hosts without zoneinfo.
	_ "time/tzdata"
)

// DateLayout is the text form of an operational date.
const DateLayout = "2006-01-02"

// Hours describes when a gas station's business day starts and ends.
// When Close is earlier than Open the station trades past midnight and the
// small hours belong to the previous operational date.
type Hours struct {
	Location *time.Location
	Open     time.Duration
	Close    time.Duration
}

// ParseHours validates a timezone and two HH:MM clock values.
func ParseHours(timezone, open, close string) (Hours, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Hours{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	openAt, err := parseClock(open)
	if err != nil {
		return Hours{}, err
	}
	closeAt, err := parseClock(close)
	if err != nil {
		return Hours{}, err
	}
	return Hours{Location: loc, Open: openAt, Close: closeAt}, nil
}

func parseClock(value string) (time.Duration, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q (expected HH:MM)", value)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Overnight reports whether trading continues past midnight.
func (h Hours) Overnight() bool {
	return h.Close < h.Open
}

func (h Hours) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// OperationalDate returns the business day an instant belongs to.
func (h Hours) OperationalDate(at time.Time) string {
	local := at.In(h.location())
	if h.Overnight() {
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
		if local.Sub(midnight) < h.Close {
			local = local.AddDate(0, 0, -1)
		}
	}
	return local.Format(DateLayout)
}

// DayStart returns the first instant of an operational date, in UTC.
func (h Hours) DayStart(date string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, date, h.location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", date)
	}
	if h.Overnight() {
		day = day.Add(h.Close)
	}
	return day.UTC(), nil
}

// Window returns [start, end) of an operational date, in UTC.
func (h Hours) Window(date string) (time.Time, time.Time, error) {
	start, err := h.DayStart(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	next, err := NextDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := h.DayStart(next)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// NextDate and PreviousDate step an operational date by one day.
func NextDate(date string) (string, error) {
	return shiftDate(date, 1)
}

func PreviousDate(date string) (string, error) {
	return shiftDate(date, -1)
}

func shiftDate(date string, days int) (string, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", date)
	}
	return day.AddDate(0, 0, days).Format(DateLayout), nil
}
