package mgnrega

import "time"

// humanLayout renders like "17 Oct 2026, 3:04 pm".
const humanLayout = "2 Jan 2006, 3:04 pm"

// displayZone is India Standard Time. Containers without tzdata fall back
// to a fixed +05:30 zone.
var displayZone = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*60*60+30*60)
}()

// Human formats t for display. The zero time renders as "".
func Human(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(displayZone).Format(humanLayout)
}
