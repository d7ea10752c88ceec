// Package schedule implements the daily wall-clock arithmetic and the
// slot-keyed timer registry that drive the session lifecycle. All deadline
// computation happens in a fixed-offset timezone so the results do not
// shift with DST.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time of day (hour and minute) in the target
// timezone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q: want HH:MM", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}

	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("time %q out of range", s)
	}

	return t, nil
}

// Valid reports whether the hour and minute are within range.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// MinuteOfDay returns the time as minutes since local midnight.
func (t TimeOfDay) MinuteOfDay() int {
	return t.Hour*60 + t.Minute
}

// String renders the time as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// FixedZone builds the fixed-offset location for the given UTC offset in
// minutes (e.g. -180 for UTC-03:00).
func FixedZone(offsetMinutes int) *time.Location {
	sign := "+"
	abs := offsetMinutes
	if abs < 0 {
		sign = "-"
		abs = -abs
	}
	name := fmt.Sprintf("UTC%s%02d:%02d", sign, abs/60, abs%60)

	return time.FixedZone(name, offsetMinutes*60)
}

// NextAt returns the next absolute instant at which the target wall-clock
// time occurs in the given zone. The target is projected onto now's
// calendar day in the zone; if that instant already passed it rolls to the
// next day. An instant exactly equal to now is returned as-is, so a
// deadline landing on the current millisecond is treated as already due
// rather than scheduled a day out.
func (t TimeOfDay) NextAt(now time.Time, zone *time.Location) time.Time {
	local := now.In(zone)
	target := time.Date(
		local.Year(), local.Month(), local.Day(),
		t.Hour, t.Minute, 0, 0, zone,
	)

	if target.Before(now) {
		target = target.AddDate(0, 0, 1)
	}

	return target
}

// UntilNext returns the duration from now until the target wall-clock time
// next occurs in the zone. The result is always within [0, 24h).
func (t TimeOfDay) UntilNext(now time.Time, zone *time.Location) time.Duration {
	return t.NextAt(now, zone).Sub(now)
}

// InWindow reports whether now falls inside the half-open local-time
// window [open, close) in the given zone. Windows where close precedes
// open are taken to cross midnight.
func InWindow(now time.Time, open, close TimeOfDay, zone *time.Location) bool {
	local := now.In(zone)
	cur := local.Hour()*60 + local.Minute()

	o, c := open.MinuteOfDay(), close.MinuteOfDay()
	switch {
	case o == c:
		// Degenerate empty window.
		return false

	case o < c:
		return cur >= o && cur < c

	default:
		return cur >= o || cur < c
	}
}
