package remind

import (
	"fmt"
	"time"
)

// Date is a calendar date without a location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// Trigger is the concrete (date, time) at which a reminder is due.
type Trigger struct {
	Date Date
	Time TimeOfDay
}

// Midnight is the default time for date-only triggers.
var Midnight = TimeOfDay{}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// TimeOfDayOf returns the wall clock of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay{Hour: h, Minute: m, Second: s}
}

// TriggerOf splits t (converted to loc) into a Trigger.
func TriggerOf(t time.Time, loc *time.Location) Trigger {
	t = t.In(orUTC(loc))
	return Trigger{Date: DateOf(t), Time: TimeOfDayOf(t)}
}

// NewDate validates y/m/d and returns the Date. Dates like 31.02 are rejected,
// never normalized.
func NewDate(y int, m time.Month, d int) (Date, bool) {
	if m < time.January || m > time.December || d < 1 || d > daysIn(y, m) {
		return Date{}, false
	}
	return Date{Year: y, Month: m, Day: d}, true
}

// NewTimeOfDay validates h/m/s (0-23, 0-59, 0-59).
func NewTimeOfDay(h, m, s int) (TimeOfDay, bool) {
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: h, Minute: m, Second: s}, true
}

func (d Date) IsZero() bool { return d == Date{} }

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, orUTC(loc))
}

// AddDays shifts d by n days (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

// AddMonths shifts d by n months, clamping the day to the last valid day of the
// resulting month (31.01 + 1 month = 29.02 or 28.02).
func (d Date) AddMonths(n int) Date {
	total := int(d.Month) - 1 + n
	y := d.Year + floorDiv(total, 12)
	m := time.Month(floorMod(total, 12) + 1)
	day := d.Day
	if last := daysIn(y, m); day > last {
		day = last
	}
	return Date{Year: y, Month: m, Day: day}
}

func (d Date) Weekday() time.Weekday { return d.In(time.UTC).Weekday() }

func (d Date) Before(o Date) bool { return d.compare(o) < 0 }

func (d Date) After(o Date) bool { return d.compare(o) > 0 }

func (d Date) compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return d.Year - o.Year
	case d.Month != o.Month:
		return int(d.Month) - int(o.Month)
	default:
		return d.Day - o.Day
	}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// In returns the instant of tr in loc.
func (tr Trigger) In(loc *time.Location) time.Time {
	d, c := tr.Date, tr.Time
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, c.Second, 0, orUTC(loc))
}

func (tr Trigger) String() string { return tr.Date.String() + " " + tr.Time.String() }

// Schedule is the engine's view of a reminder: when it fires next, how it
// repeats, and whether the current trigger has already fired.
type Schedule struct {
	Trigger  Trigger
	Repeat   Rule
	Notified bool
}

// Apply merges the components present in res into the schedule's trigger.
// A missing component leaves the existing value unchanged, which covers the
// "keep date, set time" and "set date, keep time" edit flows. Re-arming clears
// Notified.
func (s Schedule) Apply(res Resolution) Schedule {
	if res.HasDate {
		s.Trigger.Date = res.Date
	}
	if res.HasTime {
		s.Trigger.Time = res.Time
	}
	if res.HasDate || res.HasTime {
		s.Notified = false
	}
	return s
}

// Repeating reports whether the schedule has any repeat token.
func (s Schedule) Repeating() bool { return !s.Repeat.Empty() }

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int { return a - floorDiv(a, b)*b }

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
