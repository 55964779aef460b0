package remind

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Resolution is the outcome of Resolve. Either component may be absent.
type Resolution struct {
	Date    Date
	HasDate bool
	Time    TimeOfDay
	HasTime bool
}

// Trigger returns the resolved trigger, defaulting the time to midnight.
// It must only be called when HasDate is true.
func (r Resolution) Trigger() Trigger {
	t := Midnight
	if r.HasTime {
		t = r.Time
	}
	return Trigger{Date: r.Date, Time: t}
}

var (
	reDate    = regexp.MustCompile(`(?:^|\s)(\d{1,2})\.(\d{1,2})(?:\.(\d+))?(?:\s|$)`)
	reClock   = regexp.MustCompile(`(?:^|\s)(\d{1,2}):(\d{2})(?::(\d{2}))?(?:\s|$)`)
	reInteger = regexp.MustCompile(`^[+-]?\d+$`)
)

// maxOffset bounds relative numbers so duration math cannot overflow.
const maxOffset = 1_000_000

// maxTotalOffset bounds the sum of minute and hour phrases. Each phrase is at
// most maxOffset hours, so the sum is checked before it can overflow.
const maxTotalOffset = maxOffset * time.Hour

// components collects what each extraction pass found before they are
// combined into a Resolution.
type components struct {
	date      Date
	hasDate   bool
	dayMonth  [2]int // explicit DD.MM without a year; resolved after all passes
	inferYear bool

	clock    TimeOfDay
	hasClock bool

	offset    time.Duration
	hasOffset bool
	days      int
	hasDays   bool
	bareDays  bool // day offset given as a bare integer
}

// Resolve converts text into a date and/or time relative to now in loc.
//
// Explicit dates (DD.MM[.YYYY]), clock times (HH:MM[:SS]), relative offsets,
// date keywords and time-of-day keywords are extracted independently and then
// combined; anything left over that is not a single signed integer (a day
// offset) makes the whole input Unrecognized. Resolve never reads the wall
// clock.
func Resolve(text string, now time.Time, loc *time.Location, cat *Catalog) (Resolution, error) {
	loc = orUTC(loc)
	now = now.In(loc)
	today := DateOf(now)

	s := normalizeSpace(strings.ToLower(text))
	if s == "" {
		return Resolution{}, unrecognized(text, "empty expression")
	}

	var c components
	var err error
	if s, err = c.takeDates(text, s); err != nil {
		return Resolution{}, err
	}
	if s, err = c.takeClocks(text, s); err != nil {
		return Resolution{}, err
	}
	if cat != nil {
		if s, err = c.takeRelative(text, s, cat); err != nil {
			return Resolution{}, err
		}
		if s, err = c.takeDateKeywords(text, s, cat, today); err != nil {
			return Resolution{}, err
		}
		if s, err = c.takeClockKeywords(text, s, cat); err != nil {
			return Resolution{}, err
		}
	}
	if err = c.takeInteger(text, s); err != nil {
		return Resolution{}, err
	}
	return c.combine(text, now, today)
}

// take finds the first match of re in s and cuts it out.
func take(re *regexp.Regexp, s string) ([]string, string, bool) {
	idx := re.FindStringSubmatchIndex(s)
	if idx == nil {
		return nil, s, false
	}
	m := make([]string, len(idx)/2)
	for i := range m {
		if idx[2*i] >= 0 {
			m[i] = s[idx[2*i]:idx[2*i+1]]
		}
	}
	return m, strings.TrimSpace(s[:idx[0]] + " " + s[idx[1]:]), true
}

func (c *components) setDate(input string, d Date) error {
	if c.hasDate {
		return unrecognized(input, "more than one date")
	}
	c.date, c.hasDate = d, true
	return nil
}

func (c *components) setClock(input string, t TimeOfDay) error {
	if c.hasClock {
		return unrecognized(input, "more than one time")
	}
	c.clock, c.hasClock = t, true
	return nil
}

func (c *components) takeDates(input, s string) (string, error) {
	for {
		m, rest, ok := take(reDate, s)
		if !ok {
			return s, nil
		}
		s = rest
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if m[3] == "" {
			if day < 1 || day > 31 || month < 1 || month > 12 {
				return s, outOfRange(input, "day or month")
			}
			if c.hasDate {
				return s, unrecognized(input, "more than one date")
			}
			c.hasDate, c.inferYear = true, true
			c.dayMonth = [2]int{day, month}
			continue
		}
		if len(m[3]) != 4 {
			return s, unrecognized(input, "year must have four digits")
		}
		year, _ := strconv.Atoi(m[3])
		d, valid := NewDate(year, time.Month(month), day)
		if !valid {
			return s, outOfRange(input, "no such date")
		}
		if err := c.setDate(input, d); err != nil {
			return s, err
		}
	}
}

func (c *components) takeClocks(input, s string) (string, error) {
	for {
		m, rest, ok := take(reClock, s)
		if !ok {
			return s, nil
		}
		s = rest
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		sec := 0
		if m[3] != "" {
			sec, _ = strconv.Atoi(m[3])
		}
		t, valid := NewTimeOfDay(h, mi, sec)
		if !valid {
			return s, outOfRange(input, "no such time of day")
		}
		if err := c.setClock(input, t); err != nil {
			return s, err
		}
	}
}

func (c *components) takeRelative(input, s string, cat *Catalog) (string, error) {
	for _, unit := range []Token{TokMinutes, TokHours, TokDays} {
		re := cat.relative[unit]
		if re == nil {
			continue
		}
		for {
			m, rest, ok := take(re, s)
			if !ok {
				break
			}
			s = rest
			raw := m[1]
			if raw == "" {
				raw = m[2]
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n > maxOffset {
				return s, outOfRange(input, "offset too large")
			}
			switch unit {
			case TokMinutes:
				c.offset += time.Duration(n) * time.Minute
				c.hasOffset = true
			case TokHours:
				c.offset += time.Duration(n) * time.Hour
				c.hasOffset = true
			case TokDays:
				c.days += n
				c.hasDays = true
			}
			if c.offset > maxTotalOffset || c.days > maxOffset {
				return s, outOfRange(input, "offset too large")
			}
		}
	}
	return s, nil
}

func (c *components) takeDateKeywords(input, s string, cat *Catalog, today Date) (string, error) {
	if cat.dates == nil {
		return s, nil
	}
	for {
		m, rest, ok := take(cat.dates, s)
		if !ok {
			return s, nil
		}
		s = rest
		tok := cat.dateForms[normalizeSpace(m[1])]
		var d Date
		switch tok {
		case TokToday:
			d = today
		case TokTomorrow:
			d = today.AddDays(1)
		case TokAfterTomorrow:
			d = today.AddDays(2)
		default:
			d = nextWeekday(today, weekdayTokens[tok])
		}
		if err := c.setDate(input, d); err != nil {
			return s, err
		}
	}
}

func (c *components) takeClockKeywords(input, s string, cat *Catalog) (string, error) {
	if cat.clocks == nil {
		return s, nil
	}
	for {
		m, rest, ok := take(cat.clocks, s)
		if !ok {
			return s, nil
		}
		s = rest
		tok := cat.clockForms[normalizeSpace(m[1])]
		if err := c.setClock(input, clockOf[tok]); err != nil {
			return s, err
		}
	}
}

// takeInteger accepts a single signed integer as a day offset; any other
// leftover text is rejected.
func (c *components) takeInteger(input, s string) error {
	if s == "" {
		return nil
	}
	if !reInteger.MatchString(s) {
		return unrecognized(input, "unexpected "+strconv.Quote(s))
	}
	n, err := strconv.Atoi(s)
	if err != nil || n > maxOffset || n < -maxOffset {
		return outOfRange(input, "offset too large")
	}
	if c.hasDays {
		return unrecognized(input, "more than one day offset")
	}
	c.days, c.hasDays, c.bareDays = n, true, true
	return nil
}

func (c *components) combine(input string, now time.Time, today Date) (Resolution, error) {
	if c.hasOffset {
		if c.hasDate || c.hasClock || c.bareDays {
			return Resolution{}, unrecognized(input, "relative offset mixed with an absolute date or time")
		}
		at := now.AddDate(0, 0, c.days).Add(c.offset)
		return Resolution{Date: DateOf(at), HasDate: true, Time: TimeOfDayOf(at), HasTime: true}, nil
	}

	var res Resolution
	if c.hasDays {
		if c.hasDate {
			return Resolution{}, unrecognized(input, "day offset mixed with a date")
		}
		res.Date, res.HasDate = today.AddDays(c.days), true
		// "in N days" keeps the current clock; a bare integer names a date only.
		if !c.hasClock && !c.bareDays {
			res.Time, res.HasTime = TimeOfDayOf(now), true
		}
	}

	if c.hasDate {
		res.HasDate = true
		res.Date = c.date
		if c.inferYear {
			d, err := inferYear(input, c.dayMonth[0], time.Month(c.dayMonth[1]), today)
			if err != nil {
				return Resolution{}, err
			}
			res.Date = d
		}
	}

	if c.hasClock {
		res.Time, res.HasTime = c.clock, true
		if !res.HasDate {
			res.Date, res.HasDate = today, true
			if !(Trigger{Date: today, Time: c.clock}).In(now.Location()).After(now) {
				res.Date = today.AddDays(1)
			}
		}
	}
	return res, nil
}

// inferYear picks the current year, or the next one when DD.MM has already
// passed this year.
func inferYear(input string, day int, month time.Month, today Date) (Date, error) {
	y := today.Year
	if month < today.Month || (month == today.Month && day < today.Day) {
		y++
	}
	d, ok := NewDate(y, month, day)
	if !ok {
		return Date{}, outOfRange(input, "no such date")
	}
	return d, nil
}

// nextWeekday returns the first date strictly after from that falls on wd.
func nextWeekday(from Date, wd time.Weekday) Date {
	delta := (int(wd) - int(from.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return from.AddDays(delta)
}
