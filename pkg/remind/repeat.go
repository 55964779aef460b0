package remind

import (
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// RepeatToken is an index into the fixed repeat catalog. The numeric values are
// persisted and must never be reordered.
type RepeatToken int

const (
	Every1Minute RepeatToken = iota
	Every5Minutes
	Every10Minutes
	Every15Minutes
	Every30Minutes
	Every1Hour
	Every2Hours
	Every3Hours
	Every6Hours
	Every12Hours
	OnMonday
	OnTuesday
	OnWednesday
	OnThursday
	OnFriday
	OnSaturday
	OnSunday
	EveryDay
	EveryWeek
	EveryMonth
	EveryYear

	repeatTokenCount
)

// RuleSeparator terminates every token in the serialized form.
const RuleSeparator = ","

var intervalOf = [...]time.Duration{
	Every1Minute:   time.Minute,
	Every5Minutes:  5 * time.Minute,
	Every10Minutes: 10 * time.Minute,
	Every15Minutes: 15 * time.Minute,
	Every30Minutes: 30 * time.Minute,
	Every1Hour:     time.Hour,
	Every2Hours:    2 * time.Hour,
	Every3Hours:    3 * time.Hour,
	Every6Hours:    6 * time.Hour,
	Every12Hours:   12 * time.Hour,
}

var tokenNames = [...]string{
	"1m", "5m", "10m", "15m", "30m",
	"1h", "2h", "3h", "6h", "12h",
	"mon", "tue", "wed", "thu", "fri", "sat", "sun",
	"day", "week", "month", "year",
}

func (t RepeatToken) Valid() bool { return t >= 0 && t < repeatTokenCount }

func (t RepeatToken) String() string {
	if !t.Valid() {
		return "token(" + strconv.Itoa(int(t)) + ")"
	}
	return tokenNames[t]
}

// IsInterval reports whether t is a fixed minute/hour interval.
func (t RepeatToken) IsInterval() bool { return t >= Every1Minute && t <= Every12Hours }

// IsWeekday reports whether t is a weekday flag.
func (t RepeatToken) IsWeekday() bool { return t >= OnMonday && t <= OnSunday }

// IsCalendar reports whether t is a day/week/month/year unit.
func (t RepeatToken) IsCalendar() bool { return t >= EveryDay && t <= EveryYear }

// Interval returns the fixed duration of an interval token.
func (t RepeatToken) Interval() (time.Duration, bool) {
	if !t.IsInterval() {
		return 0, false
	}
	return intervalOf[t], true
}

// Weekday returns the weekday of a weekday flag.
func (t RepeatToken) Weekday() (time.Weekday, bool) {
	if !t.IsWeekday() {
		return 0, false
	}
	return time.Weekday((int(t-OnMonday) + 1) % 7), true
}

// WeekdayToken returns the flag for wd.
func WeekdayToken(wd time.Weekday) RepeatToken {
	return OnMonday + RepeatToken((int(wd)+6)%7)
}

// AllRepeatTokens lists the catalog in index order.
func AllRepeatTokens() []RepeatToken {
	out := make([]RepeatToken, repeatTokenCount)
	for i := range out {
		out[i] = RepeatToken(i)
	}
	return out
}

// Rule is a set of repeat tokens. The zero value is the empty rule.
type Rule uint32

// RuleOf builds a rule from tokens; invalid tokens are ignored.
func RuleOf(tokens ...RepeatToken) Rule {
	var r Rule
	for _, t := range tokens {
		r = r.With(t)
	}
	return r
}

func (r Rule) Has(t RepeatToken) bool { return t.Valid() && r&(1<<uint(t)) != 0 }

func (r Rule) With(t RepeatToken) Rule {
	if !t.Valid() {
		return r
	}
	return r | 1<<uint(t)
}

func (r Rule) Without(t RepeatToken) Rule {
	if !t.Valid() {
		return r
	}
	return r &^ (1 << uint(t))
}

func (r Rule) Toggle(t RepeatToken) Rule {
	if r.Has(t) {
		return r.Without(t)
	}
	return r.With(t)
}

func (r Rule) Empty() bool { return r == 0 }

func (r Rule) Len() int { return bits.OnesCount32(uint32(r)) }

// Tokens returns the tokens in ascending index order.
func (r Rule) Tokens() []RepeatToken {
	out := make([]RepeatToken, 0, r.Len())
	for t := RepeatToken(0); t < repeatTokenCount; t++ {
		if r.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Weekdays returns the flagged weekdays, Monday first.
func (r Rule) Weekdays() []time.Weekday {
	var out []time.Weekday
	for t := OnMonday; t <= OnSunday; t++ {
		if r.Has(t) {
			wd, _ := t.Weekday()
			out = append(out, wd)
		}
	}
	return out
}

// Interval returns the shortest interval present in r.
func (r Rule) Interval() (time.Duration, bool) {
	for t := Every1Minute; t <= Every12Hours; t++ {
		if r.Has(t) {
			return intervalOf[t], true
		}
	}
	return 0, false
}

func (r Rule) hasWeekdays() bool {
	for t := OnMonday; t <= OnSunday; t++ {
		if r.Has(t) {
			return true
		}
	}
	return false
}

// Encode serializes r as ascending indices, each followed by RuleSeparator.
// The empty rule encodes to "".
func (r Rule) Encode() string {
	var b strings.Builder
	for _, t := range r.Tokens() {
		b.WriteString(strconv.Itoa(int(t)))
		b.WriteString(RuleSeparator)
	}
	return b.String()
}

func (r Rule) String() string {
	ts := r.Tokens()
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.String()
	}
	return "[" + strings.Join(names, " ") + "]"
}

// EncodeRule is Rule.Encode as a function.
func EncodeRule(r Rule) string { return r.Encode() }

// DecodeRule parses a serialized rule. Order and duplicates do not matter; the
// trailing separator is optional. Empty pieces, non-numeric pieces and indices
// outside the catalog yield a CorruptedRule error.
func DecodeRule(s string) (Rule, error) {
	if s == "" {
		return 0, nil
	}
	body := strings.TrimSuffix(s, RuleSeparator)
	var r Rule
	for _, piece := range strings.Split(body, RuleSeparator) {
		if piece == "" {
			return 0, corrupted(s, "empty token")
		}
		for i := 0; i < len(piece); i++ {
			if piece[i] < '0' || piece[i] > '9' {
				return 0, corrupted(s, "non-numeric token "+strconv.Quote(piece))
			}
		}
		n, err := strconv.Atoi(piece)
		if err != nil || !RepeatToken(n).Valid() {
			return 0, corrupted(s, "token "+piece+" outside catalog")
		}
		r = r.With(RepeatToken(n))
	}
	return r, nil
}

// NextTrigger computes the trigger following current under rule.
//
// Interval tokens advance by the shortest interval present (absolute time, so
// DST shifts the wall clock). Calendar tokens then advance the date by one of
// each present unit; month and year steps keep the day of month where valid
// and otherwise clamp it to the last day of the resulting month, the one place
// clamping is intended. Weekday flags finally move the date to the earliest
// flagged weekday: strictly after current's date for a pure weekday rule, or on
// or after the advanced date for a mixed rule.
//
// The boolean is false for an empty rule, meaning the reminder does not repeat.
func NextTrigger(current Trigger, rule Rule, loc *time.Location) (Trigger, bool) {
	if rule.Empty() {
		return current, false
	}
	loc = orUTC(loc)
	next := current
	advanced := false

	if d, ok := rule.Interval(); ok {
		next = TriggerOf(current.In(loc).Add(d), loc)
		advanced = true
	}

	months := 0
	if rule.Has(EveryYear) {
		months += 12
	}
	if rule.Has(EveryMonth) {
		months++
	}
	if months > 0 {
		next.Date = next.Date.AddMonths(months)
		advanced = true
	}
	days := 0
	if rule.Has(EveryWeek) {
		days += 7
	}
	if rule.Has(EveryDay) {
		days++
	}
	if days > 0 {
		next.Date = next.Date.AddDays(days)
		advanced = true
	}

	if rule.hasWeekdays() {
		from := next.Date
		if !advanced {
			from = current.Date.AddDays(1)
		}
		next.Date = firstFlagged(from, rule)
	}
	return next, true
}

// firstFlagged returns the first date on or after from whose weekday is flagged.
func firstFlagged(from Date, rule Rule) Date {
	for i := 0; i < 7; i++ {
		d := from.AddDays(i)
		if rule.Has(WeekdayToken(d.Weekday())) {
			return d
		}
	}
	return from
}

// NextAfter applies NextTrigger until the trigger is strictly after now, so a
// reminder that was due while nothing was sweeping does not fire repeatedly.
// maxSteps bounds the catch-up; the last computed trigger is returned when the
// bound is hit.
func NextAfter(current Trigger, rule Rule, now time.Time, loc *time.Location, maxSteps int) (Trigger, bool) {
	next, ok := NextTrigger(current, rule, loc)
	if !ok {
		return current, false
	}
	for i := 1; i < maxSteps && !next.In(orUTC(loc)).After(now); i++ {
		next, _ = NextTrigger(next, rule, loc)
	}
	return next, true
}

// Postpone reschedules to now+d. Postponement is relative to the moment of
// postponing, never to the original trigger, so the current trigger is not a
// parameter: the result would not depend on it.
func Postpone(now time.Time, d time.Duration, loc *time.Location) Trigger {
	return TriggerOf(now.Add(d), loc)
}
