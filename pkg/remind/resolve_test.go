package remind

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultCatalog = MustCompileCatalog(DefaultSynonyms())

func at(y int, m time.Month, d, h, mi, s int) time.Time {
	return time.Date(y, m, d, h, mi, s, 0, time.UTC)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		now      time.Time
		date     Date
		time     TimeOfDay
		withTime bool
	}{
		{
			name:  "absolute date and time",
			input: "02.03.2000 01:02:03",
			now:   at(2000, 1, 1, 0, 0, 0),
			date:  Date{2000, time.March, 2}, time: TimeOfDay{1, 2, 3}, withTime: true,
		},
		{
			name:  "time before date",
			input: "01:02 02.03.2000",
			now:   at(2000, 1, 1, 0, 0, 0),
			date:  Date{2000, time.March, 2}, time: TimeOfDay{1, 2, 0}, withTime: true,
		},
		{
			name:  "hours offset",
			input: "in 3 hours",
			now:   at(2000, 1, 1, 1, 2, 3),
			date:  Date{2000, time.January, 1}, time: TimeOfDay{4, 2, 3}, withTime: true,
		},
		{
			name:  "minutes offset crossing midnight",
			input: "in 90 min",
			now:   at(2000, 1, 1, 23, 0, 0),
			date:  Date{2000, time.January, 2}, time: TimeOfDay{0, 30, 0}, withTime: true,
		},
		{
			name:  "postfix offset",
			input: "2 hours after",
			now:   at(2000, 1, 1, 10, 0, 0),
			date:  Date{2000, time.January, 1}, time: TimeOfDay{12, 0, 0}, withTime: true,
		},
		{
			name:  "summed offsets",
			input: "in 1 hour in 30 minutes",
			now:   at(2000, 1, 1, 10, 0, 0),
			date:  Date{2000, time.January, 1}, time: TimeOfDay{11, 30, 0}, withTime: true,
		},
		{
			name:  "days offset keeps clock",
			input: "через 2 дня",
			now:   at(2000, 1, 1, 10, 15, 0),
			date:  Date{2000, time.January, 3}, time: TimeOfDay{10, 15, 0}, withTime: true,
		},
		{
			name:  "days offset with time",
			input: "in 2 days 09:00",
			now:   at(2000, 1, 1, 10, 15, 0),
			date:  Date{2000, time.January, 3}, time: TimeOfDay{9, 0, 0}, withTime: true,
		},
		{
			name:  "bare integer",
			input: "50",
			now:   at(2000, 1, 1, 0, 0, 0),
			date:  Date{2000, time.February, 20},
		},
		{
			name:  "negative bare integer",
			input: "-1",
			now:   at(2000, 1, 1, 0, 0, 0),
			date:  Date{1999, time.December, 31},
		},
		{
			name:  "bare integer with time",
			input: "1 08:00",
			now:   at(2000, 1, 1, 12, 0, 0),
			date:  Date{2000, time.January, 2}, time: TimeOfDay{8, 0, 0}, withTime: true,
		},
		{
			name:  "tomorrow with time",
			input: "tomorrow 10:30",
			now:   at(2000, 1, 1, 12, 0, 0),
			date:  Date{2000, time.January, 2}, time: TimeOfDay{10, 30, 0}, withTime: true,
		},
		{
			name:  "keywords are case insensitive",
			input: "TOMORROW  Morning",
			now:   at(2000, 1, 1, 12, 0, 0),
			date:  Date{2000, time.January, 2}, time: TimeOfDay{7, 0, 0}, withTime: true,
		},
		{
			name:  "after tomorrow phrase",
			input: "day after tomorrow",
			now:   at(2000, 1, 1, 12, 0, 0),
			date:  Date{2000, time.January, 3},
		},
		{
			name:  "today date only",
			input: "сегодня",
			now:   at(2000, 1, 1, 12, 0, 0),
			date:  Date{2000, time.January, 1},
		},
		{
			name:  "weekday and time of day",
			input: "friday evening",
			now:   at(2000, 1, 1, 12, 0, 0), // Saturday
			date:  Date{2000, time.January, 7}, time: TimeOfDay{20, 0, 0}, withTime: true,
		},
		{
			name:  "same weekday means next week",
			input: "saturday",
			now:   at(2000, 1, 1, 0, 0, 0),
			date:  Date{2000, time.January, 8},
		},
		{
			name:  "time later today",
			input: "13:00",
			now:   at(2000, 1, 1, 12, 0, 0),
			date:  Date{2000, time.January, 1}, time: TimeOfDay{13, 0, 0}, withTime: true,
		},
		{
			name:  "time already passed rolls over",
			input: "10:30",
			now:   at(2000, 1, 1, 12, 0, 0),
			date:  Date{2000, time.January, 2}, time: TimeOfDay{10, 30, 0}, withTime: true,
		},
		{
			name:  "time equal to now rolls over",
			input: "12:00",
			now:   at(2000, 1, 1, 12, 0, 0),
			date:  Date{2000, time.January, 2}, time: TimeOfDay{12, 0, 0}, withTime: true,
		},
		{
			name:  "time of day keyword rolls over",
			input: "night",
			now:   at(2000, 1, 1, 12, 0, 0),
			date:  Date{2000, time.January, 2}, time: TimeOfDay{3, 0, 0}, withTime: true,
		},
		{
			name:  "year inferred as next",
			input: "05.01",
			now:   at(2000, 3, 1, 0, 0, 0),
			date:  Date{2001, time.January, 5},
		},
		{
			name:  "year inferred as current on same day",
			input: "01.03",
			now:   at(2000, 3, 1, 18, 0, 0),
			date:  Date{2000, time.March, 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(tt.input, tt.now, time.UTC, defaultCatalog)
			require.NoError(t, err)
			require.True(t, res.HasDate)
			assert.Equal(t, tt.date, res.Date)
			assert.Equal(t, tt.withTime, res.HasTime)
			if tt.withTime {
				assert.Equal(t, tt.time, res.Time)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	now := at(2000, 1, 1, 12, 0, 0)
	tests := []struct {
		input string
		kind  ErrorKind
	}{
		{"", Unrecognized},
		{"   ", Unrecognized},
		{"buy milk", Unrecognized},
		{"32.3033", Unrecognized},
		{"02.03.00", Unrecognized},
		{"tomorrow today", Unrecognized},
		{"10:00 11:00", Unrecognized},
		{"in 3 hours 10:00", Unrecognized},
		{"in 3 hours tomorrow", Unrecognized},
		{"in 2 days 05.01.2000", Unrecognized},
		{"in 3 hours 5", Unrecognized},
		{"1 2", Unrecognized},
		{"31.02.2000", OutOfRange},
		{"32.01", OutOfRange},
		{"01.13", OutOfRange},
		{"25:00", OutOfRange},
		{"10:61", OutOfRange},
		{"10:00:60", OutOfRange},
		{"99999999", OutOfRange},
		{"in 1000000 hours in 1000000 hours in 1000000 hours", OutOfRange},
		{"in 1000000 minutes in 1000000 hours", OutOfRange},
		{"in 1000000 days in 1 days", OutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Resolve(tt.input, now, time.UTC, defaultCatalog)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err), err.Error())
		})
	}
}

func TestResolveInferredLeapDay(t *testing.T) {
	_, err := Resolve("29.02", at(2001, 3, 1, 0, 0, 0), time.UTC, defaultCatalog)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestResolveWithoutCatalog(t *testing.T) {
	now := at(2000, 1, 1, 12, 0, 0)

	res, err := Resolve("14:00", now, time.UTC, nil)
	require.NoError(t, err)
	assert.Equal(t, Trigger{Date{2000, time.January, 1}, TimeOfDay{14, 0, 0}}, res.Trigger())

	_, err = Resolve("tomorrow", now, time.UTC, nil)
	require.ErrorIs(t, err, ErrUnrecognized)
}

func TestResolveUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 22:30 UTC is already the next day in loc.
	res, err := Resolve("tomorrow", at(2000, 1, 1, 22, 30, 0), loc, defaultCatalog)
	require.NoError(t, err)
	assert.Equal(t, Date{2000, time.January, 3}, res.Date)
}

func TestResolveDeterministic(t *testing.T) {
	now := at(2000, 6, 15, 9, 41, 7)
	inputs := []string{"in 3 hours", "friday 10:00", "50", "05.01", "завтра вечером", "nonsense", "25:00"}
	for _, in := range inputs {
		r1, err1 := Resolve(in, now, time.UTC, defaultCatalog)
		r2, err2 := Resolve(in, now, time.UTC, defaultCatalog)
		assert.Equal(t, r1, r2, in)
		assert.Equal(t, err1, err2, in)
	}
}

func TestResolveBareTimeIsAlwaysInFuture(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	nows := []time.Time{
		time.Date(2000, 1, 1, 0, 0, 0, 0, loc),
		time.Date(2000, 2, 28, 23, 59, 59, 0, loc),
		time.Date(2000, 12, 31, 12, 30, 30, 0, loc),
		time.Date(2024, 7, 4, 7, 0, 0, 500, loc),
	}
	for _, now := range nows {
		for h := 0; h < 24; h++ {
			for _, m := range []int{0, 1, 30, 59} {
				in := fmt.Sprintf("%02d:%02d", h, m)
				res, err := Resolve(in, now, loc, defaultCatalog)
				require.NoError(t, err, in)
				got := res.Trigger().In(loc)
				require.Truef(t, got.After(now), "%s at %s resolved to %s", in, now, got)
				require.Less(t, got.Sub(now), 24*time.Hour+time.Second)
			}
		}
	}
}

func TestScheduleApply(t *testing.T) {
	s := Schedule{
		Trigger:  Trigger{Date{2000, time.January, 5}, TimeOfDay{9, 0, 0}},
		Repeat:   RuleOf(EveryDay),
		Notified: true,
	}

	timeOnly := s.Apply(Resolution{Time: TimeOfDay{18, 30, 0}, HasTime: true})
	assert.Equal(t, Trigger{Date{2000, time.January, 5}, TimeOfDay{18, 30, 0}}, timeOnly.Trigger)
	assert.False(t, timeOnly.Notified)
	assert.True(t, timeOnly.Repeating())

	dateOnly := s.Apply(Resolution{Date: Date{2000, time.February, 1}, HasDate: true})
	assert.Equal(t, Trigger{Date{2000, time.February, 1}, TimeOfDay{9, 0, 0}}, dateOnly.Trigger)

	assert.Equal(t, s, s.Apply(Resolution{}))
}
