package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/grid"
)

// DateRange is a closed interval of instants. A zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within r.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Unbounded reports whether r has no bound at all.
func (r DateRange) Unbounded() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// endOfDay is the last millisecond of the day starting at midnight.
func endOfDay(midnight time.Time) time.Time {
	return midnight.AddDate(0, 0, 1).Add(-time.Millisecond)
}

// ParseDateRange reads a history range:
//
//	""                       everything
//	today, yesterday         that day in loc, relative to now
//	{date}                   that day in loc
//	{date},{date}            first day at midnight to the end of the last
//	{dateTime}               one day starting at that instant
//	{dateTime},{dateTime}    between the two instants
//
// Dates and date-times use zinc syntax. Anything else fails with
// ErrUnsupportedRange.
func ParseDateRange(text string, loc *time.Location, now time.Time) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	text = strings.TrimSpace(text)
	switch text {
	case "":
		return DateRange{}, nil
	case "today", "yesterday":
		day := grid.DateOf(now.In(loc))
		if text == "yesterday" {
			day = day.AddDays(-1)
		}
		start := day.In(loc)
		return DateRange{Start: start, End: endOfDay(start)}, nil
	}

	parts := strings.Split(text, ",")
	if len(parts) > 2 {
		return DateRange{}, fmt.Errorf("%w: %q", ErrUnsupportedRange, text)
	}
	bounds := make([]grid.Value, len(parts))
	for i, part := range parts {
		v, err := rangeBound(part)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: %q: %v", ErrUnsupportedRange, text, err)
		}
		bounds[i] = v
	}

	switch first := bounds[0].(type) {
	case grid.Date:
		start := first.In(loc)
		if len(bounds) == 1 {
			return DateRange{Start: start, End: endOfDay(start)}, nil
		}
		last, ok := bounds[1].(grid.Date)
		if !ok {
			return DateRange{}, fmt.Errorf("%w: %q mixes a date and a %s", ErrUnsupportedRange, text, bounds[1].Kind())
		}
		return DateRange{Start: start, End: endOfDay(last.In(loc))}, nil
	case grid.DateTime:
		if len(bounds) == 1 {
			return DateRange{Start: first.Time, End: endOfDay(first.Time)}, nil
		}
		last, ok := bounds[1].(grid.DateTime)
		if !ok {
			return DateRange{}, fmt.Errorf("%w: %q mixes a dateTime and a %s", ErrUnsupportedRange, text, bounds[1].Kind())
		}
		return DateRange{Start: first.Time, End: last.Time}, nil
	}
	return DateRange{}, fmt.Errorf("%w: %q", ErrUnsupportedRange, text)
}

func rangeBound(text string) (grid.Value, error) {
	text = strings.TrimSpace(text)
	v, n, err := codec.ScanScalar(text)
	if err != nil {
		return nil, err
	}
	if n != len(text) {
		return nil, fmt.Errorf("unexpected %q", text[n:])
	}
	switch v.(type) {
	case grid.Date, grid.DateTime:
		return v, nil
	}
	return nil, fmt.Errorf("%s is not a date", v.Kind())
}
