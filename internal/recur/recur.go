// Package recur implements the calendar offset rules used to advance a
// schedule's next billing date. The rule set is a closed list of named kinds;
// a rule name plus a parameter map is parsed into an Offset, and parsing is
// also how rule/parameter combinations are validated.
package recur

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidOffset is wrapped by every rule or parameter validation failure.
var ErrInvalidOffset = errors.New("invalid date offset")

// Offset kind names. The set is closed: anything else is rejected at parse
// time rather than dispatched dynamically.
const (
	BusinessDay        = "BusinessDay"
	MonthEnd           = "MonthEnd"
	MonthBegin         = "MonthBegin"
	BusinessMonthEnd   = "BusinessMonthEnd"
	BusinessMonthBegin = "BusinessMonthBegin"
	SemiMonthEnd       = "SemiMonthEnd"
	SemiMonthBegin     = "SemiMonthBegin"
	Week               = "Week"
	WeekOfMonth        = "WeekOfMonth"
	LastWeekOfMonth    = "LastWeekOfMonth"
	QuarterEnd         = "QuarterEnd"
	QuarterBegin       = "QuarterBegin"
	YearEnd            = "YearEnd"
	YearBegin          = "YearBegin"
	Easter             = "Easter"
)

// extraParams lists the kind-specific parameter names accepted beyond the
// common "n" and "normalize".
var extraParams = map[string][]string{
	BusinessDay:        {},
	MonthEnd:           {},
	MonthBegin:         {},
	BusinessMonthEnd:   {},
	BusinessMonthBegin: {},
	SemiMonthEnd:       {"day_of_month"},
	SemiMonthBegin:     {"day_of_month"},
	Week:               {"weekday"},
	WeekOfMonth:        {"week", "weekday"},
	LastWeekOfMonth:    {"weekday"},
	QuarterEnd:         {"startingMonth"},
	QuarterBegin:       {"startingMonth"},
	YearEnd:            {"month"},
	YearBegin:          {"month"},
	Easter:             {},
}

// Kinds returns the allow-listed offset kind names in sorted order.
func Kinds() []string {
	kinds := make([]string, 0, len(extraParams))
	for k := range extraParams {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// IsKind reports whether name is an allow-listed offset kind.
func IsKind(name string) bool {
	_, ok := extraParams[name]
	return ok
}

// Offset is a parsed, validated calendar offset rule.
type Offset struct {
	kind          string
	n             int
	weekday       int
	week          int
	dayOfMonth    int
	startingMonth int
	month         int
	normalize     bool
	hasWeekday    bool
}

// Parse validates a rule name and parameter map and returns the resulting
// Offset. Errors name the offending rule or parameter.
func Parse(kind string, params map[string]any) (*Offset, error) {
	allowed, ok := extraParams[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidOffset, kind)
	}

	o := &Offset{
		kind:          kind,
		n:             1,
		week:          0,
		dayOfMonth:    15,
		startingMonth: 3,
		month:         12,
	}
	if kind == YearBegin {
		o.month = 1
	}
	if kind == WeekOfMonth || kind == LastWeekOfMonth {
		o.hasWeekday = true
	}

	for name, value := range params {
		switch {
		case name == "n":
			n, ok := intValue(value)
			if !ok {
				return nil, fmt.Errorf("%w: parameter n for %q must be an integer, got %v", ErrInvalidOffset, kind, value)
			}
			if n < 1 {
				return nil, fmt.Errorf("%w: parameter n for %q must be positive, got %d", ErrInvalidOffset, kind, n)
			}
			o.n = n
		case name == "normalize":
			b, ok := value.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: parameter normalize for %q must be a boolean, got %v", ErrInvalidOffset, kind, value)
			}
			o.normalize = b
		case contains(allowed, name):
			v, ok := intValue(value)
			if !ok {
				return nil, fmt.Errorf("%w: parameter %s for %q must be an integer, got %v", ErrInvalidOffset, name, kind, value)
			}
			if err := o.setExtra(name, v); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: parameter %s is not supported by %q", ErrInvalidOffset, name, kind)
		}
	}
	return o, nil
}

func (o *Offset) setExtra(name string, v int) error {
	switch name {
	case "weekday":
		if v < 0 || v > 6 {
			return fmt.Errorf("%w: weekday must be between 0 (Monday) and 6 (Sunday), got %d", ErrInvalidOffset, v)
		}
		o.weekday = v
		o.hasWeekday = true
	case "week":
		if v < 0 || v > 3 {
			return fmt.Errorf("%w: week must be between 0 and 3, got %d", ErrInvalidOffset, v)
		}
		o.week = v
	case "day_of_month":
		// SemiMonthBegin already anchors on the 1st, so its extra anchor
		// starts at 2; SemiMonthEnd accepts 1.
		low := 1
		if o.kind == SemiMonthBegin {
			low = 2
		}
		if v < low || v > 27 {
			return fmt.Errorf("%w: day_of_month for %q must be between %d and 27, got %d", ErrInvalidOffset, o.kind, low, v)
		}
		o.dayOfMonth = v
	case "startingMonth":
		if v < 1 || v > 12 {
			return fmt.Errorf("%w: startingMonth must be between 1 and 12, got %d", ErrInvalidOffset, v)
		}
		o.startingMonth = v
	case "month":
		if v < 1 || v > 12 {
			return fmt.Errorf("%w: month must be between 1 and 12, got %d", ErrInvalidOffset, v)
		}
		o.month = v
	}
	return nil
}

// Validate checks a rule name and parameter map without keeping the offset.
func Validate(kind string, params map[string]any) error {
	_, err := Parse(kind, params)
	return err
}

// Advance applies the offset to anchor and returns the next timestamp. The
// result is always strictly after anchor. Time of day is preserved unless the
// offset was parsed with normalize, which truncates to midnight.
func (o *Offset) Advance(anchor time.Time) time.Time {
	result := anchor
	for i := 0; i < o.n; i++ {
		result = o.step(result)
	}
	if o.normalize {
		y, m, d := result.Date()
		result = time.Date(y, m, d, 0, 0, 0, 0, result.Location())
	}
	return result
}

// step advances by a single offset unit: the next anchor point strictly after
// t for anchored kinds, or a fixed jump for the unanchored ones.
func (o *Offset) step(t time.Time) time.Time {
	switch o.kind {
	case BusinessDay:
		d := t.AddDate(0, 0, 1)
		for isWeekend(d) {
			d = d.AddDate(0, 0, 1)
		}
		return d
	case Week:
		if !o.hasWeekday {
			return t.AddDate(0, 0, 7)
		}
		delta := (o.weekday - pyWeekday(t) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return t.AddDate(0, 0, delta)
	case Easter:
		y := t.Year()
		em, ed := easter(y)
		if afterDate(em, ed, t) {
			return withDate(t, y, em, ed)
		}
		em, ed = easter(y + 1)
		return withDate(t, y+1, em, ed)
	default:
		return o.nextAnchor(t)
	}
}

// nextAnchor scans forward month by month for the first anchor day strictly
// after t's calendar date.
func (o *Offset) nextAnchor(t time.Time) time.Time {
	y, m, d := t.Date()
	for i := 0; i < 14; i++ {
		for _, day := range o.anchorDays(y, m) {
			if i > 0 || day > d {
				return withDate(t, y, m, day)
			}
		}
		m++
		if m > time.December {
			m = time.January
			y++
		}
	}
	// Every kind anchors at least once a year.
	panic(fmt.Sprintf("recur: no anchor found for %s within 14 months", o.kind))
}

// anchorDays returns the anchor days of the given month in ascending order,
// or nothing if the month carries no anchor for this kind.
func (o *Offset) anchorDays(y int, m time.Month) []int {
	switch o.kind {
	case MonthEnd:
		return []int{lastDay(y, m)}
	case MonthBegin:
		return []int{1}
	case BusinessMonthEnd:
		return []int{lastBusinessDay(y, m)}
	case BusinessMonthBegin:
		return []int{firstBusinessDay(y, m)}
	case SemiMonthEnd:
		return []int{o.dayOfMonth, lastDay(y, m)}
	case SemiMonthBegin:
		return []int{1, o.dayOfMonth}
	case WeekOfMonth:
		return []int{nthWeekday(y, m, o.week, o.weekday)}
	case LastWeekOfMonth:
		return []int{lastWeekday(y, m, o.weekday)}
	case QuarterEnd:
		if int(m)%3 == o.startingMonth%3 {
			return []int{lastDay(y, m)}
		}
	case QuarterBegin:
		if int(m)%3 == o.startingMonth%3 {
			return []int{1}
		}
	case YearEnd:
		if int(m) == o.month {
			return []int{lastDay(y, m)}
		}
	case YearBegin:
		if int(m) == o.month {
			return []int{1}
		}
	}
	return nil
}

// pyWeekday maps time.Weekday onto the 0=Monday convention the rule
// parameters use.
func pyWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func lastDay(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func firstBusinessDay(y int, m time.Month) int {
	d := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	for isWeekend(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d.Day()
}

func lastBusinessDay(y int, m time.Month) int {
	d := time.Date(y, m, lastDay(y, m), 0, 0, 0, 0, time.UTC)
	for isWeekend(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d.Day()
}

// nthWeekday returns the day of the (week+1)th occurrence of weekday
// (0=Monday) in the month.
func nthWeekday(y int, m time.Month, week, weekday int) int {
	first := pyWeekday(time.Date(y, m, 1, 0, 0, 0, 0, time.UTC))
	return 1 + (weekday-first+7)%7 + 7*week
}

// lastWeekday returns the day of the final occurrence of weekday in the month.
func lastWeekday(y int, m time.Month, weekday int) int {
	ld := lastDay(y, m)
	last := pyWeekday(time.Date(y, m, ld, 0, 0, 0, 0, time.UTC))
	return ld - (last-weekday+7)%7
}

// easter computes Western Easter Sunday for a year using the anonymous
// Gregorian algorithm.
func easter(year int) (time.Month, int) {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Month(month), day
}

// afterDate reports whether month/day in t's year falls strictly after t's
// calendar date.
func afterDate(m time.Month, d int, t time.Time) bool {
	_, tm, td := t.Date()
	if m != tm {
		return m > tm
	}
	return d > td
}

// withDate keeps t's clock time and location but replaces the calendar date.
func withDate(t time.Time, y int, m time.Month, d int) time.Time {
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
