package schedule

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/conductor/internal/errors"
)

// DefaultHorizon bounds the search for the next calendar occurrence.
const DefaultHorizon = 2 * 366 * 24 * time.Hour

type bound struct {
	name     string
	min, max int
}

var bounds = [5]bound{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 7},
}

// Calendar is a parsed 5-field calendar expression. Each field is kept as the
// set of values it matches, one bit per value.
type Calendar struct {
	expr   string
	minute uint64
	hour   uint64
	dom    uint64
	month  uint64
	dow    uint64
}

// ParseCalendar parses "minute hour day-of-month month day-of-week". Every
// field accepts comma separated items of the form *, */N, A, A-B, A-B/N and
// A/N. Day-of-week 7 is Sunday, same as 0.
func ParseCalendar(expr string) (*Calendar, error) {
	fields := strings.Fields(expr)
	if len(fields) != len(bounds) {
		return nil, errors.ErrInvalidSchedule(expr, fmt.Errorf("expected %d fields, got %d", len(bounds), len(fields)))
	}

	var sets [5]uint64
	for i, f := range fields {
		set, err := parseField(f, bounds[i])
		if err != nil {
			return nil, errors.ErrInvalidSchedule(expr, fmt.Errorf("%s: %w", bounds[i].name, err))
		}
		sets[i] = set
	}

	if sets[4]&(1<<7) != 0 {
		sets[4] = sets[4]&^(1<<7) | 1
	}

	return &Calendar{
		expr:   strings.Join(fields, " "),
		minute: sets[0],
		hour:   sets[1],
		dom:    sets[2],
		month:  sets[3],
		dow:    sets[4],
	}, nil
}

// MustParseCalendar is like ParseCalendar but panics on error.
func MustParseCalendar(expr string) *Calendar {
	c, err := ParseCalendar(expr)
	if err != nil {
		panic(err)
	}
	return c
}

func parseField(field string, b bound) (uint64, error) {
	var set uint64

	for item := range strings.SplitSeq(field, ",") {
		if item == "" {
			return 0, fmt.Errorf("empty item in %q", field)
		}

		span, stepText, hasStep := strings.Cut(item, "/")
		step := 1
		if hasStep {
			n, err := strconv.Atoi(stepText)
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("invalid step %q", stepText)
			}
			step = n
		}

		lo, hi := b.min, b.max
		if span != "*" {
			loText, hiText, isRange := strings.Cut(span, "-")

			var err error
			if lo, err = parseValue(loText, b); err != nil {
				return 0, err
			}
			switch {
			case isRange:
				if hi, err = parseValue(hiText, b); err != nil {
					return 0, err
				}
			case !hasStep:
				hi = lo
			}
			if lo > hi {
				return 0, fmt.Errorf("empty range %q", span)
			}
		}

		for v := lo; v <= hi; v += step {
			set |= 1 << uint(v)
		}
	}

	return set, nil
}

func parseValue(text string, b bound) (int, error) {
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", text)
	}
	if v < b.min || v > b.max {
		return 0, fmt.Errorf("value %d out of range [%d, %d]", v, b.min, b.max)
	}
	return v, nil
}

// String returns the normalised expression.
func (c *Calendar) String() string {
	return c.expr
}

// Next returns the next occurrence after t within DefaultHorizon, or the zero
// time if there is none. It satisfies cron.Schedule.
func (c *Calendar) Next(t time.Time) time.Time {
	next, err := c.NextWithin(t, DefaultHorizon)
	if err != nil {
		return time.Time{}
	}
	return next
}

// NextWithin returns the first instant from t rounded up to the next whole
// minute that matches every field. Searching stops once the candidate passes
// that starting minute plus horizon.
func (c *Calendar) NextWithin(t time.Time, horizon time.Duration) (time.Time, error) {
	loc := t.Location()
	cand := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc).Add(time.Minute)
	deadline := cand.Add(horizon)

	for !cand.After(deadline) {
		var next time.Time

		switch {
		case !has(c.month, int(cand.Month())):
			next = time.Date(cand.Year(), cand.Month()+1, 1, 0, 0, 0, 0, loc)
		case !has(c.dom, cand.Day()) || !has(c.dow, int(cand.Weekday())):
			next = time.Date(cand.Year(), cand.Month(), cand.Day()+1, 0, 0, 0, 0, loc)
		case !has(c.hour, cand.Hour()):
			next = time.Date(cand.Year(), cand.Month(), cand.Day(), cand.Hour()+1, 0, 0, 0, loc)
		case !has(c.minute, cand.Minute()):
			next = cand.Add(time.Minute)
		default:
			return cand, nil
		}

		// daylight saving transitions can fold a wall clock jump backwards
		if !next.After(cand) {
			next = cand.Add(time.Minute)
		}
		cand = next
	}

	return time.Time{}, errors.ErrScheduleUnresolvable(c.expr, horizon)
}

// Matches reports whether t falls on a minute the calendar selects.
func (c *Calendar) Matches(t time.Time) bool {
	return has(c.minute, t.Minute()) &&
		has(c.hour, t.Hour()) &&
		has(c.dom, t.Day()) &&
		has(c.month, int(t.Month())) &&
		has(c.dow, int(t.Weekday()))
}

// Values returns the matching values of each field, in field order.
func (c *Calendar) Values() [5][]int {
	return [5][]int{
		values(c.minute), values(c.hour), values(c.dom), values(c.month), values(c.dow),
	}
}

func has(set uint64, v int) bool {
	return set&(1<<uint(v)) != 0
}

func values(set uint64) []int {
	out := make([]int, 0, bits.OnesCount64(set))
	for set != 0 {
		v := bits.TrailingZeros64(set)
		out = append(out, v)
		set &^= 1 << uint(v)
	}
	return out
}
