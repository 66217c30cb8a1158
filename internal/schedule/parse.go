package schedule

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xraph/conductor/internal/errors"
	"github.com/xraph/conductor/internal/metadata"
)

// Parse parses a calendar expression. Descriptors such as @hourly, @daily or
// @every 90s are handed to robfig/cron.
func Parse(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)

	if strings.HasPrefix(expr, "@") {
		s, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, errors.ErrInvalidSchedule(expr, err)
		}
		return s, nil
	}

	c, err := ParseCalendar(expr)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ParseSpec reads a schedule given as text: a Go duration ("250ms", "1m")
// selects an interval, anything else is a calendar expression.
func ParseSpec(text string) (metadata.ScheduleSpec, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return metadata.ScheduleSpec{}, errors.ErrInvalidSchedule(text, errors.New("empty schedule"))
	}

	if d, err := time.ParseDuration(text); err == nil {
		if d <= 0 {
			return metadata.ScheduleSpec{}, errors.ErrInvalidSchedule(text, errors.New("interval must be positive"))
		}
		return metadata.ScheduleSpec{Every: d}, nil
	}

	if _, err := Parse(text); err != nil {
		return metadata.ScheduleSpec{}, err
	}
	return metadata.ScheduleSpec{Cron: text}, nil
}
