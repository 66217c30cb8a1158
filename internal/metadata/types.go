package metadata

import (
	"time"
)

// Phase selects when a publisher emits relative to the call.
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
	PhaseBoth   Phase = "both"
)

// EmitsBefore reports whether the phase emits ahead of the call.
func (p Phase) EmitsBefore() bool {
	return p == PhaseBefore || p == PhaseBoth
}

// EmitsAfter reports whether the phase emits once the call settles.
// The zero Phase behaves like PhaseAfter.
func (p Phase) EmitsAfter() bool {
	return p == PhaseAfter || p == PhaseBoth || p == ""
}

// TelemetryOptions configures telemetry wrapping of a method.
type TelemetryOptions struct {
	Logging bool
}

// PublishOptions configures publish wrapping of a method.
type PublishOptions struct {
	Event   string
	Phase   Phase
	Logging bool
}

// ScheduleSpec configures periodic invocation of a method. Exactly one of
// Every and Cron is set.
type ScheduleSpec struct {
	Every time.Duration
	Cron  string
}

func (s ScheduleSpec) String() string {
	if s.Cron != "" {
		return s.Cron
	}
	return "every " + s.Every.String()
}
