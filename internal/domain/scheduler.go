package domain

import (
	"strings"
	"time"
)

// ManualRun tracks the one-off scrape run. Confirmed is false while the
// value is a local guess made after a mutating call and not yet observed by
// a status poll.
type ManualRun struct {
	Running       bool
	Confirmed     bool
	StopRequested bool
}

// AutoSchedule tracks the recurring hourly run. NextRun is the raw value the
// remote reported.
type AutoSchedule struct {
	Enabled   bool
	Confirmed bool
	NextRun   string
}

type SchedulerState struct {
	Manual     ManualRun
	Auto       AutoSchedule
	Notice     Notice
	LastPolled time.Time
	PollErr    string
	Busy       bool
}

// CanStart mirrors the start action's enabled state.
func (s SchedulerState) CanStart() bool {
	return !s.Busy && !s.Manual.Running
}

func (s SchedulerState) CanStop() bool {
	return !s.Busy && s.Manual.Running && !s.Manual.StopRequested
}

func (s SchedulerState) CanPause() bool {
	return !s.Busy && s.Auto.Enabled
}

func (s SchedulerState) CanResume() bool {
	return !s.Busy && !s.Auto.Enabled
}

type RunStatus struct {
	IsRunning bool
}

type ScheduleStatus struct {
	Enabled bool
	NextRun string
}

type NextRunDisplay string

const (
	NextRunNotScheduled NextRunDisplay = "not_scheduled"
	NextRunScheduled    NextRunDisplay = "scheduled"
	NextRunFormatError  NextRunDisplay = "format_error"
)

const NextRunLayout = "02.01.2006 15:04"

var nextRunLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// FormatNextRun renders a raw next-run timestamp in loc. An absent value is
// "not scheduled"; an unparseable one is reported as a formatting error.
func FormatNextRun(raw string, loc *time.Location) (string, NextRunDisplay) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return "not scheduled", NextRunNotScheduled
	}
	if loc == nil {
		loc = time.Local
	}

	for _, layout := range nextRunLayouts {
		parsed, err := time.Parse(layout, trimmed)
		if err == nil {
			return parsed.In(loc).Format(NextRunLayout), NextRunScheduled
		}
	}

	return "formatting error", NextRunFormatError
}
