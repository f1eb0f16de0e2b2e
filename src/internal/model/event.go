package model

import "time"

type EventPhase string

const (
	PhasePast     EventPhase = "past"
	PhaseCurrent  EventPhase = "current"
	PhaseUpcoming EventPhase = "upcoming"
)

// Phase places the event relative to now. An event without a window is current.
func (e Event) Phase(now time.Time) EventPhase {
	switch {
	case e.EndTime != nil && e.EndTime.Before(now):
		return PhasePast
	case e.StartTime != nil && e.StartTime.After(now):
		return PhaseUpcoming
	default:
		return PhaseCurrent
	}
}

// ValidWindow reports whether startTime <= endTime when both are set.
func (e Event) ValidWindow() bool {
	if e.StartTime == nil || e.EndTime == nil {
		return true
	}
	return !e.StartTime.After(*e.EndTime)
}

func (e Event) ItemWorkItemType() string {
	if e.WorkItemType == "" {
		return DefaultWorkItemType
	}
	return e.WorkItemType
}

func (e Event) Clone() Event {
	out := e
	if e.StartTime != nil {
		t := *e.StartTime
		out.StartTime = &t
	}
	if e.EndTime != nil {
		t := *e.EndTime
		out.EndTime = &t
	}
	if e.Fields != nil {
		out.Fields = make(map[string]string, len(e.Fields))
		for k, v := range e.Fields {
			out.Fields[k] = v
		}
	}
	return out
}
