package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an assignment.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// DayKey is the canonical calendar day of an assignment in the organization's timezone.
type DayKey string

const dayKeyLayout = "2006-01-02"

// DayKeyFor normalizes t into loc and returns its day key. A nil loc means UTC.
func DayKeyFor(t time.Time, loc *time.Location) DayKey {
	if loc == nil {
		loc = time.UTC
	}
	return DayKey(t.In(loc).Format(dayKeyLayout))
}

// ParseDayKey validates a YYYY-MM-DD string.
func ParseDayKey(s string) (DayKey, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(dayKeyLayout, s); err != nil {
		return "", fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayKey(s), nil
}

// Address is a free-form schedulable job address. Empty means unknown.
type Address string

// Known reports whether the address can be used for travel lookups.
func (a Address) Known() bool { return strings.TrimSpace(string(a)) != "" }

// Assignment is one scheduled placement of a job for one crew on one day.
// StartMinutes and EndMinutes are offsets from the workday start.
type Assignment struct {
	ID           string `json:"id"`
	JobID        string `json:"job_id"`
	CrewID       string `json:"crew_id,omitempty"` // empty: unassigned lane
	Date         DayKey `json:"date"`
	StartMinutes int    `json:"start_minutes"`
	EndMinutes   int    `json:"end_minutes"`
	StartAtHQ    bool   `json:"start_at_hq"`
	EndAtHQ      bool   `json:"end_at_hq"`
	Status       Status `json:"status"`
}

// Duration returns the length of the assignment in minutes.
func (a Assignment) Duration() int { return a.EndMinutes - a.StartMinutes }

// Unassigned reports whether the assignment sits in the virtual unassigned lane.
func (a Assignment) Unassigned() bool { return a.CrewID == "" }

// Occupies reports whether the assignment takes up time in its lane.
func (a Assignment) Occupies() bool { return a.Status != StatusCancelled }

// Locked reports whether placement operations must leave the assignment alone.
func (a Assignment) Locked() bool { return a.Status == StatusCompleted }

// Validate checks identity fields and bounds against the workday length.
func (a Assignment) Validate(workdayMinutes int) error {
	if a.JobID == "" {
		return NewReason(ReasonInvalidInput, "job id is required")
	}
	if a.Date == "" {
		return NewReason(ReasonInvalidInput, "date is required")
	}
	if a.Status != "" && !a.Status.Valid() {
		return NewReason(ReasonInvalidInput, fmt.Sprintf("unknown status %q", a.Status))
	}
	if a.StartMinutes >= a.EndMinutes {
		return NewReason(ReasonInvalidInput, "start must be before end")
	}
	if a.StartMinutes < 0 || a.EndMinutes > workdayMinutes {
		return NewReason(ReasonOutOfBounds, "")
	}
	return nil
}

// Job is the read-only reference record an assignment points at.
type Job struct {
	ID      string  `json:"id" yaml:"id"`
	Title   string  `json:"title" yaml:"title"`
	Address Address `json:"address" yaml:"address"`
	Status  string  `json:"status" yaml:"status"`
}

// JobDirectory resolves schedulable addresses for jobs.
type JobDirectory interface {
	JobAddress(jobID string) (Address, bool)
}

// JobMap is an in-memory JobDirectory.
type JobMap map[string]Job

// JobAddress implements JobDirectory.
func (m JobMap) JobAddress(jobID string) (Address, bool) {
	j, ok := m[jobID]
	if !ok || !j.Address.Known() {
		return "", false
	}
	return j.Address, true
}
