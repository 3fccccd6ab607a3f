package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/travel"
)

// AssignmentDef is one scheduled job in a day file.
type AssignmentDef struct {
	ID        string `yaml:"id"`
	JobID     string `yaml:"job_id"`
	CrewID    string `yaml:"crew_id"`
	Start     int    `yaml:"start"`
	End       int    `yaml:"end"`
	Status    string `yaml:"status,omitempty"`
	StartAtHQ bool   `yaml:"start_at_hq,omitempty"`
	EndAtHQ   bool   `yaml:"end_at_hq,omitempty"`
}

func (a AssignmentDef) ToModel(day model.DayKey) model.Assignment {
	status := model.Status(a.Status)
	if status == "" {
		status = model.StatusScheduled
	}
	return model.Assignment{
		ID:           a.ID,
		JobID:        a.JobID,
		CrewID:       a.CrewID,
		Date:         day,
		StartMinutes: a.Start,
		EndMinutes:   a.End,
		StartAtHQ:    a.StartAtHQ,
		EndAtHQ:      a.EndAtHQ,
		Status:       status,
	}
}

// PlaceCheck asks where a job dropped at Start would land.
type PlaceCheck struct {
	CrewID   string `json:"crew_id" yaml:"crew_id"`
	JobID    string `json:"job_id" yaml:"job_id"`
	Duration int    `json:"duration" yaml:"duration"`
	Start    int    `json:"start" yaml:"start"`
	// ExcludeID moves an existing assignment instead of adding a job.
	ExcludeID string       `json:"exclude_id,omitempty" yaml:"exclude_id,omitempty"`
	Expect    *PlaceExpect `json:"expect,omitempty" yaml:"expect,omitempty"`
}

type PlaceExpect struct {
	Feasible   bool   `json:"feasible" yaml:"feasible"`
	Start      int    `json:"start" yaml:"start"`
	SnapReason string `json:"snap_reason,omitempty" yaml:"snap_reason,omitempty"`
}

// WindowsCheck asks where a floating job may start in a lane.
type WindowsCheck struct {
	CrewID    string         `json:"crew_id" yaml:"crew_id"`
	JobID     string         `json:"job_id" yaml:"job_id"`
	Duration  int            `json:"duration" yaml:"duration"`
	StartAtHQ bool           `json:"start_at_hq,omitempty" yaml:"start_at_hq,omitempty"`
	EndAtHQ   bool           `json:"end_at_hq,omitempty" yaml:"end_at_hq,omitempty"`
	Expect    []WindowExpect `json:"expect,omitempty" yaml:"expect,omitempty"`
}

type WindowExpect struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Scenario is a self-contained day: jobs, assignments, travel durations
// and the checks to run against them.
type Scenario struct {
	Name           string              `yaml:"name"`
	Description    string              `yaml:"description,omitempty"`
	Day            model.DayKey        `yaml:"day"`
	WorkdayMinutes int                 `yaml:"workday_minutes"`
	Grid           int                 `yaml:"grid"`
	HQ             model.Address       `yaml:"hq,omitempty"`
	Jobs           []model.Job         `yaml:"jobs"`
	Assignments    []AssignmentDef     `yaml:"assignments"`
	Travel         travel.StaticConfig `yaml:"travel"`
	Place          []PlaceCheck        `yaml:"place,omitempty"`
	Windows        []WindowsCheck      `yaml:"windows,omitempty"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	sc.setDefaults()
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &sc, nil
}

func (s *Scenario) setDefaults() {
	if s.WorkdayMinutes == 0 {
		s.WorkdayMinutes = 720
	}
	if s.Grid == 0 {
		s.Grid = 15
	}
	if s.Name == "" {
		s.Name = string(s.Day)
	}
}

func (s *Scenario) validate() error {
	if _, err := model.ParseDayKey(string(s.Day)); err != nil {
		return fmt.Errorf("day: %w", err)
	}
	seen := make(map[string]bool, len(s.Assignments))
	for _, a := range s.Assignments {
		if a.ID == "" {
			return fmt.Errorf("assignment for job %q has no id", a.JobID)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate assignment id %q", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// JobMap returns the scenario's job directory.
func (s *Scenario) JobMap() model.JobMap {
	m := make(model.JobMap, len(s.Jobs))
	for _, j := range s.Jobs {
		m[j.ID] = j
	}
	return m
}

// AssignmentModels converts the assignments of the day.
func (s *Scenario) AssignmentModels() []model.Assignment {
	out := make([]model.Assignment, len(s.Assignments))
	for i, a := range s.Assignments {
		out[i] = a.ToModel(s.Day)
	}
	return out
}
