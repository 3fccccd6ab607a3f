package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/crewsched/core/model"
)

// WorkdayConfig holds the organization settings every placement depends on.
type WorkdayConfig struct {
	// Start is the local wall-clock time of minute 0, "HH:MM".
	Start string `json:"start"`
	// End is the local wall-clock time closing the workday, "HH:MM".
	End string `json:"end"`
	// GridMinutes is the placement grid step.
	GridMinutes int `json:"grid_minutes"`
	// HQAddress is where HQ-flagged assignments start or end.
	HQAddress string `json:"hq_address"`
	Timezone  string `json:"timezone"`
}

// SetDefaults applies a 07:00-19:00 day on a 15 minute grid in UTC.
func (c *WorkdayConfig) SetDefaults() {
	if c.Start == "" {
		c.Start = "07:00"
	}
	if c.End == "" {
		c.End = "19:00"
	}
	if c.GridMinutes == 0 {
		c.GridMinutes = 15
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
}

// Validate checks the clock values, grid and timezone.
func (c WorkdayConfig) Validate() error {
	start, err := clock(c.Start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := clock(c.End)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if end <= start {
		return fmt.Errorf("end %s must be after start %s", c.End, c.Start)
	}
	if c.GridMinutes <= 0 || c.GridMinutes > end-start {
		return fmt.Errorf("grid_minutes %d out of range", c.GridMinutes)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}

// Minutes is the workday length.
func (c WorkdayConfig) Minutes() int {
	start, _ := clock(c.Start)
	end, _ := clock(c.End)
	return end - start
}

// HQ returns the headquarters address.
func (c WorkdayConfig) HQ() model.Address { return model.Address(c.HQAddress) }

// Location returns the configured timezone, UTC when it cannot be loaded.
func (c WorkdayConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Offset converts a wall-clock time on day into minutes from workday start.
func (c WorkdayConfig) Offset(t time.Time) int {
	start, _ := clock(c.Start)
	local := t.In(c.Location())
	return local.Hour()*60 + local.Minute() - start
}

func clock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
