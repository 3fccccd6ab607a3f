package scenarios

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/crewsched/core/logger"
	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/placement"
	"github.com/kilianp07/crewsched/core/timeline"
	"github.com/kilianp07/crewsched/core/travel"
	"github.com/kilianp07/crewsched/core/windows"
)

// Engine evaluates placements against a scenario. Travel comes from the
// scenario's static routes through a Resolver, so previews exercise the
// same pending and unknown handling as the service.
type Engine struct {
	sc       *Scenario
	jobs     model.JobMap
	resolver *travel.Resolver
	log      logger.Logger
}

func NewEngine(sc *Scenario, log logger.Logger) (*Engine, error) {
	p, err := travel.NewStaticProvider(sc.Travel)
	if err != nil {
		return nil, err
	}
	r, err := travel.NewResolver(p, travel.Options{Logger: log})
	if err != nil {
		return nil, err
	}
	return &Engine{sc: sc, jobs: sc.JobMap(), resolver: r, log: logger.OrNop(log)}, nil
}

// Timeline builds the lane with every travel leg resolved.
func (e *Engine) Timeline(ctx context.Context, crewID, excludeID string) (timeline.Timeline, error) {
	in := timeline.Input{
		Assignments:    e.sc.AssignmentModels(),
		Travel:         e.resolver,
		Jobs:           e.jobs,
		HQ:             e.sc.HQ,
		Grid:           e.sc.Grid,
		CrewID:         crewID,
		Day:            e.sc.Day,
		ExcludeID:      excludeID,
		WorkdayMinutes: e.sc.WorkdayMinutes,
		Logger:         e.log,
	}
	tl := timeline.Build(in)
	if len(tl.Missing) == 0 {
		return tl, nil
	}
	if err := e.resolver.PrefetchAll(ctx, tl.Missing); err != nil {
		return tl, err
	}
	return timeline.Build(in), nil
}

// Place resolves a drop at c.Start.
func (e *Engine) Place(ctx context.Context, c PlaceCheck) (model.PlacementResult, timeline.Timeline, error) {
	tl, err := e.Timeline(ctx, c.CrewID, c.ExcludeID)
	if err != nil {
		return model.PlacementResult{}, tl, err
	}
	res, err := placement.Resolve(c.Start, c.Duration, tl.Blocks, e.sc.WorkdayMinutes)
	return res, tl, err
}

// Windows enumerates the start windows of a floating job.
func (e *Engine) Windows(ctx context.Context, c WindowsCheck) (windows.Result, error) {
	tl, err := e.Timeline(ctx, c.CrewID, "")
	if err != nil {
		return windows.Result{}, err
	}
	addr, _ := e.jobs.JobAddress(c.JobID)
	in := windows.Input{
		Assignments: tl.Assignments,
		Travel:      e.resolver,
		Jobs:        e.jobs,
		Address:     addr,
		Duration:    c.Duration,
		WorkdayEnd:  e.sc.WorkdayMinutes,
		Grid:        e.sc.Grid,
		HQ:          e.sc.HQ,
		StartAtHQ:   c.StartAtHQ,
		EndAtHQ:     c.EndAtHQ,
	}
	res := windows.Enumerate(in)
	if !res.Pending {
		return res, nil
	}
	if err := e.resolver.PrefetchAll(ctx, res.Missing); err != nil {
		return res, err
	}
	return windows.Enumerate(in), nil
}

// Verify runs every check that carries an expectation and reports all
// mismatches.
func Verify(ctx context.Context, sc *Scenario, log logger.Logger) error {
	e, err := NewEngine(sc, log)
	if err != nil {
		return err
	}
	var errs []error
	for i, c := range sc.Place {
		if c.Expect == nil {
			continue
		}
		res, _, err := e.Place(ctx, c)
		if err != nil {
			errs = append(errs, fmt.Errorf("place[%d]: %w", i, err))
			continue
		}
		want := c.Expect
		switch {
		case res.Feasible != want.Feasible:
			errs = append(errs, fmt.Errorf("place[%d]: feasible = %v, want %v", i, res.Feasible, want.Feasible))
		case res.Feasible && res.Start != want.Start:
			errs = append(errs, fmt.Errorf("place[%d]: start = %d, want %d", i, res.Start, want.Start))
		case res.Feasible && res.SnapReason.String() != want.SnapReason:
			errs = append(errs, fmt.Errorf("place[%d]: snap reason = %q, want %q", i, res.SnapReason, want.SnapReason))
		}
	}
	for i, c := range sc.Windows {
		if c.Expect == nil {
			continue
		}
		res, err := e.Windows(ctx, c)
		if err != nil {
			errs = append(errs, fmt.Errorf("windows[%d]: %w", i, err))
			continue
		}
		if !sameWindows(res.Windows, c.Expect) {
			errs = append(errs, fmt.Errorf("windows[%d]: got %v, want %v", i, res.Windows, c.Expect))
		}
	}
	return errors.Join(errs...)
}

func sameWindows(got []windows.Window, want []WindowExpect) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i].Start != want[i].Start || got[i].End != want[i].End {
			return false
		}
	}
	return true
}

// Resolver is the engine's travel table.
func (e *Engine) Resolver() *travel.Resolver { return e.resolver }

// Jobs is the scenario's job directory.
func (e *Engine) Jobs() model.JobMap { return e.jobs }
