// Package timeline derives the occupied intervals of one crew lane on one
// day: the jobs themselves plus the travel buffers they imply. Building is
// pure and reads travel durations from a cache-only table, so it can run on
// every pointer move.
package timeline

import (
	"fmt"
	"sort"

	"github.com/kilianp07/crewsched/core/interval"
	"github.com/kilianp07/crewsched/core/logger"
	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/monitoring"
	"github.com/kilianp07/crewsched/core/travel"
)

// DefaultGrid is the quantization step in minutes.
const DefaultGrid = 15

// Input describes the lane to build.
type Input struct {
	Assignments []model.Assignment
	Travel      travel.Table
	Jobs        model.JobDirectory
	HQ          model.Address
	Grid        int
	CrewID      string
	Day         model.DayKey
	// ExcludeID drops the assignment being moved so it does not block itself.
	ExcludeID      string
	WorkdayMinutes int
	Logger         logger.Logger
}

// Timeline is the derived occupancy of a lane.
type Timeline struct {
	CrewID string       `json:"crew_id"`
	Day    model.DayKey `json:"day"`
	// Assignments are the lane's occupying assignments sorted by start.
	Assignments []model.Assignment `json:"assignments"`
	// Blocks are sorted and coalesced; placement consumes these.
	Blocks []model.OccupiedBlock `json:"blocks"`
	// Raw keeps every block before coalescing, for presentation.
	Raw         []model.OccupiedBlock `json:"raw"`
	PendingLegs int                   `json:"pending_legs"`
	UnknownLegs int                   `json:"unknown_legs"`
	Skipped     []string              `json:"skipped,omitempty"`
	// Missing lists the pending legs, ready for prefetch.
	Missing []travel.Pair `json:"-"`
}

// Build derives the timeline for in.CrewID on in.Day.
func Build(in Input) Timeline {
	log := logger.OrNop(in.Logger)
	grid := in.Grid
	if grid <= 0 {
		grid = DefaultGrid
	}
	tl := Timeline{CrewID: in.CrewID, Day: in.Day}

	for _, a := range in.Assignments {
		if a.CrewID != in.CrewID || a.Date != in.Day || !a.Occupies() {
			continue
		}
		if in.ExcludeID != "" && a.ID == in.ExcludeID {
			continue
		}
		if err := checkDefect(a, in.WorkdayMinutes); err != nil {
			log.Errorf("timeline %s/%s: skipping assignment %q: %v", in.CrewID, in.Day, a.ID, err)
			monitoring.Defect(err, "timeline", a.ID)
			tl.Skipped = append(tl.Skipped, a.ID)
			continue
		}
		tl.Assignments = append(tl.Assignments, a)
	}
	sort.SliceStable(tl.Assignments, func(i, j int) bool {
		return tl.Assignments[i].StartMinutes < tl.Assignments[j].StartMinutes
	})

	lane := in.CrewID != ""
	for i, a := range tl.Assignments {
		tl.Raw = append(tl.Raw, model.OccupiedBlock{StartMinutes: a.StartMinutes, EndMinutes: a.EndMinutes, Kind: model.BlockJob})
		if !lane {
			continue
		}
		addr := address(in.Jobs, a.JobID)
		if a.StartAtHQ {
			if m, ok := tl.leg(in.Travel, in.HQ, addr); ok {
				tl.Raw = append(tl.Raw, model.OccupiedBlock{
					StartMinutes: a.StartMinutes - interval.CeilMinutes(m, grid),
					EndMinutes:   a.StartMinutes,
					Kind:         model.BlockTravelHQStart,
				})
			}
		}
		if a.EndAtHQ {
			if m, ok := tl.leg(in.Travel, addr, in.HQ); ok {
				tl.Raw = append(tl.Raw, model.OccupiedBlock{
					StartMinutes: a.EndMinutes,
					EndMinutes:   a.EndMinutes + interval.CeilMinutes(m, grid),
					Kind:         model.BlockTravelHQEnd,
				})
			}
		}
		if i == 0 {
			continue
		}
		prev := tl.Assignments[i-1]
		prevAddr := address(in.Jobs, prev.JobID)
		if prevAddr == "" || addr == "" {
			continue
		}
		// One block per adjacent pair, anchored after the earlier job.
		if m, ok := tl.leg(in.Travel, prevAddr, addr); ok && m > 0 {
			tl.Raw = append(tl.Raw, model.OccupiedBlock{
				StartMinutes: prev.EndMinutes,
				EndMinutes:   prev.EndMinutes + interval.CeilMinutes(m, grid),
				Kind:         model.BlockTravel,
			})
		}
	}

	for i := range tl.Raw {
		if tl.Raw[i].StartMinutes < 0 {
			tl.Raw[i].StartMinutes = 0
		}
	}
	sortBlocks(tl.Raw)
	tl.Blocks = Coalesce(tl.Raw)
	return tl
}

// leg reads one travel leg from the table, counting pending and unknown
// legs instead of treating them as zero.
func (tl *Timeline) leg(t travel.Table, from, to model.Address) (float64, bool) {
	if t == nil || !from.Known() || !to.Known() {
		return 0, false
	}
	m, state := t.Cached(from, to)
	switch state {
	case travel.Known:
		return m, true
	case travel.Pending:
		tl.PendingLegs++
		tl.Missing = append(tl.Missing, travel.Pair{Origin: from, Destination: to})
	default:
		tl.UnknownLegs++
	}
	return 0, false
}

func address(jobs model.JobDirectory, jobID string) model.Address {
	if jobs == nil {
		return ""
	}
	a, _ := jobs.JobAddress(jobID)
	return a
}

func checkDefect(a model.Assignment, workday int) error {
	switch {
	case a.ID == "":
		return fmt.Errorf("missing id for job %q", a.JobID)
	case a.JobID == "":
		return fmt.Errorf("missing job id")
	case a.StartMinutes >= a.EndMinutes:
		return fmt.Errorf("start %d not before end %d", a.StartMinutes, a.EndMinutes)
	case a.StartMinutes < 0, workday > 0 && a.EndMinutes > workday:
		return fmt.Errorf("bounds [%d,%d) outside workday", a.StartMinutes, a.EndMinutes)
	}
	return nil
}

func sortBlocks(b []model.OccupiedBlock) {
	sort.SliceStable(b, func(i, j int) bool {
		if b[i].StartMinutes == b[j].StartMinutes {
			return b[i].EndMinutes < b[j].EndMinutes
		}
		return b[i].StartMinutes < b[j].StartMinutes
	})
}

// Coalesce merges overlapping or adjacent blocks. A merged block takes the
// kind of whichever constituent reaches furthest, so a snap onto its end is
// explained by what actually ended last. The input must be sorted by start.
func Coalesce(in []model.OccupiedBlock) []model.OccupiedBlock {
	out := make([]model.OccupiedBlock, 0, len(in))
	for _, b := range in {
		if b.EndMinutes <= b.StartMinutes {
			continue
		}
		if n := len(out); n > 0 && b.StartMinutes <= out[n-1].EndMinutes {
			if b.EndMinutes > out[n-1].EndMinutes {
				out[n-1].EndMinutes = b.EndMinutes
				out[n-1].Kind = b.Kind
			}
			continue
		}
		out = append(out, b)
	}
	return out
}

// Intervals projects blocks onto plain intervals.
func Intervals(blocks []model.OccupiedBlock) []interval.Interval {
	out := make([]interval.Interval, len(blocks))
	for i, b := range blocks {
		out[i] = interval.Interval{Start: b.StartMinutes, End: b.EndMinutes}
	}
	return out
}
