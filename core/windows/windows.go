// Package windows enumerates the start-time windows in which a floating job
// can be dropped into a crew lane without violating travel to its
// neighbours.
package windows

import (
	"github.com/kilianp07/crewsched/core/interval"
	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/travel"
)

// Window is a half-open range of allowed start minutes.
type Window struct {
	Start int `json:"start_minutes"`
	End   int `json:"end_minutes"`
	// TravelUnknown is set when a neighbour leg could not be resolved and
	// was left unconstrained.
	TravelUnknown bool `json:"travel_unknown,omitempty"`
}

// Contains reports whether start lies in the window.
func (w Window) Contains(start int) bool { return w.Start <= start && start < w.End }

// Input describes one lane and the floating job to fit into it.
type Input struct {
	// Assignments are the lane's occupying assignments sorted by start,
	// without the one being moved.
	Assignments []model.Assignment
	Travel      travel.Table
	Jobs        model.JobDirectory
	Address     model.Address
	Duration    int
	WorkdayEnd  int
	Grid        int
	HQ          model.Address
	StartAtHQ   bool
	EndAtHQ     bool
}

// Result is the window set of a lane. Pending gaps never produce windows.
type Result struct {
	Windows     []Window `json:"windows"`
	Pending     bool     `json:"pending"`
	PendingGaps []int    `json:"pending_gaps,omitempty"`
	// Missing lists the unresolved legs, ready for prefetch.
	Missing []travel.Pair `json:"-"`
}

// Allows reports whether start falls inside one of the windows.
func (r Result) Allows(start int) bool {
	for _, w := range r.Windows {
		if w.Contains(start) {
			return true
		}
	}
	return false
}

type leg struct {
	from, to model.Address
}

// Enumerate walks the n+1 gaps around the lane's assignments. It only reads
// cached durations.
func Enumerate(in Input) Result {
	grid := in.gridOrDefault()
	var res Result
	if in.Duration <= 0 || in.Duration > in.WorkdayEnd {
		return res
	}
	maxStart := in.WorkdayEnd - in.Duration
	n := len(in.Assignments)
	for i := 0; i <= n; i++ {
		var prev, next *model.Assignment
		lo, hi := 0, maxStart
		if i > 0 {
			prev = &in.Assignments[i-1]
			lo = prev.EndMinutes
		}
		if i < n {
			next = &in.Assignments[i]
			hi = next.StartMinutes - in.Duration
		}

		before, unknownIn, missIn := in.sum(in.incoming(prev))
		after, unknownOut, missOut := in.sum(in.outgoing(next))
		if len(missIn)+len(missOut) > 0 {
			res.Pending = true
			res.PendingGaps = append(res.PendingGaps, i)
			res.Missing = append(append(res.Missing, missIn...), missOut...)
			continue
		}

		lo = interval.CeilTo(lo+before, grid)
		hi = interval.FloorTo(hi-after, grid)
		if lo < 0 {
			lo = 0
		}
		if hi > maxStart {
			hi = interval.FloorTo(maxStart, grid)
		}
		if hi < lo {
			continue
		}
		res.Windows = append(res.Windows, Window{Start: lo, End: hi + grid, TravelUnknown: unknownIn || unknownOut})
	}
	return res
}

func (in Input) addr(a *model.Assignment) model.Address {
	if in.Jobs == nil {
		return ""
	}
	addr, _ := in.Jobs.JobAddress(a.JobID)
	return addr
}

// incoming lists the legs the crew travels before starting the floating job.
func (in Input) incoming(prev *model.Assignment) []leg {
	if !in.Address.Known() {
		return nil
	}
	var legs []leg
	if prev != nil && (in.StartAtHQ || prev.EndAtHQ) {
		if pa := in.addr(prev); pa.Known() {
			legs = append(legs, leg{pa, in.HQ})
		}
		return append(legs, leg{in.HQ, in.Address})
	}
	if prev != nil {
		if pa := in.addr(prev); pa.Known() {
			legs = append(legs, leg{pa, in.Address})
		}
		return legs
	}
	if in.StartAtHQ {
		legs = append(legs, leg{in.HQ, in.Address})
	}
	return legs
}

// outgoing lists the legs the crew travels after finishing the floating job.
func (in Input) outgoing(next *model.Assignment) []leg {
	if !in.Address.Known() {
		return nil
	}
	var legs []leg
	if next != nil && (in.EndAtHQ || next.StartAtHQ) {
		legs = append(legs, leg{in.Address, in.HQ})
		if na := in.addr(next); na.Known() {
			legs = append(legs, leg{in.HQ, na})
		}
		return legs
	}
	if next != nil {
		if na := in.addr(next); na.Known() {
			legs = append(legs, leg{in.Address, na})
		}
		return legs
	}
	if in.EndAtHQ {
		legs = append(legs, leg{in.Address, in.HQ})
	}
	return legs
}

// Side is the travel a job needs on one side of it.
type Side struct {
	Minutes int
	// HQ is set when the side goes through headquarters.
	HQ      bool
	Unknown bool
	Missing []travel.Pair
}

// Sides returns the travel required between prev and the job, and between
// the job and next, using the same legs as Enumerate. A nil neighbour means
// the workday edge.
func (in Input) Sides(prev, next *model.Assignment) (before, after Side) {
	before.HQ = in.StartAtHQ || (prev != nil && prev.EndAtHQ)
	before.Minutes, before.Unknown, before.Missing = in.sum(in.incoming(prev))
	after.HQ = in.EndAtHQ || (next != nil && next.StartAtHQ)
	after.Minutes, after.Unknown, after.Missing = in.sum(in.outgoing(next))
	return before, after
}

// Gap returns the index of the gap start falls in, counting the gaps
// Enumerate walks: 0 before the first assignment, len(assignments) after
// the last.
func Gap(assignments []model.Assignment, start int) int {
	i := 0
	for _, a := range assignments {
		if a.EndMinutes <= start {
			i++
		}
	}
	return i
}

// GapPending reports whether gap was skipped for unresolved travel.
func (r Result) GapPending(gap int) bool {
	for _, g := range r.PendingGaps {
		if g == gap {
			return true
		}
	}
	return false
}

// sum adds the whole-minute durations of legs. Pending legs are returned as
// missing; unknown legs contribute nothing and set unknown.
func (in Input) sum(legs []leg) (total int, unknown bool, missing []travel.Pair) {
	for _, l := range legs {
		if in.Travel == nil {
			unknown = true
			continue
		}
		m, state := in.Travel.Cached(l.from, l.to)
		switch state {
		case travel.Known:
			total += interval.CeilMinutes(m, 1)
		case travel.Pending:
			missing = append(missing, travel.Pair{Origin: l.from, Destination: l.to})
		default:
			unknown = true
		}
	}
	return total, unknown, missing
}

func (in Input) gridOrDefault() int {
	if in.Grid <= 0 {
		return 15
	}
	return in.Grid
}
