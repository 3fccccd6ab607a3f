package timeline

import (
	"testing"
	"time"

	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/monitoring"
	"github.com/kilianp07/crewsched/core/travel"
)

const day = model.DayKey("2025-06-02")

var jobs = model.JobMap{
	"j1": {ID: "j1", Address: "1 Main St"},
	"j2": {ID: "j2", Address: "9 Oak Ave"},
	"j3": {ID: "j3"},
}

func asg(id, job, crew string, start, end int) model.Assignment {
	return model.Assignment{ID: id, JobID: job, CrewID: crew, Date: day, StartMinutes: start, EndMinutes: end, Status: model.StatusScheduled}
}

func countKind(blocks []model.OccupiedBlock, k model.BlockKind) int {
	n := 0
	for _, b := range blocks {
		if b.Kind == k {
			n++
		}
	}
	return n
}

func TestBuildSingleTravelBlockBetweenNeighbours(t *testing.T) {
	tt := travel.Durations{}
	tt.Set("1 Main St", "9 Oak Ave", 30)
	tt.Set("9 Oak Ave", "1 Main St", 30)

	tl := Build(Input{
		Assignments:    []model.Assignment{asg("b", "j2", "c1", 240, 300), asg("a", "j1", "c1", 60, 120)},
		Travel:         tt,
		Jobs:           jobs,
		CrewID:         "c1",
		Day:            day,
		WorkdayMinutes: 720,
	})

	if n := countKind(tl.Raw, model.BlockTravel); n != 1 {
		t.Fatalf("expected exactly one travel block, got %d: %+v", n, tl.Raw)
	}
	for _, b := range tl.Raw {
		if b.Kind == model.BlockTravel && (b.StartMinutes != 120 || b.EndMinutes != 150) {
			t.Fatalf("travel block should be [120,150) got [%d,%d)", b.StartMinutes, b.EndMinutes)
		}
	}
	want := []model.OccupiedBlock{
		{StartMinutes: 60, EndMinutes: 150, Kind: model.BlockTravel},
		{StartMinutes: 240, EndMinutes: 300, Kind: model.BlockJob},
	}
	if len(tl.Blocks) != len(want) {
		t.Fatalf("unexpected blocks %+v", tl.Blocks)
	}
	for i := range want {
		if tl.Blocks[i] != want[i] {
			t.Fatalf("block %d: expected %+v got %+v", i, want[i], tl.Blocks[i])
		}
	}
	if tl.Assignments[0].ID != "a" {
		t.Fatalf("assignments must be sorted by start")
	}
}

func TestBuildRoundsTravelUpToGrid(t *testing.T) {
	tt := travel.Durations{}
	tt.Set("1 Main St", "9 Oak Ave", 16.2)
	tl := Build(Input{
		Assignments: []model.Assignment{asg("a", "j1", "c1", 0, 60), asg("b", "j2", "c1", 180, 240)},
		Travel:      tt,
		Jobs:        jobs,
		CrewID:      "c1",
		Day:         day,
	})
	if tl.Blocks[0].EndMinutes != 90 {
		t.Fatalf("expected travel to end at 90 got %d", tl.Blocks[0].EndMinutes)
	}
}

func TestBuildCountsPendingAndUnknownLegs(t *testing.T) {
	tt := travel.Durations{}
	tt.SetUnknown("9 Oak Ave", "1 Main St")
	tl := Build(Input{
		Assignments: []model.Assignment{
			asg("a", "j1", "c1", 0, 60),
			asg("b", "j2", "c1", 120, 180),
			asg("c", "j1", "c1", 240, 300),
			asg("d", "j3", "c1", 360, 420),
		},
		Travel: tt,
		Jobs:   jobs,
		CrewID: "c1",
		Day:    day,
	})
	if tl.PendingLegs != 1 || tl.UnknownLegs != 1 {
		t.Fatalf("expected 1 pending and 1 unknown got %d/%d", tl.PendingLegs, tl.UnknownLegs)
	}
	if n := countKind(tl.Raw, model.BlockTravel); n != 0 {
		t.Fatalf("unresolved legs must not produce blocks, got %d", n)
	}
}

func TestBuildFiltersLane(t *testing.T) {
	cancelled := asg("x", "j1", "c1", 300, 360)
	cancelled.Status = model.StatusCancelled
	other := asg("y", "j1", "c2", 0, 60)
	otherDay := asg("z", "j1", "c1", 0, 60)
	otherDay.Date = "2025-06-03"

	tl := Build(Input{
		Assignments: []model.Assignment{cancelled, other, otherDay, asg("m", "j2", "c1", 60, 120), asg("k", "j1", "c1", 180, 240)},
		Jobs:        jobs,
		CrewID:      "c1",
		Day:         day,
		ExcludeID:   "m",
	})
	if len(tl.Assignments) != 1 || tl.Assignments[0].ID != "k" {
		t.Fatalf("unexpected lane %+v", tl.Assignments)
	}
}

func TestBuildUnassignedLaneHasNoTravel(t *testing.T) {
	tt := travel.Durations{}
	tt.Set("1 Main St", "9 Oak Ave", 30)
	tt.Set("depot", "1 Main St", 30)
	a := asg("a", "j1", "", 0, 60)
	a.StartAtHQ = true
	tl := Build(Input{
		Assignments: []model.Assignment{a, asg("b", "j2", "", 120, 180)},
		Travel:      tt,
		Jobs:        jobs,
		HQ:          "depot",
		Day:         day,
	})
	for _, b := range tl.Raw {
		if b.Kind != model.BlockJob {
			t.Fatalf("unassigned lane produced %s block", b.Kind)
		}
	}
}

func TestBuildHQBlocks(t *testing.T) {
	tt := travel.Durations{}
	tt.Set("depot", "1 Main St", 20)
	tt.Set("1 Main St", "depot", 40)
	a := asg("a", "j1", "c1", 120, 180)
	a.StartAtHQ = true
	a.EndAtHQ = true
	tl := Build(Input{Assignments: []model.Assignment{a}, Travel: tt, Jobs: jobs, HQ: "depot", CrewID: "c1", Day: day})

	if len(tl.Raw) != 3 {
		t.Fatalf("expected job plus two HQ blocks got %+v", tl.Raw)
	}
	if tl.Raw[0] != (model.OccupiedBlock{StartMinutes: 90, EndMinutes: 120, Kind: model.BlockTravelHQStart}) {
		t.Fatalf("unexpected HQ start block %+v", tl.Raw[0])
	}
	if tl.Raw[2] != (model.OccupiedBlock{StartMinutes: 180, EndMinutes: 225, Kind: model.BlockTravelHQEnd}) {
		t.Fatalf("unexpected HQ end block %+v", tl.Raw[2])
	}
	if len(tl.Blocks) != 1 || tl.Blocks[0].Kind != model.BlockTravelHQEnd {
		t.Fatalf("expected one merged block ending in HQ travel got %+v", tl.Blocks)
	}
}

type captureMonitor struct{ errs []error }

func (c *captureMonitor) CaptureException(err error, _ map[string]string) { c.errs = append(c.errs, err) }
func (c *captureMonitor) Recover()                                        {}
func (c *captureMonitor) Flush(time.Duration)                             {}

func TestBuildSkipsDefects(t *testing.T) {
	mon := &captureMonitor{}
	monitoring.Init(mon)
	defer monitoring.Init(monitoring.NopMonitor{})

	broken := asg("", "j1", "c1", 0, 60)
	inverted := asg("inv", "j1", "c1", 90, 60)
	tl := Build(Input{
		Assignments:    []model.Assignment{broken, inverted, asg("ok", "j2", "c1", 120, 180)},
		Jobs:           jobs,
		CrewID:         "c1",
		Day:            day,
		WorkdayMinutes: 720,
	})
	if len(tl.Assignments) != 1 || tl.Assignments[0].ID != "ok" {
		t.Fatalf("defects should be skipped, got %+v", tl.Assignments)
	}
	if len(tl.Skipped) != 2 || len(mon.errs) != 2 {
		t.Fatalf("expected 2 defects reported got %d/%d", len(tl.Skipped), len(mon.errs))
	}
}

func TestCoalesceKeepsFurthestKind(t *testing.T) {
	got := Coalesce([]model.OccupiedBlock{
		{StartMinutes: 0, EndMinutes: 60, Kind: model.BlockJob},
		{StartMinutes: 30, EndMinutes: 45, Kind: model.BlockTravel},
		{StartMinutes: 60, EndMinutes: 90, Kind: model.BlockTravel},
		{StartMinutes: 100, EndMinutes: 100, Kind: model.BlockJob},
		{StartMinutes: 120, EndMinutes: 150, Kind: model.BlockJob},
	})
	want := []model.OccupiedBlock{
		{StartMinutes: 0, EndMinutes: 90, Kind: model.BlockTravel},
		{StartMinutes: 120, EndMinutes: 150, Kind: model.BlockJob},
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %+v got %+v", want, got)
	}
}
