package windows

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crewsched/core/events"
	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/travel"
	"github.com/kilianp07/crewsched/internal/eventbus"
)

const day = model.DayKey("2025-06-02")

var jobs = model.JobMap{
	"ja": {ID: "ja", Address: "A"},
	"jb": {ID: "jb", Address: "B"},
	"jn": {ID: "jn"},
}

func lane(spans ...[3]any) []model.Assignment {
	out := make([]model.Assignment, 0, len(spans))
	for i, s := range spans {
		out = append(out, model.Assignment{
			ID:           string(rune('a' + i)),
			JobID:        s[0].(string),
			CrewID:       "c1",
			Date:         day,
			StartMinutes: s[1].(int),
			EndMinutes:   s[2].(int),
		})
	}
	return out
}

func symmetric(d travel.Durations, a, b model.Address, m float64) {
	d.Set(a, b, m)
	d.Set(b, a, m)
}

func TestEnumerateNoRoomBetweenCloseJobs(t *testing.T) {
	tt := travel.Durations{}
	symmetric(tt, "A", "F", 30)
	symmetric(tt, "B", "F", 30)

	res := Enumerate(Input{
		Assignments: lane([3]any{"ja", 180, 240}, [3]any{"jb", 300, 360}),
		Travel:      tt,
		Jobs:        jobs,
		Address:     "F",
		Duration:    60,
		WorkdayEnd:  720,
		Grid:        15,
	})
	assert.False(t, res.Pending)
	assert.Equal(t, []Window{{Start: 0, End: 105}, {Start: 390, End: 675}}, res.Windows)
	for s := 240; s < 300; s += 15 {
		assert.Falsef(t, res.Allows(s), "start %d between the jobs must be rejected", s)
	}
}

func TestEnumeratePendingLegNeverAssumedZero(t *testing.T) {
	tt := travel.Durations{}
	symmetric(tt, "A", "F", 30)
	tt.Set("B", "F", 30)

	res := Enumerate(Input{
		Assignments: lane([3]any{"ja", 180, 240}, [3]any{"jb", 420, 480}),
		Travel:      tt,
		Jobs:        jobs,
		Address:     "F",
		Duration:    60,
		WorkdayEnd:  720,
		Grid:        15,
	})
	require.True(t, res.Pending)
	assert.Equal(t, []int{1}, res.PendingGaps)
	assert.Equal(t, []travel.Pair{{Origin: "F", Destination: "B"}}, res.Missing)
	for s := 240; s < 420; s += 15 {
		assert.Falsef(t, res.Allows(s), "pending gap produced start %d", s)
	}
	assert.Len(t, res.Windows, 2)
}

func TestEnumerateUnknownLegIsFlagged(t *testing.T) {
	tt := travel.Durations{}
	symmetric(tt, "A", "F", 30)
	tt.SetUnknown("F", "B")
	tt.Set("B", "F", 30)

	res := Enumerate(Input{
		Assignments: lane([3]any{"ja", 180, 240}, [3]any{"jb", 420, 480}),
		Travel:      tt,
		Jobs:        jobs,
		Address:     "F",
		Duration:    60,
		WorkdayEnd:  720,
		Grid:        15,
	})
	require.False(t, res.Pending)
	require.Len(t, res.Windows, 3)
	assert.Equal(t, Window{Start: 270, End: 375, TravelUnknown: true}, res.Windows[1])
}

func TestEnumerateNeighbourWithoutAddress(t *testing.T) {
	res := Enumerate(Input{
		Assignments: lane([3]any{"jn", 120, 180}),
		Travel:      travel.Durations{},
		Jobs:        jobs,
		Address:     "F",
		Duration:    60,
		WorkdayEnd:  720,
		Grid:        15,
	})
	assert.False(t, res.Pending)
	assert.Equal(t, []Window{{Start: 0, End: 75}, {Start: 180, End: 675}}, res.Windows)
}

func TestEnumerateHQLegs(t *testing.T) {
	tt := travel.Durations{}
	tt.Set("depot", "F", 20)
	tt.Set("F", "depot", 40)

	res := Enumerate(Input{
		Travel:     tt,
		Address:    "F",
		Duration:   60,
		WorkdayEnd: 720,
		Grid:       15,
		HQ:         "depot",
		StartAtHQ:  true,
		EndAtHQ:    true,
	})
	assert.Equal(t, []Window{{Start: 30, End: 630}}, res.Windows)
}

func TestEnumerateRejectsOversizedJob(t *testing.T) {
	res := Enumerate(Input{Address: "F", Duration: 800, WorkdayEnd: 720})
	assert.Empty(t, res.Windows)
	assert.False(t, res.Pending)
}

func TestLaneCacheResolvesInBackground(t *testing.T) {
	p, err := travel.NewStaticProvider(travel.StaticConfig{
		Routes: []travel.Route{
			{From: "A", To: "F", Minutes: 30},
			{From: "B", To: "F", Minutes: 30},
		},
		Symmetric: true,
	})
	require.NoError(t, err)
	r, err := travel.NewResolver(p, travel.Options{})
	require.NoError(t, err)

	bus := eventbus.New[events.LaneWindowsUpdated]()
	sub := bus.Subscribe()
	cache := NewLaneCache(context.Background(), r, nil, bus)
	key := LaneKey{CrewID: "c1", Day: day, JobID: "jf"}
	in := Input{
		Assignments: lane([3]any{"ja", 180, 240}, [3]any{"jb", 300, 360}),
		Jobs:        jobs,
		Address:     "F",
		Duration:    60,
		WorkdayEnd:  720,
		Grid:        15,
	}

	first := cache.Ensure(key, in)
	assert.True(t, first.Pending)
	assert.Empty(t, first.Windows)

	cache.Wait()
	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.False(t, got.Pending)
	assert.Equal(t, []Window{{Start: 0, End: 105}, {Start: 390, End: 675}}, got.Windows)

	select {
	case ev := <-sub:
		assert.Equal(t, "c1", ev.CrewID)
		assert.Equal(t, 2, ev.Windows)
	case <-time.After(time.Second):
		t.Fatal("expected LaneWindowsUpdated")
	}

	// a second lane is unaffected and fully cached now
	other := LaneKey{CrewID: "c2", Day: day, JobID: "jf"}
	_, ok = cache.Get(other)
	assert.False(t, ok)
	again := cache.Ensure(other, in)
	assert.False(t, again.Pending)

	cache.Invalidate("c1", day)
	_, ok = cache.Get(key)
	assert.False(t, ok)
	_, ok = cache.Get(other)
	assert.True(t, ok)
}

func TestGapAndSides(t *testing.T) {
	as := lane([3]any{"ja", 180, 240}, [3]any{"jb", 300, 360})
	assert.Equal(t, 0, Gap(as, 100))
	assert.Equal(t, 1, Gap(as, 240))
	assert.Equal(t, 2, Gap(as, 400))

	res := Result{Pending: true, PendingGaps: []int{0, 2}}
	assert.True(t, res.GapPending(2))
	assert.False(t, res.GapPending(1))

	tt := travel.Durations{}
	tt.Set("A", "F", 25)
	in := Input{Travel: tt, Jobs: jobs, Address: "F"}
	before, after := in.Sides(&as[0], &as[1])
	assert.Equal(t, 25, before.Minutes)
	assert.Empty(t, before.Missing)
	assert.False(t, before.HQ)
	assert.Equal(t, []travel.Pair{{Origin: "F", Destination: "B"}}, after.Missing)

	in.EndAtHQ, in.HQ = true, "H"
	_, after = in.Sides(nil, nil)
	assert.True(t, after.HQ)
	assert.Len(t, after.Missing, 1)
}
