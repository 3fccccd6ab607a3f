package interaction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crewsched/core/commit"
	"github.com/kilianp07/crewsched/core/metrics"
	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/travel"
	"github.com/kilianp07/crewsched/core/windows"
	"github.com/kilianp07/crewsched/infra/store"
)

const day = model.DayKey("2025-06-02")

type fakeCommitter struct {
	reqs   []commit.Request
	during func()
	err    error
}

func (f *fakeCommitter) Commit(_ context.Context, req commit.Request) (commit.Outcome, error) {
	f.reqs = append(f.reqs, req)
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return commit.Outcome{}, f.err
	}
	return commit.Outcome{Assignment: req.Draft}, nil
}

type fakeWindows struct {
	results map[windows.LaneKey]windows.Result
	ensured []windows.LaneKey
}

func (f *fakeWindows) Ensure(key windows.LaneKey, _ windows.Input) windows.Result {
	f.ensured = append(f.ensured, key)
	return f.results[key]
}

func (f *fakeWindows) Get(key windows.LaneKey) (windows.Result, bool) {
	r, ok := f.results[key]
	return r, ok
}

type sessionSink struct{ recs []metrics.SessionRecord }

func (s *sessionSink) RecordCommit(metrics.CommitRecord) error { return nil }
func (s *sessionSink) RecordSession(rec metrics.SessionRecord) error {
	s.recs = append(s.recs, rec)
	return nil
}

type fixture struct {
	m    *Machine
	c    *fakeCommitter
	w    *fakeWindows
	sink *sessionSink
}

func newFixture() fixture {
	jobs := model.JobMap{
		"j1":    {ID: "j1", Address: "1 A St"},
		"j2":    {ID: "j2", Address: "2 B St"},
		"float": {ID: "float", Address: "3 C St"},
	}
	tt := travel.Durations{}
	tt.Set("1 A St", "2 B St", 30)
	tt.Set("2 B St", "1 A St", 30)
	coll := commit.NewCollection([]model.Assignment{
		{ID: "b1", JobID: "j1", CrewID: "c1", Date: day, StartMinutes: 60, EndMinutes: 120, Status: model.StatusScheduled},
		{ID: "b2", JobID: "j2", CrewID: "c1", Date: day, StartMinutes: 300, EndMinutes: 360, Status: model.StatusScheduled},
		{ID: "done", JobID: "j1", CrewID: "c1", Date: day, StartMinutes: 480, EndMinutes: 540, Status: model.StatusCompleted},
	})
	f := fixture{
		c:    &fakeCommitter{},
		w:    &fakeWindows{results: map[windows.LaneKey]windows.Result{}},
		sink: &sessionSink{},
	}
	f.m = New(Config{WorkdayMinutes: 720, Grid: 15}, coll, f.c, Options{
		Travel:  tt,
		Jobs:    jobs,
		Windows: f.w,
		Metrics: f.sink,
	})
	return f
}

func TestDragFloatingJobCommitsSnappedPreview(t *testing.T) {
	f := newFixture()
	key := windows.LaneKey{CrewID: "c1", Day: day, JobID: "float"}
	f.w.results[key] = windows.Result{Windows: []windows.Window{{Start: 0, End: 700}}}

	require.NoError(t, f.m.BeginDrag(Mover{JobID: "float", Duration: 60}))
	assert.Equal(t, Dragging, f.m.State())

	p, err := f.m.Move(Sample{CrewID: "c1", Day: day, Minutes: 100.4})
	require.NoError(t, err)
	assert.True(t, p.Valid)
	assert.Equal(t, 150, p.Start)
	assert.Equal(t, 210, p.End)
	assert.Equal(t, 45, p.Placement.SnapDelta)
	assert.Equal(t, []windows.LaneKey{key}, f.w.ensured)
	assert.Empty(t, f.c.reqs, "previews never commit")

	out, err := f.m.Release(context.Background())
	require.NoError(t, err)
	require.Len(t, f.c.reqs, 1)
	req := f.c.reqs[0]
	assert.Equal(t, commit.OpCreate, req.Op)
	assert.Equal(t, "c1", req.Draft.CrewID)
	assert.Equal(t, 150, req.Draft.StartMinutes)
	assert.Equal(t, 210, req.Draft.EndMinutes)
	assert.Equal(t, "float", out.Assignment.JobID)
	assert.Equal(t, Idle, f.m.State())

	require.Len(t, f.sink.recs, 1)
	assert.True(t, f.sink.recs[0].Committed)
	assert.Equal(t, 1, f.sink.recs[0].Samples)
}

func TestDragOutsideWindowsAborts(t *testing.T) {
	cases := []struct {
		name   string
		result windows.Result
		code   model.ReasonCode
	}{
		{"pending", windows.Result{Pending: true, PendingGaps: []int{1}, Windows: []windows.Window{{Start: 400, End: 420}}}, model.ReasonTravelPending},
		{"too short", windows.Result{Windows: []windows.Window{{Start: 400, End: 420}}}, model.ReasonInsufficientTravel},
		{"other gap pending", windows.Result{Pending: true, PendingGaps: []int{2}, Windows: []windows.Window{{Start: 400, End: 420}}}, model.ReasonInsufficientTravel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.w.results[windows.LaneKey{CrewID: "c1", Day: day, JobID: "float"}] = tc.result
			require.NoError(t, f.m.BeginDrag(Mover{JobID: "float", Duration: 60}))

			p, err := f.m.Move(Sample{CrewID: "c1", Day: day, Minutes: 150})
			require.NoError(t, err)
			assert.False(t, p.Valid)
			require.NotNil(t, p.Reason)
			assert.Equal(t, tc.code, p.Reason.Code)

			_, err = f.m.Release(context.Background())
			assert.Equal(t, tc.code, model.ReasonOf(err))
			assert.Empty(t, f.c.reqs)
			assert.Equal(t, Idle, f.m.State())
		})
	}
}

func TestDragExistingAcrossLanes(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.m.BeginDrag(Mover{AssignmentID: "b2"}))

	p, err := f.m.Move(Sample{CrewID: "c1", Day: day, Minutes: 200})
	require.NoError(t, err)
	assert.True(t, p.Valid)

	p, err = f.m.Move(Sample{CrewID: "c2", Day: day, Minutes: 29})
	require.NoError(t, err)
	assert.True(t, p.Valid)
	assert.Equal(t, 30, p.Start)
	assert.Empty(t, p.Blocks)
	assert.Equal(t, []windows.LaneKey{
		{CrewID: "c1", Day: day, JobID: "j2"},
		{CrewID: "c2", Day: day, JobID: "j2"},
	}, f.w.ensured)

	_, err = f.m.Release(context.Background())
	require.NoError(t, err)
	require.Len(t, f.c.reqs, 1)
	req := f.c.reqs[0]
	assert.Equal(t, commit.OpUpdate, req.Op)
	assert.Equal(t, "b2", req.ID)
	assert.Equal(t, "c2", req.Draft.CrewID)
	assert.Equal(t, 30, req.Draft.StartMinutes)
	assert.Equal(t, 90, req.Draft.EndMinutes)
	assert.Equal(t, model.StatusScheduled, req.Draft.Status)
}

func TestDragNegativeMinutesClampsToZero(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.m.BeginDrag(Mover{JobID: "float", Duration: 30}))
	p, err := f.m.Move(Sample{CrewID: "c1", Day: day, Minutes: -40})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Start)
	assert.True(t, p.Valid)
}

func TestResizeClampsToNeighbours(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.m.BeginResize("b2", EdgeEnd))
	assert.Equal(t, Resizing, f.m.State())

	p, err := f.m.Move(Sample{CrewID: "c1", Day: day, Minutes: 600})
	require.NoError(t, err)
	assert.True(t, p.Valid)
	assert.Equal(t, 300, p.Start)
	assert.Equal(t, 450, p.End, "end leaves travel to the completed job")

	_, err = f.m.Release(context.Background())
	require.NoError(t, err)
	require.Len(t, f.c.reqs, 1)
	req := f.c.reqs[0]
	assert.Equal(t, commit.OpUpdate, req.Op)
	assert.True(t, req.SkipSnap)
	assert.Equal(t, 300, req.Draft.StartMinutes)
	assert.Equal(t, 450, req.Draft.EndMinutes)

	require.NoError(t, f.m.BeginResize("b2", EdgeStart))
	p, err = f.m.Move(Sample{CrewID: "c1", Day: day, Minutes: 0})
	require.NoError(t, err)
	assert.Equal(t, 150, p.Start, "start leaves travel from the previous job")
	p, err = f.m.Move(Sample{CrewID: "c1", Day: day, Minutes: 400})
	require.NoError(t, err)
	assert.Equal(t, 345, p.Start, "at least one grid step remains")
	require.NoError(t, f.m.Cancel())
}

func TestLockedAndMissingAssignmentsCannotStart(t *testing.T) {
	f := newFixture()
	err := f.m.BeginDrag(Mover{AssignmentID: "done"})
	assert.Equal(t, model.ReasonAssignmentCompleted, model.ReasonOf(err))
	err = f.m.BeginResize("done", EdgeEnd)
	assert.Equal(t, model.ReasonAssignmentCompleted, model.ReasonOf(err))
	err = f.m.BeginResize("nope", EdgeEnd)
	assert.Equal(t, model.ReasonNotFound, model.ReasonOf(err))
	err = f.m.BeginDrag(Mover{JobID: "float"})
	assert.Equal(t, model.ReasonInvalidInput, model.ReasonOf(err))
	assert.Equal(t, Idle, f.m.State())
}

func TestOneSessionAtATime(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.m.BeginDrag(Mover{JobID: "float", Duration: 60}))
	assert.ErrorIs(t, f.m.BeginDrag(Mover{JobID: "float", Duration: 60}), ErrBusy)
	assert.ErrorIs(t, f.m.BeginResize("b1", EdgeEnd), ErrBusy)

	require.NoError(t, f.m.Cancel())
	assert.Equal(t, Idle, f.m.State())
	assert.ErrorIs(t, f.m.Cancel(), ErrNoSession)
	_, err := f.m.Move(Sample{CrewID: "c1", Day: day})
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = f.m.Release(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Empty(t, f.c.reqs)

	require.Len(t, f.sink.recs, 1)
	assert.False(t, f.sink.recs[0].Committed)
	assert.Equal(t, model.ReasonCancelled, f.sink.recs[0].Reason)
}

func TestReleaseWithoutSamplesCancels(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.m.BeginDrag(Mover{JobID: "float", Duration: 60}))
	_, err := f.m.Release(context.Background())
	assert.Equal(t, model.ReasonCancelled, model.ReasonOf(err))
	assert.Empty(t, f.c.reqs)
}

func TestCommittingStateAndFailure(t *testing.T) {
	f := newFixture()
	var during State
	f.c.during = func() { during = f.m.State() }
	f.c.err = model.WrapReason(model.ReasonPersistence, errors.New("boom"))

	require.NoError(t, f.m.BeginDrag(Mover{JobID: "float", Duration: 60}))
	_, err := f.m.Move(Sample{CrewID: "c2", Day: day, Minutes: 60})
	require.NoError(t, err)
	_, err = f.m.Release(context.Background())
	assert.Equal(t, model.ReasonPersistence, model.ReasonOf(err))
	assert.Equal(t, Committing, during)
	assert.Equal(t, Idle, f.m.State())
	assert.Len(t, f.c.reqs, 1)
	_, ok := f.m.Preview()
	assert.False(t, ok, "session is discarded after release")
}

func TestResizeStartCommitsThroughController(t *testing.T) {
	jobs := model.JobMap{
		"j1": {ID: "j1", Address: "1 A St"},
		"j2": {ID: "j2", Address: "2 B St"},
	}
	tt := travel.Durations{}
	tt.Set("1 A St", "2 B St", 30)
	tt.Set("2 B St", "1 A St", 30)
	items := []model.Assignment{
		{ID: "b1", JobID: "j1", CrewID: "c1", Date: day, StartMinutes: 60, EndMinutes: 120, Status: model.StatusScheduled},
		{ID: "b2", JobID: "j2", CrewID: "c1", Date: day, StartMinutes: 300, EndMinutes: 360, Status: model.StatusScheduled},
	}
	coll := commit.NewCollection(items)
	cfg := commit.Config{WorkdayMinutes: 720, Grid: 15}
	ctrl := commit.NewController(coll, store.NewMemoryStore(items, jobs), cfg, commit.Options{Travel: tt, Jobs: jobs})
	m := New(Config{WorkdayMinutes: 720, Grid: 15}, coll, ctrl, Options{Travel: tt, Jobs: jobs})

	require.NoError(t, m.BeginResize("b2", EdgeStart))
	p, err := m.Move(Sample{CrewID: "c1", Day: day, Minutes: 120})
	require.NoError(t, err)
	assert.True(t, p.Valid)
	assert.Equal(t, 150, p.Start)

	out, err := m.Release(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 150, out.Assignment.StartMinutes)
	assert.Equal(t, 360, out.Assignment.EndMinutes)
	got, ok := coll.Get("b2")
	require.True(t, ok)
	assert.Equal(t, 150, got.StartMinutes)
}

func TestResizeWithPendingTravelIsInvalid(t *testing.T) {
	f := newFixture()
	// j2 -> 3 C St is never resolved.
	f.m.jobs = model.JobMap{
		"j1": {ID: "j1", Address: "1 A St"},
		"j2": {ID: "j2", Address: "2 B St"},
		"j3": {ID: "j3", Address: "3 C St"},
	}
	f.m.lanes = commit.NewCollection([]model.Assignment{
		{ID: "b2", JobID: "j2", CrewID: "c1", Date: day, StartMinutes: 300, EndMinutes: 360, Status: model.StatusScheduled},
		{ID: "b3", JobID: "j3", CrewID: "c1", Date: day, StartMinutes: 480, EndMinutes: 540, Status: model.StatusScheduled},
	})
	require.NoError(t, f.m.BeginResize("b2", EdgeEnd))
	p, err := f.m.Move(Sample{CrewID: "c1", Day: day, Minutes: 420})
	require.NoError(t, err)
	assert.False(t, p.Valid)
	require.NotNil(t, p.Reason)
	assert.Equal(t, model.ReasonTravelPending, p.Reason.Code)

	_, err = f.m.Release(context.Background())
	assert.Equal(t, model.ReasonTravelPending, model.ReasonOf(err))
	assert.Empty(t, f.c.reqs)
}
