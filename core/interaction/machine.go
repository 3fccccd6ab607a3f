// Package interaction drives drag and resize sessions. Pointer samples
// produce render-only previews; release commits the last valid preview
// exactly once, or aborts with the reason the preview was invalid.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kilianp07/crewsched/core/commit"
	"github.com/kilianp07/crewsched/core/interval"
	"github.com/kilianp07/crewsched/core/logger"
	"github.com/kilianp07/crewsched/core/metrics"
	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/placement"
	"github.com/kilianp07/crewsched/core/timeline"
	"github.com/kilianp07/crewsched/core/travel"
	"github.com/kilianp07/crewsched/core/windows"
)

var (
	// ErrBusy is returned when a session is started while another is active.
	ErrBusy = errors.New("interaction: a session is already active")
	// ErrNoSession is returned by session operations while Idle.
	ErrNoSession = errors.New("interaction: no active session")
)

// State is the machine's current mode.
type State int

const (
	Idle State = iota
	Dragging
	Resizing
	Committing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	case Committing:
		return "committing"
	default:
		return "unknown"
	}
}

// Edge selects which end of an assignment a resize moves.
type Edge int

const (
	EdgeStart Edge = iota
	EdgeEnd
)

// Sample is one pointer position already hit-tested to a lane.
type Sample struct {
	CrewID  string
	Day     model.DayKey
	Minutes float64
}

// Mover is what a drag carries: an existing assignment or a floating job.
type Mover struct {
	AssignmentID string
	JobID        string
	Duration     int
	Address      model.Address
	StartAtHQ    bool
	EndAtHQ      bool
}

// Preview is the feedback for the latest sample.
type Preview struct {
	CrewID    string                `json:"crew_id"`
	Day       model.DayKey          `json:"day"`
	Start     int                   `json:"start_minutes"`
	End       int                   `json:"end_minutes"`
	Placement model.PlacementResult `json:"placement"`
	Blocks    []model.OccupiedBlock `json:"blocks"`
	Windows   *windows.Result       `json:"windows,omitempty"`
	Valid     bool                  `json:"valid"`
	Reason    *model.Reason         `json:"reason,omitempty"`
}

// Committer is the commit path. *commit.Controller implements it.
type Committer interface {
	Commit(ctx context.Context, req commit.Request) (commit.Outcome, error)
}

// Lanes reads the shared assignment collection. *commit.Collection implements it.
type Lanes interface {
	Get(id string) (model.Assignment, bool)
	Lane(crewID string, day model.DayKey) []model.Assignment
}

// WindowCache stores travel windows per lane. *windows.LaneCache implements it.
type WindowCache interface {
	Ensure(key windows.LaneKey, in windows.Input) windows.Result
	Get(key windows.LaneKey) (windows.Result, bool)
}

// Config holds the organization settings.
type Config struct {
	WorkdayMinutes int
	Grid           int
	HQ             model.Address
}

// Options wires optional collaborators.
type Options struct {
	Travel  travel.Table
	Jobs    model.JobDirectory
	Windows WindowCache
	Logger  logger.Logger
	Metrics metrics.MetricsSink
}

type session struct {
	kind     string
	mover    Mover
	original *model.Assignment
	edge     Edge

	laneSet bool
	crewID  string
	day     model.DayKey
	tl      timeline.Timeline

	preview Preview
	samples int
}

// Machine owns at most one session at a time.
type Machine struct {
	cfg     Config
	lanes   Lanes
	commit  Committer
	travel  travel.Table
	jobs    model.JobDirectory
	windows WindowCache
	log     logger.Logger
	metrics metrics.MetricsSink

	mu    sync.Mutex
	state State
	sess  *session
}

// New creates an idle Machine.
func New(cfg Config, lanes Lanes, c Committer, opts Options) *Machine {
	if cfg.Grid <= 0 {
		cfg.Grid = timeline.DefaultGrid
	}
	return &Machine{
		cfg:     cfg,
		lanes:   lanes,
		commit:  c,
		travel:  opts.Travel,
		jobs:    opts.Jobs,
		windows: opts.Windows,
		log:     logger.OrNop(opts.Logger),
		metrics: metrics.OrNop(opts.Metrics),
	}
}

// State returns the current mode.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Preview returns the latest preview of the active session.
func (m *Machine) Preview() (Preview, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || m.sess.samples == 0 {
		return Preview{}, false
	}
	return m.sess.preview, true
}

// BeginDrag starts moving an existing assignment or placing a floating job.
func (m *Machine) BeginDrag(mv Mover) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Idle {
		return ErrBusy
	}
	s := &session{kind: "drag", mover: mv}
	if mv.AssignmentID != "" {
		a, ok := m.lanes.Get(mv.AssignmentID)
		if !ok {
			return model.NewReason(model.ReasonNotFound, "")
		}
		if a.Locked() {
			return model.NewReason(model.ReasonAssignmentCompleted, "")
		}
		s.original = &a
		s.mover.JobID = a.JobID
		if s.mover.Duration == 0 {
			s.mover.Duration = a.Duration()
		}
		if !mv.StartAtHQ && !mv.EndAtHQ {
			s.mover.StartAtHQ, s.mover.EndAtHQ = a.StartAtHQ, a.EndAtHQ
		}
	}
	if s.mover.JobID == "" {
		return model.NewReason(model.ReasonInvalidInput, "job id is required")
	}
	if s.mover.Duration <= 0 {
		return model.NewReason(model.ReasonInvalidInput, "duration must be positive")
	}
	if !s.mover.Address.Known() && m.jobs != nil {
		s.mover.Address, _ = m.jobs.JobAddress(s.mover.JobID)
	}
	m.sess = s
	m.state = Dragging
	return nil
}

// BeginResize starts moving one edge of an existing assignment.
func (m *Machine) BeginResize(id string, edge Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Idle {
		return ErrBusy
	}
	a, ok := m.lanes.Get(id)
	if !ok {
		return model.NewReason(model.ReasonNotFound, "")
	}
	if a.Locked() {
		return model.NewReason(model.ReasonAssignmentCompleted, "")
	}
	s := &session{kind: "resize", original: &a, edge: edge, mover: Mover{AssignmentID: a.ID, JobID: a.JobID, Duration: a.Duration()}}
	m.setLane(s, a.CrewID, a.Date)
	m.sess = s
	m.state = Resizing
	return nil
}

// Move processes one pointer sample and returns the preview. It never
// blocks on I/O.
func (m *Machine) Move(sm Sample) (Preview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sess
	if s == nil || (m.state != Dragging && m.state != Resizing) {
		return Preview{}, ErrNoSession
	}
	s.samples++
	minutes := m.quantize(sm.Minutes)
	if m.state == Resizing {
		s.preview = m.resizePreview(s, minutes)
		return s.preview, nil
	}
	if !s.laneSet || s.crewID != sm.CrewID || s.day != sm.Day {
		m.setLane(s, sm.CrewID, sm.Day)
	}
	s.preview = m.dragPreview(s, minutes)
	return s.preview, nil
}

func (m *Machine) quantize(x float64) int {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	v := interval.RoundTo(int(math.Round(x)), m.cfg.Grid)
	if v < 0 {
		return 0
	}
	return v
}

// setLane rebuilds the timeline for the new lane and makes sure its travel
// windows are computed or being computed.
func (m *Machine) setLane(s *session, crewID string, day model.DayKey) {
	s.laneSet, s.crewID, s.day = true, crewID, day
	s.tl = timeline.Build(timeline.Input{
		Assignments:    m.lanes.Lane(crewID, day),
		Travel:         m.travel,
		Jobs:           m.jobs,
		HQ:             m.cfg.HQ,
		Grid:           m.cfg.Grid,
		CrewID:         crewID,
		Day:            day,
		ExcludeID:      s.mover.AssignmentID,
		WorkdayMinutes: m.cfg.WorkdayMinutes,
		Logger:         m.log,
	})
	if s.kind == "drag" && m.travelAware(s) {
		m.windows.Ensure(m.laneKey(s), windows.Input{
			Assignments: s.tl.Assignments,
			Jobs:        m.jobs,
			Address:     s.mover.Address,
			Duration:    s.mover.Duration,
			WorkdayEnd:  m.cfg.WorkdayMinutes,
			Grid:        m.cfg.Grid,
			HQ:          m.cfg.HQ,
			StartAtHQ:   s.mover.StartAtHQ,
			EndAtHQ:     s.mover.EndAtHQ,
		})
	}
}

func (m *Machine) travelAware(s *session) bool {
	return m.windows != nil && s.crewID != "" && s.mover.Address.Known()
}

func (m *Machine) laneKey(s *session) windows.LaneKey {
	return windows.LaneKey{CrewID: s.crewID, Day: s.day, JobID: s.mover.JobID}
}

func (m *Machine) dragPreview(s *session, minutes int) Preview {
	p := Preview{CrewID: s.crewID, Day: s.day, Blocks: s.tl.Blocks}
	res, err := placement.Resolve(minutes, s.mover.Duration, s.tl.Blocks, m.cfg.WorkdayMinutes)
	if err != nil {
		p.Reason = reasonOf(err)
		return p
	}
	p.Placement = res
	if !res.Feasible {
		p.Reason = res.Reason()
		return p
	}
	p.Start, p.End = res.Start, res.Start+s.mover.Duration
	if m.travelAware(s) {
		// Background lookups may have refreshed the lane since Ensure.
		if w, ok := m.windows.Get(m.laneKey(s)); ok {
			p.Windows = &w
			switch {
			case w.Allows(res.Start):
			case w.GapPending(windows.Gap(s.tl.Assignments, res.Start)):
				p.Reason = model.NewReason(model.ReasonTravelPending, "")
				return p
			default:
				p.Reason = model.NewReason(model.ReasonInsufficientTravel, "")
				return p
			}
		}
	}
	p.Valid = true
	return p
}

// resizePreview clamps the moving edge between the neighbouring assignments
// plus the travel the commit path will require on that side.
func (m *Machine) resizePreview(s *session, minutes int) Preview {
	a := *s.original
	var prior, next *model.Assignment
	for i := range s.tl.Assignments {
		b := &s.tl.Assignments[i]
		if b.EndMinutes <= a.StartMinutes {
			prior = b
		}
		if next == nil && b.StartMinutes >= a.EndMinutes {
			next = b
		}
	}
	lo, hi := 0, m.cfg.WorkdayMinutes
	if prior != nil {
		lo = prior.EndMinutes
	}
	if next != nil {
		hi = next.StartMinutes
	}

	p := Preview{CrewID: a.CrewID, Day: a.Date, Blocks: s.tl.Blocks}
	if a.CrewID != "" {
		before, after := m.sides(a, prior, next)
		for _, side := range []windows.Side{before, after} {
			switch {
			case len(side.Missing) > 0:
				p.Reason = model.NewReason(model.ReasonTravelPending, "")
				return p
			case side.Unknown && side.HQ:
				p.Reason = model.NewReason(model.ReasonHQTravelUnknown, "")
				return p
			}
		}
		lo = interval.CeilTo(lo+before.Minutes, m.cfg.Grid)
		hi = interval.FloorTo(hi-after.Minutes, m.cfg.Grid)
	}

	start, end := a.StartMinutes, a.EndMinutes
	if s.edge == EdgeStart {
		start = clamp(minutes, lo, end-m.cfg.Grid)
	} else {
		end = clamp(minutes, start+m.cfg.Grid, hi)
	}
	p.Start, p.End = start, end
	if start >= end || start < lo || end > hi {
		p.Reason = model.NewReason(model.ReasonOutOfBounds, "no room to resize")
		return p
	}
	p.Placement = model.PlacementResult{Start: start, Feasible: true}
	p.Valid = true
	return p
}

func (m *Machine) sides(a model.Assignment, prior, next *model.Assignment) (windows.Side, windows.Side) {
	var addr model.Address
	if m.jobs != nil {
		addr, _ = m.jobs.JobAddress(a.JobID)
	}
	in := windows.Input{
		Travel:    m.travel,
		Jobs:      m.jobs,
		Address:   addr,
		HQ:        m.cfg.HQ,
		StartAtHQ: a.StartAtHQ,
		EndAtHQ:   a.EndAtHQ,
	}
	return in.Sides(prior, next)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Release ends the session. A valid preview is committed exactly once;
// otherwise the session aborts with the preview's reason. The session is
// discarded either way.
func (m *Machine) Release(ctx context.Context) (commit.Outcome, error) {
	m.mu.Lock()
	s := m.sess
	prev := m.state
	if s == nil || (prev != Dragging && prev != Resizing) {
		m.mu.Unlock()
		return commit.Outcome{}, ErrNoSession
	}
	m.state = Committing
	m.mu.Unlock()

	var (
		out commit.Outcome
		err error
	)
	defer func() { m.finish(s, err == nil, err) }()

	if s.samples == 0 {
		err = model.NewReason(model.ReasonCancelled, "released without moving")
		return out, err
	}
	if !s.preview.Valid {
		if s.preview.Reason != nil {
			err = s.preview.Reason
		} else {
			err = model.NewReason(model.ReasonInvalidInput, "no valid placement")
		}
		return out, err
	}
	out, err = m.commit.Commit(ctx, m.request(s))
	return out, err
}

func (m *Machine) request(s *session) commit.Request {
	p := s.preview
	if s.kind == "resize" {
		d := *s.original
		d.StartMinutes, d.EndMinutes = p.Start, p.End
		return commit.Request{Op: commit.OpUpdate, ID: d.ID, Draft: d, SkipSnap: true}
	}
	d := model.Assignment{
		JobID:        s.mover.JobID,
		CrewID:       p.CrewID,
		Date:         p.Day,
		StartMinutes: p.Start,
		EndMinutes:   p.End,
		StartAtHQ:    s.mover.StartAtHQ,
		EndAtHQ:      s.mover.EndAtHQ,
	}
	if s.original != nil {
		d.Status = s.original.Status
		return commit.Request{Op: commit.OpUpdate, ID: s.original.ID, Draft: d}
	}
	return commit.Request{Op: commit.OpCreate, Draft: d}
}

// Cancel aborts the session without committing.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	s := m.sess
	st := m.state
	m.mu.Unlock()
	if s == nil || (st != Dragging && st != Resizing) {
		return ErrNoSession
	}
	m.finish(s, false, model.NewReason(model.ReasonCancelled, ""))
	return nil
}

func (m *Machine) finish(s *session, committed bool, err error) {
	m.mu.Lock()
	if m.sess == s {
		m.sess = nil
		m.state = Idle
	}
	m.mu.Unlock()

	rec := metrics.SessionRecord{Kind: s.kind, Committed: committed, Reason: model.ReasonOf(err), Samples: s.samples, Time: time.Now()}
	if sr, ok := m.metrics.(metrics.SessionRecorder); ok {
		if rerr := sr.RecordSession(rec); rerr != nil {
			m.log.Errorf("session metrics error: %v", rerr)
		}
	}
	if err != nil && !committed {
		m.log.Debugf("%s session ended without commit: %v", s.kind, err)
	}
}

func reasonOf(err error) *model.Reason {
	var r *model.Reason
	if errors.As(err, &r) {
		return r
	}
	return model.NewReason(model.ReasonInvalidInput, fmt.Sprint(err))
}
