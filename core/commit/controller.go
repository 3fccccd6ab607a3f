// Package commit applies placement changes optimistically to the shared
// assignment collection, persists them, and reconciles or rolls back
// depending on the outcome.
package commit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/crewsched/core/events"
	"github.com/kilianp07/crewsched/core/hq"
	"github.com/kilianp07/crewsched/core/interval"
	"github.com/kilianp07/crewsched/core/logger"
	"github.com/kilianp07/crewsched/core/metrics"
	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/monitoring"
	"github.com/kilianp07/crewsched/core/placement"
	"github.com/kilianp07/crewsched/core/timeline"
	"github.com/kilianp07/crewsched/core/travel"
	"github.com/kilianp07/crewsched/internal/eventbus"
)

// TempIDPrefix marks ids assigned locally before the server answers.
const TempIDPrefix = "tmp-"

// Op is the kind of change being committed.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Request describes one commit. Draft carries the desired placement for
// creates and updates; for updates, empty JobID, Date and Status are taken
// from the stored assignment.
type Request struct {
	Op    Op
	ID    string
	Draft model.Assignment
	// SkipSnap commits Draft's start as is. Used by resize, which has
	// already clamped the moving edge.
	SkipSnap bool
	// Override allows changes to completed assignments.
	Override bool
}

// Outcome is a successful commit. Placement explains any snap between the
// requested and the committed start.
type Outcome struct {
	Assignment    model.Assignment      `json:"assignment"`
	Placement     model.PlacementResult `json:"placement"`
	TravelUnknown bool                  `json:"travel_unknown,omitempty"`
}

// Config holds the organization settings used for validation.
type Config struct {
	WorkdayMinutes int
	Grid           int
	HQ             model.Address
}

// HQChecker validates headquarters buffers. *hq.Validator implements it.
type HQChecker interface {
	Validate(ctx context.Context, c hq.Check) error
}

// Invalidator is told when a lane's assignments changed.
type Invalidator interface {
	Invalidate(crewID string, day model.DayKey)
}

// Options wires optional collaborators.
type Options struct {
	Travel   travel.Table
	Jobs     model.JobDirectory
	HQ       HQChecker
	Windows  Invalidator
	Logger   logger.Logger
	Metrics  metrics.MetricsSink
	Bus      *eventbus.Bus[events.CommitEvent]
	// Prefetch lets Prepare resolve travel legs before a commit.
	Prefetch Prefetcher
	// NewID overrides temporary id generation.
	NewID    func() string
}

// Controller is the single writer of a Collection.
type Controller struct {
	coll     *Collection
	store    Persistence
	cfg      Config
	travel   travel.Table
	jobs     model.JobDirectory
	hq       HQChecker
	windows  Invalidator
	log      logger.Logger
	metrics  metrics.MetricsSink
	bus      *eventbus.Bus[events.CommitEvent]
	prefetch Prefetcher
	newID    func() string

	mu       sync.Mutex
	inflight map[string]bool
}

// NewController creates a Controller over coll backed by store.
func NewController(coll *Collection, store Persistence, cfg Config, opts Options) *Controller {
	if cfg.Grid <= 0 {
		cfg.Grid = timeline.DefaultGrid
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return TempIDPrefix + uuid.NewString() }
	}
	return &Controller{
		coll:     coll,
		store:    store,
		cfg:      cfg,
		travel:   opts.Travel,
		jobs:     opts.Jobs,
		hq:       opts.HQ,
		windows:  opts.Windows,
		log:      logger.OrNop(opts.Logger),
		metrics:  metrics.OrNop(opts.Metrics),
		bus:      opts.Bus,
		prefetch: opts.Prefetch,
		newID:    newID,
		inflight: make(map[string]bool),
	}
}

// Collection returns the collection the controller writes to.
func (c *Controller) Collection() *Collection { return c.coll }

// Commit validates, applies, persists and then reconciles or rolls back the
// request. Every failure is a *model.Reason; validation failures leave no
// trace in the collection.
func (c *Controller) Commit(ctx context.Context, req Request) (out Outcome, err error) {
	start := time.Now()
	defer func() { c.observe(req, out, err, time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return Outcome{}, model.WrapReason(model.ReasonCancelled, err)
	}
	switch req.Op {
	case OpCreate:
		return c.create(ctx, req)
	case OpUpdate:
		return c.update(ctx, req)
	case OpDelete:
		return c.delete(ctx, req)
	default:
		return Outcome{}, model.NewReason(model.ReasonInvalidInput, fmt.Sprintf("unknown operation %q", req.Op))
	}
}

func (c *Controller) create(ctx context.Context, req Request) (Outcome, error) {
	draft := req.Draft
	draft.ID = ""
	if draft.Status == "" {
		draft.Status = model.StatusScheduled
	}
	draft, res, unknown, err := c.validate(ctx, req, draft)
	if err != nil {
		return Outcome{}, err
	}

	tmp := c.newID()
	draft.ID = tmp
	c.coll.insert(draft)
	c.publish(OpCreate, events.PhaseApplied, draft, nil, res, nil)

	payload := draft
	payload.ID = ""
	saved, err := c.store.Create(ctx, payload)
	if err == nil && saved.ID == "" {
		err = errors.New("server returned no id")
	}
	if err != nil {
		c.coll.remove(tmp)
		return Outcome{}, c.rolledBack(OpCreate, draft, nil, res, err)
	}
	c.coll.replace(tmp, saved)
	c.reconciled(OpCreate, saved, nil, res)
	return Outcome{Assignment: saved, Placement: res, TravelUnknown: unknown}, nil
}

func (c *Controller) update(ctx context.Context, req Request) (Outcome, error) {
	if !c.acquire(req.ID) {
		return Outcome{}, model.NewReason(model.ReasonCommitInFlight, "")
	}
	defer c.release(req.ID)

	prev, ok := c.coll.Get(req.ID)
	if !ok {
		return Outcome{}, model.NewReason(model.ReasonNotFound, "")
	}
	if prev.Locked() && !req.Override {
		return Outcome{}, model.NewReason(model.ReasonAssignmentCompleted, "")
	}
	draft := merge(prev, req.Draft)
	draft, res, unknown, err := c.validate(ctx, req, draft)
	if err != nil {
		return Outcome{}, err
	}

	c.coll.replace(prev.ID, draft)
	c.publish(OpUpdate, events.PhaseApplied, draft, &prev, res, nil)

	saved, err := c.store.Update(ctx, draft)
	if err != nil {
		c.coll.replace(prev.ID, prev)
		return Outcome{}, c.rolledBack(OpUpdate, draft, &prev, res, err)
	}
	if saved.ID == "" {
		saved.ID = prev.ID
	}
	c.coll.replace(prev.ID, saved)
	c.reconciled(OpUpdate, saved, &prev, res)
	return Outcome{Assignment: saved, Placement: res, TravelUnknown: unknown}, nil
}

func (c *Controller) delete(ctx context.Context, req Request) (Outcome, error) {
	if req.ID == "" {
		return Outcome{}, model.NewReason(model.ReasonInvalidInput, "id is required")
	}
	if !c.acquire(req.ID) {
		return Outcome{}, model.NewReason(model.ReasonCommitInFlight, "")
	}
	defer c.release(req.ID)

	if cur, ok := c.coll.Get(req.ID); ok && cur.Locked() && !req.Override {
		return Outcome{}, model.NewReason(model.ReasonAssignmentCompleted, "")
	}
	prev, idx, present := c.coll.remove(req.ID)
	var prevPtr *model.Assignment
	if present {
		prevPtr = &prev
		c.publish(OpDelete, events.PhaseApplied, prev, prevPtr, model.PlacementResult{}, nil)
	}

	err := c.store.Delete(ctx, req.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		if present {
			c.coll.restoreAt(idx, prev)
		}
		return Outcome{}, c.rolledBack(OpDelete, prev, prevPtr, model.PlacementResult{}, err)
	}
	if err != nil {
		c.log.Debugf("delete %s: already absent", req.ID)
	}
	c.reconciled(OpDelete, prev, prevPtr, model.PlacementResult{})
	return Outcome{Assignment: prev}, nil
}

// merge fills identity fields of an update draft from the stored copy.
func merge(prev, draft model.Assignment) model.Assignment {
	draft.ID = prev.ID
	if draft.JobID == "" {
		draft.JobID = prev.JobID
	}
	if draft.Date == "" {
		draft.Date = prev.Date
	}
	if draft.Status == "" {
		draft.Status = prev.Status
	}
	return draft
}

// validate checks bounds, snaps the draft forward and enforces travel and
// headquarters buffers against its new neighbours.
func (c *Controller) validate(ctx context.Context, req Request, draft model.Assignment) (model.Assignment, model.PlacementResult, bool, error) {
	if err := draft.Validate(c.cfg.WorkdayMinutes); err != nil {
		return draft, model.PlacementResult{}, false, err
	}
	var lane []model.Assignment
	for _, a := range c.coll.Lane(draft.CrewID, draft.Date) {
		if a.ID != draft.ID {
			lane = append(lane, a)
		}
	}

	res := model.PlacementResult{Start: draft.StartMinutes, Feasible: true}
	duration := draft.Duration()
	if req.SkipSnap {
		for _, a := range lane {
			if a.StartMinutes < draft.EndMinutes && draft.StartMinutes < a.EndMinutes {
				return draft, res, false, model.NewReason(model.ReasonOverlap, "")
			}
		}
	} else {
		tl := timeline.Build(timeline.Input{
			Assignments:    lane,
			Travel:         c.travel,
			Jobs:           c.jobs,
			HQ:             c.cfg.HQ,
			Grid:           c.cfg.Grid,
			CrewID:         draft.CrewID,
			Day:            draft.Date,
			WorkdayMinutes: c.cfg.WorkdayMinutes,
			Logger:         c.log,
		})
		r, err := placement.Resolve(draft.StartMinutes, duration, tl.Blocks, c.cfg.WorkdayMinutes)
		if err != nil {
			return draft, res, false, err
		}
		if !r.Feasible {
			return draft, r, false, r.Reason()
		}
		res = r
		draft.StartMinutes = r.Start
		draft.EndMinutes = r.Start + duration
	}
	if draft.Unassigned() {
		return draft, res, false, nil
	}

	prior, next := neighbours(lane, draft)
	unknown, err := c.checkTravel(draft, prior, next)
	if err != nil {
		return draft, res, false, err
	}
	if c.hq != nil {
		check := hq.Check{Candidate: draft, Prior: prior, Next: next}
		if hq.Applies(check) {
			if err := c.hq.Validate(ctx, check); err != nil {
				return draft, res, false, err
			}
		}
	}
	return draft, res, unknown, nil
}

func neighbours(lane []model.Assignment, a model.Assignment) (prior, next *model.Assignment) {
	for i := range lane {
		if lane[i].EndMinutes <= a.StartMinutes {
			prior = &lane[i]
		}
		if next == nil && lane[i].StartMinutes >= a.EndMinutes {
			next = &lane[i]
		}
	}
	return prior, next
}

// checkTravel enforces the direct travel legs to and from the neighbours.
// Sides routed through headquarters are left to the HQ checker.
func (c *Controller) checkTravel(a model.Assignment, prior, next *model.Assignment) (unknown bool, err error) {
	addr := c.address(a.JobID)
	if c.travel == nil || !addr.Known() {
		return false, nil
	}
	if prior != nil && !a.StartAtHQ && !prior.EndAtHQ {
		u, err := c.leg(c.address(prior.JobID), addr, a.StartMinutes-prior.EndMinutes)
		if err != nil {
			return false, err
		}
		unknown = unknown || u
	}
	if next != nil && !a.EndAtHQ && !next.StartAtHQ {
		u, err := c.leg(addr, c.address(next.JobID), next.StartMinutes-a.EndMinutes)
		if err != nil {
			return false, err
		}
		unknown = unknown || u
	}
	return unknown, nil
}

func (c *Controller) leg(from, to model.Address, available int) (bool, error) {
	if !from.Known() || !to.Known() {
		return false, nil
	}
	m, state := c.travel.Cached(from, to)
	switch state {
	case travel.Pending:
		return false, model.NewReason(model.ReasonTravelPending, "")
	case travel.Unknown:
		c.log.Warnf("travel %s -> %s unknown, committing without a buffer", from, to)
		return true, nil
	}
	if need := interval.CeilMinutes(m, 1); available < need {
		return false, model.NewReason(model.ReasonInsufficientTravel,
			fmt.Sprintf("requires %d minutes of travel, only %d available", need, available))
	}
	return false, nil
}

func (c *Controller) address(jobID string) model.Address {
	if c.jobs == nil {
		return ""
	}
	a, _ := c.jobs.JobAddress(jobID)
	return a
}

func (c *Controller) acquire(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[id] {
		return false
	}
	c.inflight[id] = true
	return true
}

func (c *Controller) release(id string) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
}

func (c *Controller) reconciled(op Op, a model.Assignment, prev *model.Assignment, res model.PlacementResult) {
	if res.SnapDelta > 0 {
		c.log.Infof("%s %s snapped %d minutes later (%s)", op, a.ID, res.SnapDelta, res.SnapReason)
	}
	c.publish(op, events.PhaseReconciled, a, prev, res, nil)
	c.invalidate(a, prev)
}

func (c *Controller) rolledBack(op Op, a model.Assignment, prev *model.Assignment, res model.PlacementResult, cause error) error {
	reason := model.WrapReason(model.ReasonPersistence, cause)
	label := rollbackLabel(cause)
	rollbacksTotal.WithLabelValues(label).Inc()
	c.log.Warnf("%s %s rolled back: %v", op, a.ID, cause)
	monitoring.CaptureException(cause, map[string]string{"module": "commit", "op": string(op), "reason": label})
	c.publish(op, events.PhaseRolledBack, a, prev, res, reason)
	c.invalidate(a, prev)
	return reason
}

func rollbackLabel(err error) string {
	var r *model.Reason
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &r):
		return string(r.Code)
	default:
		return "error"
	}
}

func (c *Controller) invalidate(a model.Assignment, prev *model.Assignment) {
	if c.windows == nil {
		return
	}
	c.windows.Invalidate(a.CrewID, a.Date)
	if prev != nil && (prev.CrewID != a.CrewID || prev.Date != a.Date) {
		c.windows.Invalidate(prev.CrewID, prev.Date)
	}
}

func (c *Controller) publish(op Op, phase events.CommitPhase, a model.Assignment, prev *model.Assignment, res model.PlacementResult, reason *model.Reason) {
	c.bus.Publish(events.CommitEvent{
		Op:         string(op),
		Phase:      phase,
		Assignment: a,
		Previous:   prev,
		Placement:  res,
		Reason:     reason,
	})
}

func (c *Controller) observe(req Request, out Outcome, err error, d time.Duration) {
	outcome := "reconciled"
	code := model.ReasonOf(err)
	switch {
	case code == model.ReasonPersistence:
		outcome = "rolled_back"
	case err != nil:
		outcome = "rejected"
	}
	commitsTotal.WithLabelValues(string(req.Op), outcome).Inc()
	commitDuration.WithLabelValues(string(req.Op)).Observe(d.Seconds())

	a := out.Assignment
	if err != nil {
		a = req.Draft
	}
	rec := metrics.CommitRecord{
		Op:        string(req.Op),
		Outcome:   outcome,
		Reason:    code,
		CrewID:    a.CrewID,
		Day:       a.Date,
		SnapDelta: out.Placement.SnapDelta,
		Duration:  d,
		Time:      time.Now(),
	}
	if err := c.metrics.RecordCommit(rec); err != nil {
		c.log.Errorf("commit metrics error: %v", err)
	}
}

// Reconcile replaces the day's assignments with the persisted copy.
func (c *Controller) Reconcile(ctx context.Context, day model.DayKey) error {
	items, err := c.store.List(ctx, day)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", day, err)
	}
	before := c.coll.Day(day)
	c.coll.ReplaceDay(day, items)
	if c.windows != nil {
		seen := map[string]bool{}
		for _, a := range append(before, items...) {
			if !seen[a.CrewID] {
				seen[a.CrewID] = true
				c.windows.Invalidate(a.CrewID, day)
			}
		}
	}
	c.log.Infof("reconciled %s: %d assignments", day, len(items))
	return nil
}
