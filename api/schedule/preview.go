package schedule

import (
	"context"
	"net/http"

	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/placement"
	"github.com/kilianp07/crewsched/core/timeline"
	"github.com/kilianp07/crewsched/core/windows"
)

// timeline builds the lane with its pending legs resolved first, so the
// preview never treats unknown travel as free time.
func (h *Handler) timeline(ctx context.Context, crewID string, day model.DayKey, excludeID string) (timeline.Timeline, error) {
	in := timeline.Input{
		Assignments:    h.lanes.Lane(crewID, day),
		Travel:         h.travel,
		Jobs:           h.jobs,
		HQ:             h.cfg.HQ,
		Grid:           h.cfg.Grid,
		CrewID:         crewID,
		Day:            day,
		ExcludeID:      excludeID,
		WorkdayMinutes: h.cfg.WorkdayMinutes,
		Logger:         h.log,
	}
	tl := timeline.Build(in)
	if len(tl.Missing) == 0 {
		return tl, nil
	}
	if err := h.travel.PrefetchAll(ctx, tl.Missing); err != nil {
		return tl, model.WrapReason(model.ReasonCancelled, err)
	}
	return timeline.Build(in), nil
}

func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := model.ParseDayKey(q.Get("day"))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	tl, err := h.timeline(r.Context(), q.Get("crew_id"), day, q.Get("exclude_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, tl)
}

type placementRequest struct {
	CrewID string `json:"crew_id"`
	Day    string `json:"day" validate:"required,daykey"`
	// AssignmentID previews moving an existing assignment; its own block
	// is ignored and its length is used when Duration is zero.
	AssignmentID string `json:"assignment_id"`
	Start        int    `json:"start" validate:"gte=0"`
	Duration     int    `json:"duration" validate:"required_without=AssignmentID,gte=0"`
}

type placementResponse struct {
	Placement   model.PlacementResult `json:"placement"`
	End         int                   `json:"end,omitempty"`
	Blocks      []model.OccupiedBlock `json:"blocks"`
	UnknownLegs int                   `json:"unknown_legs"`
}

func (h *Handler) PreviewPlacement(w http.ResponseWriter, r *http.Request) {
	var req placementRequest
	if !h.decode(w, r, &req) {
		return
	}
	duration := req.Duration
	if req.AssignmentID != "" {
		a, ok := h.lanes.Get(req.AssignmentID)
		if !ok {
			h.fail(w, r, model.NewReason(model.ReasonNotFound, ""))
			return
		}
		if duration == 0 {
			duration = a.Duration()
		}
	}
	tl, err := h.timeline(r.Context(), req.CrewID, model.DayKey(req.Day), req.AssignmentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := placement.Resolve(req.Start, duration, tl.Blocks, h.cfg.WorkdayMinutes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := placementResponse{Placement: res, Blocks: tl.Blocks, UnknownLegs: tl.UnknownLegs}
	if res.Feasible {
		out.End = res.Start + duration
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

type windowsRequest struct {
	CrewID    string `json:"crew_id" validate:"required"`
	Day       string `json:"day" validate:"required,daykey"`
	JobID     string `json:"job_id" validate:"required"`
	Duration  int    `json:"duration" validate:"required,gt=0"`
	ExcludeID string `json:"exclude_id"`
	StartAtHQ bool   `json:"start_at_hq"`
	EndAtHQ   bool   `json:"end_at_hq"`
}

func (h *Handler) ListWindows(w http.ResponseWriter, r *http.Request) {
	var req windowsRequest
	if !h.decode(w, r, &req) {
		return
	}
	// Without a known address the job is only kept off the other jobs.
	var addr model.Address
	if h.jobs != nil {
		addr, _ = h.jobs.JobAddress(req.JobID)
	}
	day := model.DayKey(req.Day)
	tl, err := h.timeline(r.Context(), req.CrewID, day, req.ExcludeID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in := windows.Input{
		Assignments: tl.Assignments,
		Travel:      h.travel,
		Jobs:        h.jobs,
		Address:     addr,
		Duration:    req.Duration,
		WorkdayEnd:  h.cfg.WorkdayMinutes,
		Grid:        h.cfg.Grid,
		HQ:          h.cfg.HQ,
		StartAtHQ:   req.StartAtHQ,
		EndAtHQ:     req.EndAtHQ,
	}
	res, err := h.enumerate(r.Context(), windows.LaneKey{CrewID: req.CrewID, Day: day, JobID: req.JobID}, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, res)
}

// enumerate computes the window set through the lane cache when one is
// configured, resolving pending legs before answering.
func (h *Handler) enumerate(ctx context.Context, key windows.LaneKey, in windows.Input) (windows.Result, error) {
	compute := windows.Enumerate
	if h.windows != nil {
		compute = func(in windows.Input) windows.Result { return h.windows.Ensure(key, in) }
	}
	res := compute(in)
	if !res.Pending {
		return res, nil
	}
	if err := h.travel.PrefetchAll(ctx, res.Missing); err != nil {
		return res, model.WrapReason(model.ReasonCancelled, err)
	}
	return compute(in), nil
}
