package schedule

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/crewsched/core/commit"
	"github.com/kilianp07/crewsched/core/model"
)

type createRequest struct {
	JobID     string `json:"job_id" validate:"required"`
	CrewID    string `json:"crew_id"`
	Day       string `json:"day" validate:"required,daykey"`
	Start     int    `json:"start" validate:"gte=0"`
	End       int    `json:"end" validate:"gtfield=Start"`
	StartAtHQ bool   `json:"start_at_hq"`
	EndAtHQ   bool   `json:"end_at_hq"`
	Status    string `json:"status" validate:"omitempty,oneof=scheduled in_progress completed cancelled"`
}

// updateRequest is a partial update: absent fields keep their stored value.
type updateRequest struct {
	CrewID    *string `json:"crew_id"`
	Day       *string `json:"day" validate:"omitempty,daykey"`
	Start     *int    `json:"start" validate:"omitempty,gte=0"`
	End       *int    `json:"end" validate:"omitempty,gte=0"`
	StartAtHQ *bool   `json:"start_at_hq"`
	EndAtHQ   *bool   `json:"end_at_hq"`
	Status    *string `json:"status" validate:"omitempty,oneof=scheduled in_progress completed cancelled"`
	SkipSnap  bool    `json:"skip_snap"`
	Override  bool    `json:"override"`
}

func (u updateRequest) apply(a model.Assignment) model.Assignment {
	duration := a.Duration()
	if u.CrewID != nil {
		a.CrewID = *u.CrewID
	}
	if u.Day != nil {
		a.Date = model.DayKey(*u.Day)
	}
	if u.Start != nil {
		a.StartMinutes = *u.Start
		a.EndMinutes = *u.Start + duration
	}
	if u.End != nil {
		a.EndMinutes = *u.End
	}
	if u.StartAtHQ != nil {
		a.StartAtHQ = *u.StartAtHQ
	}
	if u.EndAtHQ != nil {
		a.EndAtHQ = *u.EndAtHQ
	}
	if u.Status != nil {
		a.Status = model.Status(*u.Status)
	}
	return a
}

type reconcileRequest struct {
	Day string `json:"day" validate:"required,daykey"`
}

type reconcileResponse struct {
	Day         model.DayKey       `json:"day"`
	Assignments []model.Assignment `json:"assignments"`
}

// commit resolves the travel legs validation will read, then commits.
func (h *Handler) commit(ctx context.Context, req commit.Request) (commit.Outcome, error) {
	if err := h.commits.Prepare(ctx, req); err != nil {
		return commit.Outcome{}, model.WrapReason(model.ReasonCancelled, err)
	}
	return h.commits.Commit(ctx, req)
}

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.commit(r.Context(), commit.Request{
		Op: commit.OpCreate,
		Draft: model.Assignment{
			JobID:        req.JobID,
			CrewID:       req.CrewID,
			Date:         model.DayKey(req.Day),
			StartMinutes: req.Start,
			EndMinutes:   req.End,
			StartAtHQ:    req.StartAtHQ,
			EndAtHQ:      req.EndAtHQ,
			Status:       model.Status(req.Status),
		},
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, out)
}

func (h *Handler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	prev, ok := h.lanes.Get(id)
	if !ok {
		h.fail(w, r, model.NewReason(model.ReasonNotFound, ""))
		return
	}
	out, err := h.commit(r.Context(), commit.Request{
		Op:       commit.OpUpdate,
		ID:       id,
		Draft:    req.apply(prev),
		SkipSnap: req.SkipSnap,
		Override: req.Override,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	req := commit.Request{
		Op:       commit.OpDelete,
		ID:       chi.URLParam(r, "id"),
		Override: r.URL.Query().Get("override") == "true",
	}
	if _, err := h.commits.Commit(r.Context(), req); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if !h.decode(w, r, &req) {
		return
	}
	day := model.DayKey(req.Day)
	if err := h.commits.Reconcile(r.Context(), day); err != nil {
		h.fail(w, r, model.WrapReason(model.ReasonPersistence, err))
		return
	}
	h.writeJSON(w, r, http.StatusOK, reconcileResponse{Day: day, Assignments: h.lanes.Day(day)})
}
