// Package schedule exposes the placement engine over HTTP: lane timelines,
// placement and window previews, and assignment commits.
package schedule

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kilianp07/crewsched/core/commit"
	"github.com/kilianp07/crewsched/core/logger"
	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/windows"
)

// Committer applies changes to the schedule. *commit.Controller implements it.
type Committer interface {
	Prepare(ctx context.Context, req commit.Request) error
	Commit(ctx context.Context, req commit.Request) (commit.Outcome, error)
	Reconcile(ctx context.Context, day model.DayKey) error
}

// Lanes reads the current assignments. *commit.Collection implements it.
type Lanes interface {
	Get(id string) (model.Assignment, bool)
	Lane(crewID string, day model.DayKey) []model.Assignment
	Day(day model.DayKey) []model.Assignment
}

// WindowCache stores lane window sets. *windows.LaneCache implements it.
type WindowCache interface {
	Ensure(key windows.LaneKey, in windows.Input) windows.Result
}

// Config holds the organization settings previews are computed against.
type Config struct {
	WorkdayMinutes int
	Grid           int
	HQ             model.Address
}

// Options wires the handler's collaborators. Travel is required.
type Options struct {
	Travel  windows.Source
	Jobs    model.JobDirectory
	Windows WindowCache
	Logger  logger.Logger
}

type Handler struct {
	validate *validator.Validate
	cfg      Config
	commits  Committer
	lanes    Lanes
	travel   windows.Source
	jobs     model.JobDirectory
	windows  WindowCache
	log      logger.Logger

	Mux *chi.Mux
}

func NewHandler(cfg Config, commits Committer, lanes Lanes, opts Options) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("daykey", func(fl validator.FieldLevel) bool {
		_, err := model.ParseDayKey(fl.Field().String())
		return err == nil
	}); err != nil {
		return nil, err
	}
	return &Handler{
		validate: validate,
		cfg:      cfg,
		commits:  commits,
		lanes:    lanes,
		travel:   opts.Travel,
		jobs:     opts.Jobs,
		windows:  opts.Windows,
		log:      logger.OrNop(opts.Logger),

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Get("/timeline", h.GetTimeline)
	h.Mux.Post("/placement", h.PreviewPlacement)
	h.Mux.Post("/windows", h.ListWindows)
	h.Mux.Post("/reconcile", h.Reconcile)

	h.Mux.Route("/assignments", func(r chi.Router) {
		r.Post("/", h.CreateAssignment)
		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/", h.UpdateAssignment)
			r.Delete("/", h.DeleteAssignment)
		})
	})
}
