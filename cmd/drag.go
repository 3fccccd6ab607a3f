package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/crewsched/core/commit"
	"github.com/kilianp07/crewsched/core/hq"
	"github.com/kilianp07/crewsched/core/interaction"
	"github.com/kilianp07/crewsched/core/model"
	"github.com/kilianp07/crewsched/core/windows"
	"github.com/kilianp07/crewsched/infra/logger"
	"github.com/kilianp07/crewsched/infra/store"
	"github.com/kilianp07/crewsched/qa/scenarios"
)

var dragOpts struct {
	crew       string
	job        string
	assignment string
	resize     string
	edge       string
	duration   int
	at         []float64
	release    bool
}

var dragCmd = &cobra.Command{
	Use:   "drag <scenario.yaml>",
	Short: "Replay a drag or resize in a scenario day and print every preview",
	Long: "Each --at value is one pointer sample in minutes from the workday start. " +
		"With --release the final preview is committed against an in-memory copy of the day.",
	Args: cobra.ExactArgs(1),
	RunE: runDrag,
}

func init() {
	f := dragCmd.Flags()
	f.StringVar(&dragOpts.crew, "crew", "", "crew lane the pointer moves over")
	f.StringVar(&dragOpts.job, "job", "", "floating job to drop")
	f.StringVar(&dragOpts.assignment, "assignment", "", "existing assignment to move")
	f.StringVar(&dragOpts.resize, "resize", "", "existing assignment to resize")
	f.StringVar(&dragOpts.edge, "edge", "end", "edge to resize: start or end")
	f.IntVar(&dragOpts.duration, "duration", 60, "duration of a floating job in minutes")
	f.Float64SliceVar(&dragOpts.at, "at", nil, "pointer samples in minutes")
	f.BoolVar(&dragOpts.release, "release", false, "commit the last preview")
	rootCmd.AddCommand(dragCmd)
}

type dragOutput struct {
	Previews []interaction.Preview `json:"previews"`
	Outcome  *commit.Outcome       `json:"outcome,omitempty"`
	Error    *model.Reason         `json:"error,omitempty"`
}

func runDrag(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sc, e, err := loadEngine(args[0])
	if err != nil {
		return err
	}
	crew := dragOpts.crew
	if dragOpts.resize != "" {
		for _, a := range sc.Assignments {
			if a.ID == dragOpts.resize {
				crew = a.CrewID
			}
		}
	}
	if crew == "" {
		return fmt.Errorf("--crew is required")
	}
	// Resolve the lane's own legs so the first preview already shows its
	// travel buffers.
	if _, err := e.Timeline(ctx, crew, ""); err != nil {
		return err
	}

	m, cache := newMachine(ctx, sc, e)
	defer cache.Wait()
	if err := begin(m); err != nil {
		return err
	}

	var out dragOutput
	for _, at := range dragOpts.at {
		sample := interaction.Sample{CrewID: crew, Day: sc.Day, Minutes: at}
		p, err := m.Move(sample)
		if err != nil {
			return err
		}
		if p.Reason != nil && p.Reason.Code == model.ReasonTravelPending {
			cache.Wait()
			if p, err = m.Move(sample); err != nil {
				return err
			}
		}
		out.Previews = append(out.Previews, p)
	}

	if !dragOpts.release {
		if err := m.Cancel(); err != nil && !errors.Is(err, interaction.ErrNoSession) {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	}
	res, err := m.Release(ctx)
	if err != nil {
		var r *model.Reason
		if !errors.As(err, &r) {
			return err
		}
		out.Error = r
	} else {
		out.Outcome = &res
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func newMachine(ctx context.Context, sc *scenarios.Scenario, e *scenarios.Engine) (*interaction.Machine, *windows.LaneCache) {
	items := sc.AssignmentModels()
	coll := commit.NewCollection(items)
	cache := windows.NewLaneCache(ctx, e.Resolver(), logger.New("windows"), nil)
	ctrl := commit.NewController(coll, store.NewMemoryStore(items, e.Jobs()), commit.Config{
		WorkdayMinutes: sc.WorkdayMinutes,
		Grid:           sc.Grid,
		HQ:             sc.HQ,
	}, commit.Options{
		Travel:  e.Resolver(),
		Jobs:    e.Jobs(),
		HQ:      hq.NewValidator(e.Resolver(), e.Jobs(), sc.HQ, sc.WorkdayMinutes),
		Windows: cache,
		Logger:  logger.New("commit"),
	})
	m := interaction.New(interaction.Config{
		WorkdayMinutes: sc.WorkdayMinutes,
		Grid:           sc.Grid,
		HQ:             sc.HQ,
	}, coll, ctrl, interaction.Options{
		Travel:  e.Resolver(),
		Jobs:    e.Jobs(),
		Windows: cache,
		Logger:  logger.New("interaction"),
	})
	return m, cache
}

func begin(m *interaction.Machine) error {
	switch {
	case dragOpts.resize != "":
		edge := interaction.EdgeEnd
		switch dragOpts.edge {
		case "end":
		case "start":
			edge = interaction.EdgeStart
		default:
			return fmt.Errorf("unknown edge %q", dragOpts.edge)
		}
		return m.BeginResize(dragOpts.resize, edge)
	case dragOpts.assignment != "":
		return m.BeginDrag(interaction.Mover{AssignmentID: dragOpts.assignment})
	case dragOpts.job != "":
		return m.BeginDrag(interaction.Mover{JobID: dragOpts.job, Duration: dragOpts.duration})
	default:
		return fmt.Errorf("one of --job, --assignment or --resize is required")
	}
}
