package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kilianp07/crewsched/infra/logger"
	"github.com/kilianp07/crewsched/qa/scenarios"
)

var (
	placeCheck   scenarios.PlaceCheck
	windowsCheck scenarios.WindowsCheck
)

var placeCmd = &cobra.Command{
	Use:   "place <scenario.yaml>",
	Short: "Preview where a job dropped in a scenario day would land",
	Long:  "Without --crew every place check of the scenario is evaluated.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlace,
}

var windowsCmd = &cobra.Command{
	Use:   "windows <scenario.yaml>",
	Short: "List the start windows of a floating job in a scenario day",
	Long:  "Without --crew every windows check of the scenario is evaluated.",
	Args:  cobra.ExactArgs(1),
	RunE:  runWindows,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <scenario.yaml>...",
	Short: "Check scenario expectations against the placement engine",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runVerify,
}

func init() {
	pf := placeCmd.Flags()
	pf.StringVar(&placeCheck.CrewID, "crew", "", "crew lane")
	pf.StringVar(&placeCheck.JobID, "job", "", "job to place")
	pf.IntVar(&placeCheck.Duration, "duration", 60, "duration in minutes")
	pf.IntVar(&placeCheck.Start, "start", 0, "desired start, minutes from workday start")
	pf.StringVar(&placeCheck.ExcludeID, "exclude", "", "assignment being moved")

	wf := windowsCmd.Flags()
	wf.StringVar(&windowsCheck.CrewID, "crew", "", "crew lane")
	wf.StringVar(&windowsCheck.JobID, "job", "", "floating job")
	wf.IntVar(&windowsCheck.Duration, "duration", 60, "duration in minutes")
	wf.BoolVar(&windowsCheck.StartAtHQ, "start-at-hq", false, "job starts from headquarters")
	wf.BoolVar(&windowsCheck.EndAtHQ, "end-at-hq", false, "job returns to headquarters")

	rootCmd.AddCommand(placeCmd, windowsCmd, verifyCmd)
}

func loadEngine(path string) (*scenarios.Scenario, *scenarios.Engine, error) {
	sc, err := scenarios.Load(path)
	if err != nil {
		return nil, nil, err
	}
	e, err := scenarios.NewEngine(sc, logger.New("scenario"))
	if err != nil {
		return nil, nil, err
	}
	return sc, e, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type placeOutput struct {
	Check  scenarios.PlaceCheck `json:"check"`
	Result any                  `json:"result"`
	End    int                  `json:"end_minutes,omitempty"`
}

func runPlace(cmd *cobra.Command, args []string) error {
	sc, e, err := loadEngine(args[0])
	if err != nil {
		return err
	}
	checks := sc.Place
	if placeCheck.CrewID != "" {
		checks = []scenarios.PlaceCheck{placeCheck}
	}
	out := make([]placeOutput, 0, len(checks))
	for _, c := range checks {
		res, _, err := e.Place(cmd.Context(), c)
		if err != nil {
			return fmt.Errorf("place %s in %s: %w", c.JobID, c.CrewID, err)
		}
		o := placeOutput{Check: c, Result: res}
		if res.Feasible {
			o.End = res.Start + c.Duration
		}
		out = append(out, o)
	}
	return printJSON(cmd.OutOrStdout(), out)
}

type windowsOutput struct {
	Check  scenarios.WindowsCheck `json:"check"`
	Result any                    `json:"result"`
}

func runWindows(cmd *cobra.Command, args []string) error {
	sc, e, err := loadEngine(args[0])
	if err != nil {
		return err
	}
	checks := sc.Windows
	if windowsCheck.CrewID != "" {
		checks = []scenarios.WindowsCheck{windowsCheck}
	}
	out := make([]windowsOutput, 0, len(checks))
	for _, c := range checks {
		res, err := e.Windows(cmd.Context(), c)
		if err != nil {
			return fmt.Errorf("windows for %s in %s: %w", c.JobID, c.CrewID, err)
		}
		out = append(out, windowsOutput{Check: c, Result: res})
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func runVerify(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		sc, err := scenarios.Load(path)
		if err != nil {
			return err
		}
		if err := scenarios.Verify(cmd.Context(), sc, logger.New("scenario")); err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s\n%v\n", sc.Name, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", sc.Name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(args))
	}
	return nil
}
