package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/crewsched/app"
	"github.com/kilianp07/crewsched/config"
	"github.com/kilianp07/crewsched/infra/logger"
)

var (
	cfgPath  string
	listen   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "crewsched",
	Short: "Field crew scheduling service",
	Long: `Serves the scheduling API: timeline and placement previews, travel
windows and assignment commits for crew lanes. Scenario subcommands run the
same engine against a YAML day file without a server.`,
	SilenceUsage: true,
	RunE:         serve,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.Flags().StringVar(&listen, "listen", "", "API listen address, overrides api.address")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level, overrides logging.level")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if listen != "" {
		cfg.API.Address = listen
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
		if err := cfg.Logging.Validate(); err != nil {
			return fmt.Errorf("log-level: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("crewsched").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
