package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

var (
	logPath        string
	cpuDiagnostics bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "govctl",
	Short: "govctl drives a program under the deterministic scheduling controller",
	Long: `govctl sets GOV_MODE and GOV_DATA_PATH and execs a target binary
built against the github.com/lfguard/govctl/pkg/govctl controller, so its
subscribed threads run under random generation, exhaustive exploration, or
replay of a recorded schedule.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logPath, "data", "d", "gov.data",
		"path to the schedule log (GOV_DATA_PATH)")
	rootCmd.PersistentFlags().BoolVar(&cpuDiagnostics, "cpu-diagnostics", false,
		"log the target's logical CPU count at startup (GOV_AFFINITY_DIAGNOSTICS)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal().Err(err).Msg("govctl: command failed")
	}
}
