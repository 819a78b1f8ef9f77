package cmd

import "github.com/spf13/cobra"

var exploreCmd = &cobra.Command{
	Use:   "explore -- <binary> [args...]",
	Short: "exhaustively explore interleavings under GOV_MODE=RUN_EXPLORE",
	Long: `explore runs the target binary once with GOV_MODE=RUN_EXPLORE. The
target is expected to call a Controller's Reset method in a loop between
runs, as the govctl package's Reset returns (more bool, err error): the
DFS frontier is exhausted, and the process should exit cleanly, when more
is false. explore itself execs the binary exactly once; the repetition
over distinct schedules happens inside that one process so every run
shares the same Controller and schedule log.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTarget(args, "RUN_EXPLORE")
	},
}

func init() {
	rootCmd.AddCommand(exploreCmd)
}
