package cmd

import "github.com/spf13/cobra"

var replayCmd = &cobra.Command{
	Use:   "replay -- <binary> [args...]",
	Short: "replay a recorded schedule under GOV_MODE=RUN_PRESET",
	Long: `replay runs the target binary with GOV_MODE=RUN_PRESET, so every
subscribed thread's ControlPoint calls are checked against the schedule
previously recorded at --data instead of being decided afresh. Any
divergence between the recorded schedule and the threads that actually
subscribe is reported by the target as a ScheduleInconsistencyError.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTarget(args, "RUN_PRESET")
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
