package cmd

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run -- <binary> [args...]",
	Short: "run the target binary once under GOV_MODE=RUN_RANDOM",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTarget(args, "RUN_RANDOM")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runTarget execs args[0] with args[1:], setting GOV_MODE and
// GOV_DATA_PATH in its environment, and propagates its exit code the way
// the teacher's handleLinkCommand propagates the linker's.
func runTarget(args []string, mode string) error {
	child := exec.Command(args[0], args[1:]...)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Stdin = os.Stdin
	child.Env = append(os.Environ(),
		"GOV_MODE="+mode,
		"GOV_DATA_PATH="+logPath,
	)
	if cpuDiagnostics {
		child.Env = append(child.Env, "GOV_AFFINITY_DIAGNOSTICS=1")
	}
	if err := child.Run(); err != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			os.Exit(exitErr.ExitCode())
		}
		return err
	}
	return nil
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}
