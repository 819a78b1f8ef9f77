package govctl

import (
	"context"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
)

// affinityMask is the process-global CPU affinity handle described in
// spec.md §5/§9: carried as state but off by default. gopsutil has no
// portable affinity-pinning primitive (it only reports topology), so
// this is kept to the diagnostic the spec explicitly scopes it down to:
// reporting how many logical CPUs a pinned run could spread across,
// lazily queried on first use, never touched unless a caller opts in.
type affinityMask struct {
	once    sync.Once
	count   int
	queried bool
}

var processAffinity affinityMask

// AffinityDiagnosticsEnabled reports whether CPU affinity diagnostics are
// enabled for this process. Off by default (spec.md §9's open question:
// "treat it as an optional, off-by-default diagnostic"); New sets it to
// true when GOV_AFFINITY_DIAGNOSTICS is present in the environment, the
// same way GOV_MODE and GOV_DATA_PATH are read, and the govctl CLI's
// run/replay/explore subcommands set that variable from a
// --cpu-diagnostics flag.
var AffinityDiagnosticsEnabled = false

// LogicalCPUCount lazily queries and caches the number of logical CPUs
// visible to the process, for diagnostic logging only. It does no
// pinning and has no effect on scheduling decisions.
func LogicalCPUCount(ctx context.Context) (int, error) {
	var err error
	processAffinity.once.Do(func() {
		counts, cerr := cpu.CountsWithContext(ctx, true)
		if cerr != nil {
			err = cerr
			return
		}
		processAffinity.count = counts
		processAffinity.queried = true
	})
	if err != nil {
		return 0, err
	}
	return processAffinity.count, nil
}
