package govctl

import "fmt"

// ConfigError signals an unrecognised GOV_MODE value (spec.md §7,
// "Configuration error").
type ConfigError struct {
	Value string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("govctl: unrecognised GOV_MODE %q", e.Value)
}

// MisuseError signals an API contract violation (spec.md §7, "API
// misuse"): subscribing before Prepare, a duplicate user id, Prepare
// during an active run, and so on.
type MisuseError struct {
	Op     string
	Reason string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("govctl: %s: %s", e.Op, e.Reason)
}

// ScheduleInconsistencyError signals a preset-mode mismatch between the
// stored schedule and the live registry (spec.md §7): wrong available,
// wrong higher, an id that isn't subscribed, or a missing record at the
// cursor. It names the record index and field precisely, and carries the
// stored point and the live registry snapshot that didn't match it, per
// SPEC_FULL.md §10.3.
type ScheduleInconsistencyError struct {
	Index   int
	Field   string
	Want    uint64
	Got     uint64
	Point   Point
	LiveIDs []uint64
}

func (e *ScheduleInconsistencyError) Error() string {
	return fmt.Sprintf(
		"govctl: schedule inconsistency at record %d: field %s: stored point %s wants %d, registry has %d (live ids %v)",
		e.Index, e.Field, e.Point, e.Want, e.Got, e.LiveIDs,
	)
}

// LogError wraps an I/O failure against the schedule log's backing store
// (spec.md §7, "Log I/O failure").
type LogError struct {
	Op  string
	Err error
}

func (e *LogError) Error() string {
	return fmt.Sprintf("govctl: log %s: %v", e.Op, e.Err)
}

func (e *LogError) Unwrap() error { return e.Err }

// ExhaustedError is returned by Reset in explore mode once advance-frontier
// has emptied the schedule: the entire search space has been visited
// (spec.md §7, "Explore exhaustion").
type ExhaustedError struct{}

func (e *ExhaustedError) Error() string {
	return "govctl: explore mode: schedule space exhausted"
}
