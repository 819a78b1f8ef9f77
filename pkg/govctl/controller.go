package govctl

import (
	"context"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Controller is the process-wide scheduling controller of spec.md §3/§9.
// It is born once per process (via Default, or explicitly via New for
// tests that want an isolated instance) and torn down with Close. All
// mutable state is guarded by mu; the exceptions are activeRunner and
// fatalErr, which a parked thread reads without holding the lock
// (spec.md §5). Both are only written with mu held.
type Controller struct {
	mu sync.Mutex

	mode   Mode
	engine decisionEngine

	logPath string
	log     *scheduleLog

	schedule Schedule
	cursor   int

	threadsToSubscribe int
	reg                *registry

	activeRunner atomic.Pointer[Handle]

	// fatalErr is set once a decision-step call fails (a schedule
	// inconsistency or log I/O failure). Threads already parked in
	// ControlPoint's spin-wait have no other way to learn their run can
	// never produce a runner for them, so they poll this alongside
	// activeRunner instead of spinning forever on a decision that will
	// never arrive.
	fatalErr atomic.Pointer[errBox]

	rng *rand.Rand

	runCount uint64

	logger zerolog.Logger
	closed bool
}

// errBox wraps an error so it can be stored in an atomic.Pointer (an
// interface value can't be stored directly since atomic.Pointer requires
// a concrete pointee type).
type errBox struct{ err error }

// Option configures a Controller built with New.
type Option func(*Controller, *newConfig)

type newConfig struct {
	mode    *Mode
	logPath string
	seed    int64
}

// WithMode overrides GOV_MODE for this controller.
func WithMode(m Mode) Option {
	return func(_ *Controller, cfg *newConfig) { cfg.mode = &m }
}

// WithLogPath overrides the schedule log location, which otherwise
// defaults to GOV_DATA_PATH or "gov.data" (SPEC_FULL.md §10.1).
func WithLogPath(path string) Option {
	return func(_ *Controller, cfg *newConfig) { cfg.logPath = path }
}

// WithSeed fixes the random-mode source for reproducible tests.
func WithSeed(seed int64) Option {
	return func(_ *Controller, cfg *newConfig) { cfg.seed = seed }
}

var (
	defaultController *Controller
	defaultOnce       sync.Once
)

// Default returns the process-wide singleton controller, creating it on
// first use from GOV_MODE/GOV_DATA_PATH. A ConfigError or log-open
// failure here is fatal at load per spec.md §7: it is logged and the
// process exits, matching the teacher's runtime.Initialize fail-fast
// pattern.
func Default() *Controller {
	defaultOnce.Do(func() {
		c, err := New()
		if err != nil {
			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
			logger.Fatal().Err(err).Msg("govctl: failed to initialize default controller")
		}
		defaultController = c
	})
	return defaultController
}

// New builds a controller reading GOV_MODE and GOV_DATA_PATH from the
// environment unless overridden by opts, and performs the mode-appropriate
// birth setup (the force=true variant of Reset, spec.md §4.5).
func New(opts ...Option) (*Controller, error) {
	cfg := newConfig{logPath: os.Getenv("GOV_DATA_PATH"), seed: 0}
	if cfg.logPath == "" {
		cfg.logPath = "gov.data"
	}

	c := &Controller{
		reg:    newRegistry(),
		logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}

	for _, opt := range opts {
		opt(c, &cfg)
	}

	mode := cfg.mode
	if mode == nil {
		m, err := ParseMode(os.Getenv("GOV_MODE"))
		if err != nil {
			return nil, err
		}
		mode = &m
	}
	c.mode = *mode
	c.rng = rand.New(rand.NewSource(cfg.seed))
	c.logPath = cfg.logPath

	switch c.mode {
	case ModeRandom:
		c.engine = &randomEngine{c: c}
	case ModeExplore:
		c.engine = &exploreEngine{c: c}
	case ModePreset:
		c.engine = &presetEngine{c: c}
	}

	l, err := openScheduleLog(c.logPath)
	if err != nil {
		return nil, err
	}
	c.log = l

	c.mu.Lock()
	_, err = c.resetLocked(true)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// GOV_AFFINITY_DIAGNOSTICS mirrors GOV_MODE/GOV_DATA_PATH: the CLI
	// sets it in the target process's environment (SPEC_FULL.md §11's
	// --cpu-diagnostics flag) rather than the diagnostic ever affecting
	// scheduling itself.
	if os.Getenv("GOV_AFFINITY_DIAGNOSTICS") != "" {
		AffinityDiagnosticsEnabled = true
	}
	if AffinityDiagnosticsEnabled {
		if n, err := LogicalCPUCount(context.Background()); err != nil {
			c.logger.Warn().Err(err).Msg("govctl: affinity diagnostics: failed to query logical CPU count")
		} else {
			c.logger.Info().Int("logical_cpus", n).Msg("govctl: affinity diagnostics")
		}
	}

	return c, nil
}

// Close releases the controller's log handle. After Close, every public
// operation is a harmless no-op (spec.md §9: operations after teardown
// must be harmless, since Reset/finalize must be safe to call from a
// process-exit hook).
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.log.close()
}

// Schedule returns a snapshot of the points recorded or replayed so far
// in the current run, and whether the run has been marked complete.
func (c *Controller) Schedule() Schedule {
	c.mu.Lock()
	defer c.mu.Unlock()
	// An empty schedule yields nil Points, so a controller with nothing
	// scheduled reports the zero Schedule.
	pts := append([]Point(nil), c.schedule.Points...)
	return Schedule{Points: pts, Done: c.schedule.Done}
}

// RunCount returns the number of runs this controller has started,
// SPEC_FULL.md §10.4's progress-reporting addition.
func (c *Controller) RunCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runCount
}

// Prepare arms the controller to accept exactly numThreads subscribers.
// It fails if any thread is currently subscribed (spec.md §4.4).
func (c *Controller) Prepare(numThreads int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if c.reg.len() != 0 {
		return &MisuseError{Op: "prepare", Reason: "a thread is still subscribed from a prior run"}
	}
	c.threadsToSubscribe = numThreads
	return nil
}

// Subscribe registers h under userID. It fails fast on a double
// subscribe, an unarmed controller, or a duplicate user id (spec.md
// §4.4).
func (c *Controller) Subscribe(h *Handle, userID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if _, ok := c.reg.lookupByHandle(h); ok {
		return &MisuseError{Op: "subscribe", Reason: "handle is already subscribed"}
	}
	if c.threadsToSubscribe == 0 {
		return &MisuseError{Op: "subscribe", Reason: "controller not armed: call Prepare first"}
	}
	if err := c.reg.insert(h, userID); err != nil {
		return &MisuseError{Op: "subscribe", Reason: err.Error()}
	}
	c.threadsToSubscribe--
	return nil
}

// Unsubscribe deregisters h. It is a no-op if h is not subscribed.
func (c *Controller) Unsubscribe(h *Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if _, ok := c.reg.lookupByHandle(h); !ok {
		return nil
	}
	c.reg.remove(h)
	if err := c.decisionStepLocked(h); err != nil {
		return err
	}

	// The run is over once every prepared thread has come and gone. Write
	// the completion marker so the next load() sees schedule_done, per
	// spec.md §4.1. Preset mode never writes the log.
	runOver := c.reg.len() == 0 && c.threadsToSubscribe == 0
	if runOver && !c.schedule.Done && c.mode != ModePreset {
		if err := c.log.finalize(); err != nil {
			return err
		}
		c.schedule.Done = true
	}
	return nil
}

// ControlPoint yields to the scheduler and returns once it is h's turn.
// It is a no-op if h is not subscribed. The controller lock is released
// before the spin-wait, per spec.md §5.
func (c *Controller) ControlPoint(h *Handle) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	ts, ok := c.reg.lookupByHandle(h)
	if !ok {
		c.mu.Unlock()
		return nil
	}
	ts.inControlPoint = true
	err := c.decisionStepLocked(h)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	for c.activeRunner.Load() != h {
		if fb := c.fatalErr.Load(); fb != nil {
			return fb.err
		}
		runtime.Gosched()
	}
	return nil
}

// decisionStepLocked implements spec.md §4.4's five-step decision-step.
// Callers must hold c.mu.
func (c *Controller) decisionStepLocked(caller *Handle) error {
	if c.activeRunner.Load() == caller {
		c.activeRunner.Store(nil)
	}
	if c.threadsToSubscribe > 0 {
		return nil
	}
	if !c.reg.allParked() {
		return nil
	}
	if c.reg.len() == 0 {
		return nil
	}

	p, err := c.engine.choose(c.reg)
	if err != nil {
		c.fatalErr.Store(&errBox{err})
		c.logger.Error().Err(err).
			Str("caller_handle", caller.ID().String()).
			Msg("govctl: fatal schedule error")
		return err
	}
	next, ok := c.reg.lookupByUserID(p.ThreadID)
	if !ok {
		return &ScheduleInconsistencyError{Field: "thread_id", Want: p.ThreadID, Point: p, LiveIDs: c.reg.snapshotUserIDs()}
	}
	ts, _ := c.reg.lookupByHandle(next)
	ts.inControlPoint = false
	c.activeRunner.Store(next)
	return nil
}

// Reset prepares the controller for the next run. It returns true if a
// run remains to be executed. Per-mode behaviour is spec.md §4.5's:
// random always has a next run; explore advances the DFS frontier and
// may report exhaustion; preset is single-shot after its first Reset.
func (c *Controller) Reset() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, nil
	}
	return c.resetLocked(false)
}

func (c *Controller) resetLocked(force bool) (bool, error) {
	c.fatalErr.Store(nil)

	// If no scheduling has happened since the controller was last reset,
	// ignore the call: this is what keeps repeated Resets with no
	// intervening ControlPoint calls idempotent (spec.md §8 property 6),
	// mirroring Governor::Reset's `_schedIdx == 0` guard in the original
	// implementation rather than a call-count flag, which would flip on
	// the first call regardless of whether any scheduling actually
	// happened.
	if !force && c.cursor == 0 {
		return true, nil
	}

	switch c.mode {
	case ModeRandom:
		c.schedule = Schedule{}
		c.cursor = 0
		if err := c.log.resetForWrite(); err != nil {
			return false, err
		}
		c.runCount++
		return true, nil

	case ModeExplore:
		if force {
			sched, err := c.log.load()
			if err != nil {
				// Explore mode proceeds from the last fully-parsed
				// record on a parse error (spec.md §4.1); any other
				// I/O failure is treated as an empty log (spec.md §7).
				if _, ok := err.(*LogError); !ok {
					return false, err
				}
			}
			c.schedule = sched
		}
		// Run unconditionally, force or not: a freshly-born controller
		// that inherits a gov.data already ending in END (the process
		// that wrote it completed a run and exited) must continue the
		// DFS sweep from there, not silently replay the same schedule.
		// advanceFrontier no-ops when c.schedule.Done is false, so this
		// is harmless on a birth that loaded an in-progress or empty log.
		advancer := c.engine.(frontierAdvancer)
		if exhausted := advancer.advanceFrontier(&c.schedule); exhausted {
			return false, &ExhaustedError{}
		}
		c.cursor = 0
		if err := c.log.resetForWrite(); err != nil {
			return false, err
		}
		c.runCount++
		return true, nil

	case ModePreset:
		if force {
			sched, err := c.log.load()
			if err != nil {
				// Preset mode fails fast if the log is unreadable
				// (spec.md §4.1/§7).
				return false, err
			}
			c.schedule = sched
			c.cursor = 0
			c.runCount++
			return true, nil
		}
		// Past the guard above, c.cursor > 0: a run actually consumed
		// the preset schedule. Preset is single-shot, so every post-run
		// Reset reports no further run. The cursor is left where the run
		// ended, so a repeated Reset comes back here and again reports
		// false instead of being taken for a fresh, unconsumed schedule.
		return false, nil
	}
	return false, nil
}
