package govctl

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, mode Mode) *Controller {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gov.data")
	c, err := New(WithMode(mode), WithLogPath(path), WithSeed(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// runTwoThreadsTwoSteps drives the S1 scenario: two threads, ids 1 and 2,
// each calling ControlPoint twice before unsubscribing.
func runTwoThreadsTwoSteps(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.Prepare(2))

	var wg sync.WaitGroup
	wg.Add(2)
	run := func(userID uint64) {
		defer wg.Done()
		h := c.NewHandle()
		require.NoError(t, c.Subscribe(h, userID))
		require.NoError(t, c.ControlPoint(h))
		require.NoError(t, c.ControlPoint(h))
		require.NoError(t, c.Unsubscribe(h))
	}
	go run(1)
	go run(2)
	wg.Wait()
}

// TestMutualExclusionOfRunners is testable property 1: at no time are two
// subscribed threads simultaneously between two successive ControlPoint
// returns.
func TestMutualExclusionOfRunners(t *testing.T) {
	c := newTestController(t, ModeRandom)
	require.NoError(t, c.Prepare(4))

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := uint64(1); i <= 4; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			h := c.NewHandle()
			require.NoError(t, c.Subscribe(h, id))
			for step := 0; step < 5; step++ {
				require.NoError(t, c.ControlPoint(h))
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				atomic.AddInt32(&inside, -1)
			}
			require.NoError(t, c.Unsubscribe(h))
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, int(atomic.LoadInt32(&maxInside)), 1)
}

// TestSchedulePrefixEquality is testable property 2 / scenario S1+S2: a
// random run's gov.data replays identically in preset mode.
func TestSchedulePrefixEquality(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gov.data")

	rc, err := New(WithMode(ModeRandom), WithLogPath(path), WithSeed(7))
	require.NoError(t, err)
	runTwoThreadsTwoSteps(t, rc)
	recorded := rc.Schedule()
	require.NoError(t, rc.Close())

	require.True(t, recorded.Done)
	require.Len(t, recorded.Points, 4)

	pc, err := New(WithMode(ModePreset), WithLogPath(path))
	require.NoError(t, err)
	defer pc.Close()
	runTwoThreadsTwoSteps(t, pc)
	replayed := pc.Schedule()

	assert.Equal(t, recorded.Points, replayed.Points)
}

// TestHigherCorrectness is testable property 4: every emitted point's
// Higher field equals the live count of strictly-greater subscribed ids.
func TestHigherCorrectness(t *testing.T) {
	c := newTestController(t, ModeRandom)
	runTwoThreadsTwoSteps(t, c)
	for _, p := range c.Schedule().Points {
		assert.True(t, p.Valid(), "point %v violates higher < available", p)
		// Ids 1 and 2: while both are subscribed only id 1 has a greater
		// live id; once one has left, the survivor has none.
		want := uint64(0)
		if p.Available == 2 && p.ThreadID == 1 {
			want = 1
		}
		assert.Equal(t, want, p.Higher, "point %v", p)
	}
}

// TestPrepareSubscribeArithmetic is testable property 5.
func TestPrepareSubscribeArithmetic(t *testing.T) {
	c := newTestController(t, ModeRandom)
	require.NoError(t, c.Prepare(2))

	h1 := c.NewHandle()
	h2 := c.NewHandle()
	require.NoError(t, c.Subscribe(h1, 1))
	require.NoError(t, c.Subscribe(h2, 2))

	h3 := c.NewHandle()
	err := c.Subscribe(h3, 3)
	assert.Error(t, err)

	before := c.threadsToSubscribe
	require.NoError(t, c.Unsubscribe(h1))
	assert.Equal(t, before, c.threadsToSubscribe)
	require.NoError(t, c.Unsubscribe(h2))
}

// TestIdempotentReset is testable property 6: two consecutive Resets
// with no intervening scheduling must be equivalent to one, in every
// mode. ModeRandom's resetLocked branch is unconditionally idempotent on
// its own, so it alone can't catch a mode whose idempotency depends on
// tracking whether scheduling actually happened (ModePreset, ModeExplore).
func TestIdempotentReset(t *testing.T) {
	t.Run("random before any run", func(t *testing.T) {
		c := newTestController(t, ModeRandom)
		ok1, err := c.Reset()
		require.NoError(t, err)
		ok2, err := c.Reset()
		require.NoError(t, err)
		assert.Equal(t, ok1, ok2)
		assert.Equal(t, Schedule{}, c.Schedule())
	})

	t.Run("random after a run", func(t *testing.T) {
		c := newTestController(t, ModeRandom)
		runTwoThreadsTwoSteps(t, c)
		ok1, err := c.Reset()
		require.NoError(t, err)
		ok2, err := c.Reset()
		require.NoError(t, err)
		assert.Equal(t, ok1, ok2)
	})

	t.Run("preset after its single run", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gov.data")
		rc, err := New(WithMode(ModeRandom), WithLogPath(path), WithSeed(3))
		require.NoError(t, err)
		runTwoThreadsTwoSteps(t, rc)
		require.NoError(t, rc.Close())

		pc, err := New(WithMode(ModePreset), WithLogPath(path))
		require.NoError(t, err)
		defer pc.Close()
		runTwoThreadsTwoSteps(t, pc)

		ok1, err := pc.Reset()
		require.NoError(t, err)
		ok2, err := pc.Reset()
		require.NoError(t, err)
		assert.Equal(t, ok1, ok2, "preset must report the same outcome on repeated Resets with no scheduling between them")
		assert.False(t, ok1, "preset is single-shot: no further run after the recorded one")
	})

	t.Run("explore after a run", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gov.data")
		c, err := New(WithMode(ModeExplore), WithLogPath(path))
		require.NoError(t, err)
		defer c.Close()
		runExploreProgram(t, c, []uint64{1, 2}, 1)

		ok1, err := c.Reset()
		require.NoError(t, err)
		ok2, err := c.Reset()
		require.NoError(t, err)
		assert.Equal(t, ok1, ok2, "explore must not advance the DFS frontier a second time with no scheduling between Resets")
	})
}

// TestPresetInconsistency is scenario S3: a hand-edited gov.data naming
// an unknown id aborts with a precise diagnostic.
func TestPresetInconsistency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gov.data")
	writeRawLog(t, path, "3 2 0\nEND\n")

	c, err := New(WithMode(ModePreset), WithLogPath(path))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Prepare(2))
	h1 := c.NewHandle()
	h2 := c.NewHandle()
	require.NoError(t, c.Subscribe(h1, 1))
	require.NoError(t, c.Subscribe(h2, 2))

	errs := make(chan error, 2)
	go func() { errs <- c.ControlPoint(h1) }()
	go func() { errs <- c.ControlPoint(h2) }()

	err1 := <-errs
	err2 := <-errs

	var scheduleErr *ScheduleInconsistencyError
	var found bool
	for _, e := range []error{err1, err2} {
		if e != nil {
			require.ErrorAs(t, e, &scheduleErr)
			found = true
		}
	}
	require.True(t, found, "expected one ControlPoint call to surface the inconsistency")
	assert.Equal(t, 0, scheduleErr.Index)
	assert.Equal(t, "thread_id", scheduleErr.Field)
	assert.Equal(t, uint64(3), scheduleErr.Want)
}

// TestAutoUnsubscribeViaHandleClose is scenario S5: Close acts as the
// thread-exit hook and a fresh handle can reuse the vacated id.
func TestAutoUnsubscribeViaHandleClose(t *testing.T) {
	c := newTestController(t, ModeRandom)
	require.NoError(t, c.Prepare(1))

	h := c.NewHandle()
	require.NoError(t, c.Subscribe(h, 9))
	require.NoError(t, c.ControlPoint(h))
	h.Close()
	h.Close() // idempotent

	require.NoError(t, c.Prepare(1))
	h2 := c.NewHandle()
	require.NoError(t, c.Subscribe(h2, 9))
	require.NoError(t, c.Unsubscribe(h2))
}

// TestLogGrowsAcrossPages is scenario S6: a run producing more points
// than fit in one 4 KiB page grows the store without data loss.
func TestLogGrowsAcrossPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gov.data")
	c, err := New(WithMode(ModeRandom), WithLogPath(path), WithSeed(3))
	require.NoError(t, err)

	require.NoError(t, c.Prepare(3))
	var wg sync.WaitGroup
	wg.Add(3)
	for i := uint64(1); i <= 3; i++ {
		go func(id uint64) {
			defer wg.Done()
			h := c.NewHandle()
			require.NoError(t, c.Subscribe(h, id))
			for step := 0; step < 400; step++ {
				require.NoError(t, c.ControlPoint(h))
			}
			require.NoError(t, c.Unsubscribe(h))
		}(i)
	}
	wg.Wait()

	recorded := c.Schedule()
	require.True(t, recorded.Done)
	assert.Equal(t, 1200, len(recorded.Points))
	require.NoError(t, c.Close())

	pc, err := New(WithMode(ModePreset), WithLogPath(path))
	require.NoError(t, err)
	defer pc.Close()

	require.NoError(t, pc.Prepare(3))
	wg.Add(3)
	for i := uint64(1); i <= 3; i++ {
		go func(id uint64) {
			defer wg.Done()
			h := pc.NewHandle()
			require.NoError(t, pc.Subscribe(h, id))
			for step := 0; step < 400; step++ {
				require.NoError(t, pc.ControlPoint(h))
			}
			require.NoError(t, pc.Unsubscribe(h))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, recorded.Points, pc.Schedule().Points)
}

func writeRawLog(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
