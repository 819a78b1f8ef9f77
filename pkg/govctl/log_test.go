package govctl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleLogAppendLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gov.data")
	l, err := openScheduleLog(path)
	require.NoError(t, err)
	defer l.close()

	require.NoError(t, l.resetForWrite())
	pts := []Point{{1, 2, 1}, {2, 1, 0}}
	for _, p := range pts {
		require.NoError(t, l.append(p))
	}
	require.NoError(t, l.finalize())

	sched, err := l.load()
	require.NoError(t, err)
	assert.True(t, sched.Done)
	assert.Equal(t, pts, sched.Points)
}

func TestScheduleLogStopsAtFirstUnparsableLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gov.data")
	require.NoError(t, os.WriteFile(path, []byte("1 2 0\nnot a record\n3 4 5\n"), 0o644))

	l, err := openScheduleLog(path)
	require.NoError(t, err)
	defer l.close()

	sched, err := l.load()
	require.Error(t, err)
	assert.False(t, sched.Done)
	assert.Equal(t, []Point{{1, 2, 0}}, sched.Points)
}

func TestScheduleLogIncompleteRunHasNoEndMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gov.data")
	require.NoError(t, os.WriteFile(path, []byte("1 2 0\n2 1 0\n"), 0o644))

	l, err := openScheduleLog(path)
	require.NoError(t, err)
	defer l.close()

	sched, err := l.load()
	require.NoError(t, err)
	assert.False(t, sched.Done)
	assert.Len(t, sched.Points, 2)
}

func TestScheduleLogGrowsInPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gov.data")
	l, err := openScheduleLog(path)
	require.NoError(t, err)
	defer l.close()

	require.NoError(t, l.resetForWrite())
	assert.Equal(t, 1, l.pages)

	// Each "0 1 0\n" record is 6 bytes; writing well past one page forces
	// ensureCapacity to double the page count.
	for i := 0; i < 1000; i++ {
		require.NoError(t, l.append(Point{0, 1, 0}))
	}
	assert.Greater(t, l.pages, 1)

	sched, err := l.load()
	require.NoError(t, err)
	assert.Len(t, sched.Points, 1000)
}

func TestScheduleLogResetForWriteTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gov.data")
	l, err := openScheduleLog(path)
	require.NoError(t, err)
	defer l.close()

	require.NoError(t, l.resetForWrite())
	require.NoError(t, l.append(Point{1, 1, 0}))
	require.NoError(t, l.finalize())

	require.NoError(t, l.resetForWrite())
	sched, err := l.load()
	require.NoError(t, err)
	assert.Empty(t, sched.Points)
	assert.False(t, sched.Done)
}
