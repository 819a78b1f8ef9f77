package govctl

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// pageSize is the backing-store growth increment of spec.md §4.1.
const pageSize = 4096

// scheduleLog is the durable on-disk representation of a Schedule: one
// record per line, three decimal naturals separated by spaces, the
// completion marker being the literal line "END". It is manipulated only
// under the controller's single mutex (spec.md §5), so it carries no
// locking of its own.
type scheduleLog struct {
	path     string
	file     *os.File
	pages    int
	writePos int64
}

// openScheduleLog opens (creating if necessary) the backing file at path.
func openScheduleLog(path string) (*scheduleLog, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &LogError{Op: "open", Err: err}
	}
	return &scheduleLog{path: path, file: f}, nil
}

// load parses the stored schedule from the start of the file. It stops at
// the first unparsable line, which may be the literal "END" (schedule.Done
// is then true) or garbage (a non-nil error is returned alongside the
// partial schedule parsed up to that point, per spec.md §4.1 — the caller
// decides disposition: preset mode treats it as fatal, explore mode
// proceeds from the returned partial schedule).
func (l *scheduleLog) load() (Schedule, error) {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return Schedule{}, &LogError{Op: "seek", Err: err}
	}

	var sched Schedule
	lineNo := 0
	sc := bufio.NewScanner(l.file)
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if len(line) > 0 && line[0] == 0 {
			// Zero bytes are the unwritten page padding left by
			// resetForWrite/ensureCapacity: the end of the data, not
			// garbage.
			return sched, nil
		}
		if line == "END" {
			sched.Done = true
			return sched, nil
		}
		var p Point
		n, err := fmt.Sscanf(line, "%d %d %d", &p.ThreadID, &p.Available, &p.Higher)
		if err != nil || n != 3 {
			return sched, &LogError{Op: "parse", Err: fmt.Errorf("line %d unparsable: %q", lineNo, line)}
		}
		sched.Points = append(sched.Points, p)
	}
	if err := sc.Err(); err != nil {
		return sched, &LogError{Op: "read", Err: err}
	}
	// Clean EOF (or page padding, above) with no trailing garbage: a
	// normal, not-yet-finished prefix. Not a parse error.
	return sched, nil
}

// resetForWrite truncates the backing store and re-grows it to one page,
// positioning writes at offset 0.
func (l *scheduleLog) resetForWrite() error {
	if err := l.file.Truncate(0); err != nil {
		return &LogError{Op: "truncate", Err: err}
	}
	l.pages = 1
	if err := l.file.Truncate(pageSize); err != nil {
		return &LogError{Op: "grow", Err: err}
	}
	l.writePos = 0
	return nil
}

// ensureCapacity grows the backing store, doubling the page count as many
// times as needed, until it can hold n more bytes past the current write
// position. Growth is transparent to append/finalize callers.
func (l *scheduleLog) ensureCapacity(n int64) error {
	if l.pages == 0 {
		l.pages = 1
	}
	needed := l.writePos + n
	capacity := int64(l.pages) * pageSize
	for capacity < needed {
		l.pages *= 2
		capacity = int64(l.pages) * pageSize
	}
	info, err := l.file.Stat()
	if err != nil {
		return &LogError{Op: "stat", Err: err}
	}
	if info.Size() < capacity {
		if err := l.file.Truncate(capacity); err != nil {
			return &LogError{Op: "grow", Err: err}
		}
	}
	return nil
}

// append writes one record.
func (l *scheduleLog) append(p Point) error {
	line := p.String() + "\n"
	if err := l.ensureCapacity(int64(len(line))); err != nil {
		return err
	}
	if _, err := l.file.WriteAt([]byte(line), l.writePos); err != nil {
		return &LogError{Op: "write", Err: err}
	}
	l.writePos += int64(len(line))
	return nil
}

// finalize writes the completion marker and flushes the store to disk.
func (l *scheduleLog) finalize() error {
	const marker = "END\n"
	if err := l.ensureCapacity(int64(len(marker))); err != nil {
		return err
	}
	if _, err := l.file.WriteAt([]byte(marker), l.writePos); err != nil {
		return &LogError{Op: "write", Err: err}
	}
	l.writePos += int64(len(marker))
	if err := l.file.Sync(); err != nil {
		return &LogError{Op: "sync", Err: err}
	}
	return nil
}

func (l *scheduleLog) close() error {
	return l.file.Close()
}
