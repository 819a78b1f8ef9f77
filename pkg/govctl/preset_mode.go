package govctl

// presetEngine implements spec.md §4.3's preset mode: replay the stored
// schedule, validating every field against the live registry and
// failing fast on any mismatch. It never writes the log.
type presetEngine struct {
	c *Controller
}

func (e *presetEngine) choose(r *registry) (Point, error) {
	sched := &e.c.schedule
	idx := e.c.cursor

	if idx >= len(sched.Points) {
		return Point{}, &ScheduleInconsistencyError{
			Index: idx, Field: "record", LiveIDs: r.snapshotUserIDs(),
		}
	}
	p := sched.Points[idx]

	if _, ok := r.lookupByUserID(p.ThreadID); !ok {
		return Point{}, &ScheduleInconsistencyError{
			Index: idx, Field: "thread_id", Want: p.ThreadID, Point: p, LiveIDs: r.snapshotUserIDs(),
		}
	}
	if avail := uint64(r.len()); avail != p.Available {
		return Point{}, &ScheduleInconsistencyError{
			Index: idx, Field: "available", Want: p.Available, Got: avail, Point: p, LiveIDs: r.snapshotUserIDs(),
		}
	}
	if higher := r.higherCount(p.ThreadID); higher != p.Higher {
		return Point{}, &ScheduleInconsistencyError{
			Index: idx, Field: "higher", Want: p.Higher, Got: higher, Point: p, LiveIDs: r.snapshotUserIDs(),
		}
	}

	e.c.cursor++
	return p, nil
}
