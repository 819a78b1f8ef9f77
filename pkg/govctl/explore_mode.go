package govctl

// exploreEngine implements spec.md §4.3's explore mode: depth-first
// enumeration of schedules ordered by ascending thread-id at each
// decision. Reset drives advanceFrontier between runs; choose replays or
// extends the current prefix during a run, re-emitting every point to
// the (freshly truncated) log as it goes.
type exploreEngine struct {
	c *Controller
}

func (e *exploreEngine) choose(r *registry) (Point, error) {
	sched := &e.c.schedule
	idx := e.c.cursor

	if idx >= len(sched.Points) {
		ids := r.snapshotUserIDs()
		if len(ids) == 0 {
			return Point{}, &ScheduleInconsistencyError{Index: idx, Field: "thread_id", LiveIDs: ids}
		}
		id := ids[0]
		p := Point{ThreadID: id, Available: uint64(len(ids)), Higher: uint64(len(ids) - 1)}
		sched.Points = append(sched.Points, p)
	} else if idx == len(sched.Points)-1 {
		// The tail point may have been produced by advanceFrontier and
		// no longer name a currently subscribed id; repair it.
		p := sched.Points[idx]
		ids := r.snapshotUserIDs()
		repaired, ok := smallestAtLeast(ids, p.ThreadID)
		if !ok {
			return Point{}, &ScheduleInconsistencyError{Index: idx, Field: "thread_id", Want: p.ThreadID, Point: p, LiveIDs: ids}
		}
		sched.Points[idx] = Point{ThreadID: repaired, Available: uint64(len(ids)), Higher: r.higherCount(repaired)}
	}

	p := sched.Points[idx]
	if err := e.c.log.append(p); err != nil {
		return Point{}, err
	}
	e.c.cursor++
	return p, nil
}

// advanceFrontier mutates the stored schedule to reach the next
// unexplored DFS leaf between runs (spec.md §4.3). If the previous run
// did not end with a completion marker, the schedule is left unchanged
// so it is re-executed verbatim (spec.md §9, open question: this is
// intentional, not a bug — a non-terminating or crashed run under
// exploration should be retried exactly, not silently skipped).
func (e *exploreEngine) advanceFrontier(sched *Schedule) (exhausted bool) {
	if !sched.Done {
		return false
	}
	for len(sched.Points) > 0 && sched.Points[len(sched.Points)-1].Higher == 0 {
		sched.Points = sched.Points[:len(sched.Points)-1]
	}
	if len(sched.Points) == 0 {
		return true
	}
	last := len(sched.Points) - 1
	sched.Points[last].ThreadID++
	sched.Points[last].Higher--
	sched.Done = false
	return false
}

// smallestAtLeast returns the smallest element of the ascending-sorted
// ids that is >= v.
func smallestAtLeast(ids []uint64, v uint64) (uint64, bool) {
	for _, id := range ids {
		if id >= v {
			return id, true
		}
	}
	return 0, false
}
