package govctl

import "fmt"

// randomEngine implements spec.md §4.3's random mode: pick a uniformly
// random subscribed id, record the point, append it to both the
// in-memory schedule and the log.
type randomEngine struct {
	c *Controller
}

func (e *randomEngine) choose(r *registry) (Point, error) {
	ids := r.snapshotUserIDs()
	if len(ids) == 0 {
		return Point{}, fmt.Errorf("govctl: random mode: no subscribed threads to choose from")
	}
	id := ids[e.c.rng.Intn(len(ids))]
	p := Point{ThreadID: id, Available: uint64(len(ids)), Higher: r.higherCount(id)}

	e.c.schedule.Points = append(e.c.schedule.Points, p)
	if err := e.c.log.append(p); err != nil {
		return Point{}, err
	}
	e.c.cursor++
	return p, nil
}
