package govctl

import "fmt"

// Point is one scheduling decision: thread ThreadID was chosen to run next
// out of Available subscribed threads, Higher of which had a strictly
// greater user id than ThreadID.
type Point struct {
	ThreadID  uint64
	Available uint64
	Higher    uint64
}

// Valid reports whether the point satisfies the Higher < Available
// invariant required of every schedule point.
func (p Point) Valid() bool {
	return p.Higher < p.Available
}

func (p Point) String() string {
	return fmt.Sprintf("%d %d %d", p.ThreadID, p.Available, p.Higher)
}

// Schedule is an ordered sequence of scheduling decisions, optionally
// terminated by a completion marker meaning the run it describes finished
// after its last point.
type Schedule struct {
	Points []Point
	Done   bool
}
