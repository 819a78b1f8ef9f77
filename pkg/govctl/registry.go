package govctl

import (
	"fmt"
	"sort"
)

// threadState is the per-thread state of spec.md §3: the user id it
// registered with and whether it is currently parked at a control point.
type threadState struct {
	userID         uint64
	inControlPoint bool
}

// registry is the thread registry of spec.md §4.2: two mappings kept in
// lockstep, native handle to thread state and user id to native handle.
// The user-id direction must be key-ordered ascending so the decision
// engine can answer "ids strictly greater than x"; we keep byUserID as a
// flat map and re-sort on demand in snapshotUserIDs rather than carry a
// separate ordered structure, since the registry is expected to stay
// small (one entry per subscribed thread).
type registry struct {
	byHandle map[*Handle]*threadState
	byUserID map[uint64]*Handle
}

func newRegistry() *registry {
	return &registry{
		byHandle: make(map[*Handle]*threadState),
		byUserID: make(map[uint64]*Handle),
	}
}

// insert fails if either key is already present, preserving the
// no-duplicate-ids / no-duplicate-handles invariant.
func (r *registry) insert(h *Handle, userID uint64) error {
	if _, ok := r.byHandle[h]; ok {
		return fmt.Errorf("handle already subscribed")
	}
	if _, ok := r.byUserID[userID]; ok {
		return fmt.Errorf("user id %d already subscribed", userID)
	}
	r.byHandle[h] = &threadState{userID: userID}
	r.byUserID[userID] = h
	return nil
}

// remove is a no-op when h is absent.
func (r *registry) remove(h *Handle) {
	ts, ok := r.byHandle[h]
	if !ok {
		return
	}
	delete(r.byUserID, ts.userID)
	delete(r.byHandle, h)
}

func (r *registry) lookupByHandle(h *Handle) (*threadState, bool) {
	ts, ok := r.byHandle[h]
	return ts, ok
}

func (r *registry) lookupByUserID(userID uint64) (*Handle, bool) {
	h, ok := r.byUserID[userID]
	return h, ok
}

func (r *registry) len() int {
	return len(r.byHandle)
}

// snapshotUserIDs returns the ascending-ordered set of currently
// subscribed user ids.
func (r *registry) snapshotUserIDs() []uint64 {
	ids := make([]uint64, 0, len(r.byUserID))
	for id := range r.byUserID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// higherCount returns |{j in the registry : j > userID}|.
func (r *registry) higherCount(userID uint64) uint64 {
	var n uint64
	for id := range r.byUserID {
		if id > userID {
			n++
		}
	}
	return n
}

// allParked reports whether every subscribed thread has
// inControlPoint == true.
func (r *registry) allParked() bool {
	for _, ts := range r.byHandle {
		if !ts.inControlPoint {
			return false
		}
	}
	return true
}
