package govctl

import (
	"sync"

	"github.com/google/uuid"
)

// Handle is the native-handle side of the thread registry (spec.md §3):
// a stable, copyable-by-reference token a subscribed goroutine owns for
// its lifetime. Go has no portable way to read a pthread-style native
// handle from inside the language, and the host-binding macro that would
// normally supply one is out of the core's scope (spec.md §1); callers
// obtain one explicitly with NewHandle and thread it through their own
// call stack instead.
//
// Handle doubles as the thread-exit hook contract (spec.md §6): Close is
// expected to run via defer at goroutine exit and calls Unsubscribe on
// the handle's controller exactly once, even if called multiple times.
type Handle struct {
	id         uuid.UUID
	controller *Controller
	closeOnce  sync.Once
}

// NewHandle allocates a handle bound to the default, process-wide
// controller. Use (*Controller).NewHandle to bind to an explicit
// controller instance instead (tests typically want this).
func NewHandle() *Handle {
	return Default().NewHandle()
}

// NewHandle allocates a handle bound to this controller.
func (c *Controller) NewHandle() *Handle {
	return &Handle{id: uuid.New(), controller: c}
}

// ID returns the handle's diagnostic identity. It has no bearing on
// scheduling; it exists so logs and error messages can name a specific
// native handle without leaking a Go pointer value.
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// Close unsubscribes the handle's thread if it is still subscribed. It is
// idempotent: a second call, whether from an explicit Unsubscribe earlier
// or a previous Close, is a no-op (SPEC_FULL.md §10.2).
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.controller.Unsubscribe(h)
	})
}
