package govctl

// The functions below are the package-level Controller Facade of
// spec.md §4.5/§6: thin wrappers over the process-wide Default
// controller, for callers that don't need an isolated instance (tests
// typically construct their own Controller with New instead).

// Prepare arms the default controller for numThreads subscribers.
func Prepare(numThreads int) error {
	return Default().Prepare(numThreads)
}

// Subscribe registers h under userID on the default controller.
func Subscribe(h *Handle, userID uint64) error {
	return Default().Subscribe(h, userID)
}

// Unsubscribe deregisters h from the default controller.
func Unsubscribe(h *Handle) error {
	return Default().Unsubscribe(h)
}

// ControlPointOf yields to the default controller's scheduler on behalf
// of h. Ordinary callers use h.ControlPoint (below) or the Controller
// method directly.
func ControlPointOf(h *Handle) error {
	return Default().ControlPoint(h)
}

// Reset prepares the default controller for its next run.
func Reset() (bool, error) {
	return Default().Reset()
}

// ControlPoint is sugar for c.ControlPoint(h), where c is the controller
// h was allocated from (Default() for the package-level NewHandle),
// spelled as a method on Handle so instrumented call sites read as
// h.ControlPoint() rather than threading the controller through by hand.
func (h *Handle) ControlPoint() error {
	return h.controller.ControlPoint(h)
}
