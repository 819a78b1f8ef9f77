// Package govctl implements a deterministic scheduling controller for
// programs built around lock-free algorithms. Threads under test
// "subscribe" and call ControlPoint at every observable shared-memory
// step; the controller decides which subscribed thread runs next and
// parks the rest, recording or replaying that decision via a schedule
// log so a particular interleaving can be captured, replayed, and
// exhaustively enumerated.
package govctl
