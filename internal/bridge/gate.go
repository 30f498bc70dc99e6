package bridge

import "sync"

// inputGate is the state machine for the input control surface:
// enabled -> disabled(waiting) -> enabled. Input is disabled immediately on
// send and re-enabled by the first of finalize, connection close, or
// timeout. Sends while disabled are rejected, not queued.
//
// Each send bumps a generation counter so a stale timer can never re-enable
// (or emit a notice for) a later send.
type inputGate struct {
	mu        sync.Mutex
	disabled  bool
	gen       int
	responded bool
}

// trySend transitions enabled -> disabled and returns the generation for
// this wait. Returns ok=false when a send is already in flight.
func (g *inputGate) trySend() (gen int, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.disabled {
		return 0, false
	}
	g.disabled = true
	g.gen++
	g.responded = false
	return g.gen, true
}

// markResponding records that the agent produced its first chunk for this
// generation, disarming the no-response notice.
func (g *inputGate) markResponding() {
	g.mu.Lock()
	g.responded = true
	g.mu.Unlock()
}

// enable re-enables input for the given generation. Stale generations no-op.
func (g *inputGate) enable(gen int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen == g.gen {
		g.disabled = false
	}
}

// expire is the timeout path. It re-enables input and reports whether the
// caller should surface a no-response notice, true at most once per send.
func (g *inputGate) expire(gen int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.gen || !g.disabled {
		return false
	}
	g.disabled = false
	return !g.responded
}

// forceEnable unconditionally re-enables input, e.g. on connection close.
func (g *inputGate) forceEnable() {
	g.mu.Lock()
	g.disabled = false
	g.responded = true
	g.mu.Unlock()
}

func (g *inputGate) enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.disabled
}
