package transcript

import (
	"log"
	"sync"
	"time"
)

// Machine tracks in-progress vs. finalized turns per speaker lane.
// Each of the user and assistant lanes moves idle -> streaming -> finalized
// -> idle; system and tool messages append as already-final turns.
//
// The machine exclusively owns turn state. Sinks only ever see copies.
type Machine struct {
	mu          sync.Mutex
	sink        Sink
	idleTimeout time.Duration
	lanes       map[Speaker]*lane
	history     []Turn
}

type lane struct {
	current *Turn
	timer   *time.Timer
}

// NewMachine creates a transcript machine. sink may be nil. idleTimeout
// bounds how long a streaming turn may sit without a new fragment before it
// is force-finalized with its last known text; zero disables the timeout.
func NewMachine(sink Sink, idleTimeout time.Duration) *Machine {
	return &Machine{
		sink:        sink,
		idleTimeout: idleTimeout,
		lanes: map[Speaker]*lane{
			SpeakerUser:      {},
			SpeakerAssistant: {},
		},
	}
}

// Partial applies an interim fragment. Each payload is the full current
// hypothesis for the turn, not a delta, so the text is replaced in place.
func (m *Machine) Partial(speaker Speaker, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ln, ok := m.lanes[speaker]
	if !ok {
		return
	}

	if ln.current == nil {
		ln.current = newTurn(speaker, text)
		m.armIdleTimer(speaker, ln)
		if m.sink != nil {
			m.sink.TurnStarted(*ln.current)
		}
		return
	}

	ln.current.Text = text
	m.armIdleTimer(speaker, ln)
	if m.sink != nil {
		m.sink.TurnUpdated(*ln.current)
	}
}

// Final closes the lane's current turn. An empty text keeps the last known
// hypothesis. A final on an idle lane creates and immediately finalizes a
// turn when text is non-empty, and is otherwise a no-op. A turn is never
// finalized twice.
func (m *Machine) Final(speaker Speaker, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ln, ok := m.lanes[speaker]
	if !ok {
		return
	}

	if ln.current == nil {
		if text == "" {
			return
		}
		ln.current = newTurn(speaker, text)
	} else if text != "" {
		ln.current.Text = text
	}

	m.finalizeLocked(speaker, ln)
}

// Correct replaces the text of the most recent not-yet-finalized assistant
// turn without creating a new turn. Ignored when no assistant turn is open.
func (m *Machine) Correct(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ln := m.lanes[SpeakerAssistant]
	if ln.current == nil {
		return
	}

	ln.current.Text = text
	m.armIdleTimer(SpeakerAssistant, ln)
	if m.sink != nil {
		m.sink.TurnUpdated(*ln.current)
	}
}

// Append adds an already-final turn, used for system and tool lane messages.
func (m *Machine) Append(speaker Speaker, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := newTurn(speaker, text)
	t.Finality = FinalityFinal
	t.FinalizedAt = time.Now()
	m.history = append(m.history, *t)
	if m.sink != nil {
		m.sink.TurnFinalized(*t)
	}
}

// CloseAll force-finalizes any in-flight turns on both lanes using their
// last known text, then resets the lanes to idle. Called on connection close
// so no turn is left stuck in progress.
func (m *Machine) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for speaker, ln := range m.lanes {
		if ln.current != nil {
			m.finalizeLocked(speaker, ln)
		}
	}
}

// History returns a snapshot of all finalized turns in order.
func (m *Machine) History() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Turn, len(m.history))
	copy(out, m.history)
	return out
}

// Streaming reports whether the given lane has an open turn.
func (m *Machine) Streaming(speaker Speaker) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ln, ok := m.lanes[speaker]
	return ok && ln.current != nil
}

func (m *Machine) finalizeLocked(speaker Speaker, ln *lane) {
	if ln.timer != nil {
		ln.timer.Stop()
		ln.timer = nil
	}

	t := ln.current
	ln.current = nil
	t.Finality = FinalityFinal
	t.FinalizedAt = time.Now()
	m.history = append(m.history, *t)
	if m.sink != nil {
		m.sink.TurnFinalized(*t)
	}
}

func (m *Machine) armIdleTimer(speaker Speaker, ln *lane) {
	if m.idleTimeout <= 0 {
		return
	}
	if ln.timer != nil {
		ln.timer.Stop()
	}

	turnID := ln.current.ID
	ln.timer = time.AfterFunc(m.idleTimeout, func() {
		m.forceFinalize(speaker, turnID)
	})
}

// forceFinalize fires from the idle timer. The turn ID check guards against
// the timer racing a legitimate finalize followed by a new turn.
func (m *Machine) forceFinalize(speaker Speaker, turnID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ln := m.lanes[speaker]
	if ln.current == nil || ln.current.ID != turnID {
		return
	}

	log.Printf("[Transcript] Idle timeout, force-finalizing %s turn", speaker)
	m.finalizeLocked(speaker, ln)
}
