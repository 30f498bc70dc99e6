package bridge

import (
	"sync"
	"time"
)

// ConnState is the lifecycle of the bridge's transport connection.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// Session is the per-user, per-run bridge state: connection state, the
// active conversation id, outstanding tool correlations, and keepalive
// liveness. It is created at sign-in and torn down at sign-out; only the
// orchestrator mutates it.
type Session struct {
	mu             sync.Mutex
	userID         string
	conversationID string
	state          ConnState
	pending        map[string]time.Time
	lastKeepalive  time.Time
}

func NewSession(userID string) *Session {
	return &Session{
		userID:  userID,
		state:   StateDisconnected,
		pending: make(map[string]time.Time),
	}
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SetState(state ConnState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *Session) SetConversationID(id string) {
	s.mu.Lock()
	if id != "" {
		s.conversationID = id
	}
	s.mu.Unlock()
}

// AddPending records an outstanding tool correlation.
func (s *Session) AddPending(correlationID string) {
	if correlationID == "" {
		return
	}
	s.mu.Lock()
	s.pending[correlationID] = time.Now()
	s.mu.Unlock()
}

// ResolvePending clears a correlation once its result has been sent.
func (s *Session) ResolvePending(correlationID string) {
	s.mu.Lock()
	delete(s.pending, correlationID)
	s.mu.Unlock()
}

// PendingCount reports outstanding tool results.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Reset clears all transient state; used on teardown.
func (s *Session) Reset() {
	s.mu.Lock()
	s.conversationID = ""
	s.state = StateDisconnected
	s.pending = make(map[string]time.Time)
	s.mu.Unlock()
}

// TouchKeepalive records transport liveness.
func (s *Session) TouchKeepalive() {
	s.mu.Lock()
	s.lastKeepalive = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastKeepalive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKeepalive
}
