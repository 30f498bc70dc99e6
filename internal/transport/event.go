package transport

import (
	"github.com/punchline-labs/bridge/internal/tool"
)

// Kind is the canonical event shape every transport is normalized into.
// Downstream code (transcript machine, orchestrator) only ever sees these;
// wire-level framing quirks stop at the adapter boundary.
type Kind string

const (
	KindPartialUserText  Kind = "partial-user-text"
	KindFinalUserText    Kind = "final-user-text"
	KindPartialAgentText Kind = "partial-agent-text"
	KindFinalAgentText   Kind = "final-agent-text"
	KindAgentCorrection  Kind = "agent-correction"
	KindToolCall         Kind = "tool-call"
	KindConnectionOpened Kind = "connection-opened"
	KindConnectionClosed Kind = "connection-closed"
	KindKeepalive        Kind = "keepalive"
)

// Event is one normalized occurrence on a transport.
type Event struct {
	Kind Kind

	// Text carries the turn fragment for the *-text and correction kinds.
	// For partials it is the full current hypothesis, not a delta.
	Text string

	// ConversationID is set on connection-opened when the transport learned
	// a session identifier.
	ConversationID string

	// Tool is set for tool-call events.
	Tool *ToolCall

	// Err is set on connection-closed when the close was not clean.
	Err error
}

// ToolCall is a normalized tool-call request. CorrelationID routes the
// result back over the wire; adapters that use callback delivery synthesize
// one internally.
type ToolCall struct {
	Name          string
	Arguments     map[string]interface{}
	CorrelationID string
}

// Adapter normalizes one channel to the agent into the canonical event
// stream. Adapters guarantee at most one tool-call event per logical
// request and never emit final-* twice for the same turn.
type Adapter interface {
	Name() string

	Connect() error
	Disconnect() error
	IsConnected() bool

	// SendText submits one user message. Errors return synchronously and
	// produce no transcript events.
	SendText(text string) error

	// RespondTool reports a tool result back over this transport, echoing
	// the correlation id the tool-call event carried.
	RespondTool(correlationID string, result tool.Result) error

	Subscribe(callback func(Event))
}
