package transport

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/punchline-labs/bridge/internal/fault"
	"github.com/punchline-labs/bridge/internal/tool"
)

// DuplexConfig configures the persistent bidirectional connection to the
// agent. A signed URL takes precedence; otherwise the adapter dials the
// base endpoint with the static agent id.
type DuplexConfig struct {
	BaseURL      string // e.g. wss://agent.example.com/v1/convai
	AgentID      string
	SignedURL    string
	SystemPrompt string
	Language     string
}

// DuplexAdapter exchanges structured event frames over one long-lived
// websocket: transcript chunks for both speakers, corrections, tool-call
// requests, and keepalive pings. All frame variants are normalized into
// canonical events here; nothing downstream sees the wire shapes.
type DuplexAdapter struct {
	mu        sync.Mutex // guards conn writes, callback, config, lane state
	cfg       DuplexConfig
	conn      *websocket.Conn
	connected atomic.Bool
	callback  func(Event)

	// The connection_metadata frame may arrive after other frames but must
	// be seen before the connection counts as usable. Until then transcript
	// and tool events are buffered; pings are still answered immediately.
	usable         bool
	buffered       []Event
	conversationID string

	// Per-lane turn tracking so final-* is never emitted twice for one turn.
	agentOpen     bool
	userOpen      bool
	lastAgentText string
	lastUserText  string

	// At-most-one tool-call event per logical request.
	seenToolCalls map[string]bool

	done chan struct{}
}

func NewDuplexAdapter(cfg DuplexConfig) *DuplexAdapter {
	return &DuplexAdapter{cfg: cfg}
}

func (a *DuplexAdapter) Name() string {
	return "duplex"
}

// UpdateSignedURL installs a freshly minted signed URL for the next dial.
// The open connection, if any, is unaffected.
func (a *DuplexAdapter) UpdateSignedURL(u string) {
	a.mu.Lock()
	a.cfg.SignedURL = u
	a.mu.Unlock()
}

func (a *DuplexAdapter) dialURL() string {
	if a.cfg.SignedURL != "" {
		return a.cfg.SignedURL
	}
	return fmt.Sprintf("%s?agent_id=%s", a.cfg.BaseURL, a.cfg.AgentID)
}

// Connect dials the endpoint and sends the session-initiation frame. The
// connection-opened event is deferred until the metadata frame arrives.
func (a *DuplexAdapter) Connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected.Load() {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(a.dialURL(), nil)
	if err != nil {
		return fault.Wrap(fault.ConnectionFailed, err)
	}

	a.conn = conn
	a.usable = false
	a.buffered = nil
	a.conversationID = ""
	a.agentOpen = false
	a.userOpen = false
	a.lastAgentText = ""
	a.lastUserText = ""
	a.seenToolCalls = make(map[string]bool)
	a.done = make(chan struct{})
	a.connected.Store(true)

	init := outboundFrame{
		Type: "conversation_initiation",
		Initiation: &initiationPayload{
			SystemPrompt: a.cfg.SystemPrompt,
			Language:     a.cfg.Language,
		},
	}
	if err := conn.WriteJSON(init); err != nil {
		conn.Close()
		a.connected.Store(false)
		return fault.Wrap(fault.ConnectionFailed, err)
	}

	go a.readLoop(conn, a.done)
	return nil
}

// Disconnect closes the connection. This is the only true cancellation
// primitive; the resulting connection-closed event force-finalizes any
// in-flight transcript turns downstream.
func (a *DuplexAdapter) Disconnect() error {
	a.mu.Lock()
	conn := a.conn
	done := a.done
	a.conn = nil
	a.mu.Unlock()

	if !a.connected.CompareAndSwap(true, false) {
		return nil
	}
	if done != nil {
		close(done)
	}
	if conn != nil {
		conn.Close()
	}
	a.deliver(Event{Kind: KindConnectionClosed})
	return nil
}

func (a *DuplexAdapter) IsConnected() bool {
	return a.connected.Load()
}

// SendText submits a typed user message. The user lane event is emitted
// locally; spoken input instead arrives as user_transcript frames.
func (a *DuplexAdapter) SendText(text string) error {
	if err := a.writeFrame(outboundFrame{
		Type:        "user_message",
		UserMessage: &userMessagePayload{Text: text},
	}); err != nil {
		return err
	}
	a.emit(Event{Kind: KindFinalUserText, Text: text})
	return nil
}

// RespondTool echoes the correlation id verbatim with the tool result.
func (a *DuplexAdapter) RespondTool(correlationID string, result tool.Result) error {
	return a.writeFrame(outboundFrame{
		Type: "client_tool_result",
		ToolResult: &toolResultPayload{
			ToolCallID: correlationID,
			Result:     result.Payload(),
			IsError:    result.Error != "",
		},
	})
}

func (a *DuplexAdapter) Subscribe(callback func(Event)) {
	a.mu.Lock()
	a.callback = callback
	a.mu.Unlock()
}

func (a *DuplexAdapter) writeFrame(f outboundFrame) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil || !a.connected.Load() {
		return fault.New(fault.ConnectionFailed, "duplex transport not connected")
	}
	return a.conn.WriteJSON(f)
}

func (a *DuplexAdapter) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			a.handleReadError(conn, err)
			return
		}

		var f inboundFrame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Printf("[Duplex] Dropping unparseable frame: %v", err)
			continue
		}

		a.handleFrame(conn, f)
	}
}

func (a *DuplexAdapter) handleReadError(conn *websocket.Conn, err error) {
	a.mu.Lock()
	current := a.conn == conn
	if current {
		a.conn = nil
	}
	a.mu.Unlock()

	if !current || !a.connected.CompareAndSwap(true, false) {
		return // Disconnect already reported the close
	}
	conn.Close()

	closeErr := err
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		closeErr = nil
	}
	a.deliver(Event{Kind: KindConnectionClosed, Err: closeErr})
}

func (a *DuplexAdapter) handleFrame(conn *websocket.Conn, f inboundFrame) {
	switch f.Type {
	case "conversation_metadata":
		var id string
		if f.Metadata != nil {
			id = f.Metadata.ConversationID
		}
		a.markUsable(id)

	case "user_transcript":
		if f.UserTranscript == nil {
			return
		}
		a.emitUserText(f.UserTranscript.Text, f.UserTranscript.IsFinal)

	case "agent_response":
		if f.AgentResponse == nil {
			return
		}
		a.emitAgentText(f.AgentResponse.Text, f.AgentResponse.IsFinal)

	case "agent_response_correction":
		if f.Correction == nil {
			return
		}
		a.emit(Event{Kind: KindAgentCorrection, Text: f.Correction.CorrectedResponse})

	case "audio":
		// Ignorable in text-only mode.

	case "client_tool_call":
		if f.ToolCall == nil {
			return
		}
		a.emitToolCall(f.ToolCall)

	case "client_tool_result_ack":
		// Nothing to do; the result was accepted.

	case "ping":
		// Must be answered within the same round or the server times out.
		var eventID int64
		if f.Ping != nil {
			eventID = f.Ping.EventID
		}
		a.mu.Lock()
		if a.conn == conn {
			conn.WriteJSON(outboundFrame{Type: "pong", Pong: &pongPayload{EventID: eventID}})
		}
		a.mu.Unlock()
		a.emit(Event{Kind: KindKeepalive})

	case "interruption", "turn_end":
		a.closeAgentTurn()

	default:
		log.Printf("[Duplex] Unknown frame type: %s", f.Type)
	}
}

// markUsable flushes events buffered while the metadata frame was in flight
// and finally announces the connection as open.
func (a *DuplexAdapter) markUsable(conversationID string) {
	a.mu.Lock()
	if a.usable {
		a.mu.Unlock()
		return
	}
	a.usable = true
	a.conversationID = conversationID
	pending := a.buffered
	a.buffered = nil
	a.mu.Unlock()

	a.deliver(Event{Kind: KindConnectionOpened, ConversationID: conversationID})
	for _, ev := range pending {
		a.deliver(ev)
	}
}

func (a *DuplexAdapter) emitUserText(text string, isFinal bool) {
	a.mu.Lock()
	if !isFinal {
		a.userOpen = true
		a.lastUserText = ""
		a.mu.Unlock()
		a.emit(Event{Kind: KindPartialUserText, Text: text})
		return
	}
	if !a.userOpen && text == a.lastUserText {
		a.mu.Unlock()
		return // duplicate final for an already-finalized turn
	}
	a.userOpen = false
	a.lastUserText = text
	a.mu.Unlock()
	a.emit(Event{Kind: KindFinalUserText, Text: text})
}

func (a *DuplexAdapter) emitAgentText(text string, isFinal bool) {
	a.mu.Lock()
	if !isFinal {
		a.agentOpen = true
		a.lastAgentText = ""
		a.mu.Unlock()
		a.emit(Event{Kind: KindPartialAgentText, Text: text})
		return
	}
	if !a.agentOpen && text == a.lastAgentText {
		a.mu.Unlock()
		return
	}
	a.agentOpen = false
	a.lastAgentText = text
	a.mu.Unlock()
	a.emit(Event{Kind: KindFinalAgentText, Text: text})
}

// closeAgentTurn handles turn boundaries: finalize the open agent turn with
// its last streamed text (empty text keeps the machine's hypothesis).
func (a *DuplexAdapter) closeAgentTurn() {
	a.mu.Lock()
	open := a.agentOpen
	a.agentOpen = false
	a.mu.Unlock()

	if open {
		a.emit(Event{Kind: KindFinalAgentText, Text: ""})
	}
}

func (a *DuplexAdapter) emitToolCall(tc *toolCallPayload) {
	a.mu.Lock()
	if a.seenToolCalls[tc.ToolCallID] {
		a.mu.Unlock()
		return
	}
	a.seenToolCalls[tc.ToolCallID] = true
	a.mu.Unlock()

	a.emit(Event{Kind: KindToolCall, Tool: &ToolCall{
		Name:          tc.ToolName,
		Arguments:     tc.Parameters,
		CorrelationID: tc.ToolCallID,
	}})
}

// emit routes an event through the metadata gate: before the connection is
// usable, transcript and tool events are held back.
func (a *DuplexAdapter) emit(ev Event) {
	a.mu.Lock()
	if !a.usable && ev.Kind != KindKeepalive {
		a.buffered = append(a.buffered, ev)
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	a.deliver(ev)
}

func (a *DuplexAdapter) deliver(ev Event) {
	a.mu.Lock()
	cb := a.callback
	a.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}
