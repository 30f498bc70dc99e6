package transport

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/punchline-labs/bridge/internal/agent"
	"github.com/punchline-labs/bridge/internal/tool"
)

// RequestAdapter wraps the chatWithAgent callable. One send produces
// exactly one final-agent-text event with no partial phase. Tool calls
// are executed server-side, so this adapter never emits tool-call.
type RequestAdapter struct {
	client    *agent.Client
	connected atomic.Bool

	mu             sync.Mutex
	conversationID string
	callback       func(Event)
}

func NewRequestAdapter(client *agent.Client) *RequestAdapter {
	return &RequestAdapter{client: client}
}

func (a *RequestAdapter) Name() string {
	return "request"
}

// Connect is immediate: there is no persistent channel to establish.
func (a *RequestAdapter) Connect() error {
	a.connected.Store(true)
	a.emit(Event{Kind: KindConnectionOpened})
	return nil
}

func (a *RequestAdapter) Disconnect() error {
	if !a.connected.CompareAndSwap(true, false) {
		return nil
	}
	a.emit(Event{Kind: KindConnectionClosed})
	return nil
}

func (a *RequestAdapter) IsConnected() bool {
	return a.connected.Load()
}

// SendText relays one message and, once the reply arrives, emits the
// finalized user and agent turns as a pair. On failure no transcript event
// is emitted at all; the error returns to the caller. The conversation id
// from the first reply is reused on every subsequent send.
func (a *RequestAdapter) SendText(text string) error {
	a.mu.Lock()
	conversationID := a.conversationID
	a.mu.Unlock()

	reply, err := a.client.ChatWithAgent(context.Background(), text, conversationID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.conversationID = reply.ConversationID
	a.mu.Unlock()

	a.emit(Event{Kind: KindFinalUserText, Text: text})
	a.emit(Event{Kind: KindFinalAgentText, Text: reply.FinalResponse, ConversationID: reply.ConversationID})
	return nil
}

// ConversationID returns the id learned from the last reply.
func (a *RequestAdapter) ConversationID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversationID
}

func (a *RequestAdapter) RespondTool(correlationID string, result tool.Result) error {
	// Tool calls never originate here.
	log.Printf("[Request] Ignoring tool result for %s: transport has no tool channel", correlationID)
	return nil
}

func (a *RequestAdapter) Subscribe(callback func(Event)) {
	a.mu.Lock()
	a.callback = callback
	a.mu.Unlock()
}

func (a *RequestAdapter) emit(ev Event) {
	a.mu.Lock()
	cb := a.callback
	a.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}
