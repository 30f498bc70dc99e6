package transport

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/punchline-labs/bridge/internal/tool"
)

// WidgetToolEvent is the custom-event integration point: the widget hands
// over a tool call together with a callback for the result.
type WidgetToolEvent struct {
	ID        string
	ToolName  string
	Arguments map[string]interface{}
	Respond   func(result map[string]interface{})
}

// WidgetHost is the injected extension point for the embedded widget. The
// widget manages its own agent connection; the bridge only needs the tool
// hooks. Hosts expose a programmatic registration call (which may fail
// until the widget is ready), a custom event channel, and a readiness
// signal, in any combination.
type WidgetHost interface {
	// RegisterClientTool installs a handler for the named tool. Returns an
	// error while the widget is not yet ready to accept registrations.
	RegisterClientTool(name string, handler func(args map[string]interface{}) (map[string]interface{}, error)) error

	// ToolEvents is the custom-event delivery path.
	ToolEvents() <-chan WidgetToolEvent

	// Ready is closed when the widget signals readiness.
	Ready() <-chan struct{}
}

// WidgetAdapter wires the widget's tool hooks into the shared pipeline.
// Because the widget's readiness timing is unspecified, it polls the
// registration call on a fixed interval AND waits for the readiness
// signal, registering via whichever fires first. Both paths are
// idempotent: double registration or double delivery of one logical call
// never executes the tool twice.
type WidgetAdapter struct {
	host         WidgetHost
	pollInterval time.Duration
	maxAttempts  int

	connected  atomic.Bool
	registered atomic.Bool
	regMu      sync.Mutex // single-flight guard around host registration

	mu       sync.Mutex
	callback func(Event)
	pending  map[string]*pendingTool
	seen     map[string]bool
	done     chan struct{}
}

type pendingTool struct {
	respond func(map[string]interface{}) // custom-event path
	ch      chan tool.Result             // programmatic handler path
}

const (
	defaultWidgetPollInterval = 500 * time.Millisecond
	defaultWidgetMaxAttempts  = 20
	widgetHandlerTimeout      = 10 * time.Second
)

func NewWidgetAdapter(host WidgetHost) *WidgetAdapter {
	return &WidgetAdapter{
		host:         host,
		pollInterval: defaultWidgetPollInterval,
		maxAttempts:  defaultWidgetMaxAttempts,
		pending:      make(map[string]*pendingTool),
		seen:         make(map[string]bool),
	}
}

func (a *WidgetAdapter) Name() string {
	return "widget"
}

// Connect starts the registration supervisor and the custom-event loop.
func (a *WidgetAdapter) Connect() error {
	if !a.connected.CompareAndSwap(false, true) {
		return nil
	}

	a.mu.Lock()
	a.done = make(chan struct{})
	done := a.done
	a.mu.Unlock()

	go a.superviseRegistration(done)
	go a.consumeToolEvents(done)
	return nil
}

func (a *WidgetAdapter) Disconnect() error {
	if !a.connected.CompareAndSwap(true, false) {
		return nil
	}

	a.mu.Lock()
	if a.done != nil {
		close(a.done)
		a.done = nil
	}
	a.mu.Unlock()

	a.emit(Event{Kind: KindConnectionClosed})
	return nil
}

func (a *WidgetAdapter) IsConnected() bool {
	return a.connected.Load()
}

// SendText is unsupported: the widget owns its own input surface.
func (a *WidgetAdapter) SendText(text string) error {
	return errors.New("widget transport is receive-only")
}

// RespondTool completes a pending invocation over whichever delivery path
// produced it.
func (a *WidgetAdapter) RespondTool(correlationID string, result tool.Result) error {
	a.mu.Lock()
	p, ok := a.pending[correlationID]
	delete(a.pending, correlationID)
	a.mu.Unlock()

	if !ok {
		return errors.New("no pending widget tool call " + correlationID)
	}

	if p.ch != nil {
		p.ch <- result
	}
	if p.respond != nil {
		p.respond(result.Payload())
	}
	return nil
}

func (a *WidgetAdapter) Subscribe(callback func(Event)) {
	a.mu.Lock()
	a.callback = callback
	a.mu.Unlock()
}

// superviseRegistration races the bounded poll against the readiness
// signal. register() itself is guarded, so it does not matter if both fire.
func (a *WidgetAdapter) superviseRegistration(done chan struct{}) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	ready := a.host.Ready()
	attempts := 0
	for {
		select {
		case <-done:
			return
		case <-ready:
			if a.register() {
				return
			}
			// Ready fired but registration still failed. A closed channel
			// stays selectable, so drop the case and let the ticker pace
			// the remaining attempts.
			ready = nil
		case <-ticker.C:
			attempts++
			if a.register() {
				return
			}
			if attempts >= a.maxAttempts {
				log.Printf("[Widget] Gave up registering tool handler after %d attempts", attempts)
				return
			}
		}
	}
}

// register installs the programmatic tool handler at most once, even when
// the poll and the readiness signal fire concurrently.
func (a *WidgetAdapter) register() bool {
	a.regMu.Lock()
	defer a.regMu.Unlock()

	if a.registered.Load() {
		return true
	}

	if err := a.host.RegisterClientTool(tool.ToolSaveJoke, a.handleProgrammatic); err != nil {
		return false
	}

	a.registered.Store(true)
	log.Printf("[Widget] Tool handler registered")
	a.emit(Event{Kind: KindConnectionOpened})
	return true
}

// handleProgrammatic is the registered tool handler. It synthesizes a
// correlation id, forwards the call into the shared pipeline, and blocks
// until RespondTool delivers the result (bounded).
func (a *WidgetAdapter) handleProgrammatic(args map[string]interface{}) (map[string]interface{}, error) {
	corrID := uuid.New().String()
	ch := make(chan tool.Result, 1)

	a.mu.Lock()
	a.pending[corrID] = &pendingTool{ch: ch}
	a.mu.Unlock()

	a.emit(Event{Kind: KindToolCall, Tool: &ToolCall{
		Name:          tool.ToolSaveJoke,
		Arguments:     args,
		CorrelationID: corrID,
	}})

	select {
	case res := <-ch:
		return res.Payload(), nil
	case <-time.After(widgetHandlerTimeout):
		a.mu.Lock()
		delete(a.pending, corrID)
		a.mu.Unlock()
		return nil, errors.New("tool execution timed out")
	}
}

// consumeToolEvents drains the custom-event path. Events carrying an id the
// adapter has already seen are dropped, so a call delivered through both
// integration points executes once.
func (a *WidgetAdapter) consumeToolEvents(done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-a.host.ToolEvents():
			if !ok {
				return
			}
			a.handleToolEvent(ev)
		}
	}
}

func (a *WidgetAdapter) handleToolEvent(ev WidgetToolEvent) {
	corrID := ev.ID
	if corrID == "" {
		corrID = uuid.New().String()
	}

	a.mu.Lock()
	if a.seen[corrID] {
		a.mu.Unlock()
		return
	}
	a.seen[corrID] = true
	a.pending[corrID] = &pendingTool{respond: ev.Respond}
	a.mu.Unlock()

	a.emit(Event{Kind: KindToolCall, Tool: &ToolCall{
		Name:          ev.ToolName,
		Arguments:     ev.Arguments,
		CorrelationID: corrID,
	}})
}

func (a *WidgetAdapter) emit(ev Event) {
	a.mu.Lock()
	cb := a.callback
	a.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}
