package transport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchline-labs/bridge/internal/tool"
)

// fakeWidgetHost simulates the embedded widget's tool hooks.
type fakeWidgetHost struct {
	mu            sync.Mutex
	handler       func(map[string]interface{}) (map[string]interface{}, error)
	registerErr   error
	attempts      int
	registrations int

	events chan WidgetToolEvent
	ready  chan struct{}
}

func newFakeWidgetHost() *fakeWidgetHost {
	return &fakeWidgetHost{
		events: make(chan WidgetToolEvent, 4),
		ready:  make(chan struct{}),
	}
}

func (h *fakeWidgetHost) RegisterClientTool(name string, handler func(map[string]interface{}) (map[string]interface{}, error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts++
	if h.registerErr != nil {
		return h.registerErr
	}
	h.registrations++
	h.handler = handler
	return nil
}

func (h *fakeWidgetHost) ToolEvents() <-chan WidgetToolEvent { return h.events }
func (h *fakeWidgetHost) Ready() <-chan struct{}             { return h.ready }

func (h *fakeWidgetHost) registrationCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registrations
}

func (h *fakeWidgetHost) attemptCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}

func (h *fakeWidgetHost) currentHandler() func(map[string]interface{}) (map[string]interface{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handler
}

func (h *fakeWidgetHost) setRegisterErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.registerErr = err
}

func newTestWidgetAdapter(t *testing.T, host *fakeWidgetHost) (*WidgetAdapter, *eventRecorder) {
	t.Helper()
	a := NewWidgetAdapter(host)
	a.pollInterval = 10 * time.Millisecond
	a.maxAttempts = 5

	rec := &eventRecorder{}
	a.Subscribe(rec.record)
	require.NoError(t, a.Connect())
	t.Cleanup(func() { a.Disconnect() })
	return a, rec
}

func TestWidgetRegistersViaPolling(t *testing.T) {
	host := newFakeWidgetHost()
	_, rec := newTestWidgetAdapter(t, host)

	rec.waitFor(t, KindConnectionOpened)
	assert.Equal(t, 1, host.registrationCount())
}

func TestWidgetRegistersViaReadySignal(t *testing.T) {
	host := newFakeWidgetHost()
	host.setRegisterErr(errors.New("widget not ready"))

	_, rec := newTestWidgetAdapter(t, host)

	// Polling keeps failing until the widget flips ready.
	time.Sleep(35 * time.Millisecond)
	assert.Equal(t, 0, rec.countKind(KindConnectionOpened))

	host.setRegisterErr(nil)
	close(host.ready)

	rec.waitFor(t, KindConnectionOpened)
	assert.Equal(t, 1, host.registrationCount())
}

func TestWidgetRegistrationIsIdempotent(t *testing.T) {
	host := newFakeWidgetHost()
	a, rec := newTestWidgetAdapter(t, host)

	close(host.ready)
	rec.waitFor(t, KindConnectionOpened)

	// Both the readiness path and extra explicit attempts must not install
	// a second handler.
	a.register()
	a.register()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 1, host.registrationCount())
	assert.Equal(t, 1, rec.countKind(KindConnectionOpened))
}

func TestWidgetReadyFailureFallsBackToTicker(t *testing.T) {
	host := newFakeWidgetHost()
	host.setRegisterErr(errors.New("widget not ready"))
	close(host.ready) // readiness signal fires while registration still fails

	_, rec := newTestWidgetAdapter(t, host)

	// With the closed channel permanently selectable, a regression here
	// spins through thousands of attempts. The ticker must pace them.
	time.Sleep(150 * time.Millisecond)
	assert.LessOrEqual(t, host.attemptCount(), 6)
	assert.Equal(t, 0, rec.countKind(KindConnectionOpened))
}

func TestWidgetGivesUpAfterMaxAttempts(t *testing.T) {
	host := newFakeWidgetHost()
	host.setRegisterErr(errors.New("never ready"))

	_, rec := newTestWidgetAdapter(t, host)

	time.Sleep(120 * time.Millisecond) // well past 5 attempts at 10ms
	assert.Equal(t, 0, rec.countKind(KindConnectionOpened))
	assert.Equal(t, 0, host.registrationCount())
}

func TestWidgetProgrammaticCallRoundTrip(t *testing.T) {
	host := newFakeWidgetHost()
	a, rec := newTestWidgetAdapter(t, host)
	rec.waitFor(t, KindConnectionOpened)

	handler := host.currentHandler()
	require.NotNil(t, handler)

	resultCh := make(chan map[string]interface{}, 1)
	go func() {
		payload, err := handler(map[string]interface{}{"content": "a joke", "tags": "pun"})
		if err == nil {
			resultCh <- payload
		}
	}()

	ev := rec.waitFor(t, KindToolCall)
	require.NotNil(t, ev.Tool)
	assert.Equal(t, tool.ToolSaveJoke, ev.Tool.Name)
	assert.Equal(t, "a joke", ev.Tool.Arguments["content"])
	require.NotEmpty(t, ev.Tool.CorrelationID)

	require.NoError(t, a.RespondTool(ev.Tool.CorrelationID, tool.Result{Success: true, DocumentID: "j1"}))

	select {
	case payload := <-resultCh:
		assert.Equal(t, true, payload["success"])
		assert.Equal(t, "j1", payload["documentId"])
	case <-time.After(2 * time.Second):
		t.Fatal("handler never returned")
	}
}

func TestWidgetCustomEventRoundTrip(t *testing.T) {
	host := newFakeWidgetHost()
	a, rec := newTestWidgetAdapter(t, host)

	responded := make(chan map[string]interface{}, 1)
	host.events <- WidgetToolEvent{
		ID:        "e1",
		ToolName:  tool.ToolSaveJoke,
		Arguments: map[string]interface{}{"content": "a joke"},
		Respond:   func(payload map[string]interface{}) { responded <- payload },
	}

	ev := rec.waitFor(t, KindToolCall)
	assert.Equal(t, "e1", ev.Tool.CorrelationID)

	require.NoError(t, a.RespondTool("e1", tool.Result{Error: "content must be a non-empty string"}))

	select {
	case payload := <-responded:
		assert.Contains(t, payload, "error")
	case <-time.After(2 * time.Second):
		t.Fatal("respond callback never fired")
	}
}

func TestWidgetDuplicateEventDeliveryExecutesOnce(t *testing.T) {
	host := newFakeWidgetHost()
	_, rec := newTestWidgetAdapter(t, host)

	mkEvent := func() WidgetToolEvent {
		return WidgetToolEvent{
			ID:        "e2",
			ToolName:  tool.ToolSaveJoke,
			Arguments: map[string]interface{}{"content": "a joke"},
			Respond:   func(map[string]interface{}) {},
		}
	}
	host.events <- mkEvent()
	host.events <- mkEvent() // same logical call delivered twice

	rec.waitFor(t, KindToolCall)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.countKind(KindToolCall))
}

func TestWidgetRespondToolUnknownCorrelation(t *testing.T) {
	host := newFakeWidgetHost()
	a, _ := newTestWidgetAdapter(t, host)

	err := a.RespondTool("missing", tool.Result{Success: true})
	assert.Error(t, err)
}

func TestWidgetSendTextUnsupported(t *testing.T) {
	host := newFakeWidgetHost()
	a, _ := newTestWidgetAdapter(t, host)

	assert.Error(t, a.SendText("hello"))
}

func TestWidgetDisconnectEmitsClosedOnce(t *testing.T) {
	host := newFakeWidgetHost()
	a, rec := newTestWidgetAdapter(t, host)

	require.NoError(t, a.Disconnect())
	require.NoError(t, a.Disconnect())

	assert.Equal(t, 1, rec.countKind(KindConnectionClosed))
}
