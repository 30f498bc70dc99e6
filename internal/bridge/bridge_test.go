package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchline-labs/bridge/internal/auth"
	"github.com/punchline-labs/bridge/internal/config"
	"github.com/punchline-labs/bridge/internal/fault"
	"github.com/punchline-labs/bridge/internal/store"
	"github.com/punchline-labs/bridge/internal/tool"
	"github.com/punchline-labs/bridge/internal/transcript"
	"github.com/punchline-labs/bridge/internal/transport"
)

// fakeProvider is a controllable identity source.
type fakeProvider struct {
	mu        sync.Mutex
	identity  *auth.Identity
	listeners []func(*auth.Identity)
}

func (p *fakeProvider) Current() *auth.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.identity == nil {
		return nil
	}
	id := *p.identity
	return &id
}

func (p *fakeProvider) Token() string { return "tok" }

func (p *fakeProvider) OnChange(cb func(*auth.Identity)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, cb)
	p.mu.Unlock()
}

func (p *fakeProvider) Close() error { return nil }

func (p *fakeProvider) signOut() {
	p.mu.Lock()
	p.identity = nil
	listeners := append([]func(*auth.Identity){}, p.listeners...)
	p.mu.Unlock()
	for _, cb := range listeners {
		cb(nil)
	}
}

// fakeTransport is a scriptable transport adapter.
type fakeTransport struct {
	name          string
	openOnConnect bool
	sendErr       error

	mu          sync.Mutex
	connected   bool
	callback    func(transport.Event)
	sent        []string
	toolResults map[string]tool.Result
}

func newFakeTransport(name string, openOnConnect bool) *fakeTransport {
	return &fakeTransport{
		name:          name,
		openOnConnect: openOnConnect,
		toolResults:   make(map[string]tool.Result),
	}
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	if f.openOnConnect {
		f.emit(transport.Event{Kind: transport.KindConnectionOpened, ConversationID: "c1"})
	}
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) SendText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeTransport) RespondTool(correlationID string, result tool.Result) error {
	f.mu.Lock()
	f.toolResults[correlationID] = result
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Subscribe(callback func(transport.Event)) {
	f.mu.Lock()
	f.callback = callback
	f.mu.Unlock()
}

func (f *fakeTransport) emit(ev transport.Event) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

func (f *fakeTransport) resultFor(correlationID string) (tool.Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.toolResults[correlationID]
	return r, ok
}

// fakeCreator backs the executor in orchestration tests.
type fakeCreator struct {
	mu    sync.Mutex
	jokes []store.Joke
}

func (f *fakeCreator) CreateJoke(ctx context.Context, joke store.Joke) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jokes = append(f.jokes, joke)
	return "j1", nil
}

func (f *fakeCreator) owners() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, j := range f.jokes {
		out = append(out, j.Owner)
	}
	return out
}

type harness struct {
	bridge   *Bridge
	primary  *fakeTransport
	widget   *fakeTransport
	provider *fakeProvider
	machine  *transcript.Machine
	creator  *fakeCreator
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}

	h := &harness{
		primary:  newFakeTransport("primary", true),
		widget:   newFakeTransport("widget", true),
		provider: &fakeProvider{identity: &auth.Identity{UID: "user_1"}},
		machine:  transcript.NewMachine(nil, 0),
		creator:  &fakeCreator{},
	}
	h.bridge = New(cfg, h.provider, nil, tool.NewExecutor(h.creator), h.machine, h.primary, h.widget)
	t.Cleanup(h.bridge.Stop)
	return h
}

func (h *harness) systemMessages() []string {
	var out []string
	for _, turn := range h.machine.History() {
		if turn.Speaker == transcript.SpeakerSystem {
			out = append(out, turn.Text)
		}
	}
	return out
}

func (h *harness) countSystemContaining(substr string) int {
	n := 0
	for _, msg := range h.systemMessages() {
		if strings.Contains(msg, substr) {
			n++
		}
	}
	return n
}

func TestStartRequiresIdentity(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.identity = nil

	err := h.bridge.Start()
	require.Error(t, err)
	assert.Equal(t, fault.AuthenticationRequired, fault.CodeOf(err))
}

func TestStartConnectsBothTransports(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.bridge.Start())
	assert.True(t, h.primary.IsConnected())
	assert.True(t, h.widget.IsConnected())
	assert.Equal(t, StateConnected, h.bridge.Session().State())
	assert.Equal(t, "c1", h.bridge.Session().ConversationID())
	assert.Equal(t, "user_1", h.bridge.Session().UserID())
}

func TestStartTimesOutWithoutUsableFrame(t *testing.T) {
	h := newHarness(t, &config.Config{ConnectTimeoutSec: 1})
	h.primary.openOnConnect = false

	err := h.bridge.Start()
	require.Error(t, err)
	assert.Equal(t, fault.ConnectionTimeout, fault.CodeOf(err))
	assert.Equal(t, StateDisconnected, h.bridge.Session().State())
	assert.Equal(t, 1, h.countSystemContaining("connection timed out"))
}

func TestSendRejectsConcurrentInput(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.bridge.Start())

	require.NoError(t, h.bridge.Send("first"))
	assert.False(t, h.bridge.InputEnabled())

	err := h.bridge.Send("second")
	require.Error(t, err)
	assert.Equal(t, fault.InvalidArgument, fault.CodeOf(err))

	// The finalized reply re-enables input for the next send.
	h.primary.emit(transport.Event{Kind: transport.KindFinalAgentText, Text: "done"})
	assert.True(t, h.bridge.InputEnabled())
	require.NoError(t, h.bridge.Send("third"))
}

func TestNoResponseNoticeAppearsExactlyOnce(t *testing.T) {
	h := newHarness(t, &config.Config{ResponseTimeoutSec: 1})
	require.NoError(t, h.bridge.Start())

	require.NoError(t, h.bridge.Send("anyone there?"))

	require.Eventually(t, func() bool {
		return h.bridge.InputEnabled()
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, h.countSystemContaining("no response from agent"))
}

func TestAgentChunkDisarmsNoResponseNotice(t *testing.T) {
	h := newHarness(t, &config.Config{ResponseTimeoutSec: 1})
	require.NoError(t, h.bridge.Start())

	require.NoError(t, h.bridge.Send("hello"))
	h.primary.emit(transport.Event{Kind: transport.KindPartialAgentText, Text: "thinking"})

	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, 0, h.countSystemContaining("no response from agent"))
}

func TestSendFailureSurfacesAndReenables(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.bridge.Start())

	h.primary.sendErr = errors.New("socket gone")
	require.NoError(t, h.bridge.Send("doomed"))

	require.Eventually(t, func() bool {
		return h.countSystemContaining("send failed") == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, h.bridge.InputEnabled())
}

func TestConnectionClosedForceFinalizesAndReenables(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.bridge.Start())

	require.NoError(t, h.bridge.Send("tell me one"))
	h.primary.emit(transport.Event{Kind: transport.KindPartialAgentText, Text: "here's a jo"})
	assert.True(t, h.machine.Streaming(transcript.SpeakerAssistant))

	h.primary.emit(transport.Event{Kind: transport.KindConnectionClosed, Err: errors.New("peer reset")})

	assert.False(t, h.machine.Streaming(transcript.SpeakerAssistant))
	assert.True(t, h.bridge.InputEnabled())
	assert.Equal(t, StateDisconnected, h.bridge.Session().State())
	assert.Equal(t, 1, h.countSystemContaining("connection closed"))

	// The interrupted turn survives with its last streamed text.
	var finalized bool
	for _, turn := range h.machine.History() {
		if turn.Speaker == transcript.SpeakerAssistant && turn.Text == "here's a jo" {
			finalized = true
		}
	}
	assert.True(t, finalized)
}

func TestTranscriptRouting(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.bridge.Start())

	h.primary.emit(transport.Event{Kind: transport.KindPartialUserText, Text: "tell me a"})
	h.primary.emit(transport.Event{Kind: transport.KindFinalUserText, Text: "tell me a joke"})
	h.primary.emit(transport.Event{Kind: transport.KindPartialAgentText, Text: "Why did the chicken cross the toad?"})
	h.primary.emit(transport.Event{Kind: transport.KindAgentCorrection, Text: "Why did the chicken cross the road?"})
	h.primary.emit(transport.Event{Kind: transport.KindFinalAgentText, Text: ""})

	history := h.machine.History()
	require.Len(t, history, 2)
	assert.Equal(t, "tell me a joke", history[0].Text)
	assert.Equal(t, "Why did the chicken cross the road?", history[1].Text)
}

func TestToolCallRoundTripOverRequestingTransport(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.bridge.Start())

	h.widget.emit(transport.Event{Kind: transport.KindToolCall, Tool: &transport.ToolCall{
		Name:          tool.ToolSaveJoke,
		Arguments:     map[string]interface{}{"content": "a joke", "tags": "pun"},
		CorrelationID: "t1",
	}})

	require.Eventually(t, func() bool {
		_, ok := h.widget.resultFor("t1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	res, _ := h.widget.resultFor("t1")
	assert.True(t, res.Success)
	assert.Equal(t, "j1", res.DocumentID)

	// The result went to the transport that asked, not the primary.
	_, onPrimary := h.primary.resultFor("t1")
	assert.False(t, onPrimary)

	// Ownership comes from the signed-in identity, not the arguments.
	assert.Equal(t, []string{"user_1"}, h.creator.owners())

	require.Eventually(t, func() bool {
		for _, turn := range h.machine.History() {
			if turn.Speaker == transcript.SpeakerTool && strings.Contains(turn.Text, "saved joke j1") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, h.bridge.Session().PendingCount())
}

func TestToolCallFailureReportedOnce(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.bridge.Start())

	h.primary.emit(transport.Event{Kind: transport.KindToolCall, Tool: &transport.ToolCall{
		Name:          tool.ToolSaveJoke,
		Arguments:     map[string]interface{}{"content": "   "},
		CorrelationID: "t2",
	}})

	require.Eventually(t, func() bool {
		_, ok := h.primary.resultFor("t2")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	res, _ := h.primary.resultFor("t2")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "content must be a non-empty string")
	assert.Empty(t, h.creator.owners())
}

func TestSignOutTearsDown(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.bridge.Start())

	h.provider.signOut()

	assert.False(t, h.primary.IsConnected())
	assert.False(t, h.widget.IsConnected())
	assert.Equal(t, StateDisconnected, h.bridge.Session().State())
	assert.Equal(t, "", h.bridge.Session().ConversationID())
}

func TestKeepaliveTouchesSession(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.bridge.Start())

	assert.True(t, h.bridge.Session().LastKeepalive().IsZero())
	h.primary.emit(transport.Event{Kind: transport.KindKeepalive})
	assert.False(t, h.bridge.Session().LastKeepalive().IsZero())
}
