package bridge

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/punchline-labs/bridge/internal/agent"
	"github.com/punchline-labs/bridge/internal/auth"
	"github.com/punchline-labs/bridge/internal/config"
	"github.com/punchline-labs/bridge/internal/fault"
	"github.com/punchline-labs/bridge/internal/tool"
	"github.com/punchline-labs/bridge/internal/transcript"
	"github.com/punchline-labs/bridge/internal/transport"
)

// Bridge owns the session and orchestrates the active transports. The
// primary transport (request/response or duplex) carries the conversation;
// the widget transport may run alongside it, feeding the same tool
// pipeline. Only the bridge opens and closes transports.
type Bridge struct {
	cfg         *config.Config
	auth        auth.Provider
	agentClient *agent.Client
	executor    *tool.Executor
	transcript  *transcript.Machine

	primary transport.Adapter
	widget  transport.Adapter

	session *Session
	gate    inputGate

	mu        sync.Mutex
	sendGen   int
	sendTimer *time.Timer

	opened     chan struct{}
	openedOnce sync.Once
	done       chan struct{}
	stopOnce   sync.Once
}

// New wires the bridge. agentClient may be nil when the primary transport
// does not need signed URLs; widget may be nil when no widget host is
// injected.
func New(cfg *config.Config, authProvider auth.Provider, agentClient *agent.Client,
	executor *tool.Executor, machine *transcript.Machine,
	primary transport.Adapter, widget transport.Adapter) *Bridge {
	return &Bridge{
		cfg:         cfg,
		auth:        authProvider,
		agentClient: agentClient,
		executor:    executor,
		transcript:  machine,
		primary:     primary,
		widget:      widget,
		opened:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start requires a signed-in identity, connects the transports, and blocks
// until the first usable frame arrives or the connection timeout elapses.
// Sign-out tears the bridge down.
func (b *Bridge) Start() error {
	identity := b.auth.Current()
	if identity == nil {
		return fault.New(fault.AuthenticationRequired, "not signed in")
	}

	b.session = NewSession(identity.UID)
	b.session.SetState(StateConnecting)

	b.auth.OnChange(func(id *auth.Identity) {
		if id == nil {
			log.Printf("[Bridge] Signed out, tearing down")
			b.Stop()
		}
	})

	b.primary.Subscribe(func(ev transport.Event) { b.handleEvent(b.primary, ev) })
	if b.widget != nil {
		b.widget.Subscribe(func(ev transport.Event) { b.handleEvent(b.widget, ev) })
	}

	if err := b.primary.Connect(); err != nil {
		b.session.SetState(StateDisconnected)
		b.transcript.Append(transcript.SpeakerSystem, "connection failed: "+err.Error())
		return err
	}

	select {
	case <-b.opened:
	case <-time.After(b.cfg.ConnectTimeout()):
		b.primary.Disconnect()
		b.session.SetState(StateDisconnected)
		b.transcript.Append(transcript.SpeakerSystem, "connection timed out")
		return fault.New(fault.ConnectionTimeout, "no usable frame within connection timeout")
	case <-b.done:
		return fault.New(fault.ConnectionFailed, "bridge stopped during connect")
	}

	if b.widget != nil {
		if err := b.widget.Connect(); err != nil {
			log.Printf("[Bridge] Widget transport failed to start: %v", err)
		}
	}

	if d, ok := b.primary.(*transport.DuplexAdapter); ok && b.agentClient != nil {
		go b.refreshSignedURL(d)
	}

	log.Printf("[Bridge] Started for user %s via %s", identity.UID, b.primary.Name())
	return nil
}

// Stop closes all transports and clears session state. Closing the duplex
// connection is the only true cancellation primitive, so any in-flight
// transcript turns are force-finalized on the way down.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		if b.widget != nil {
			b.widget.Disconnect()
		}
		b.primary.Disconnect()
		b.transcript.CloseAll()
		b.gate.forceEnable()
		if b.session != nil {
			b.session.Reset()
		}
	})
}

// Send relays one user message over the primary transport. It rejects
// concurrent sends while a response is outstanding and arms the
// idle-response timer: if the agent produces nothing within the bound,
// input re-enables and a single no-response notice is appended.
func (b *Bridge) Send(text string) error {
	if b.session == nil || b.auth.Current() == nil {
		return fault.New(fault.AuthenticationRequired, "not signed in")
	}

	gen, ok := b.gate.trySend()
	if !ok {
		return fault.New(fault.InvalidArgument, "input disabled while waiting for the agent")
	}

	timer := time.AfterFunc(b.cfg.ResponseTimeout(), func() {
		if b.gate.expire(gen) {
			b.transcript.Append(transcript.SpeakerSystem, "no response from agent")
		}
	})

	b.mu.Lock()
	b.sendGen = gen
	b.sendTimer = timer
	b.mu.Unlock()

	go func() {
		if err := b.primary.SendText(text); err != nil {
			timer.Stop()
			b.transcript.Append(transcript.SpeakerSystem, "send failed: "+err.Error())
			b.gate.enable(gen)
		}
	}()

	return nil
}

// InputEnabled reports whether the input surface accepts a send right now.
func (b *Bridge) InputEnabled() bool {
	return b.gate.enabled()
}

// Session exposes the current session state.
func (b *Bridge) Session() *Session {
	return b.session
}

func (b *Bridge) handleEvent(ad transport.Adapter, ev transport.Event) {
	switch ev.Kind {
	case transport.KindConnectionOpened:
		b.session.SetState(StateConnected)
		b.session.SetConversationID(ev.ConversationID)
		if ad == b.primary {
			b.openedOnce.Do(func() { close(b.opened) })
		}
		log.Printf("[Bridge] %s transport opened", ad.Name())

	case transport.KindConnectionClosed:
		b.transcript.CloseAll()
		b.gate.forceEnable()
		b.stopResponseTimer()
		if ad == b.primary {
			b.session.SetState(StateDisconnected)
		}
		if ev.Err != nil {
			b.transcript.Append(transcript.SpeakerSystem, "connection closed: "+ev.Err.Error())
		}

	case transport.KindPartialUserText:
		b.transcript.Partial(transcript.SpeakerUser, ev.Text)

	case transport.KindFinalUserText:
		b.transcript.Final(transcript.SpeakerUser, ev.Text)

	case transport.KindPartialAgentText:
		b.gate.markResponding()
		b.stopResponseTimer()
		b.transcript.Partial(transcript.SpeakerAssistant, ev.Text)

	case transport.KindFinalAgentText:
		b.gate.markResponding()
		b.stopResponseTimer()
		b.session.SetConversationID(ev.ConversationID)
		b.transcript.Final(transcript.SpeakerAssistant, ev.Text)
		b.mu.Lock()
		gen := b.sendGen
		b.mu.Unlock()
		b.gate.enable(gen)

	case transport.KindAgentCorrection:
		b.transcript.Correct(ev.Text)

	case transport.KindToolCall:
		if ev.Tool != nil {
			go b.handleToolCall(ad, *ev.Tool)
		}

	case transport.KindKeepalive:
		b.session.TouchKeepalive()
	}
}

// handleToolCall runs one invocation through the executor, reports the
// result over the transport that requested it, and appends a tool-lane
// transcript entry. Failures are reported once; there is no retry.
func (b *Bridge) handleToolCall(ad transport.Adapter, tc transport.ToolCall) {
	owner := ""
	if id := b.auth.Current(); id != nil {
		owner = id.UID
	}

	b.session.AddPending(tc.CorrelationID)
	defer b.session.ResolvePending(tc.CorrelationID)

	inv := tool.Invocation{
		Name:          tc.Name,
		Arguments:     tc.Arguments,
		CorrelationID: tc.CorrelationID,
	}
	res := b.executor.Execute(context.Background(), inv, owner)

	if err := ad.RespondTool(tc.CorrelationID, res); err != nil {
		log.Printf("[Bridge] Failed to report tool result over %s: %v", ad.Name(), err)
	}

	if res.Success {
		b.transcript.Append(transcript.SpeakerTool, fmt.Sprintf("saved joke %s", res.DocumentID))
	} else {
		b.transcript.Append(transcript.SpeakerTool, "save_joke failed: "+res.Error)
	}
}

func (b *Bridge) stopResponseTimer() {
	b.mu.Lock()
	if b.sendTimer != nil {
		b.sendTimer.Stop()
	}
	b.mu.Unlock()
}

// refreshSignedURL keeps a fresh signed URL on hand for duplex reconnects,
// renewing well before the validity window elapses.
func (b *Bridge) refreshSignedURL(d *transport.DuplexAdapter) {
	ticker := time.NewTicker(b.cfg.SignedURLRefresh())
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			url, err := b.agentClient.GetSignedURL(context.Background())
			if err != nil {
				log.Printf("[Bridge] Signed URL refresh failed: %v", err)
				continue
			}
			d.UpdateSignedURL(url)
		}
	}
}
