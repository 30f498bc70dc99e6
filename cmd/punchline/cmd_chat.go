package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/punchline-labs/bridge/internal/agent"
	"github.com/punchline-labs/bridge/internal/auth"
	"github.com/punchline-labs/bridge/internal/bridge"
	"github.com/punchline-labs/bridge/internal/config"
	"github.com/punchline-labs/bridge/internal/draft"
	"github.com/punchline-labs/bridge/internal/logger"
	"github.com/punchline-labs/bridge/internal/store"
	"github.com/punchline-labs/bridge/internal/tool"
	"github.com/punchline-labs/bridge/internal/transcript"
	"github.com/punchline-labs/bridge/internal/transport"
	"github.com/spf13/cobra"
)

const chatDraftID = "chat-input"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the comedy agent from the terminal",
	Long: `Start an interactive text session over the request/response transport.
Each message gets one finalized reply; the conversation id is reused
across turns. Type /quit to leave.`,
	Run: runChat,
}

func runChat(cmd *cobra.Command, args []string) {
	// Log to the file only. The daemon multiplexes to stderr, but here
	// stderr shares the terminal with the conversation.
	l, err := logger.New()
	if err == nil {
		log.SetOutput(l)
		defer l.Close()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Not configured. Run 'punchline login' first.")
		os.Exit(1)
	}

	authClient := auth.NewClient(cfg.AuthURL, cfg.RefreshToken)
	if err := authClient.Start(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Sign-in failed: %v\n", err)
		os.Exit(1)
	}
	defer authClient.Close()

	agentClient := agent.NewClient(cfg.FunctionsURL, authClient.Token())
	storeClient := store.NewClient(cfg.StoreURL, authClient.Token())
	authClient.OnToken(agentClient.SetToken)
	authClient.OnToken(storeClient.SetToken)

	drafts, err := draft.NewStore(filepath.Join(config.ConfigDir(), "drafts"), 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Draft store unavailable: %v\n", err)
		os.Exit(1)
	}
	defer drafts.Close()

	machine := transcript.NewMachine(&consoleSink{out: os.Stdout}, cfg.TurnIdleTimeout())
	executor := tool.NewExecutor(storeClient)
	primary := transport.NewRequestAdapter(agentClient)

	b := bridge.New(cfg, authClient, agentClient, executor, machine, primary, nil)
	if err := b.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Bridge failed to start: %v\n", err)
		os.Exit(1)
	}
	defer b.Stop()

	if text, ok := drafts.Get(chatDraftID); ok && text != "" {
		fmt.Printf("(unsent draft restored: %q, press enter to discard)\n", text)
	}

	fmt.Println("Connected. Say something funny (or /quit).")
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			drafts.Delete(chatDraftID)
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		drafts.Put(chatDraftID, line)
		if err := b.Send(line); err != nil {
			fmt.Printf("! %v\n", err)
			continue
		}
		drafts.Delete(chatDraftID)

		waitForReply(b, cfg.ResponseTimeout())
	}
}

// waitForReply blocks the prompt until input re-enables (reply finalized,
// error surfaced, or the no-response timeout fired).
func waitForReply(b *bridge.Bridge, max time.Duration) {
	deadline := time.Now().Add(max + time.Second)
	for time.Now().Before(deadline) {
		if b.InputEnabled() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// consoleSink renders transcript turns as plain terminal lines. Interim
// turns print with a trailing ellipsis and are superseded by the final
// print; finalized turns appear exactly once.
type consoleSink struct {
	out *os.File
}

func (c *consoleSink) TurnStarted(t transcript.Turn) {
	if t.Speaker == transcript.SpeakerUser {
		return // the user already sees what they typed
	}
	fmt.Fprintf(c.out, "%s %s …\n", laneLabel(t.Speaker), t.Text)
}

func (c *consoleSink) TurnUpdated(t transcript.Turn) {
	if t.Speaker == transcript.SpeakerUser {
		return
	}
	fmt.Fprintf(c.out, "%s %s …\n", laneLabel(t.Speaker), t.Text)
}

func (c *consoleSink) TurnFinalized(t transcript.Turn) {
	if t.Speaker == transcript.SpeakerUser {
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", laneLabel(t.Speaker), t.Text)
}

func laneLabel(s transcript.Speaker) string {
	switch s {
	case transcript.SpeakerAssistant:
		return "agent>"
	case transcript.SpeakerTool:
		return "tool>"
	case transcript.SpeakerSystem:
		return "system>"
	default:
		return "you>"
	}
}
