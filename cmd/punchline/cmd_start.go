package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/punchline-labs/bridge/internal/agent"
	"github.com/punchline-labs/bridge/internal/auth"
	"github.com/punchline-labs/bridge/internal/bridge"
	"github.com/punchline-labs/bridge/internal/config"
	"github.com/punchline-labs/bridge/internal/logger"
	"github.com/punchline-labs/bridge/internal/store"
	"github.com/punchline-labs/bridge/internal/tool"
	"github.com/punchline-labs/bridge/internal/transcript"
	"github.com/punchline-labs/bridge/internal/transport"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the voice bridge daemon",
	Long:  `Start the bridge in foreground mode using the duplex voice transport.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Setup rotating logger
		l, err := logger.New()
		if err == nil {
			log.SetOutput(l.Writer())
			defer l.Close()
		}

		cfg, err := config.Load()
		if err != nil {
			log.Printf("Error loading config: %v", err)
			fmt.Println("Please run 'punchline login' first to configure the bridge.")
			os.Exit(1)
		}

		log.Println("Starting Punchline Bridge...")
		log.Printf("Agent ID: %s", cfg.AgentID)
		log.Printf("Transport: voice")

		authClient := auth.NewClient(cfg.AuthURL, cfg.RefreshToken)
		if err := authClient.Start(context.Background()); err != nil {
			log.Printf("Sign-in failed: %v", err)
			os.Exit(1)
		}
		defer authClient.Close()

		agentClient := agent.NewClient(cfg.FunctionsURL, authClient.Token())
		storeClient := store.NewClient(cfg.StoreURL, authClient.Token())
		authClient.OnToken(agentClient.SetToken)
		authClient.OnToken(storeClient.SetToken)

		duplexCfg := transport.DuplexConfig{
			BaseURL:      cfg.AgentWSURL,
			AgentID:      cfg.AgentID,
			SystemPrompt: cfg.SystemPrompt,
			Language:     cfg.Language,
		}
		if url, err := agentClient.GetSignedURL(context.Background()); err == nil {
			duplexCfg.SignedURL = url
		} else {
			log.Printf("Signed URL unavailable, dialing with agent id: %v", err)
		}

		machine := transcript.NewMachine(logSink{}, cfg.TurnIdleTimeout())
		executor := tool.NewExecutor(storeClient)
		primary := transport.NewDuplexAdapter(duplexCfg)

		b := bridge.New(cfg, authClient, agentClient, executor, machine, primary, nil)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			<-sigChan
			log.Println("Shutting down...")
			b.Stop()
			os.Exit(0)
		}()

		if err := b.Start(); err != nil {
			log.Printf("Bridge error: %v", err)
			os.Exit(1)
		}

		select {} // run until signalled
	},
}

// logSink projects transcript turns into the daemon log.
type logSink struct{}

func (logSink) TurnStarted(t transcript.Turn) {
	log.Printf("[Transcript] %s (interim): %s", t.Speaker, t.Text)
}

func (logSink) TurnUpdated(t transcript.Turn) {
	log.Printf("[Transcript] %s (interim): %s", t.Speaker, t.Text)
}

func (logSink) TurnFinalized(t transcript.Turn) {
	log.Printf("[Transcript] %s: %s", t.Speaker, t.Text)
}
