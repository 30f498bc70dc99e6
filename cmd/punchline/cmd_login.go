package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/punchline-labs/bridge/internal/auth"
	"github.com/punchline-labs/bridge/internal/config"
	"github.com/spf13/cobra"
)

var (
	loginAuthURL      string
	loginFunctionsURL string
	loginStoreURL     string
	loginAgentWSURL   string
	loginAgentID      string
	loginTransport    string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Configure the bridge with your account and endpoints",
	Long: `Configure the bridge with your service endpoints and a refresh token.

1. Sign in on the web app and open Settings -> Devices
2. Click "Add device" to mint a refresh token
3. Paste the token when prompted

Example:
  punchline login --auth https://auth.example.com \
    --functions https://fn.example.com \
    --store https://store.example.com \
    --agent-id comedy_pro`,
	Run: func(cmd *cobra.Command, args []string) {
		if loginAuthURL == "" || loginFunctionsURL == "" || loginStoreURL == "" {
			fmt.Fprintln(os.Stderr, "Error: --auth, --functions and --store are required")
			os.Exit(1)
		}
		if loginTransport != "chat" && loginTransport != "voice" {
			fmt.Fprintln(os.Stderr, "Error: --transport must be 'chat' or 'voice'")
			os.Exit(1)
		}

		reader := bufio.NewReader(os.Stdin)

		fmt.Println("Punchline Bridge Login")
		fmt.Println("======================")
		fmt.Println()
		fmt.Print("Paste refresh token: ")

		token, _ := reader.ReadString('\n')
		token = strings.TrimSpace(token)
		if token == "" {
			fmt.Fprintln(os.Stderr, "Error: refresh token must not be empty")
			os.Exit(1)
		}

		fmt.Println("Verifying...")

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		authClient := auth.NewClient(loginAuthURL, token)
		if err := authClient.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Sign-in failed: %v\n", err)
			os.Exit(1)
		}
		identity := authClient.Current()
		authClient.Close()

		cfg := &config.Config{
			UserID:       identity.UID,
			RefreshToken: token,
			AgentID:      loginAgentID,
			FunctionsURL: loginFunctionsURL,
			StoreURL:     loginStoreURL,
			AuthURL:      loginAuthURL,
			AgentWSURL:   loginAgentWSURL,
			Transport:    loginTransport,
		}

		if err := config.Save(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Println("✓ Signed in!")
		fmt.Printf("  User ID:   %s\n", cfg.UserID)
		fmt.Printf("  Transport: %s\n", cfg.Transport)
		fmt.Println()
		fmt.Println("Run 'punchline chat' to talk, or 'punchline start' for voice.")
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginAuthURL, "auth", "", "Identity provider URL (required)")
	loginCmd.Flags().StringVar(&loginFunctionsURL, "functions", "", "Agent callable endpoint URL (required)")
	loginCmd.Flags().StringVar(&loginStoreURL, "store", "", "Document store URL (required)")
	loginCmd.Flags().StringVar(&loginAgentWSURL, "agent-ws", "", "Duplex endpoint URL (voice transport)")
	loginCmd.Flags().StringVar(&loginAgentID, "agent-id", "", "Static agent identifier")
	loginCmd.Flags().StringVar(&loginTransport, "transport", "chat", "Primary transport: chat or voice")
}
