package main

import (
	"fmt"
	"os"

	"github.com/punchline-labs/bridge/internal/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bridge configuration",
	Long:  `Display the current configuration of the Punchline bridge.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Println("Status: Not configured")
			fmt.Println("Run 'punchline login' to configure the bridge.")
			os.Exit(0)
		}

		fmt.Println("Punchline Bridge Status")
		fmt.Println("=======================")
		fmt.Printf("User ID:    %s\n", cfg.UserID)
		fmt.Printf("Agent ID:   %s\n", cfg.AgentID)
		fmt.Printf("Transport:  %s\n", cfg.Transport)
		fmt.Printf("Functions:  %s\n", cfg.FunctionsURL)
		fmt.Printf("Store:      %s\n", cfg.StoreURL)
		fmt.Println()
		fmt.Println("Run 'punchline chat' or 'punchline start' to connect.")
	},
}
