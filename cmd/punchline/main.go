package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "punchline",
	Short: "Punchline Bridge - Connect your comedy-writing assistant to the cloud",
	Long: `Punchline Bridge relays chat and voice turns between you and a hosted
comedy-writing agent, and saves the keepers to your joke library.

It speaks three transports (a one-shot chat call, a streaming voice
connection, and an embedded widget) and funnels all of them into one
transcript and one save-joke pipeline.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("punchline", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(versionCmd)
}
