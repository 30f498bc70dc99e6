package main

import (
	"fmt"
	"os"

	"github.com/punchline-labs/bridge/internal/service"
	"github.com/spf13/cobra"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the bridge as a system service",
	Long: `Install, remove or control the bridge daemon as a system service
(systemd on Linux, launchd on macOS, SCM on Windows). The installed
service runs 'punchline start'.`,
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the bridge as a system service",
	Run: func(cmd *cobra.Command, args []string) {
		mgr := service.New()
		if err := mgr.Install(); err != nil {
			fmt.Fprintf(os.Stderr, "Install failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Service installed. Start it with 'punchline service start'.")
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the system service",
	Run: func(cmd *cobra.Command, args []string) {
		mgr := service.New()
		if err := mgr.Uninstall(); err != nil {
			fmt.Fprintf(os.Stderr, "Uninstall failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Service removed.")
	},
}

var serviceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the installed service",
	Run: func(cmd *cobra.Command, args []string) {
		mgr := service.New()
		if err := mgr.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Start failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Service started.")
	},
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the installed service",
	Run: func(cmd *cobra.Command, args []string) {
		mgr := service.New()
		if err := mgr.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Stop failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Service stopped.")
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service status",
	Run: func(cmd *cobra.Command, args []string) {
		mgr := service.New()
		status, _ := mgr.Status()
		fmt.Println("Service:", status)
	},
}

func init() {
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)
	serviceCmd.AddCommand(serviceStartCmd)
	serviceCmd.AddCommand(serviceStopCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
}
