package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reviewd-dev/reviewd/internal/version"
)

var (
	serverAddr string
	apiKey     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reviewctl",
		Short: "Client for the reviewd code review daemon",
		Long:  "reviewctl submits diffs to a running reviewd daemon and renders the structured review.",
	}

	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:8420", "daemon server address")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("REVIEWD_API_KEY"), "API key (defaults to REVIEWD_API_KEY)")

	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the reviewctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("reviewctl %s\n", version.Version)
		},
	}
}
