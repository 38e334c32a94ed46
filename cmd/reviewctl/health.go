package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reviewd-dev/reviewd/internal/daemon"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var health daemon.HealthResponse
			if err := newClient().do("GET", "/health", nil, &health); err != nil {
				return err
			}
			fmt.Printf("status:   %s\n", health.Status)
			fmt.Printf("version:  %s\n", health.Version)
			fmt.Printf("provider: %s\n", health.LLMProvider)
			fmt.Printf("uptime:   %s\n", health.Uptime)
			return nil
		},
	}
}
