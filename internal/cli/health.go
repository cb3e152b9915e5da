package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the coordinator's health and repository readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Status          string `json:"status"`
				RepositoryReady bool   `json:"repository_ready"`
			}
			if err := client.Get("/api/health", &result); err != nil {
				return err
			}

			if cfg.Output == "json" {
				return printJSON(result)
			}
			fmt.Printf("status: %s\nrepository ready: %v\n", result.Status, result.RepositoryReady)
			return nil
		},
	}
}
