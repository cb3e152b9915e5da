package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// playerView mirrors the API's per-player diagnostic payload
type playerView struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	State        string `json:"state"`
	Phase        string `json:"phase"`
	Coordination string `json:"coordination"`
}

// dumpView mirrors the API's full diagnostic dump
type dumpView struct {
	GeneratedAt string            `json:"generated_at"`
	Players     []playerView      `json:"players"`
	Counters    map[string]uint64 `json:"counters"`
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Dump all players' lifecycle state and the cumulative counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result dumpView
			if err := client.Get("/api/diag/dump", &result); err != nil {
				return err
			}

			if cfg.Output == "json" {
				return printJSON(result)
			}

			fmt.Printf("players (%d):\n", len(result.Players))
			for _, p := range result.Players {
				fmt.Printf("  %s  %-12s %-24s", p.ID, p.State, p.DisplayName)
				if p.Phase != "" {
					fmt.Printf(" phase=%s", p.Phase)
				}
				if p.Coordination != "" {
					fmt.Printf(" coordination=%s", p.Coordination)
				}
				fmt.Println()
			}

			fmt.Println("counters:")
			names := make([]string, 0, len(result.Counters))
			for name := range result.Counters {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %-28s %d\n", name, result.Counters[name])
			}
			return nil
		},
	}
}

func newPlayerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "player <player-id>",
		Short: "Show one player's lifecycle state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result playerView
			if err := client.Get("/api/diag/player/"+args[0], &result); err != nil {
				return err
			}

			if cfg.Output == "json" {
				return printJSON(result)
			}

			fmt.Printf("id:           %s\n", result.ID)
			fmt.Printf("name:         %s\n", result.DisplayName)
			fmt.Printf("state:        %s\n", result.State)
			if result.Phase != "" {
				fmt.Printf("phase:        %s\n", result.Phase)
			}
			if result.Coordination != "" {
				fmt.Printf("coordination: %s\n", result.Coordination)
			}
			return nil
		},
	}
}
