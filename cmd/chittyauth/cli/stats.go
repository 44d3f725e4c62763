package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show token statistics",
		Long:  "Display aggregate token counts and recent validation volume from the local store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(jsonOutput bool) error {
	stk, err := openStack()
	if err != nil {
		return err
	}
	defer stk.Close()

	stats, err := stk.Engine.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("%-12s %d\n", "Total:", stats.Total)
	fmt.Printf("%-12s %d\n", "Active:", stats.Active)
	fmt.Printf("%-12s %d\n", "Revoked:", stats.Revoked)
	fmt.Printf("%-12s %d\n", "Expired:", stats.Expired)
	fmt.Printf("%-12s %d\n", "Validations (24h):", stats.Requests24)
	return nil
}
