package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store availability, granted tiers, and recent sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		snap, err := a.checker.Refresh(ctx)
		if err != nil {
			fmt.Printf("Store: unreachable (%v)\n", err)
		} else if !snap.StoreAvailable {
			fmt.Println("Store: unavailable")
		} else {
			fmt.Println("Store: available")
			if snap.Tiers.Empty() {
				fmt.Println("Permissions: none granted")
			} else {
				fmt.Printf("Permissions: up to %s\n", snap.Tiers.Highest())
			}
		}
		fmt.Printf("Access state: %s\n", a.checker.State())

		runs, err := a.local.RecentSyncRuns(ctx, 5)
		if err != nil {
			return fmt.Errorf("failed to read sync log: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No sync runs recorded.")
			return nil
		}

		fmt.Println("Recent sync runs:")
		for _, run := range runs {
			line := fmt.Sprintf("  %s  uploaded=%d skipped=%d failed=%d",
				run.StartedAt.Format("2006-01-02 15:04:05"),
				run.Uploaded, run.SkippedDuplicates, run.Failed)
			if run.Blocked != "" {
				line += "  blocked: " + run.Blocked
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
