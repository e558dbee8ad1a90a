package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwulff/glucosync/internal/glucose"
	"github.com/jwulff/glucosync/internal/syncer"
)

var historyReset bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Fetch new records from the store's change stream",
	Long: `Fetch incremental changes from the health store, resuming from the
persisted continuation token. With --reset the token is discarded and
pagination restarts from the configured lookback window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()

		if historyReset {
			if err := a.local.DeleteToken(ctx, syncer.DefaultConfig().Stream); err != nil {
				return fmt.Errorf("failed to reset continuation token: %w", err)
			}
		}

		snap, err := a.checker.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("access check failed: %w", err)
		}

		hist, err := a.engine.FetchHistory(ctx, snap, "")
		if err != nil {
			return err
		}

		if hist.Restarted {
			fmt.Println("Continuation token had expired; restarted from the lookback baseline.")
		}
		if len(hist.Records) == 0 {
			fmt.Println("No new changes.")
			return nil
		}

		fmt.Printf("%d new records:\n", len(hist.Records))
		for _, r := range hist.Records {
			fmt.Printf("  %s  %6.1f mg/dL  (%s)\n",
				r.Instant.Format("2006-01-02 15:04"), r.Value, glucose.ClassifyRange(r.Value))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyReset, "reset", false, "discard the persisted token and restart pagination")
	rootCmd.AddCommand(historyCmd)
}
