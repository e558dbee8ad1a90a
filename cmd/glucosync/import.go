package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwulff/glucosync/internal/csvfmt"
	"github.com/jwulff/glucosync/internal/healthstore"
	"github.com/jwulff/glucosync/internal/record"
)

var importAllowSynthetic bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Parse a CSV export and sync its readings into the health store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := readLines(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		dialect := csvfmt.Detect(lines)
		result := csvfmt.NewParser().Parse(lines, dialect)
		fmt.Printf("Detected %s: %d readings, %d rows skipped\n",
			dialect, len(result.Readings), result.SkippedRows)

		if result.Synthetic {
			if !importAllowSynthetic {
				return fmt.Errorf("no readings could be extracted from %s; refusing to upload diagnostic placeholders (use --allow-synthetic to override)", args[0])
			}
			fmt.Println("Warning: uploading synthetic diagnostic readings")
		}

		builder := record.NewBuilder(a.cfg.Source, nil)
		records, err := builder.BuildAll(result.Readings)
		if err != nil {
			return err
		}

		ctx := context.Background()
		snap, err := a.checker.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("access check failed: %w", err)
		}

		report, err := a.engine.Sync(ctx, snap, batchWindow(records), records)
		if err != nil {
			return err
		}

		fmt.Printf("Uploaded: %d\n", report.Uploaded)
		fmt.Printf("Skipped duplicates: %d\n", report.SkippedDuplicates)
		if len(report.Failed) > 0 {
			fmt.Printf("Failed: %d\n", len(report.Failed))
			for _, f := range report.Failed {
				fmt.Printf("  %s %.1f mg/dL: %s\n",
					f.Record.Instant.Format("2006-01-02 15:04"), f.Record.Value, f.Reason)
			}
		}
		return nil
	},
}

// batchWindow derives the sync window covering every record in the batch.
// An empty batch yields the zero window, which contains nothing.
func batchWindow(records []record.GlucoseRecord) healthstore.Window {
	if len(records) == 0 {
		return healthstore.Window{}
	}
	w := healthstore.Window{Start: records[0].Instant, End: records[0].Instant}
	for _, r := range records[1:] {
		if r.Instant.Before(w.Start) {
			w.Start = r.Instant
		}
		if r.Instant.After(w.End) {
			w.End = r.Instant
		}
	}
	// half-open window; pad the end so the latest record is inside
	w.End = w.End.Add(time.Second)
	return w
}

func init() {
	importCmd.Flags().BoolVar(&importAllowSynthetic, "allow-synthetic", false,
		"upload the diagnostic fallback readings when a file yields nothing")
	rootCmd.AddCommand(importCmd)
}
