package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwulff/glucosync/internal/csvfmt"
	"github.com/jwulff/glucosync/internal/glucose"
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Classify a CSV export and preview what it would parse into",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := readLines(args[0])
		if err != nil {
			return err
		}

		dialect := csvfmt.Detect(lines)
		fmt.Printf("Dialect: %s\n", dialect)

		result := csvfmt.NewParser().Parse(lines, dialect)
		fmt.Printf("Readings: %d (skipped rows: %d)\n", len(result.Readings), result.SkippedRows)
		if result.Synthetic {
			fmt.Println("Warning: no readings could be extracted; the values below are")
			fmt.Println("diagnostic placeholders, not measurements.")
		}
		for _, r := range result.Readings {
			fmt.Printf("  %s  %6.1f mg/dL  (%s, %s)\n",
				r.Timestamp.Format("2006-01-02 15:04"), r.Value,
				glucose.ClassifyRange(r.Value), r.Meal)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
