package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the store in the background at a fixed interval",
	Long: `Poll the health store periodically. Each tick re-checks availability
and permissions; when the background tier is granted, the change stream is
drained to keep the continuation token fresh. Stop with Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		interval := watchInterval
		if interval <= 0 {
			interval = a.cfg.Sync.PollInterval
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Polling every %s. Press Ctrl+C to stop.\n", interval)
		err = a.engine.Watch(ctx, interval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "poll interval (default from config)")
	rootCmd.AddCommand(watchCmd)
}
