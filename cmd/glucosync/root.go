package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwulff/glucosync/internal/access"
	"github.com/jwulff/glucosync/internal/config"
	"github.com/jwulff/glucosync/internal/dedup"
	"github.com/jwulff/glucosync/internal/healthstore"
	"github.com/jwulff/glucosync/internal/logging"
	"github.com/jwulff/glucosync/internal/storage/sqlite"
	"github.com/jwulff/glucosync/internal/syncer"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "glucosync",
	Short: "Sync blood-glucose CSV exports into a health store",
	Long: `glucosync imports blood-glucose measurements from meter CSV exports
and synchronizes them, without duplication, into an external health-data
store. It also retrieves the store's incremental change stream via
continuation tokens.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default glucosync.yaml)")
}

// app bundles everything a command needs. Each command builds one and
// closes it when done.
type app struct {
	cfg     *config.Config
	store   *healthstore.Client
	local   *sqlite.Store
	checker *access.Checker
	engine  *syncer.Syncer
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logging.Initialize(logging.Options{
		Level:  cfg.Log.Level,
		Format: logging.Format(cfg.Log.Format),
		File:   cfg.Log.File,
	})

	if cfg.Store.URL == "" {
		return nil, fmt.Errorf("store.url is not configured (set it in the config file or GLUCOSYNC_STORE_URL)")
	}
	store := healthstore.NewClient(cfg.Store.URL, cfg.Store.APIKey)

	local, err := sqlite.NewFileStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local state db: %w", err)
	}

	checker := access.NewChecker(store, logging.For("access"))
	engine := syncer.New(store, local, checker, syncer.Config{
		BatchSize:  cfg.Sync.BatchSize,
		MaxRetries: cfg.Sync.MaxRetries,
		Lookback:   cfg.Sync.Lookback,
		Dedup: dedup.Keyer{
			ResolutionSeconds: cfg.Dedup.ResolutionSeconds,
			Precision:         cfg.Dedup.Precision,
		},
	}, logging.For("syncer"))

	return &app{
		cfg:     cfg,
		store:   store,
		local:   local,
		checker: checker,
		engine:  engine,
	}, nil
}

func (a *app) Close() {
	if err := a.local.Close(); err != nil {
		logging.For("main").Warnw("failed to close local state db", "error", err)
	}
}

// readLines reads the non-blank lines of a file. An unreadable file is the
// one fatal parse failure; malformed content never is.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}
