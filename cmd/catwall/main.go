package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vgrigoriev/catwall/internal/config"
	"github.com/vgrigoriev/catwall/internal/discogs"
	"github.com/vgrigoriev/catwall/internal/images"
	"github.com/vgrigoriev/catwall/internal/journal"
	"github.com/vgrigoriev/catwall/internal/llm"
	"github.com/vgrigoriev/catwall/internal/pipeline"
	"github.com/vgrigoriev/catwall/internal/server"
	"github.com/vgrigoriev/catwall/internal/telegram"
	"github.com/vgrigoriev/catwall/internal/vk"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "catwall",
	Short:   "Scheduled content curation for a community wall",
	Long:    "catwall watches a daily schedule and, when a slot comes up, samples music and pictures from source walls, has a model curate them, and posts the winners.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Secrets live in the environment, optionally via .env.
		_ = godotenv.Load()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		// The configuration is reloaded fresh on every invocation, so a
		// shared document in object storage takes effect immediately.
		if config.StoreConfigured() {
			var err error
			cfg, err = config.LoadFromStore()
			if err != nil {
				return fmt.Errorf("loading config from store: %w", err)
			}
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("catwall", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/catwall/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the wall, providers, schedule, and tokens.")
		return nil
	},
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one invocation of the publishing pipeline",
	Long:  "Run evaluates the daily schedule and, when a slot is due, samples, curates and publishes one post. An external timer is expected to call it every few minutes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		startedAt := time.Now()
		watcher, notifier := buildWatcher()
		ctx := context.Background()

		var outcome pipeline.Outcome
		if dryRun {
			outcome = watcher.DryRun(ctx)
		} else {
			outcome = watcher.Run(ctx)
		}

		if !dryRun {
			recordRun(startedAt, outcome)
			if outcome.Notify && notifier != nil {
				notifier.Notify(ctx, outcome.Message)
			}
		}

		if outcome.OK {
			fmt.Println(outcome.Message)
		} else {
			fmt.Println("Run ended early:", outcome.Message)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Evaluate the schedule without sampling or posting")
}

// buildWatcher assembles the production pipeline from config and
// environment secrets.
func buildWatcher() (*pipeline.Watcher, *telegram.Notifier) {
	wall := vk.NewClient(
		os.Getenv(cfg.VK.ServiceTokenEnv),
		os.Getenv(cfg.VK.CommunityTokenEnv),
	)
	catalog := discogs.NewClient(os.Getenv(cfg.Discogs.TokenEnv))
	model := llm.NewClient(
		cfg.LLM.BaseURL,
		os.Getenv(cfg.LLM.APIKeyEnv),
		cfg.LLM.TextModel,
		cfg.LLM.MultiModal,
	)
	notifier := telegram.NewNotifier(os.Getenv(cfg.Telegram.TokenEnv), cfg.Telegram.ChatID)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	watcher := pipeline.NewWatcher(cfg, wall, catalog, model, images.NewHTTPFetcher(), rng, nil)
	return watcher, notifier
}

// recordRun journals the outcome; journal trouble is logged, not fatal.
func recordRun(startedAt time.Time, outcome pipeline.Outcome) {
	db, err := openJournal()
	if err != nil {
		log.Printf("Opening journal: %v", err)
		return
	}
	defer db.Close()

	run := journal.Run{
		StartedAt: startedAt,
		Message:   outcome.Message,
	}
	switch {
	case outcome.Posted != nil:
		run.Outcome = journal.OutcomePosted
		run.PostID = &outcome.Posted.PostID
		if !outcome.Posted.ScheduledAt.IsZero() {
			t := outcome.Posted.ScheduledAt
			run.ScheduledAt = &t
		}
	case outcome.OK:
		run.Outcome = journal.OutcomeNoAction
	default:
		run.Outcome = journal.OutcomeFailed
	}

	if err := db.Record(run); err != nil {
		log.Printf("Recording run: %v", err)
	}
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run journal statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openJournal()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Runs:")
		fmt.Printf("  Total: %d\n", stats.TotalRuns)
		fmt.Printf("  Posted: %d\n", stats.Posted)
		fmt.Printf("  No action: %d\n", stats.NoAction)
		fmt.Printf("  Failed: %d\n", stats.Failed)
		if stats.LastRun != nil {
			fmt.Printf("\nLast run: %s (%s)\n",
				stats.LastRun.StartedAt.Format("2006-01-02 15:04:05"), stats.LastRun.Outcome)
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local run-journal viewer",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openJournal()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (defaults to config)")
}

func openJournal() (*journal.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return journal.Open(filepath.Join(dataDir, "catwall.db"))
}
