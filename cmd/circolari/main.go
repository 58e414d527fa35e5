package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/circolari/internal/config"
	"github.com/TobiSchelling/circolari/internal/database"
	"github.com/TobiSchelling/circolari/internal/pipeline"
	"github.com/TobiSchelling/circolari/internal/server"
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
	Use:     "circolari",
	Short:   "School portal notices scraper",
	Long:    "circolari logs into a school portal, stores every new circolare once, and serves them on a local dashboard.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
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
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(noticesCmd)
	rootCmd.AddCommand(runsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("circolari", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/circolari/",
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
		fmt.Println("Edit it to set the portal URL, then export CIRCOLARI_USERNAME and CIRCOLARI_PASSWORD.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and run status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Statistics(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Today: %s\n", database.GetToday())
		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Notices:")
		fmt.Printf("  Total stored: %d\n", stats.Total)
		fmt.Printf("  Published in the last 7 days: %d\n", stats.Last7Days)
		fmt.Printf("  Added in the last 24 hours: %d\n", stats.Last24Hours)
		if stats.MostRecent != nil {
			fmt.Printf("  Most recent: %s\n", database.FormatDateDisplay(*stats.MostRecent))
		}
		if len(stats.PerCategory) > 0 {
			fmt.Println("\nBy category:")
			for _, c := range stats.PerCategory {
				fmt.Printf("  %s: %d\n", c.Category, c.Count)
			}
		}

		fmt.Println("\nRuns:")
		fmt.Printf("  Recorded: %d\n", stats.RunLogs)
		runs, err := db.RecentRunLogs(cmd.Context(), 1)
		if err == nil && len(runs) > 0 {
			last := runs[0]
			fmt.Printf("  Last: %s (%s, %d found, %d saved)\n",
				deref(last.Timestamp), last.Status, last.RecordsFound, last.RecordsSaved)
		}
		return nil
	},
}

// --- scrape command ---

var dryRun bool

var scrapeCmd = &cobra.Command{
	Use:          "scrape",
	Short:        "Run one ingestion: fetch -> extract -> normalize -> save -> report",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db)
		if err != nil {
			return err
		}

		var result *pipeline.Result
		if dryRun {
			result, err = pipe.DryRun(cmd.Context())
		} else {
			result, err = pipe.Run(cmd.Context())
		}
		printSteps(result)

		if dryRun && result != nil && len(result.Notices) > 0 {
			fmt.Println()
			renderNotices(result.Notices)
		}
		if err != nil {
			return err
		}
		if !dryRun {
			fmt.Println("\nDone. Run 'circolari serve' to browse the notices.")
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Extract and normalize without saving")
}

// --- watch command ---

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scrape repeatedly at a fixed interval until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchInterval < time.Minute {
			return fmt.Errorf("interval must be at least 1m, got %s", watchInterval)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe, err := pipeline.New(cfg, db)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Scraping every %s. Press Ctrl+C to stop\n", watchInterval)
		err = pipe.Watch(ctx, watchInterval, func(r *pipeline.Result, _ error) {
			if r != nil && r.RunLog != nil {
				fmt.Printf("%s  %s: %d found, %d saved\n",
					time.Now().Format("2006-01-02 15:04"), r.RunLog.Status, r.RunLog.RecordsFound, r.RunLog.RecordsSaved)
			}
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Hour, "Time between runs")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if !cmd.Flags().Changed("port") && cfg.Server.Port != 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func printSteps(result *pipeline.Result) {
	if result == nil {
		return
	}
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
		if step.Err != nil {
			fmt.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "circolari.db")
	return database.Open(dbPath)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
