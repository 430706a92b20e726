// Package main is the tipwatch command: reconcile tips against race results
// and report on how they performed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/tipwatch/internal/analytics"
	"github.com/yourusername/tipwatch/internal/config"
	"github.com/yourusername/tipwatch/internal/database"
	"github.com/yourusername/tipwatch/internal/datasource"
	"github.com/yourusername/tipwatch/internal/logger"
	"github.com/yourusername/tipwatch/internal/reconcile"
	"github.com/yourusername/tipwatch/internal/repository"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	logLevel   string
	cfg        *config.Config
	appLog     *logrus.Logger
	db         *database.DB
	repos      *repository.Repositories
	feeds      *datasource.Feeds
)

var rootCmd = &cobra.Command{
	Use:           "tipwatch",
	Short:         "Reconcile racing tips against official results",
	Long:          `Fetches race results from the configured feeds, settles every recorded tip and reports strike rates and returns.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd.Context()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		appLog = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
		appLog.WithFields(logrus.Fields{
			"version":     Version,
			"commit":      GitCommit,
			"environment": cfg.App.Environment,
			"command":     cmd.Name(),
		}).Debug("Configuration loaded")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeDependencies()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(
		newReconcileCmd(),
		newTrendsCmd(),
		newBucketsCmd(),
		newRollupCmd(),
		newConsensusCmd(),
		newMigrateCmd(),
		newServeCmd(),
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		closeDependencies()
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	return config.Validate(cfg)
}

// openRepositories connects to the database and builds the Postgres repositories.
func openRepositories(ctx context.Context) error {
	if repos != nil {
		return nil
	}
	var err error
	db, err = database.Initialize(ctx, cfg, appLog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	repos, err = repository.NewRepositories(db)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	return nil
}

// openFeeds builds the enabled result and price feeds.
func openFeeds(ctx context.Context) error {
	if feeds != nil {
		return nil
	}
	var err error
	feeds, err = datasource.NewFactory(cfg, appLog).Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build feeds: %w", err)
	}
	return nil
}

func closeDependencies() {
	if feeds != nil {
		if err := feeds.Close(); err != nil && appLog != nil {
			appLog.WithError(err).Warn("Failed to close feeds")
		}
		feeds = nil
	}
	if db != nil {
		db.Close()
		db = nil
	}
	repos = nil
}

func newReconciler() *reconcile.Reconciler {
	return reconcile.NewReconciler(repos, feeds.Results, feeds.Prices, appLog)
}

func newAggregator() *analytics.Aggregator {
	var prices datasource.PriceFeed
	if feeds != nil {
		prices = feeds.Prices
	}
	return analytics.NewAggregator(repos, cfg.Analytics, prices, analytics.NewReportCache(cfg.CacheTTL()), appLog)
}

// parseDate reads a YYYY-MM-DD flag value as a racing date. Empty means today
// in the configured timezone.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, value, cfg.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

func today() time.Time {
	return time.Now().In(cfg.Location())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
