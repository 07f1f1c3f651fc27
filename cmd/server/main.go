package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/suppchat/backend/config"
	"github.com/suppchat/backend/internal/observability"
	"github.com/suppchat/backend/internal/usecase"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Support-chat answer cache and catalog mirror",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runServer(ctx, cfg, logger)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the catalog once and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		return runRefresh(ctx, a, cmd)
	},
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <question>",
	Short: "Print the cache key a question normalizes to",
	Long: `Print the cache key a question normalizes to.

Examples:
  server normalize "Comment prendre le collagène ?"
  server normalize "Quelle différence entre magnésium et vitamine D3 ?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		normalized := usecase.NormalizeQuestion(question)
		if normalized == "" {
			return fmt.Errorf("question %q has no significant words", question)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "key:        faq:%s\n", normalized)
		fmt.Fprintf(out, "category:   %s\n", usecase.CategorizeFAQ(normalized))
		fmt.Fprintf(out, "comparison: %v\n", usecase.HasComparisonIntent(question))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, refreshCmd, normalizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	return cfg, logger, nil
}

// runRefresh forces one catalog refresh and prints its summary
func runRefresh(ctx context.Context, a *app, cmd *cobra.Command) error {
	started := time.Now()
	snapshot, err := a.catalog.GetSnapshot(ctx, true)
	if err != nil {
		return err
	}

	enriched := 0
	for _, item := range snapshot.Items {
		if !item.Content.IsEmpty() {
			enriched++
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "items:      %d\n", snapshot.Len())
	fmt.Fprintf(out, "enriched:   %d\n", enriched)
	fmt.Fprintf(out, "fetched at: %s\n", snapshot.FetchedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "took:       %s\n", time.Since(started).Round(time.Millisecond))
	return nil
}
