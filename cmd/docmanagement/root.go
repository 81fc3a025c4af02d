package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BenardMarashi/docmanagement/internal/config"
	logpkg "github.com/BenardMarashi/docmanagement/internal/logger"
	"github.com/BenardMarashi/docmanagement/internal/version"
)

func newRootCmd() *cobra.Command {
	var env string

	cmd := &cobra.Command{
		Use:   "docmanagement",
		Short: "Document upload, OCR extraction and full-text search",
		Long: `docmanagement stores uploaded documents, extracts their text asynchronously
and keeps a full-text search index in sync with the record store.

Run the components separately (serve, worker, indexer) or together (all).
Configuration is read from config/<env>.yaml.`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("docmanagement version {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&env, "env", config.GetEnv(), "configuration environment (local, dev, prod)")

	cmd.AddCommand(
		newComponentCmd(&env, "serve", "Run the HTTP API", roleAPI),
		newComponentCmd(&env, "worker", "Run the text extraction worker", roleWorker),
		newComponentCmd(&env, "indexer", "Run the search index synchronizer", roleIndexer),
		newComponentCmd(&env, "all", "Run API, worker and indexer in one process", roleAPI|roleWorker|roleIndexer),
		newVersionCmd(),
	)
	return cmd
}

func newComponentCmd(env *string, use, short string, roles role) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logpkg.NewLogger(*env, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("starting docmanagement",
				zap.String("command", use),
				zap.String("version", version.Version),
				zap.String("commit", version.Commit),
				zap.String("env", *env),
				zap.String("records", cfg.Records.Driver),
				zap.String("blobs", cfg.Blobs.Driver),
				zap.String("queue", cfg.Queue.Driver),
				zap.String("search_index", cfg.SearchIndex.Driver),
				zap.String("extraction", cfg.Extraction.Driver),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, &cfg, roles, logger)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}

// run builds the components for roles and blocks until ctx is cancelled or one of them fails.
func run(ctx context.Context, cfg *config.Config, roles role, logger *zap.Logger) error {
	a, err := build(ctx, cfg, roles, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.close()

	if err := a.run(ctx); err != nil {
		logger.Error("stopped with error", zap.Error(err))
		return err
	}
	logger.Info("stopped gracefully")
	return nil
}
