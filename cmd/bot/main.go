package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kapu/markov-kakao-bot-go/internal/app"
	"github.com/kapu/markov-kakao-bot-go/internal/bot"
	"github.com/kapu/markov-kakao-bot-go/internal/config"
	"github.com/kapu/markov-kakao-bot-go/internal/markov"
	"github.com/kapu/markov-kakao-bot-go/internal/service/database"
	"github.com/kapu/markov-kakao-bot-go/internal/service/journal"
	"github.com/kapu/markov-kakao-bot-go/internal/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.err != nil {
				fmt.Fprintln(os.Stderr, exitErr.err)
			}
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "markov-bot",
		Short:         "KakaoTalk bot that imitates Reddit users with Markov chains",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Connect to Iris and serve commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context())
		},
	})
	root.AddCommand(newGenerateCmd())
	root.AddCommand(newMigrateCmd())

	return root
}

func newGenerateCmd() *cobra.Command {
	var (
		seed  int64
		order int
	)

	cmd := &cobra.Command{
		Use:   "generate <reddit-user>",
		Short: "Print one generated sentence for a user and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			source, closeSource, err := app.BuildCorpusSource(cfg, logger)
			if err != nil {
				return err
			}
			defer closeSource()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			corpus, err := source.FetchCorpus(ctx, args[0])
			if err != nil {
				return fmt.Errorf("fetch corpus: %w", err)
			}

			settings := app.MarkovSettings(cfg)
			if order > 0 {
				settings.Order = order
			}
			model, err := markov.Build(corpus.Fragments, settings.Order)
			if err != nil {
				return fmt.Errorf("build model: %w", err)
			}

			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			sentence, err := model.Generate(settings.Options, rand.New(rand.NewSource(seed)))
			if err != nil {
				return err
			}

			logger.Debug("Generated sentence",
				zap.String("owner", corpus.Owner),
				zap.Int("fragments", len(corpus.Fragments)),
				zap.Int("states", model.StateCount()),
				zap.Int64("seed", seed),
			)
			fmt.Fprintln(cmd.OutOrStdout(), sentence.String())
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().IntVar(&order, "order", 0, "chain order (overrides MARKOV_ORDER)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the invocation journal schema in PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if dryRun {
				for _, m := range journal.Migrations {
					fmt.Fprintf(cmd.OutOrStdout(), "-- %d %s\n%s;\n", m.Version, m.Name, m.SQL)
				}
				return nil
			}

			postgresSvc, err := database.NewPostgresService(database.PostgresConfig{
				Host:     cfg.Postgres.Host,
				Port:     cfg.Postgres.Port,
				User:     cfg.Postgres.User,
				Password: cfg.Postgres.Password,
				Database: cfg.Postgres.Database,
				SSLMode:  cfg.Postgres.SSLMode,
			}, logger)
			if err != nil {
				return err
			}
			defer postgresSvc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			return postgresSvc.Migrate(ctx, journal.Migrations)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the SQL instead of applying it")
	return cmd
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func runBot(parent context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Markov bot starting...",
		zap.String("name", cfg.Bot.Name),
		zap.String("version", cfg.Bot.Version),
		zap.String("log_level", cfg.Logging.Level),
	)

	buildCtx, buildCancel := context.WithTimeout(parent, 30*time.Second)
	container, err := app.Build(buildCtx, cfg, logger)
	buildCancel()
	if err != nil {
		logger.Error("Failed to assemble application services", zap.Error(err))
		return &exitError{code: 1, err: err}
	}
	defer container.Close()

	markovBot, err := container.NewBot()
	if err != nil {
		logger.Error("Failed to initialize bot", zap.Error(err))
		return &exitError{code: 1, err: err}
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Bot started, waiting for signals...")
	runErr := markovBot.Start(ctx)
	restarting := errors.Is(runErr, bot.ErrRestartRequested)
	switch {
	case restarting:
		logger.Info("Restarting", zap.Error(runErr))
	case runErr != nil:
		logger.Error("Bot error", zap.Error(runErr))
	default:
		logger.Info("Received shutdown signal")
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := markovBot.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return &exitError{code: 1}
	}

	logger.Info("Shutdown complete")
	if runErr != nil && !restarting {
		return &exitError{code: 1}
	}
	return nil
}
