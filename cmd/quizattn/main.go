package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/quizattn/quizattn/internal/config"
	"github.com/quizattn/quizattn/internal/evaluator"
	"github.com/quizattn/quizattn/internal/exporter"
	"github.com/quizattn/quizattn/internal/filestore"
	"github.com/quizattn/quizattn/internal/llm"
	appErr "github.com/quizattn/quizattn/internal/pkg/errors"
	"github.com/quizattn/quizattn/internal/selector"
	"github.com/quizattn/quizattn/internal/store"
)

func main() {
	var configPath string
	var modelOverride string
	var resultFile string

	rootCmd := &cobra.Command{
		Use:   "quizattn",
		Short: "token attention weights for quiz questions via llm evaluation",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	selectCmd := &cobra.Command{
		Use:   "select",
		Short: "filter the tokenized question table to the target ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(configPath)
			if err != nil {
				return err
			}
			return runSelect(context.Background(), cfg)
		},
	}

	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "ask the model for per-token importance weights",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEvaluate(ctx, cfg, modelOverride, resultFile)
		},
	}
	evaluateCmd.Flags().StringVar(&modelOverride, "model", "", "override llm.model for this run")
	evaluateCmd.Flags().StringVar(&resultFile, "output", "", fmt.Sprintf("result file name (default %s)", store.DefaultResultKey))

	exportCmd := &cobra.Command{
		Use:   "export [result-file]",
		Short: "flatten results into header and no-header csv tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(configPath)
			if err != nil {
				return err
			}
			key := ""
			if len(args) > 0 {
				key = args[0]
			}
			return runExport(context.Background(), cfg, key)
		},
	}

	rootCmd.AddCommand(selectCmd, evaluateCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	if configPath != "" {
		logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	}
	return cfg, nil
}

func runSelect(ctx context.Context, cfg *config.Config) error {
	logutil.GetLogger(ctx).Info("selecting questions",
		zap.String("input", cfg.InputFile),
		zap.Int("targets", len(cfg.TargetIDs)),
		zap.String("file_store", cfg.FileStore.Type))

	records, err := selector.LoadTable(ctx, cfg.InputFile)
	if err != nil {
		return fmt.Errorf("load input table: %w", err)
	}
	selected, missing := selector.New(cfg.TargetIDs).Select(ctx, records)

	fs, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	if err := store.NewQuestionStore(fs).Save(ctx, selected); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("selection complete",
		zap.Int("selected", len(selected)),
		zap.Int("missing", len(missing)))
	return nil
}

func runEvaluate(ctx context.Context, cfg *config.Config, modelOverride string, resultFile string) error {
	modelName := cfg.LLM.Model
	if modelOverride != "" {
		modelName = modelOverride
	}
	provider, err := llm.NewProvider(cfg.LLM.Provider, cfg.LLM.Data)
	if err != nil {
		return fmt.Errorf("init llm provider: %w", err)
	}
	completer := llm.NewCompleter(provider, modelName, cfg.LLM.Timeout)

	fs, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	records, err := store.NewQuestionStore(fs).Load(ctx)
	if err != nil {
		if appErr.IsNotFound(err) {
			return fmt.Errorf("no selected questions found, run select first: %w", err)
		}
		return err
	}
	results := store.NewResultStore(fs, resultFile)

	eval := evaluator.New(completer, results, evaluator.Options{
		RequestDelay:       time.Duration(cfg.Evaluator.RequestDelay * float64(time.Second)),
		Temperature:        cfg.Evaluator.Temperature,
		MaxTokens:          cfg.Evaluator.MaxTokens,
		WeightSumTolerance: cfg.Evaluator.WeightSumTolerance,
		TokenMatch:         cfg.Evaluator.TokenMatch,
	})
	logutil.GetLogger(ctx).Info("evaluation starting",
		zap.String("provider", provider.Name()),
		zap.String("model", modelName),
		zap.String("result_file", results.Key()),
		zap.Int("records", len(records)))

	summary, err := eval.Run(ctx, records)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("evaluation complete",
		zap.Int("total", summary.Total),
		zap.Int("done", summary.Done),
		zap.Int("skipped", summary.Skipped),
		zap.Int64s("failed", summary.Failed))
	return nil
}

func runExport(ctx context.Context, cfg *config.Config, resultKey string) error {
	fs, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	withHeader, noHeader, err := exporter.New(fs).Export(ctx, resultKey)
	if err != nil {
		if appErr.IsNotFound(err) {
			return fmt.Errorf("no results to export, run evaluate first: %w", err)
		}
		return err
	}
	logutil.GetLogger(ctx).Info("export written",
		zap.String("with_header", withHeader),
		zap.String("no_header", noHeader))
	return nil
}
