package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vlad-lazar/sokrati/internal/notes"
	"github.com/vlad-lazar/sokrati/internal/sentiment"
	"github.com/vlad-lazar/sokrati/internal/storage"
	"github.com/vlad-lazar/sokrati/pkg/config"
	"go.uber.org/zap"
)

var (
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "sokrati",
	Short:         "Personal journal backend with sentiment insights",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config %q: %w", configPath, err)
		}

		if cfg.Log.Development {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (yaml, json or toml)")
}

func openStorage(ctx context.Context) (storage.Storage, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Database.Host))
		return storage.NewPostgresStorage(ctx, storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
	case config.DriverBadger:
		logger.Info("Using badger storage", zap.String("path", cfg.Database.BadgerPath))
		return storage.NewBadgerStorage(cfg.Database.BadgerPath, logger)
	default:
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	}
}

func newAnalyzer() sentiment.Analyzer {
	switch cfg.Sentiment.Provider {
	case config.ProviderOpenAI:
		logger.Info("Using OpenAI sentiment analysis", zap.String("model", cfg.OpenAI.Model))
		return sentiment.NewGPTAnalyzer(sentiment.GPTConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
		}, logger)
	case config.ProviderNone:
		logger.Info("Sentiment analysis disabled")
		return sentiment.Nop{}
	default:
		logger.Info("Using lexicon sentiment analysis")
		return sentiment.NewLexiconAnalyzer()
	}
}

// newService wires storage and the analyzer; the caller closes the store.
func newService(ctx context.Context) (*notes.Service, storage.Storage, error) {
	store, err := openStorage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	loc, err := cfg.Insights.Location()
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	svc := notes.NewService(store, newAnalyzer(), logger,
		notes.WithAnalysisTimeout(cfg.Sentiment.Timeout),
		notes.WithLocation(loc),
	)
	return svc, store, nil
}
