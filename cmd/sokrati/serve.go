package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vlad-lazar/sokrati/internal/api"
	"github.com/vlad-lazar/sokrati/internal/auth"
	"github.com/vlad-lazar/sokrati/internal/bot"
	"github.com/vlad-lazar/sokrati/internal/notes"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  `Serve the notes API. When telegram.enabled is set the Telegram bot runs alongside it.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		verifier, err := auth.NewJWTVerifier(authConfig())
		if err != nil {
			return err
		}

		svc, store, err := newService(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if cfg.Telegram.Enabled {
			go runBot(ctx, svc)
		}

		server := api.NewServer(svc, verifier, logger, api.Options{
			Addr:         cfg.Server.Addr,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		})
		if err := server.ListenAndServe(ctx, cfg.Server.ShutdownTimeout); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run only the Telegram bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, store, err := newService(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		b, err := bot.New(cfg.Telegram.Token, svc, logger)
		if err != nil {
			return err
		}
		return b.Start(ctx)
	},
}

func runBot(ctx context.Context, svc *notes.Service) {
	b, err := bot.New(cfg.Telegram.Token, svc, logger)
	if err != nil {
		logger.Error("Failed to create bot", zap.Error(err))
		return
	}
	if err := b.Start(ctx); err != nil {
		logger.Error("Bot error", zap.Error(err))
	}
}

func authConfig() auth.Config {
	return auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.TokenTTL,
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(botCmd)
}
