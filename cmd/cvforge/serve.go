package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/easygo-cv/cvforge/pkg/breaker"
	"github.com/easygo-cv/cvforge/pkg/cache"
	"github.com/easygo-cv/cvforge/pkg/config"
	"github.com/easygo-cv/cvforge/pkg/gate"
	"github.com/easygo-cv/cvforge/pkg/genai"
	"github.com/easygo-cv/cvforge/pkg/ledger"
	"github.com/easygo-cv/cvforge/pkg/ratelimit"
	"github.com/easygo-cv/cvforge/pkg/render"
	"github.com/easygo-cv/cvforge/pkg/server"
	"github.com/easygo-cv/cvforge/pkg/tracker"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the CV generation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			level := slog.LevelInfo
			if cfg.Debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("init tracker: %w", err)
			}
			defer func() { _ = tr.Close() }()

			results := cache.New(cache.WithExpiry(cfg.Cache.Expiry))

			g := gate.New(
				ratelimit.New(
					ratelimit.WithLimit(cfg.RateLimit.Requests),
					ratelimit.WithWindow(cfg.RateLimit.Window),
				),
				results,
				ledger.New(ledger.WithInitialTokens(cfg.Tokens.Initial)),
			)

			br := breaker.New(
				breaker.WithFailureThreshold(cfg.Breaker.FailureThreshold),
				breaker.WithCooldown(cfg.Breaker.Cooldown),
			)

			client := genai.NewClient(
				genai.NewOpenAICompleter(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL),
				br,
				cfg.OpenAI.Model, cfg.OpenAI.FallbackModel,
				genai.WithMaxRetries(cfg.Retry.MaxRetries),
				genai.WithBackoff(cfg.Retry.BaseDelay, cfg.Retry.MaxDelay),
			)

			srv := server.New(cfg, g, genai.NewService(client), client, render.New(), results, tr)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("starting cvforge", "config", configPath, "model", cfg.OpenAI.Model)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cvforge.yaml", "path to config file")
	return cmd
}
