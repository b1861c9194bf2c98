package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"notion-fairy-bot/internal/config"
	"notion-fairy-bot/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Handle health check flag for Docker containers
	if len(os.Args) > 1 && os.Args[1] == "--health-check" {
		os.Exit(0)
	}

	if err := newRootCommand().Execute(); err != nil {
		slog.Error("Notion Fairy exited with error", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:           "fairy",
		Short:         "Slack bot that mirrors Notion links as app links and records meetings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading the environment (default .env)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve webhook deliveries over HTTP",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), envFiles)
			},
		},
		&cobra.Command{
			Use:   "socket",
			Short: "Receive deliveries over a Socket Mode connection",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSocket(cmd.Context(), envFiles)
			},
		},
		&cobra.Command{
			Use:   "lambda",
			Short: "Serve deliveries behind an AWS Lambda function URL",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runLambda(cmd.Context(), envFiles)
			},
		},
		&cobra.Command{
			Use:   "health-check",
			Short: "Exit successfully; used by container health checks",
			RunE: func(cmd *cobra.Command, args []string) error {
				return nil
			},
		},
	)
	return root
}

// setup loads configuration for transport and wires the application
func setup(ctx context.Context, envFiles []string, transportName string) (*application, error) {
	cfg, err := config.Load(ctx, envFiles...)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateFor(transportName); err != nil {
		return nil, err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("Notion Fairy starting up...",
		"transport", transportName,
		"mirror_mode", cfg.MirrorMode,
		"store", cfg.Store.Backend,
		"meetings", cfg.MeetingsEnabled(),
		"bot_token", config.Redact("SLACK_BOT_TOKEN", cfg.SlackBotToken),
		"notion_key", config.Redact("NOTION_KEY", cfg.NotionKey))

	return newApplication(ctx, cfg, logger, transportName)
}

func runServe(ctx context.Context, envFiles []string) error {
	app, err := setup(baseContext(ctx), envFiles, config.TransportHTTP)
	if err != nil {
		return err
	}
	defer app.Close()

	server := transport.NewServer(app.logger, ":"+strconv.Itoa(app.cfg.Port), app.cfg.SlackSigningSecret, app.handler, app.store.HealthCheck)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	// Wait for CTRL+C or other term signal
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer signal.Stop(sc)

	select {
	case <-sc:
		app.logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn("Shutdown timeout exceeded, forcing exit", "error", err)
		return nil
	}
	app.logger.Info("Bot shutdown completed successfully")
	return nil
}

func runSocket(ctx context.Context, envFiles []string) error {
	app, err := setup(baseContext(ctx), envFiles, config.TransportSocket)
	if err != nil {
		return err
	}
	defer app.Close()

	runCtx, stop := signal.NotifyContext(baseContext(ctx), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := transport.NewSocketRunner(app.logger, app.slack, app.handler)

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(runCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-runCtx.Done():
		app.logger.Info("Shutdown signal received, initiating graceful shutdown...")
	}

	select {
	case err := <-done:
		if err != nil {
			app.logger.Error("Error during Socket Mode cleanup", "error", err)
		}
		app.logger.Info("Bot shutdown completed successfully")
	case <-time.After(shutdownTimeout):
		app.logger.Warn("Shutdown timeout exceeded, forcing exit")
	}
	return nil
}

func runLambda(ctx context.Context, envFiles []string) error {
	app, err := setup(baseContext(ctx), envFiles, config.TransportLambda)
	if err != nil {
		return err
	}

	// lambda.Start never returns; the store lives as long as the sandbox
	adapter := transport.NewLambdaAdapter(app.logger, app.cfg.SlackSigningSecret, app.handler)
	lambda.Start(adapter.Handle)
	return errors.New("lambda runtime returned")
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func baseContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
