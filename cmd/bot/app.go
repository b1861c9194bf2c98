package main

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"

	"notion-fairy-bot/internal/bot"
	"notion-fairy-bot/internal/config"
	"notion-fairy-bot/internal/link"
	"notion-fairy-bot/internal/monitor"
	"notion-fairy-bot/internal/service"
	"notion-fairy-bot/internal/storage"
)

// application holds the wired services shared by every transport
type application struct {
	cfg    *config.Config
	logger *slog.Logger
	slack  *slack.Client
	store  storage.ConnectionStore

	reconciler *bot.Reconciler
	prompt     *bot.MirrorPrompt
	scheduler  *bot.MeetingScheduler
	handler    *bot.Handler
}

func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, transportName string) (*application, error) {
	var slackOpts []slack.Option
	if transportName == config.TransportSocket {
		slackOpts = append(slackOpts, slack.OptionAppLevelToken(cfg.SlackAppToken))
	}
	return wire(ctx, cfg, logger, slack.New(cfg.SlackBotToken, slackOpts...))
}

// wire builds the store, services and flows around api
func wire(ctx context.Context, cfg *config.Config, logger *slog.Logger, api *slack.Client) (*application, error) {
	store, err := storage.NewConnectionStore(cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to initialize connection store")
	}
	logger.Info("Connection store initialized successfully", "backend", cfg.Store.Backend)

	app := &application{
		cfg:    cfg,
		logger: logger,
		slack:  api,
		store:  store,
	}

	chat := service.NewSlackChatService(api, logger)
	links := link.NewTransformer(cfg.AppScheme)

	restrictor := bot.NewChannelRestrictor(bot.ChannelRestrictions{
		AllowedChannelIDs: cfg.AllowedChannelIDs,
		RestrictDMs:       cfg.RestrictDMs,
	}, logger)
	logger.Info("Channel restrictions loaded", "allowed", restrictor.Describe())
	app.handler = bot.NewHandler(logger, restrictor, bot.NewDeduplicator(cfg.EventDedupTTL))

	app.reconciler = bot.NewReconciler(logger, chat, store, links)
	app.handler.RegisterMessageHandler(app.reconciler)

	if cfg.MirrorMode == config.MirrorModePrompt {
		app.prompt = bot.NewMirrorPrompt(logger, chat, app.reconciler)
		app.handler.RegisterActionHandler(app.prompt)
		logger.Info("Mirror prompt mode enabled")
	}

	if cfg.MeetingsEnabled() {
		limiter := monitor.NewRateLimiter(logger, "notion", cfg.NotionRateLimitPerSecond, 1)
		pages := service.NewNotionPageService(service.NotionOptions{
			BaseURL:     cfg.NotionBaseURL,
			Token:       cfg.NotionKey,
			APIVersion:  cfg.NotionVersion,
			RateLimiter: limiter,
		}, logger)

		extractor := bot.NewMeetingExtractor(cfg.MeetingKeywords, cfg.MeetingLocation)
		app.scheduler = bot.NewMeetingScheduler(logger, chat, pages, extractor)
		app.handler.RegisterMessageHandler(app.scheduler)
		app.handler.RegisterActionHandler(app.scheduler)
		logger.Info("Meeting records enabled", "keywords", cfg.MeetingKeywords)
	} else {
		logger.Info("Meeting records disabled, NOTION_KEY is not set")
	}

	return app, nil
}

// Close releases the connection store
func (a *application) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("Error closing connection store", "error", err)
		return
	}
	a.logger.Info("Connection store closed successfully")
}
