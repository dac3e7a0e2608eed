// Package main contains the entrypoint for the Bocik Discord bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgard/bocik/internal/archive"
	"github.com/edgard/bocik/internal/bot"
	"github.com/edgard/bocik/internal/bot/handlers"
	"github.com/edgard/bocik/internal/bot/tasks"
	"github.com/edgard/bocik/internal/config"
	"github.com/edgard/bocik/internal/database"
	"github.com/edgard/bocik/internal/discord"
	"github.com/edgard/bocik/internal/logger"
	"github.com/edgard/bocik/internal/moderation"
	"github.com/edgard/bocik/internal/relay"
	"github.com/edgard/bocik/internal/trigger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all application components (config, logger, database,
// archive, relay, moderation, gateway, scheduler), handles graceful
// shutdown, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	session, err := discord.NewSession(cfg.Discord.Token, log)
	if err != nil {
		log.Error("Failed to create Discord session", "error", err)
		return 1
	}

	dmArchive, err := archive.NewStore(cfg.Archive.Dir, log)
	if err != nil {
		log.Error("Failed to open DM archive", "dir", cfg.Archive.Dir, "error", err)
		return 1
	}

	notifier, err := relay.NewNotifier(session, cfg.Relay.WebhookURL, cfg.Relay.Timeout, log)
	if err != nil {
		log.Error("Failed to configure DM relay", "error", err)
		return 1
	}

	triggers := trigger.NewTable(triggerEntries(cfg.Triggers))
	log.Info("Loaded trigger table", "entries", len(triggers))

	manager := moderation.NewManager(session, store, cfg.Moderation.MutedRoleName, moderation.Notices{
		Muted:   cfg.Messages.MutedNotice,
		Unmuted: cfg.Messages.UnmutedNotice,
	}, log)

	hDeps := handlers.HandlerDeps{
		Logger:     log,
		Config:     cfg,
		Archive:    dmArchive,
		Notifier:   notifier,
		Triggers:   triggers,
		Moderation: manager,
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}

	if err := discord.RegisterHandlers(session, log, hDeps); err != nil {
		log.Error("Failed to register Discord handlers", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, cfg, db, store, session, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

// triggerEntries converts the configured trigger list into table entries,
// preserving the configured order as the match precedence.
func triggerEntries(configured []config.TriggerConfig) []trigger.Entry {
	entries := make([]trigger.Entry, 0, len(configured))
	for _, t := range configured {
		entries = append(entries, trigger.Entry{Phrase: t.Phrase, Response: t.Response})
	}
	return entries
}
