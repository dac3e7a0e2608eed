// Package bot implements the core lifecycle management and component
// orchestration for the Bocik Discord bot.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/bocik/internal/config"
	"github.com/edgard/bocik/internal/database"
	"github.com/edgard/bocik/internal/discord"
)

// Bot represents the main bot application and manages its components'
// lifecycle.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	db        *sqlx.DB
	store     database.Store
	session   *discordgo.Session
	scheduler *Scheduler
}

// NewBot creates a new instance of the bot with all required dependencies.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	db *sqlx.DB,
	store database.Store,
	session *discordgo.Session,
	scheduler *Scheduler,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		db:        db,
		store:     store,
		session:   session,
		scheduler: scheduler,
	}
}

// Run starts the gateway connection and the scheduler, then blocks until the
// context is cancelled or a component fails. Shutdown closes the gateway and
// waits for running scheduled jobs.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Opening Discord gateway connection...")
		if err := b.session.Open(); err != nil {
			return fmt.Errorf("failed to open gateway connection: %w", err)
		}

		// Command sync needs the session identity, which Open populates.
		if err := discord.SyncCommands(b.session, b.logger); err != nil {
			_ = b.session.Close()
			return fmt.Errorf("failed to sync application commands: %w", err)
		}

		b.logger.Info("Discord gateway connected", "bot_user", b.session.State.User.String())

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, closing gateway connection...")

		if err := b.session.Close(); err != nil {
			b.logger.Error("Error closing gateway connection", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
