// Package discord handles the setup of the gateway session, handler
// registration, and slash-command synchronization.
package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/bocik/internal/bot/handlers"
)

// NewSession creates a Discord session using the discordgo library. The
// session is configured but not yet connected; the caller opens it.
func NewSession(token string, logger *slog.Logger) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "discord_session")

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		log.Error("Failed to create Discord session", "error", err)
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	// Guild messages feed the trigger table, direct messages feed the
	// archive, and member data is needed for role checks.
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentsGuildMembers

	log.Info("Discord session created successfully")
	return session, nil
}

// RegisterHandlers attaches the gateway event handlers to the session.
func RegisterHandlers(session *discordgo.Session, logger *slog.Logger, deps handlers.HandlerDeps) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		log.Info("Gateway ready", "bot_user", r.User.String(), "guilds", len(r.Guilds))
	})
	session.AddHandler(handlers.NewMessageCreateHandler(deps))
	session.AddHandler(handlers.NewInteractionHandler(deps))

	log.Info("Registered Discord handlers successfully")
	return nil
}

// SyncCommands registers the application commands globally. It must run
// after the session is opened, since registration needs the bot identity.
func SyncCommands(session *discordgo.Session, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "command_sync")

	if session.State == nil || session.State.User == nil {
		return fmt.Errorf("session has no identity, open the gateway before syncing commands")
	}
	appID := session.State.User.ID

	definitions := handlers.CommandDefinitions()
	for _, cmd := range definitions {
		if _, err := session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return fmt.Errorf("failed to register command %q: %w", cmd.Name, err)
		}
		log.Debug("Registered application command", "command", cmd.Name)
	}

	log.Info("Synchronized application commands", "count", len(definitions))
	return nil
}
