package handlers

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// InteractionResponder is the slice of the Discord session used to answer
// slash commands; *discordgo.Session satisfies it.
type InteractionResponder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// CommandHandlerFunc executes one slash command. The responder is the
// session slice used to answer; botUserID identifies the bot itself for
// permission checks.
type CommandHandlerFunc func(ctx context.Context, responder InteractionResponder, i *discordgo.InteractionCreate, botUserID string)

// CommandDefinitions returns the application commands the bot registers
// with Discord on startup.
func CommandDefinitions() []*discordgo.ApplicationCommand {
	managePerms := int64(discordgo.PermissionManageRoles)

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "mute",
			Description:              "Wycisza użytkownika na serwerze",
			DefaultMemberPermissions: &managePerms,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Użytkownik do wyciszenia",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Powód wyciszenia",
					Required:    false,
				},
			},
		},
		{
			Name:                     "unmute",
			Description:              "Zdejmuje wyciszenie z użytkownika",
			DefaultMemberPermissions: &managePerms,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Użytkownik do odciszenia",
					Required:    true,
				},
			},
		},
		{
			Name:                     "modlog",
			Description:              "Pokazuje ostatnie akcje moderacyjne",
			DefaultMemberPermissions: &managePerms,
		},
	}
}

// NewInteractionHandler builds the gateway handler that routes slash
// commands to their handlers by name.
func NewInteractionHandler(deps HandlerDeps) func(*discordgo.Session, *discordgo.InteractionCreate) {
	routes := map[string]CommandHandlerFunc{
		"mute":   NewMuteHandler(deps),
		"unmute": NewUnmuteHandler(deps),
		"modlog": NewModlogHandler(deps),
	}

	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}

		name := i.ApplicationCommandData().Name
		handler, ok := routes[name]
		if !ok {
			deps.Logger.Warn("Received unknown command", "command", name)
			return
		}

		botUserID := ""
		if s.State != nil && s.State.User != nil {
			botUserID = s.State.User.ID
		}

		handler(context.Background(), s, i, botUserID)
	}
}

// commandTarget extracts the target user ID and optional reason from the
// command options.
func commandTarget(i *discordgo.InteractionCreate) (targetID, reason string) {
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "user":
			if u := opt.UserValue(nil); u != nil {
				targetID = u.ID
			}
		case "reason":
			reason = opt.StringValue()
		}
	}

	return targetID, reason
}

// invokerCanManageRoles checks the invoking member's computed channel
// permissions, which Discord includes on every guild interaction.
func invokerCanManageRoles(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return false
	}

	return i.Member.Permissions&(discordgo.PermissionManageRoles|discordgo.PermissionAdministrator) != 0
}

func invokerID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}

	return ""
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

// respondEphemeral answers the interaction with a message only the invoker
// can see.
func respondEphemeral(ctx context.Context, log *slog.Logger, responder InteractionResponder, i *discordgo.InteractionCreate, content string) {
	err := responder.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to respond to interaction", "error", err)
	}
}
