package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/bocik/internal/database"
)

// modlogLimit caps how many audit records one /modlog reply shows.
const modlogLimit = 10

type modlogHandler struct {
	deps HandlerDeps
}

// NewModlogHandler returns the handler for the /modlog command.
func NewModlogHandler(deps HandlerDeps) CommandHandlerFunc {
	return modlogHandler{deps}.Handle
}

func (h modlogHandler) Handle(ctx context.Context, responder InteractionResponder, i *discordgo.InteractionCreate, _ string) {
	deps := h.deps
	log := deps.Logger.With("handler", "modlog")

	if !invokerCanManageRoles(i) {
		log.WarnContext(ctx, "Unauthorized modlog attempt", "user_id", invokerID(i))
		respondEphemeral(ctx, log, responder, i, deps.Config.Messages.NotAuthorized)
		return
	}

	actions, err := deps.Moderation.History(ctx, i.GuildID, modlogLimit)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load moderation history", "guild_id", i.GuildID, "error", err)
		respondEphemeral(ctx, log, responder, i, deps.Config.Messages.GeneralError)
		return
	}
	if len(actions) == 0 {
		respondEphemeral(ctx, log, responder, i, deps.Config.Messages.ModLogEmpty)
		return
	}

	lines := make([]string, 0, len(actions)+1)
	lines = append(lines, deps.Config.Messages.ModLogHeader)
	for _, a := range actions {
		lines = append(lines, formatAction(a))
	}

	log.InfoContext(ctx, "Served moderation history", "guild_id", i.GuildID, "entries", len(actions))
	respondEphemeral(ctx, log, responder, i, strings.Join(lines, "\n"))
}

func formatAction(a database.ModerationAction) string {
	icon := "🔊"
	if a.Action == database.ActionMute {
		icon = "🔇"
	}

	line := fmt.Sprintf("%s %s przez %s, %s",
		icon, mention(a.TargetID), mention(a.ModeratorID), a.CreatedAt.Format("2006-01-02 15:04"))
	if a.Reason != "" {
		line += " (" + a.Reason + ")"
	}
	return line
}
