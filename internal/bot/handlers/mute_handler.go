package handlers

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/bocik/internal/moderation"
)

type muteHandler struct {
	deps HandlerDeps
}

// NewMuteHandler returns the handler for the /mute command.
func NewMuteHandler(deps HandlerDeps) CommandHandlerFunc {
	return muteHandler{deps}.Handle
}

func (h muteHandler) Handle(ctx context.Context, responder InteractionResponder, i *discordgo.InteractionCreate, botUserID string) {
	deps := h.deps
	log := deps.Logger.With("handler", "mute")

	target, reason := commandTarget(i)
	if target == "" {
		log.WarnContext(ctx, "Mute invoked without a target user")
		respondEphemeral(ctx, log, responder, i, deps.Config.Messages.GeneralError)
		return
	}
	if reason == "" {
		reason = deps.Config.Messages.NoReason
	}
	if !invokerCanManageRoles(i) {
		log.WarnContext(ctx, "Unauthorized mute attempt", "user_id", invokerID(i))
		respondEphemeral(ctx, log, responder, i, deps.Config.Messages.NotAuthorized)
		return
	}

	log.InfoContext(ctx, "Handling /mute", "guild_id", i.GuildID, "target_id", target, "reason", reason)

	res, err := deps.Moderation.Mute(ctx, moderation.Request{
		GuildID:     i.GuildID,
		TargetID:    target,
		ModeratorID: invokerID(i),
		BotUserID:   botUserID,
		Reason:      reason,
	})
	if err != nil {
		log.ErrorContext(ctx, "Mute failed", "guild_id", i.GuildID, "target_id", target, "error", err)
	}

	msgs := deps.Config.Messages
	roleName := deps.Config.Moderation.MutedRoleName
	switch res {
	case moderation.ResultDone:
		respondEphemeral(ctx, log, responder, i, fmt.Sprintf(msgs.MuteSuccess, mention(target), reason))
	case moderation.ResultAlreadyMuted:
		respondEphemeral(ctx, log, responder, i, fmt.Sprintf(msgs.AlreadyMuted, mention(target), roleName))
	case moderation.ResultBotMissingPerms:
		respondEphemeral(ctx, log, responder, i, msgs.BotMissingPerms)
	case moderation.ResultForbidden:
		respondEphemeral(ctx, log, responder, i, msgs.CannotGrantRole)
	default:
		respondEphemeral(ctx, log, responder, i, msgs.GeneralError)
	}
}
