package handlers

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/bocik/internal/moderation"
)

type unmuteHandler struct {
	deps HandlerDeps
}

// NewUnmuteHandler returns the handler for the /unmute command.
func NewUnmuteHandler(deps HandlerDeps) CommandHandlerFunc {
	return unmuteHandler{deps}.Handle
}

func (h unmuteHandler) Handle(ctx context.Context, responder InteractionResponder, i *discordgo.InteractionCreate, botUserID string) {
	deps := h.deps
	log := deps.Logger.With("handler", "unmute")

	target, reason := commandTarget(i)
	if target == "" {
		log.WarnContext(ctx, "Unmute invoked without a target user")
		respondEphemeral(ctx, log, responder, i, deps.Config.Messages.GeneralError)
		return
	}
	if !invokerCanManageRoles(i) {
		log.WarnContext(ctx, "Unauthorized unmute attempt", "user_id", invokerID(i))
		respondEphemeral(ctx, log, responder, i, deps.Config.Messages.NotAuthorized)
		return
	}

	log.InfoContext(ctx, "Handling /unmute", "guild_id", i.GuildID, "target_id", target)

	res, err := deps.Moderation.Unmute(ctx, moderation.Request{
		GuildID:     i.GuildID,
		TargetID:    target,
		ModeratorID: invokerID(i),
		BotUserID:   botUserID,
		Reason:      reason,
	})
	if err != nil {
		log.ErrorContext(ctx, "Unmute failed", "guild_id", i.GuildID, "target_id", target, "error", err)
	}

	msgs := deps.Config.Messages
	roleName := deps.Config.Moderation.MutedRoleName
	switch res {
	case moderation.ResultDone:
		respondEphemeral(ctx, log, responder, i, fmt.Sprintf(msgs.UnmuteSuccess, mention(target)))
	case moderation.ResultNotMuted:
		respondEphemeral(ctx, log, responder, i, fmt.Sprintf(msgs.NotMuted, mention(target), roleName))
	case moderation.ResultMissingRole:
		respondEphemeral(ctx, log, responder, i, fmt.Sprintf(msgs.NoMutedRole, roleName))
	case moderation.ResultBotMissingPerms:
		respondEphemeral(ctx, log, responder, i, msgs.BotMissingPerms)
	case moderation.ResultForbidden:
		respondEphemeral(ctx, log, responder, i, msgs.CannotGrantRole)
	default:
		respondEphemeral(ctx, log, responder, i, msgs.GeneralError)
	}
}
