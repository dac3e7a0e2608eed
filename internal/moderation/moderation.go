// Package moderation manages the guild "Muted" role: ensuring it exists
// with deny overwrites on every channel, and toggling it on users with
// guard conditions, audit logging, and best-effort target notification.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/bocik/internal/database"
)

// Result reports how a mute or unmute request concluded, so the command
// layer can phrase the user-visible reply.
type Result int

const (
	// ResultDone means the role was granted or removed.
	ResultDone Result = iota
	// ResultAlreadyMuted means the target already holds the role.
	ResultAlreadyMuted
	// ResultNotMuted means the target does not hold the role.
	ResultNotMuted
	// ResultMissingRole means the guild has no role with the configured name.
	ResultMissingRole
	// ResultBotMissingPerms means the bot lacks Manage Roles in the guild.
	ResultBotMissingPerms
	// ResultForbidden means Discord refused the role operation.
	ResultForbidden
)

// mutedRoleDeny is the permission set denied to the muted role on every
// channel: sending messages, speaking, and adding reactions.
const mutedRoleDeny = discordgo.PermissionSendMessages |
	discordgo.PermissionVoiceSpeak |
	discordgo.PermissionAddReactions

// Session is the slice of the Discord API the manager sequences calls to;
// *discordgo.Session satisfies it.
type Session interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildRoleCreate(guildID string, data *discordgo.RoleParams, options ...discordgo.RequestOption) (*discordgo.Role, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	ChannelPermissionSet(channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64, options ...discordgo.RequestOption) error
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Request identifies one mute or unmute invocation.
type Request struct {
	GuildID     string
	TargetID    string
	ModeratorID string
	BotUserID   string
	Reason      string
}

// Notices are the templates for the best-effort DM sent to the target.
// Muted receives the guild name and reason; Unmuted receives the guild name.
type Notices struct {
	Muted   string
	Unmuted string
}

// Manager toggles the muted role on guild members.
type Manager struct {
	session  Session
	store    database.Store
	logger   *slog.Logger
	roleName string
	notices  Notices
}

// NewManager creates a Manager operating on the named role.
func NewManager(session Session, store database.Store, roleName string, notices Notices, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		session:  session,
		store:    store,
		logger:   logger.With("component", "moderation"),
		roleName: roleName,
		notices:  notices,
	}
}

// Mute grants the muted role to the target. The role is created with
// channel-wide deny overwrites if the guild does not have it yet.
func (m *Manager) Mute(ctx context.Context, req Request) (Result, error) {
	log := m.logger.With("guild_id", req.GuildID, "target_id", req.TargetID)

	ok, err := m.botHasManageRoles(ctx, req.GuildID, req.BotUserID)
	if err != nil {
		return ResultForbidden, fmt.Errorf("failed to check bot permissions: %w", err)
	}
	if !ok {
		log.WarnContext(ctx, "Bot lacks Manage Roles, refusing mute")
		return ResultBotMissingPerms, nil
	}

	role, err := m.ensureMutedRole(ctx, req.GuildID)
	if err != nil {
		if isForbidden(err) {
			return ResultForbidden, err
		}
		return ResultForbidden, fmt.Errorf("failed to ensure muted role: %w", err)
	}

	member, err := m.session.GuildMember(req.GuildID, req.TargetID, discordgo.WithContext(ctx))
	if err != nil {
		return ResultForbidden, fmt.Errorf("failed to fetch target member: %w", err)
	}
	if hasRole(member, role.ID) {
		log.InfoContext(ctx, "Target already muted, nothing to do")
		return ResultAlreadyMuted, nil
	}

	if err := m.session.GuildMemberRoleAdd(req.GuildID, req.TargetID, role.ID,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(req.Reason)); err != nil {
		if isForbidden(err) {
			log.WarnContext(ctx, "Discord refused role grant", "error", err)
			return ResultForbidden, err
		}
		return ResultForbidden, fmt.Errorf("failed to grant muted role: %w", err)
	}

	log.InfoContext(ctx, "Muted user", "moderator_id", req.ModeratorID, "reason", req.Reason)
	m.recordAction(ctx, req, database.ActionMute)
	m.notifyTarget(ctx, req, database.ActionMute)
	return ResultDone, nil
}

// Unmute removes the muted role from the target. Missing role or a target
// without it are reported as no-op results, not errors.
func (m *Manager) Unmute(ctx context.Context, req Request) (Result, error) {
	log := m.logger.With("guild_id", req.GuildID, "target_id", req.TargetID)

	ok, err := m.botHasManageRoles(ctx, req.GuildID, req.BotUserID)
	if err != nil {
		return ResultForbidden, fmt.Errorf("failed to check bot permissions: %w", err)
	}
	if !ok {
		log.WarnContext(ctx, "Bot lacks Manage Roles, refusing unmute")
		return ResultBotMissingPerms, nil
	}

	role, err := m.findRole(ctx, req.GuildID)
	if err != nil {
		return ResultForbidden, fmt.Errorf("failed to list guild roles: %w", err)
	}
	if role == nil {
		log.InfoContext(ctx, "Guild has no muted role, nothing to do")
		return ResultMissingRole, nil
	}

	member, err := m.session.GuildMember(req.GuildID, req.TargetID, discordgo.WithContext(ctx))
	if err != nil {
		return ResultForbidden, fmt.Errorf("failed to fetch target member: %w", err)
	}
	if !hasRole(member, role.ID) {
		log.InfoContext(ctx, "Target is not muted, nothing to do")
		return ResultNotMuted, nil
	}

	if err := m.session.GuildMemberRoleRemove(req.GuildID, req.TargetID, role.ID,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(req.Reason)); err != nil {
		if isForbidden(err) {
			log.WarnContext(ctx, "Discord refused role removal", "error", err)
			return ResultForbidden, err
		}
		return ResultForbidden, fmt.Errorf("failed to remove muted role: %w", err)
	}

	log.InfoContext(ctx, "Unmuted user", "moderator_id", req.ModeratorID)
	m.recordAction(ctx, req, database.ActionUnmute)
	m.notifyTarget(ctx, req, database.ActionUnmute)
	return ResultDone, nil
}

// History returns the most recent audit records for a guild, newest first.
func (m *Manager) History(ctx context.Context, guildID string, limit int) ([]database.ModerationAction, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.GetRecentModerationActions(ctx, guildID, limit)
}

// findRole returns the guild role with the configured name, or nil.
func (m *Manager) findRole(ctx context.Context, guildID string) (*discordgo.Role, error) {
	roles, err := m.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r.Name == m.roleName {
			return r, nil
		}
	}
	return nil, nil
}

// ensureMutedRole returns the muted role, creating it and applying deny
// overwrites across all channels when absent. Per-channel overwrite
// failures are logged and skipped so one locked channel cannot block the
// whole mute.
func (m *Manager) ensureMutedRole(ctx context.Context, guildID string) (*discordgo.Role, error) {
	role, err := m.findRole(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if role != nil {
		return role, nil
	}

	role, err = m.session.GuildRoleCreate(guildID,
		&discordgo.RoleParams{Name: m.roleName},
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason("Utworzono automatycznie przez bota"))
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "Created muted role", "guild_id", guildID, "role_id", role.ID)

	channels, err := m.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list channels for overwrites: %w", err)
	}
	for _, ch := range channels {
		err := m.session.ChannelPermissionSet(ch.ID, role.ID, discordgo.PermissionOverwriteTypeRole,
			0, mutedRoleDeny, discordgo.WithContext(ctx))
		if err != nil {
			m.logger.WarnContext(ctx, "Could not set muted overwrite on channel",
				"guild_id", guildID, "channel_id", ch.ID, "error", err)
		}
	}

	return role, nil
}

// botHasManageRoles computes the bot's effective guild permissions from
// its role set.
func (m *Manager) botHasManageRoles(ctx context.Context, guildID, botUserID string) (bool, error) {
	member, err := m.session.GuildMember(guildID, botUserID, discordgo.WithContext(ctx))
	if err != nil {
		return false, err
	}
	roles, err := m.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return false, err
	}

	byID := make(map[string]*discordgo.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}

	var perms int64
	// The @everyone role shares the guild ID and applies to every member.
	if everyone, ok := byID[guildID]; ok {
		perms |= everyone.Permissions
	}
	for _, id := range member.Roles {
		if r, ok := byID[id]; ok {
			perms |= r.Permissions
		}
	}

	return perms&(discordgo.PermissionManageRoles|discordgo.PermissionAdministrator) != 0, nil
}

// recordAction writes the audit record. Audit failure is logged, never
// surfaced: the role change already happened.
func (m *Manager) recordAction(ctx context.Context, req Request, action string) {
	if m.store == nil {
		return
	}
	err := m.store.SaveModerationAction(ctx, &database.ModerationAction{
		GuildID:     req.GuildID,
		TargetID:    req.TargetID,
		ModeratorID: req.ModeratorID,
		Action:      action,
		Reason:      req.Reason,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to record moderation action",
			"guild_id", req.GuildID, "target_id", req.TargetID, "action", action, "error", err)
	}
}

// notifyTarget sends the best-effort DM. Closed DMs are expected and only
// logged at debug level.
func (m *Manager) notifyTarget(ctx context.Context, req Request, action string) {
	guildName := req.GuildID
	if guild, err := m.session.Guild(req.GuildID, discordgo.WithContext(ctx)); err == nil {
		guildName = guild.Name
	}

	var text string
	if action == database.ActionMute {
		text = fmt.Sprintf(m.notices.Muted, guildName, req.Reason)
	} else {
		text = fmt.Sprintf(m.notices.Unmuted, guildName)
	}

	ch, err := m.session.UserChannelCreate(req.TargetID, discordgo.WithContext(ctx))
	if err != nil {
		m.logger.DebugContext(ctx, "Could not open DM channel to target", "target_id", req.TargetID, "error", err)
		return
	}
	if _, err := m.session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx)); err != nil {
		m.logger.DebugContext(ctx, "Could not notify target via DM", "target_id", req.TargetID, "error", err)
	}
}

func hasRole(member *discordgo.Member, roleID string) bool {
	if member == nil {
		return false
	}
	for _, id := range member.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

// isForbidden reports whether err is a Discord 403 response.
func isForbidden(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusForbidden
	}
	return false
}
