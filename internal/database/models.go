package database

import "time"

// Action values recorded in the moderation audit log.
const (
	ActionMute   = "mute"
	ActionUnmute = "unmute"
)

// ModerationAction is one applied mute or unmute, recorded so moderators
// can reconstruct who silenced whom and why after the fact.
type ModerationAction struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	GuildID     string `db:"guild_id"`
	TargetID    string `db:"target_id"`
	ModeratorID string `db:"moderator_id"`
	Action      string `db:"action"`
	Reason      string `db:"reason"`
}
