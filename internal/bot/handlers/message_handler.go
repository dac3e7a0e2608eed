package handlers

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/bocik/internal/archive"
	"github.com/edgard/bocik/internal/relay"
)

// ReplySender is the slice of the Discord session used to answer messages;
// *discordgo.Session satisfies it.
type ReplySender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// MessageHandler implements the inbound message pipeline: direct messages
// flow through archive, relay, and confirmation; guild messages are checked
// against the trigger table for a single auto-reply.
type MessageHandler struct {
	deps HandlerDeps
}

// NewMessageHandler creates the message pipeline over its dependencies.
func NewMessageHandler(deps HandlerDeps) MessageHandler {
	return MessageHandler{deps}
}

// NewMessageCreateHandler returns the gateway handler for inbound messages.
func NewMessageCreateHandler(deps HandlerDeps) func(*discordgo.Session, *discordgo.MessageCreate) {
	h := NewMessageHandler(deps)
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
			return
		}

		ctx := context.Background()
		if m.GuildID == "" {
			h.HandleDirect(ctx, s, m)
		} else {
			h.HandleGuild(ctx, s, m)
		}
	}
}

// HandleDirect archives the DM, relays it, and confirms receipt. Archive
// and relay failures are logged but never block the confirmation: the
// sender is told their message was handled once archival was attempted.
func (h MessageHandler) HandleDirect(ctx context.Context, sender ReplySender, m *discordgo.MessageCreate) {
	deps := h.deps
	log := deps.Logger.With("handler", "dm", "author_id", m.Author.ID)

	attachments := make([]string, 0, len(m.Attachments))
	for _, att := range m.Attachments {
		attachments = append(attachments, att.URL)
	}

	receivedAt := m.Timestamp
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	rec := archive.Record{
		Timestamp:   receivedAt.UTC().Format(time.RFC3339),
		Author:      m.Author.String(),
		AuthorID:    m.Author.ID,
		Content:     m.Content,
		Attachments: attachments,
	}

	res, err := deps.Archive.Append(ctx, rec)
	switch {
	case err != nil:
		log.ErrorContext(ctx, "Failed to archive direct message", "error", err)
	case res.Recovered:
		log.WarnContext(ctx, "Archived direct message over a recovered (previously corrupt) log", "records", res.Records)
	default:
		log.DebugContext(ctx, "Archived direct message", "records", res.Records)
	}

	outcome, err := deps.Notifier.Relay(ctx, relay.Message{
		AuthorName:    m.Author.String(),
		AuthorIconURL: m.Author.AvatarURL(""),
		AuthorID:      m.Author.ID,
		Content:       m.Content,
		Timestamp:     receivedAt,
		Attachments:   attachments,
	})
	if err != nil {
		// Best effort: the DM is already archived and the sender still
		// gets their confirmation.
		log.ErrorContext(ctx, "Failed to relay DM notification", "error", err)
	} else if outcome == relay.OutcomeSkipped {
		log.DebugContext(ctx, "Relay skipped, no sink configured")
	}

	if _, err := sender.ChannelMessageSend(m.ChannelID, deps.Config.Messages.DMConfirmation); err != nil {
		log.ErrorContext(ctx, "Failed to send DM confirmation", "error", err)
	}
}

// HandleGuild sends at most one trigger response per message.
func (h MessageHandler) HandleGuild(ctx context.Context, sender ReplySender, m *discordgo.MessageCreate) {
	response, ok := h.deps.Triggers.Match(m.Content)
	if !ok {
		return
	}

	log := h.deps.Logger.With("handler", "trigger", "guild_id", m.GuildID, "channel_id", m.ChannelID)
	if _, err := sender.ChannelMessageSend(m.ChannelID, response); err != nil {
		log.ErrorContext(ctx, "Failed to send trigger response", "error", err)
		return
	}
	log.DebugContext(ctx, "Sent trigger response")
}
