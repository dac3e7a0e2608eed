// Package relay forwards received direct messages to an external Discord
// webhook as embed notifications. Delivery is best effort: a missing sink
// is a skip, a failing sink is logged by the caller and never retried.
package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Outcome reports how a relay attempt concluded.
type Outcome int

const (
	// OutcomeSkipped means no sink is configured; nothing was sent.
	OutcomeSkipped Outcome = iota
	// OutcomeSent means the webhook accepted the notification.
	OutcomeSent
	// OutcomeFailed means delivery was attempted and did not succeed.
	OutcomeFailed
)

// placeholderURL is the unconfigured sample value shipped in example
// configs; it is treated the same as an empty sink.
const placeholderURL = "YOUR_WEBHOOK_URL_HERE"

const senderName = "Bocik DM Logger"

var webhookURLPattern = regexp.MustCompile(`/api(?:/v\d+)?/webhooks/(\d+)/([^/?]+)`)

// Message is the projection of a direct message handed to the relay.
type Message struct {
	AuthorName    string
	AuthorIconURL string
	AuthorID      string
	Content       string
	Timestamp     time.Time
	Attachments   []string
}

// WebhookExecutor is the slice of the Discord session the relay needs;
// *discordgo.Session satisfies it.
type WebhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier sends DM notifications to a configured webhook.
type Notifier struct {
	session WebhookExecutor
	logger  *slog.Logger
	timeout time.Duration

	webhookID    string
	webhookToken string
	configured   bool
}

// NewNotifier creates a Notifier for the given webhook URL. An empty or
// placeholder URL yields a notifier that skips every relay; a present but
// malformed URL is a configuration error.
func NewNotifier(session WebhookExecutor, webhookURL string, timeout time.Duration, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	n := &Notifier{
		session: session,
		logger:  logger.With("component", "relay"),
		timeout: timeout,
	}

	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" || webhookURL == placeholderURL {
		n.logger.Warn("Webhook URL not configured, DM notifications will be skipped")
		return n, nil
	}

	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	n.webhookID = id
	n.webhookToken = token
	n.configured = true
	return n, nil
}

// Relay sends msg to the sink. When no sink is configured it returns
// OutcomeSkipped and no error. Delivery errors are returned for the caller
// to log; they must not abort DM handling.
func (n *Notifier) Relay(ctx context.Context, msg Message) (Outcome, error) {
	if !n.configured {
		n.logger.DebugContext(ctx, "No relay sink configured, skipping notification", "author_id", msg.AuthorID)
		return OutcomeSkipped, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	params := &discordgo.WebhookParams{
		Username: senderName,
		Embeds:   []*discordgo.MessageEmbed{buildEmbed(msg)},
	}

	if _, err := n.session.WebhookExecute(n.webhookID, n.webhookToken, true, params, discordgo.WithContext(sendCtx)); err != nil {
		return OutcomeFailed, fmt.Errorf("webhook execute failed: %w", err)
	}

	n.logger.InfoContext(ctx, "Relayed DM notification", "author", msg.AuthorName, "author_id", msg.AuthorID)
	return OutcomeSent, nil
}

func buildEmbed(msg Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "📨 Nowa wiadomość prywatna",
		Description: msg.Content,
		Color:       0x3498db,
		Timestamp:   msg.Timestamp.UTC().Format(time.RFC3339),
		Author: &discordgo.MessageEmbedAuthor{
			Name:    msg.AuthorName,
			IconURL: msg.AuthorIconURL,
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "ID: " + msg.AuthorID,
		},
	}

	if len(msg.Attachments) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Załączniki",
			Value: strings.Join(msg.Attachments, "\n"),
		})
	}
	return embed
}

// parseWebhookURL extracts the webhook ID and token from a Discord webhook
// URL of the form https://discord.com/api/webhooks/<id>/<token>.
func parseWebhookURL(raw string) (id, token string, err error) {
	m := webhookURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", "", fmt.Errorf("invalid webhook URL %q", raw)
	}
	return m[1], m[2], nil
}
