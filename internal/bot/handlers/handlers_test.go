package handlers_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/bocik/internal/archive"
	"github.com/edgard/bocik/internal/bot/handlers"
	"github.com/edgard/bocik/internal/config"
	"github.com/edgard/bocik/internal/database"
	"github.com/edgard/bocik/internal/moderation"
	"github.com/edgard/bocik/internal/relay"
	"github.com/edgard/bocik/internal/trigger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Moderation.MutedRoleName = "Muted"
	cfg.Messages = config.MessagesConfig{
		DMConfirmation:  "zapisano",
		MuteSuccess:     "wyciszono %s powod %s",
		UnmuteSuccess:   "odciszono %s",
		AlreadyMuted:    "%s juz ma %s",
		NotMuted:        "%s nie ma %s",
		NoMutedRole:     "brak roli %s",
		BotMissingPerms: "bot bez uprawnien",
		CannotGrantRole: "odmowa",
		NotAuthorized:   "brak uprawnien",
		GeneralError:    "blad",
		MutedNotice:     "wyciszony na %s: %s",
		UnmutedNotice:   "odciszony na %s",
		NoReason:        "nie podano powodu",
		ModLogHeader:    "ostatnie akcje:",
		ModLogEmpty:     "brak akcji",
	}
	return cfg
}

type sentMessage struct {
	channelID string
	content   string
}

type fakeReply struct {
	sent []sentMessage
	err  error
}

func (f *fakeReply) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, sentMessage{channelID, content})
	if f.err != nil {
		return nil, f.err
	}
	return &discordgo.Message{}, nil
}

type fakeResponder struct {
	responses []*discordgo.InteractionResponse
}

func (f *fakeResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeResponder) lastContent(t *testing.T) string {
	t.Helper()
	if len(f.responses) != 1 {
		t.Fatalf("expected exactly one interaction response, got %d", len(f.responses))
	}
	return f.responses[0].Data.Content
}

// fakeAuditStore serves scripted moderation history.
type fakeAuditStore struct {
	saved   []database.ModerationAction
	history []database.ModerationAction
}

func (f *fakeAuditStore) Ping(context.Context) error { return nil }

func (f *fakeAuditStore) SaveModerationAction(_ context.Context, a *database.ModerationAction) error {
	f.saved = append(f.saved, *a)
	return nil
}

func (f *fakeAuditStore) GetRecentModerationActions(_ context.Context, _ string, limit int) ([]database.ModerationAction, error) {
	if limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeAuditStore) RunSQLMaintenance(context.Context) error { return nil }

// modSession is the minimal moderation.Session fixture for command tests:
// guild g1 with an existing Muted role, a bot holding Manage Roles, and a
// target member whose roles vary per test.
type modSession struct {
	targetRoles []string
	rolesAdded  []string
	rolesRemov  []string
	dms         []sentMessage
}

const (
	testGuildID   = "g1"
	testBotID     = "bot1"
	testTargetID  = "42"
	testBotRoleID = "900"
	testMutedRole = "muted-1"
)

func (f *modSession) Guild(guildID string, _ ...discordgo.RequestOption) (*discordgo.Guild, error) {
	return &discordgo.Guild{ID: guildID, Name: "Testowy"}, nil
}

func (f *modSession) GuildRoles(string, ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return []*discordgo.Role{
		{ID: testGuildID, Name: "@everyone"},
		{ID: testBotRoleID, Name: "Bot", Permissions: discordgo.PermissionManageRoles},
		{ID: testMutedRole, Name: "Muted"},
	}, nil
}

func (f *modSession) GuildRoleCreate(string, *discordgo.RoleParams, ...discordgo.RequestOption) (*discordgo.Role, error) {
	panic("role creation not expected when the role exists")
}

func (f *modSession) GuildChannels(string, ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	return nil, nil
}

func (f *modSession) ChannelPermissionSet(string, string, discordgo.PermissionOverwriteType, int64, int64, ...discordgo.RequestOption) error {
	return nil
}

func (f *modSession) GuildMember(_, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	switch userID {
	case testBotID:
		return &discordgo.Member{User: &discordgo.User{ID: testBotID}, Roles: []string{testBotRoleID}}, nil
	default:
		return &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: f.targetRoles}, nil
	}
}

func (f *modSession) GuildMemberRoleAdd(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.rolesAdded = append(f.rolesAdded, userID+":"+roleID)
	return nil
}

func (f *modSession) GuildMemberRoleRemove(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.rolesRemov = append(f.rolesRemov, userID+":"+roleID)
	return nil
}

func (f *modSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *modSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.dms = append(f.dms, sentMessage{channelID, content})
	return &discordgo.Message{}, nil
}

func moderationDeps(session *modSession, store database.Store) handlers.HandlerDeps {
	cfg := testConfig()
	return handlers.HandlerDeps{
		Logger: testLogger(),
		Config: cfg,
		Moderation: moderation.NewManager(session, store, cfg.Moderation.MutedRoleName,
			moderation.Notices{Muted: cfg.Messages.MutedNotice, Unmuted: cfg.Messages.UnmutedNotice}, testLogger()),
	}
}

func commandInteraction(name, targetID, reason string, perms int64) *discordgo.InteractionCreate {
	var options []*discordgo.ApplicationCommandInteractionDataOption
	if targetID != "" {
		options = append(options, &discordgo.ApplicationCommandInteractionDataOption{
			Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: targetID,
		})
	}
	if reason != "" {
		options = append(options, &discordgo.ApplicationCommandInteractionDataOption{
			Name: "reason", Type: discordgo.ApplicationCommandOptionString, Value: reason,
		})
	}

	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: testGuildID,
			Member: &discordgo.Member{
				User:        &discordgo.User{ID: "mod1"},
				Permissions: perms,
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: options,
			},
		},
	}
}

func TestDirectMessagePipeline(t *testing.T) {
	t.Parallel()

	store, err := archive.NewStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	notifier, err := relay.NewNotifier(nil, "", time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}

	cfg := testConfig()
	h := handlers.NewMessageHandler(handlers.HandlerDeps{
		Logger:   testLogger(),
		Config:   cfg,
		Archive:  store,
		Notifier: notifier,
	})

	reply := &fakeReply{}
	h.HandleDirect(context.Background(), reply, &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ChannelID: "dm-chan",
			Content:   "pomocy",
			Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Author:    &discordgo.User{ID: "77", Username: "jan"},
		},
	})

	if len(reply.sent) != 1 {
		t.Fatalf("expected one confirmation, got %d", len(reply.sent))
	}
	if reply.sent[0].channelID != "dm-chan" || reply.sent[0].content != cfg.Messages.DMConfirmation {
		t.Errorf("unexpected confirmation %+v", reply.sent[0])
	}

	records, err := store.Load(context.Background(), "77")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 || records[0].Content != "pomocy" {
		t.Fatalf("expected one archived record with the DM content, got %+v", records)
	}
}

func TestGuildMessageTrigger(t *testing.T) {
	t.Parallel()

	table := trigger.NewTable([]trigger.Entry{
		{Phrase: "cześć", Response: "Hej!"},
	})
	h := handlers.NewMessageHandler(handlers.HandlerDeps{
		Logger:   testLogger(),
		Config:   testConfig(),
		Triggers: table,
	})

	tests := []struct {
		name    string
		content string
		want    []sentMessage
	}{
		{
			name:    "matching message gets one reply",
			content: "no CZESC wam",
			want:    []sentMessage{{"chan", "Hej!"}},
		},
		{
			name:    "non-matching message gets none",
			content: "dzień dobry",
			want:    nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			reply := &fakeReply{}
			h.HandleGuild(context.Background(), reply, &discordgo.MessageCreate{
				Message: &discordgo.Message{
					GuildID:   testGuildID,
					ChannelID: "chan",
					Content:   tc.content,
					Author:    &discordgo.User{ID: "77"},
				},
			})

			if len(reply.sent) != len(tc.want) {
				t.Fatalf("expected %d replies, got %d", len(tc.want), len(reply.sent))
			}
			for idx, want := range tc.want {
				if reply.sent[idx] != want {
					t.Errorf("reply %d = %+v, want %+v", idx, reply.sent[idx], want)
				}
			}
		})
	}
}

func TestMuteHandlerRefusesUnauthorizedInvoker(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	handle := handlers.NewMuteHandler(handlers.HandlerDeps{Logger: testLogger(), Config: cfg})

	responder := &fakeResponder{}
	handle(context.Background(), responder, commandInteraction("mute", testTargetID, "spam", 0), testBotID)

	if got := responder.lastContent(t); got != cfg.Messages.NotAuthorized {
		t.Errorf("expected authorization refusal, got %q", got)
	}
}

func TestMuteHandlerGrantsRole(t *testing.T) {
	t.Parallel()

	session := &modSession{}
	deps := moderationDeps(session, nil)

	responder := &fakeResponder{}
	handlers.NewMuteHandler(deps)(context.Background(), responder,
		commandInteraction("mute", testTargetID, "spam", discordgo.PermissionManageRoles), testBotID)

	if got, want := responder.lastContent(t), "wyciszono <@42> powod spam"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
	if len(session.rolesAdded) != 1 || session.rolesAdded[0] != testTargetID+":"+testMutedRole {
		t.Errorf("expected role grant for target, got %v", session.rolesAdded)
	}
}

func TestMuteHandlerDefaultsReason(t *testing.T) {
	t.Parallel()

	session := &modSession{}
	deps := moderationDeps(session, nil)

	responder := &fakeResponder{}
	handlers.NewMuteHandler(deps)(context.Background(), responder,
		commandInteraction("mute", testTargetID, "", discordgo.PermissionAdministrator), testBotID)

	if got, want := responder.lastContent(t), "wyciszono <@42> powod nie podano powodu"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestUnmuteHandlerReportsNotMuted(t *testing.T) {
	t.Parallel()

	session := &modSession{}
	deps := moderationDeps(session, nil)

	responder := &fakeResponder{}
	handlers.NewUnmuteHandler(deps)(context.Background(), responder,
		commandInteraction("unmute", testTargetID, "", discordgo.PermissionManageRoles), testBotID)

	if got, want := responder.lastContent(t), "<@42> nie ma Muted"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
	if len(session.rolesRemov) != 0 {
		t.Errorf("expected no role removal, got %v", session.rolesRemov)
	}
}

func TestUnmuteHandlerRemovesRole(t *testing.T) {
	t.Parallel()

	session := &modSession{targetRoles: []string{testMutedRole}}
	deps := moderationDeps(session, nil)

	responder := &fakeResponder{}
	handlers.NewUnmuteHandler(deps)(context.Background(), responder,
		commandInteraction("unmute", testTargetID, "", discordgo.PermissionManageRoles), testBotID)

	if got, want := responder.lastContent(t), "odciszono <@42>"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
	if len(session.rolesRemov) != 1 || session.rolesRemov[0] != testTargetID+":"+testMutedRole {
		t.Errorf("expected role removal for target, got %v", session.rolesRemov)
	}
}

func TestModlogHandlerListsRecentActions(t *testing.T) {
	t.Parallel()

	store := &fakeAuditStore{history: []database.ModerationAction{
		{CreatedAt: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), GuildID: testGuildID,
			TargetID: "42", ModeratorID: "mod1", Action: database.ActionUnmute},
		{CreatedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC), GuildID: testGuildID,
			TargetID: "42", ModeratorID: "mod1", Action: database.ActionMute, Reason: "spam"},
	}}
	deps := moderationDeps(&modSession{}, store)

	responder := &fakeResponder{}
	handlers.NewModlogHandler(deps)(context.Background(), responder,
		commandInteraction("modlog", "", "", discordgo.PermissionManageRoles), testBotID)

	got := responder.lastContent(t)
	if !strings.HasPrefix(got, deps.Config.Messages.ModLogHeader) {
		t.Errorf("reply missing header: %q", got)
	}
	for _, want := range []string{"🔊 <@42>", "🔇 <@42>", "(spam)", "2025-06-01 09:30"} {
		if !strings.Contains(got, want) {
			t.Errorf("reply missing %q: %q", want, got)
		}
	}
}

func TestModlogHandlerEmptyHistory(t *testing.T) {
	t.Parallel()

	deps := moderationDeps(&modSession{}, &fakeAuditStore{})

	responder := &fakeResponder{}
	handlers.NewModlogHandler(deps)(context.Background(), responder,
		commandInteraction("modlog", "", "", discordgo.PermissionManageRoles), testBotID)

	if got := responder.lastContent(t); got != deps.Config.Messages.ModLogEmpty {
		t.Errorf("reply = %q, want the empty-history message", got)
	}
}

func TestModlogHandlerRefusesUnauthorizedInvoker(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	deps := handlers.HandlerDeps{Logger: testLogger(), Config: cfg}

	responder := &fakeResponder{}
	handlers.NewModlogHandler(deps)(context.Background(), responder,
		commandInteraction("modlog", "", "", 0), testBotID)

	if got := responder.lastContent(t); got != cfg.Messages.NotAuthorized {
		t.Errorf("expected authorization refusal, got %q", got)
	}
}
