package moderation_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/bocik/internal/database"
	"github.com/edgard/bocik/internal/moderation"
)

const (
	guildID   = "100"
	botID     = "1"
	modID     = "2"
	targetID  = "3"
	roleName  = "Muted"
	everyoneP = int64(discordgo.PermissionViewChannel)
)

// fakeSession simulates the slice of the Discord API the manager uses.
type fakeSession struct {
	roles       []*discordgo.Role
	channels    []*discordgo.Channel
	members     map[string]*discordgo.Member
	botPerms    int64
	nextRoleID  int
	overwrites  map[string]int64 // channelID -> deny bits
	roleAdds    []string
	roleRemoves []string
	dmsSent     []string
	dmsClosed   bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		roles: []*discordgo.Role{
			{ID: guildID, Name: "@everyone", Permissions: everyoneP},
			{ID: "900", Name: "BotRole", Permissions: int64(discordgo.PermissionManageRoles)},
		},
		channels: []*discordgo.Channel{
			{ID: "c1"}, {ID: "c2"},
		},
		members: map[string]*discordgo.Member{
			botID:    {User: &discordgo.User{ID: botID}, Roles: []string{"900"}},
			targetID: {User: &discordgo.User{ID: targetID}, Roles: []string{}},
		},
		nextRoleID: 500,
		overwrites: make(map[string]int64),
	}
}

func (f *fakeSession) Guild(id string, _ ...discordgo.RequestOption) (*discordgo.Guild, error) {
	return &discordgo.Guild{ID: id, Name: "Test Guild"}, nil
}

func (f *fakeSession) GuildRoles(_ string, _ ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return f.roles, nil
}

func (f *fakeSession) GuildRoleCreate(_ string, data *discordgo.RoleParams, _ ...discordgo.RequestOption) (*discordgo.Role, error) {
	f.nextRoleID++
	role := &discordgo.Role{ID: fmt.Sprint(f.nextRoleID), Name: data.Name}
	f.roles = append(f.roles, role)
	return role, nil
}

func (f *fakeSession) GuildChannels(_ string, _ ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	return f.channels, nil
}

func (f *fakeSession) ChannelPermissionSet(channelID, _ string, _ discordgo.PermissionOverwriteType, _, deny int64, _ ...discordgo.RequestOption) error {
	f.overwrites[channelID] = deny
	return nil
}

func (f *fakeSession) GuildMember(_, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	m, ok := f.members[userID]
	if !ok {
		return nil, fmt.Errorf("unknown member %s", userID)
	}
	return m, nil
}

func (f *fakeSession) GuildMemberRoleAdd(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.roleAdds = append(f.roleAdds, userID+":"+roleID)
	f.members[userID].Roles = append(f.members[userID].Roles, roleID)
	return nil
}

func (f *fakeSession) GuildMemberRoleRemove(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.roleRemoves = append(f.roleRemoves, userID+":"+roleID)
	var kept []string
	for _, id := range f.members[userID].Roles {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	f.members[userID].Roles = kept
	return nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.dmsClosed {
		return nil, fmt.Errorf("cannot open DM channel")
	}
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.dmsSent = append(f.dmsSent, content)
	return &discordgo.Message{ChannelID: channelID}, nil
}

// fakeStore records audit writes.
type fakeStore struct {
	actions []database.ModerationAction
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) SaveModerationAction(_ context.Context, a *database.ModerationAction) error {
	f.actions = append(f.actions, *a)
	return nil
}

func (f *fakeStore) GetRecentModerationActions(context.Context, string, int) ([]database.ModerationAction, error) {
	return nil, nil
}

func (f *fakeStore) RunSQLMaintenance(context.Context) error { return nil }

func newManager(session *fakeSession, store *fakeStore) *moderation.Manager {
	return moderation.NewManager(session, store, roleName, moderation.Notices{
		Muted:   "Zostałeś wyciszony na serwerze **%s**\nPowód: %s",
		Unmuted: "Twoje wyciszenie na serwerze **%s** zostało zdjęte.",
	}, nil)
}

func request(reason string) moderation.Request {
	return moderation.Request{
		GuildID:     guildID,
		TargetID:    targetID,
		ModeratorID: modID,
		BotUserID:   botID,
		Reason:      reason,
	}
}

func TestMuteCreatesRoleAndOverwrites(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	store := &fakeStore{}
	mgr := newManager(session, store)

	res, err := mgr.Mute(context.Background(), request("spam"))
	if err != nil {
		t.Fatalf("Mute failed: %v", err)
	}
	if res != moderation.ResultDone {
		t.Fatalf("result = %v, want ResultDone", res)
	}

	// Role was created and denied on every channel.
	var muted *discordgo.Role
	for _, r := range session.roles {
		if r.Name == roleName {
			muted = r
		}
	}
	if muted == nil {
		t.Fatal("muted role was not created")
	}
	if len(session.overwrites) != len(session.channels) {
		t.Errorf("overwrites applied to %d channels, want %d", len(session.overwrites), len(session.channels))
	}
	for ch, deny := range session.overwrites {
		if deny&discordgo.PermissionSendMessages == 0 {
			t.Errorf("channel %s overwrite does not deny send", ch)
		}
	}

	if len(session.roleAdds) != 1 || session.roleAdds[0] != targetID+":"+muted.ID {
		t.Errorf("role adds = %v", session.roleAdds)
	}
	if len(store.actions) != 1 || store.actions[0].Action != database.ActionMute || store.actions[0].Reason != "spam" {
		t.Errorf("audit actions = %+v", store.actions)
	}
	if len(session.dmsSent) != 1 {
		t.Errorf("target DMs sent = %d, want 1", len(session.dmsSent))
	}
}

func TestMuteReusesExistingRole(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	session.roles = append(session.roles, &discordgo.Role{ID: "777", Name: roleName})
	mgr := newManager(session, &fakeStore{})

	res, err := mgr.Mute(context.Background(), request("spam"))
	if err != nil {
		t.Fatalf("Mute failed: %v", err)
	}
	if res != moderation.ResultDone {
		t.Fatalf("result = %v, want ResultDone", res)
	}
	if len(session.overwrites) != 0 {
		t.Errorf("overwrites should not be re-applied for an existing role, got %v", session.overwrites)
	}
	if len(session.roleAdds) != 1 || session.roleAdds[0] != targetID+":777" {
		t.Errorf("role adds = %v", session.roleAdds)
	}
}

func TestMuteAlreadyMutedIsNoOp(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	session.roles = append(session.roles, &discordgo.Role{ID: "777", Name: roleName})
	session.members[targetID].Roles = []string{"777"}
	store := &fakeStore{}
	mgr := newManager(session, store)

	res, err := mgr.Mute(context.Background(), request("again"))
	if err != nil {
		t.Fatalf("Mute failed: %v", err)
	}
	if res != moderation.ResultAlreadyMuted {
		t.Fatalf("result = %v, want ResultAlreadyMuted", res)
	}
	if len(session.roleAdds) != 0 {
		t.Errorf("no role grant expected, got %v", session.roleAdds)
	}
	if len(store.actions) != 0 {
		t.Errorf("no audit record expected for a no-op, got %+v", store.actions)
	}
}

func TestUnmuteNotMutedIsNoOp(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	session.roles = append(session.roles, &discordgo.Role{ID: "777", Name: roleName})
	mgr := newManager(session, &fakeStore{})

	res, err := mgr.Unmute(context.Background(), request(""))
	if err != nil {
		t.Fatalf("Unmute failed: %v", err)
	}
	if res != moderation.ResultNotMuted {
		t.Fatalf("result = %v, want ResultNotMuted", res)
	}
}

func TestUnmuteMissingRole(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	mgr := newManager(session, &fakeStore{})

	res, err := mgr.Unmute(context.Background(), request(""))
	if err != nil {
		t.Fatalf("Unmute failed: %v", err)
	}
	if res != moderation.ResultMissingRole {
		t.Fatalf("result = %v, want ResultMissingRole", res)
	}
}

func TestUnmuteRemovesRole(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	session.roles = append(session.roles, &discordgo.Role{ID: "777", Name: roleName})
	session.members[targetID].Roles = []string{"777"}
	store := &fakeStore{}
	mgr := newManager(session, store)

	res, err := mgr.Unmute(context.Background(), request(""))
	if err != nil {
		t.Fatalf("Unmute failed: %v", err)
	}
	if res != moderation.ResultDone {
		t.Fatalf("result = %v, want ResultDone", res)
	}
	if len(session.roleRemoves) != 1 || session.roleRemoves[0] != targetID+":777" {
		t.Errorf("role removes = %v", session.roleRemoves)
	}
	if len(store.actions) != 1 || store.actions[0].Action != database.ActionUnmute {
		t.Errorf("audit actions = %+v", store.actions)
	}
}

func TestMuteRefusedWithoutBotPermission(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	session.roles[1].Permissions = 0 // strip Manage Roles from the bot's role
	mgr := newManager(session, &fakeStore{})

	res, err := mgr.Mute(context.Background(), request("spam"))
	if err != nil {
		t.Fatalf("Mute failed: %v", err)
	}
	if res != moderation.ResultBotMissingPerms {
		t.Fatalf("result = %v, want ResultBotMissingPerms", res)
	}
	if len(session.roleAdds) != 0 {
		t.Errorf("no role grant expected, got %v", session.roleAdds)
	}
}

func TestMuteSucceedsWhenTargetDMsClosed(t *testing.T) {
	t.Parallel()

	session := newFakeSession()
	session.dmsClosed = true
	mgr := newManager(session, &fakeStore{})

	res, err := mgr.Mute(context.Background(), request("spam"))
	if err != nil {
		t.Fatalf("Mute failed despite only the DM being closed: %v", err)
	}
	if res != moderation.ResultDone {
		t.Fatalf("result = %v, want ResultDone", res)
	}
	if len(session.dmsSent) != 0 {
		t.Errorf("no DM should have been delivered, got %v", session.dmsSent)
	}
}
