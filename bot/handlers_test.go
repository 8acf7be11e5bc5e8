/* handlers_test.go
 * Contains unit tests for the message handlers using MockDiscordSession and the in-memory
 * api mock store
 * Authors: Zachary Bower
 */

package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"pickem-bot/api/api"
	"pickem-bot/api/fanout"
	"pickem-bot/api/shared"

	"github.com/bwmarrin/discordgo"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var botTestEpoch = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

const testBotUserID = "bot-user"

// newTestBot wires a Bot over the in-memory api stack with a fake clock
func newTestBot(t *testing.T) (*Bot, *api.API, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(botTestEpoch)
	ms := api.NewMockAPIStore(clock)
	messenger := &api.RecordingMessenger{}
	f := fanout.New(messenger, rate.Inf, 1, time.Second)

	a, err := api.NewAPI(ms, f, clock)
	require.NoError(t, err)
	b, err := NewBot(a, clock)
	require.NoError(t, err)
	return b, a, clock
}

// userMessage builds an incoming message from a regular user
func userMessage(content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			Content:   content,
			ChannelID: "chan1",
			GuildID:   "guild1",
			Author:    &discordgo.User{ID: "u1", Username: "alice"},
		},
	}
}

func TestNewMessageHandler_IgnoresOwnMessages(t *testing.T) {
	b, _, _ := newTestBot(t)
	session := &MockDiscordSession{}

	msg := userMessage("$help")
	msg.Author.ID = testBotUserID
	b.newMessageHandler(session, msg, testBotUserID)

	assert.Equal(t, 0, session.MessageCount())
}

func TestNewMessageHandler_HelpReply(t *testing.T) {
	b, _, _ := newTestBot(t)
	session := &MockDiscordSession{}

	b.newMessageHandler(session, userMessage("$help"), testBotUserID)

	require.Equal(t, 1, session.MessageCount())
	assert.Contains(t, session.GetLastMessage().Content, "$pick")
}

func TestPickHandler_RecordsPick(t *testing.T) {
	b, a, _ := newTestBot(t)
	session := &MockDiscordSession{}

	contest, err := a.CreateContest(context.Background(), "guild1", "Red", "Blue", botTestEpoch.Add(time.Hour), "", "")
	require.NoError(t, err)

	b.newMessageHandler(session, userMessage(fmt.Sprintf("$pick %s Red", contest.ID)), testBotUserID)
	assert.Equal(t, "alice picked **Red**", session.GetLastMessage().Content)

	// Second attempt by the same user is refused, pick unchanged
	b.newMessageHandler(session, userMessage(fmt.Sprintf("$pick %s Blue", contest.ID)), testBotUserID)
	assert.Contains(t, session.GetLastMessage().Content, "already has a pick")

	pick, err := a.GetPick(context.Background(), "guild1", "u1", contest.ID)
	require.NoError(t, err)
	assert.Equal(t, "Red", pick.Predicted)
}

func TestPickHandler_QuotedTeamName(t *testing.T) {
	b, a, _ := newTestBot(t)
	session := &MockDiscordSession{}

	contest, err := a.CreateContest(context.Background(), "guild1", "Natus Vincere", "Team Spirit", botTestEpoch.Add(time.Hour), "", "")
	require.NoError(t, err)

	b.newMessageHandler(session, userMessage(fmt.Sprintf("$pick %s \"Natus Vincere\"", contest.ID)), testBotUserID)
	assert.Equal(t, "alice picked **Natus Vincere**", session.GetLastMessage().Content)
}

func TestPickHandler_LockedAfterStart(t *testing.T) {
	b, a, clock := newTestBot(t)
	session := &MockDiscordSession{}

	contest, err := a.CreateContest(context.Background(), "guild1", "Red", "Blue", botTestEpoch.Add(time.Hour), "", "")
	require.NoError(t, err)
	clock.Advance(61 * time.Minute)

	b.newMessageHandler(session, userMessage(fmt.Sprintf("$pick %s Red", contest.ID)), testBotUserID)
	assert.Contains(t, session.GetLastMessage().Content, "picks are locked")
}

func TestPickHandler_Usage(t *testing.T) {
	b, _, _ := newTestBot(t)
	session := &MockDiscordSession{}

	b.newMessageHandler(session, userMessage("$pick"), testBotUserID)
	assert.Contains(t, session.GetLastMessage().Content, "Usage: $pick")
}

func TestPickHandler_UnknownContest(t *testing.T) {
	b, _, _ := newTestBot(t)
	session := &MockDiscordSession{}

	b.newMessageHandler(session, userMessage("$pick no-such-contest Red"), testBotUserID)
	assert.Contains(t, session.GetLastMessage().Content, "No matching contest")
}

func TestCreateContestHandler(t *testing.T) {
	b, _, _ := newTestBot(t)
	session := &MockDiscordSession{Permissions: discordgo.PermissionManageServer}

	start := botTestEpoch.Add(time.Hour).Unix()
	b.newMessageHandler(session, userMessage(fmt.Sprintf("$create \"Natus Vincere\" \"Team Spirit\" %d Playoffs", start)), testBotUserID)

	assert.Contains(t, session.GetLastMessage().Content, "Created contest")
	assert.Contains(t, session.GetLastMessage().Content, "Natus Vincere")
}

func TestCreateContestHandler_BadStartTime(t *testing.T) {
	b, _, _ := newTestBot(t)
	session := &MockDiscordSession{Permissions: discordgo.PermissionManageServer}

	b.newMessageHandler(session, userMessage("$create \"A\" \"B\" tomorrow"), testBotUserID)
	assert.Contains(t, session.GetLastMessage().Content, "Could not read the start time")
}

func TestOperatorCommands_RefusedWithoutPermission(t *testing.T) {
	b, _, _ := newTestBot(t)

	for _, content := range []string{
		"$create \"A\" \"B\" 1750000000",
		"$result some-id A",
		"$reschedule some-id 1750000000",
		"$announcehere",
		"$announce hello",
	} {
		session := &MockDiscordSession{}
		b.newMessageHandler(session, userMessage(content), testBotUserID)
		assert.Contains(t, session.GetLastMessage().Content, "Manage Server permission", "command %q must be operator-gated", content)
	}
}

func TestUpcomingHandler(t *testing.T) {
	b, a, _ := newTestBot(t)
	session := &MockDiscordSession{}

	b.newMessageHandler(session, userMessage("$upcoming"), testBotUserID)
	assert.Equal(t, "No upcoming contests", session.GetLastMessage().Content)

	_, err := a.CreateContest(context.Background(), "guild1", "Red", "Blue", botTestEpoch.Add(2*time.Hour), "Groups", "")
	require.NoError(t, err)
	// Starts beyond the one week window, should not be listed
	_, err = a.CreateContest(context.Background(), "guild1", "Far", "Away", botTestEpoch.Add(upcomingWindow+time.Hour), "", "")
	require.NoError(t, err)

	b.newMessageHandler(session, userMessage("$upcoming"), testBotUserID)
	reply := session.GetLastMessage().Content
	assert.Contains(t, reply, "Red VS Blue")
	assert.Contains(t, reply, "(Groups)")
	assert.NotContains(t, reply, "Far VS Away")
}

func TestStatsHandler(t *testing.T) {
	b, a, clock := newTestBot(t)
	session := &MockDiscordSession{}

	contest, err := a.CreateContest(context.Background(), "guild1", "Red", "Blue", botTestEpoch.Add(time.Hour), "", "")
	require.NoError(t, err)
	_, err = a.RecordPick(context.Background(), shared.User{UserID: "u1", Username: "alice"}, "guild1", contest.ID, "Red")
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, err = a.SetResult(context.Background(), "guild1", contest.ID, "Red")
	require.NoError(t, err)

	b.newMessageHandler(session, userMessage("$stats"), testBotUserID)
	assert.Equal(t, "alice: 1 picks, 1 completed, 1 correct (100% accuracy), 0 still open", session.GetLastMessage().Content)
}

func TestMyPicksHandler_Empty(t *testing.T) {
	b, _, _ := newTestBot(t)
	session := &MockDiscordSession{}

	b.newMessageHandler(session, userMessage("$mypicks"), testBotUserID)
	assert.Contains(t, session.GetLastMessage().Content, "no picks on open contests")
}

func TestLeaderboardHandler_UnknownWindow(t *testing.T) {
	b, _, _ := newTestBot(t)
	session := &MockDiscordSession{}

	b.newMessageHandler(session, userMessage("$leaderboard fortnightly"), testBotUserID)
	assert.Contains(t, session.GetLastMessage().Content, "Unknown window")
}

func TestLeaderboardHandler_Windowed(t *testing.T) {
	b, a, clock := newTestBot(t)
	session := &MockDiscordSession{}

	contest, err := a.CreateContest(context.Background(), "guild1", "Red", "Blue", botTestEpoch.Add(time.Hour), "", "")
	require.NoError(t, err)
	_, err = a.RecordPick(context.Background(), shared.User{UserID: "u1", Username: "alice"}, "guild1", contest.ID, "Red")
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, err = a.SetResult(context.Background(), "guild1", contest.ID, "Red")
	require.NoError(t, err)

	b.newMessageHandler(session, userMessage("$leaderboard daily"), testBotUserID)
	reply := session.GetLastMessage().Content
	assert.Contains(t, reply, "Leaderboard (daily):")
	assert.Contains(t, reply, "1. alice, 1 correct of 1")
}

func TestResultHandler(t *testing.T) {
	b, a, clock := newTestBot(t)
	session := &MockDiscordSession{Permissions: discordgo.PermissionManageServer}

	contest, err := a.CreateContest(context.Background(), "guild1", "Red", "Blue", botTestEpoch.Add(time.Hour), "", "")
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	b.newMessageHandler(session, userMessage(fmt.Sprintf("$result %s Red", contest.ID)), testBotUserID)
	assert.Equal(t, "Recorded **Red** as the winner of Red vs Blue", session.GetLastMessage().Content)

	// A different winner afterwards is refused
	b.newMessageHandler(session, userMessage(fmt.Sprintf("$result %s Blue", contest.ID)), testBotUserID)
	assert.Contains(t, session.GetLastMessage().Content, "already has a result")
}

func TestRescheduleHandler(t *testing.T) {
	b, a, _ := newTestBot(t)
	session := &MockDiscordSession{Permissions: discordgo.PermissionManageServer}

	contest, err := a.CreateContest(context.Background(), "guild1", "Red", "Blue", botTestEpoch.Add(time.Hour), "", "")
	require.NoError(t, err)

	newStart := botTestEpoch.Add(3 * time.Hour)
	b.newMessageHandler(session, userMessage(fmt.Sprintf("$reschedule %s %d", contest.ID, newStart.Unix())), testBotUserID)
	assert.Equal(t, fmt.Sprintf("Red vs Blue now starts <t:%d>", newStart.Unix()), session.GetLastMessage().Content)
}

func TestAnnounceHereHandler(t *testing.T) {
	b, a, _ := newTestBot(t)
	session := &MockDiscordSession{Permissions: discordgo.PermissionManageServer}

	// $announcehere must not be swallowed by the $announce route
	b.newMessageHandler(session, userMessage("$announcehere"), testBotUserID)
	assert.Equal(t, "Contest announcements will be posted in this channel", session.GetLastMessage().Content)

	// Refused $announce would complain about usage; registration should be in the store
	result, err := a.AnnounceToAll(context.Background(), "check")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
}

func waitForMessage(t *testing.T, session *MockDiscordSession, substring string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(session.GetLastMessage().Content, substring)
	}, 2*time.Second, 5*time.Millisecond, "expected a reply containing %q", substring)
}

func TestAnnounceFlow_Confirm(t *testing.T) {
	b, a, _ := newTestBot(t)
	session := &MockDiscordSession{Permissions: discordgo.PermissionManageServer}
	require.NoError(t, a.RegisterAnnounceChannel(context.Background(), "guild1", "chan1"))
	require.NoError(t, a.RegisterAnnounceChannel(context.Background(), "guild2", "chan2"))

	b.newMessageHandler(session, userMessage("$announce season starts monday"), testBotUserID)
	assert.Contains(t, session.GetLastMessage().Content, "About to announce")

	b.newMessageHandler(session, userMessage("$confirm"), testBotUserID)
	waitForMessage(t, session, "Announcement sent to 2 server(s), 0 failed")
}

func TestAnnounceFlow_Cancel(t *testing.T) {
	b, _, _ := newTestBot(t)
	session := &MockDiscordSession{Permissions: discordgo.PermissionManageServer}

	b.newMessageHandler(session, userMessage("$announce never mind"), testBotUserID)
	b.newMessageHandler(session, userMessage("$cancel"), testBotUserID)
	waitForMessage(t, session, "Announcement cancelled")
}

func TestAnnounceFlow_Timeout(t *testing.T) {
	b, _, clock := newTestBot(t)
	session := &MockDiscordSession{Permissions: discordgo.PermissionManageServer}

	b.newMessageHandler(session, userMessage("$announce going once"), testBotUserID)

	// Wait until the draft goroutine is parked on the confirmation timer, then expire it
	clock.BlockUntil(1)
	clock.Advance(announceConfirmWait)
	waitForMessage(t, session, "Announcement expired without confirmation")
}

func TestAnnounceFlow_SecondDraftRejected(t *testing.T) {
	b, _, _ := newTestBot(t)
	session := &MockDiscordSession{Permissions: discordgo.PermissionManageServer}

	b.newMessageHandler(session, userMessage("$announce first"), testBotUserID)
	b.newMessageHandler(session, userMessage("$announce second"), testBotUserID)
	assert.Contains(t, session.GetLastMessage().Content, "already have an announcement awaiting")

	// Clean up the pending draft so its goroutine does not outlive the test
	b.newMessageHandler(session, userMessage("$cancel"), testBotUserID)
	waitForMessage(t, session, "Announcement cancelled")
}

func TestAnnounceHandler_Usage(t *testing.T) {
	b, _, _ := newTestBot(t)
	session := &MockDiscordSession{Permissions: discordgo.PermissionManageServer}

	b.newMessageHandler(session, userMessage("$announce"), testBotUserID)
	assert.Contains(t, session.GetLastMessage().Content, "Usage: $announce")
}

func TestConfirmHandler_NothingPending(t *testing.T) {
	b, _, _ := newTestBot(t)
	session := &MockDiscordSession{}

	b.newMessageHandler(session, userMessage("$confirm"), testBotUserID)
	assert.Equal(t, "Nothing awaiting confirmation", session.GetLastMessage().Content)

	b.newMessageHandler(session, userMessage("$cancel"), testBotUserID)
	assert.Equal(t, "Nothing awaiting cancellation", session.GetLastMessage().Content)
}

func TestRequireOperator_PermissionLookupFailure(t *testing.T) {
	b, _, _ := newTestBot(t)
	session := &MockDiscordSession{PermissionsError: fmt.Errorf("api unavailable")}

	b.newMessageHandler(session, userMessage("$create \"A\" \"B\" 1750000000"), testBotUserID)
	assert.Contains(t, session.GetLastMessage().Content, "error occured checking permissions")
}

func TestErrorReply_Mapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"duplicate pick", fmt.Errorf("%w: detail", shared.ErrDuplicatePick), "already has a pick"},
		{"contest closed", fmt.Errorf("%w: detail", shared.ErrContestClosed), "picks are locked"},
		{"already completed", fmt.Errorf("%w: detail", shared.ErrAlreadyCompleted), "already has a result"},
		{"not found", fmt.Errorf("%w: detail", shared.ErrNotFound), "No matching contest"},
		{"invalid input", fmt.Errorf("%w: id prefix is too short", shared.ErrInvalidInput), "id prefix is too short"},
		{"unexpected", fmt.Errorf("connection reset"), "An unexpected error occured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, errorReply(tt.err, "alice"), tt.expected)
		})
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"plain", "$pick abc123 Red", []string{"$pick", "abc123", "Red"}},
		{"quoted team", "$create \"Faze Clan\" \"Natus Vincere\" 1750000000", []string{"$create", "Faze Clan", "Natus Vincere", "1750000000"}},
		{"smart quotes", "$pick abc123 “Team Spirit”", []string{"$pick", "abc123", "Team Spirit"}},
		{"extra spaces", "$pick   abc123   Red", []string{"$pick", "abc123", "Red"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitArgs(tt.input))
		})
	}
}

func TestParseStartTime(t *testing.T) {
	unix, err := parseStartTime("1750000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1750000000), unix.Unix())

	rfc, err := parseStartTime("2025-06-01T15:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 1, 15, 0, 0, 0, time.UTC), rfc)

	_, err = parseStartTime("tomorrow")
	assert.Error(t, err)
}
