/* handlers.go
 * Contains testable handler methods that accept the DiscordSession interface. Each $command
 * maps to one handler; newMessageHandler routes between them
 * Authors: Zachary Bower
 */

package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"pickem-bot/api/api"
	"pickem-bot/api/fanout"
	"pickem-bot/api/shared"

	"github.com/bwmarrin/discordgo"
	"github.com/go-andiamo/splitter"
)

// upcomingWindow is how far ahead $upcoming looks
const upcomingWindow = 7 * 24 * time.Hour

// newMessageHandler routes messages to the appropriate handler.
// botUserID is the bot's user ID to prevent self-responses.
func (b *Bot) newMessageHandler(session DiscordSession, message *discordgo.MessageCreate, botUserID string) {
	// Prevent bot from responding to its own messages
	if message.Author.ID == botUserID {
		return
	}

	switch {
	case startsWith(message.Content, "$help"):
		b.helpMessageHandler(session, message)

	case startsWith(message.Content, "$create"):
		b.createContestHandler(session, message)

	case startsWith(message.Content, "$upcoming"):
		b.upcomingHandler(session, message)

	case startsWith(message.Content, "$pick"):
		b.pickHandler(session, message)

	case startsWith(message.Content, "$mypicks"):
		b.myPicksHandler(session, message)

	case startsWith(message.Content, "$stats"):
		b.statsHandler(session, message)

	case startsWith(message.Content, "$leaderboard"):
		b.leaderboardHandler(session, message)

	case startsWith(message.Content, "$result"):
		b.resultHandler(session, message)

	case startsWith(message.Content, "$reschedule"):
		b.rescheduleHandler(session, message)

	case startsWith(message.Content, "$announcehere"):
		b.announceHereHandler(session, message)

	case startsWith(message.Content, "$announce"):
		b.announceHandler(session, message)

	case startsWith(message.Content, "$confirm"):
		b.confirmHandler(session, message)

	case startsWith(message.Content, "$cancel"):
		b.cancelHandler(session, message)
	}
}

// helpMessageHandler handles the $help command
func (b *Bot) helpMessageHandler(session DiscordSession, message *discordgo.MessageCreate) {
	var res strings.Builder
	res.WriteString("Pickem Bot\n")
	res.WriteString("`$upcoming`: shows contests starting in the next week with their ids\n")
	res.WriteString("`$pick <id> <team>`: records your prediction for a contest. One pick per contest, locked at start time\n")
	res.WriteString("`$mypicks`: shows your picks for contests that have not finished yet\n")
	res.WriteString("`$stats`: shows your accuracy across all completed contests\n")
	res.WriteString("`$leaderboard [daily|weekly|all]`: ranks the server's pickers. The all-time board needs at least 10 completed picks to qualify\n")
	res.WriteString("Team names are fuzzy matched, so `navi` works for \"Natus Vincere\". Multi-word names need quotes\n")
	res.WriteString("Admin commands: `$create \"A\" \"B\" <start-time> [category] [league]`, `$result <id> <winner>`, `$reschedule <id> <start-time>`, `$announcehere`, `$announce <message>` (then `$confirm` or `$cancel`)\n")
	session.ChannelMessageSend(message.ChannelID, res.String())
}

// createContestHandler handles the $create command
func (b *Bot) createContestHandler(session DiscordSession, message *discordgo.MessageCreate) {
	if !b.requireOperator(session, message) {
		return
	}

	args := splitArgs(message.Content)
	if len(args) < 4 {
		session.ChannelMessageSend(message.ChannelID, "Usage: $create \"Team A\" \"Team B\" <start-time> [category] [league]")
		return
	}

	start, err := parseStartTime(args[3])
	if err != nil {
		session.ChannelMessageSend(message.ChannelID, "Could not read the start time. Use a unix timestamp or RFC3339, e.g. 2025-06-01T15:00:00Z")
		return
	}

	var category, league string
	if len(args) > 4 {
		category = args[4]
	}
	if len(args) > 5 {
		league = args[5]
	}

	contest, err := b.APIPtr.CreateContest(context.Background(), message.GuildID, args[1], args[2], start, category, league)
	if err != nil {
		session.ChannelMessageSend(message.ChannelID, errorReply(err, message.Author.Username))
		return
	}
	session.ChannelMessageSend(message.ChannelID, fmt.Sprintf(
		"Created contest `%s`: **%s** vs **%s** starting <t:%d>",
		contest.ShortID, contest.ParticipantA, contest.ParticipantB, contest.ScheduledStart.Unix()))
}

// upcomingHandler handles the $upcoming command
func (b *Bot) upcomingHandler(session DiscordSession, message *discordgo.MessageCreate) {
	contests, err := b.APIPtr.ListUpcoming(context.Background(), message.GuildID, upcomingWindow)
	if err != nil {
		log.Println(err)
		session.ChannelMessageSend(message.ChannelID, "An error occured getting upcoming contests")
		return
	}

	if len(contests) == 0 {
		session.ChannelMessageSend(message.ChannelID, "No upcoming contests")
		return
	}

	var res strings.Builder
	res.WriteString("Upcoming contests:\n")
	for _, c := range contests {
		res.WriteString(fmt.Sprintf("- `%s` %s VS %s: <t:%d>", c.ShortID, c.ParticipantA, c.ParticipantB, c.ScheduledStart.Unix()))
		if c.Category != "" {
			res.WriteString(fmt.Sprintf(" (%s)", c.Category))
		}
		res.WriteString("\n")
	}
	session.ChannelMessageSend(message.ChannelID, res.String())
}

// pickHandler handles the $pick command
func (b *Bot) pickHandler(session DiscordSession, message *discordgo.MessageCreate) {
	user := shared.User{UserID: message.Author.ID, Username: message.Author.Username}

	args := splitArgs(message.Content)
	if len(args) < 3 {
		session.ChannelMessageSend(message.ChannelID, "Usage: $pick <contest-id> <team>")
		return
	}

	pick, err := b.APIPtr.RecordPick(context.Background(), user, message.GuildID, args[1], strings.Join(args[2:], " "))
	if err != nil {
		session.ChannelMessageSend(message.ChannelID, errorReply(err, user.Username))
		return
	}
	session.ChannelMessageSend(message.ChannelID, fmt.Sprintf("%s picked **%s**", user.Username, pick.Predicted))
}

// myPicksHandler handles the $mypicks command
func (b *Bot) myPicksHandler(session DiscordSession, message *discordgo.MessageCreate) {
	picks, contests, err := b.APIPtr.ListActivePicks(context.Background(), message.GuildID, message.Author.ID)
	if err != nil {
		log.Println(err)
		session.ChannelMessageSend(message.ChannelID, fmt.Sprintf("An error occured fetching %s's picks", message.Author.Username))
		return
	}

	if len(picks) == 0 {
		session.ChannelMessageSend(message.ChannelID, fmt.Sprintf("%s has no picks on open contests. Use $pick to get on the board", message.Author.Username))
		return
	}

	var res strings.Builder
	res.WriteString(fmt.Sprintf("%s's active picks:\n", message.Author.Username))
	for i, pick := range picks {
		c := contests[i]
		res.WriteString(fmt.Sprintf("- %s VS %s (<t:%d>): picked **%s**\n", c.ParticipantA, c.ParticipantB, c.ScheduledStart.Unix(), pick.Predicted))
	}
	session.ChannelMessageSend(message.ChannelID, res.String())
}

// statsHandler handles the $stats command
func (b *Bot) statsHandler(session DiscordSession, message *discordgo.MessageCreate) {
	summary, err := b.APIPtr.UserSummary(context.Background(), message.GuildID, message.Author.ID)
	if err != nil {
		log.Println(err)
		session.ChannelMessageSend(message.ChannelID, fmt.Sprintf("An error occured fetching %s's stats", message.Author.Username))
		return
	}

	session.ChannelMessageSend(message.ChannelID, fmt.Sprintf(
		"%s: %d picks, %d completed, %d correct (%.0f%% accuracy), %d still open",
		message.Author.Username, summary.TotalPicks, summary.CompletedPicks,
		summary.CorrectPicks, summary.Accuracy*100, summary.ActivePicks))
}

// leaderboardHandler handles the $leaderboard command
func (b *Bot) leaderboardHandler(session DiscordSession, message *discordgo.MessageCreate) {
	args := splitArgs(message.Content)
	windowArg := ""
	if len(args) > 1 {
		windowArg = args[1]
	}

	window, err := shared.ParseWindow(windowArg)
	if err != nil {
		session.ChannelMessageSend(message.ChannelID, "Unknown window. Use daily, weekly or all")
		return
	}

	rows, err := b.APIPtr.Leaderboard(context.Background(), message.GuildID, window)
	if err != nil {
		log.Println(err)
		session.ChannelMessageSend(message.ChannelID, "An error occured getting the leaderboard")
		return
	}

	if len(rows) == 0 {
		session.ChannelMessageSend(message.ChannelID, "No completed picks to rank yet")
		return
	}

	var res strings.Builder
	switch window {
	case shared.WindowAllTime:
		res.WriteString("All-time leaderboard (10+ completed picks):\n")
		for _, row := range rows {
			res.WriteString(fmt.Sprintf("%d. %s, %.1f%% (%d of %d)\n", row.Rank, row.Username, row.Accuracy*100, row.CorrectCount, row.CompletedCount))
		}
	default:
		res.WriteString(fmt.Sprintf("Leaderboard (%s):\n", window))
		for _, row := range rows {
			res.WriteString(fmt.Sprintf("%d. %s, %d correct of %d\n", row.Rank, row.Username, row.CorrectCount, row.CompletedCount))
		}
	}
	session.ChannelMessageSend(message.ChannelID, res.String())
}

// resultHandler handles the $result command
func (b *Bot) resultHandler(session DiscordSession, message *discordgo.MessageCreate) {
	if !b.requireOperator(session, message) {
		return
	}

	args := splitArgs(message.Content)
	if len(args) < 3 {
		session.ChannelMessageSend(message.ChannelID, "Usage: $result <contest-id> <winner>")
		return
	}

	contest, err := b.APIPtr.SetResult(context.Background(), message.GuildID, args[1], strings.Join(args[2:], " "))
	if err != nil {
		session.ChannelMessageSend(message.ChannelID, errorReply(err, message.Author.Username))
		return
	}
	session.ChannelMessageSend(message.ChannelID, fmt.Sprintf("Recorded **%s** as the winner of %s vs %s", contest.Winner, contest.ParticipantA, contest.ParticipantB))
}

// rescheduleHandler handles the $reschedule command
func (b *Bot) rescheduleHandler(session DiscordSession, message *discordgo.MessageCreate) {
	if !b.requireOperator(session, message) {
		return
	}

	args := splitArgs(message.Content)
	if len(args) < 3 {
		session.ChannelMessageSend(message.ChannelID, "Usage: $reschedule <contest-id> <start-time>")
		return
	}

	start, err := parseStartTime(args[2])
	if err != nil {
		session.ChannelMessageSend(message.ChannelID, "Could not read the start time. Use a unix timestamp or RFC3339, e.g. 2025-06-01T15:00:00Z")
		return
	}

	contest, err := b.APIPtr.UpdateContest(context.Background(), message.GuildID, args[1], api.ContestUpdate{ScheduledStart: &start})
	if err != nil {
		session.ChannelMessageSend(message.ChannelID, errorReply(err, message.Author.Username))
		return
	}
	session.ChannelMessageSend(message.ChannelID, fmt.Sprintf("%s vs %s now starts <t:%d>", contest.ParticipantA, contest.ParticipantB, contest.ScheduledStart.Unix()))
}

// announceHereHandler handles the $announcehere command, binding announcements to the
// channel the command was run in
func (b *Bot) announceHereHandler(session DiscordSession, message *discordgo.MessageCreate) {
	if !b.requireOperator(session, message) {
		return
	}

	if err := b.APIPtr.RegisterAnnounceChannel(context.Background(), message.GuildID, message.ChannelID); err != nil {
		log.Println(err)
		session.ChannelMessageSend(message.ChannelID, "An error occured registering this channel")
		return
	}
	session.ChannelMessageSend(message.ChannelID, "Contest announcements will be posted in this channel")
}

// announceHandler handles the $announce command. The message is held as a draft until the
// operator runs $confirm or $cancel; no action within the wait bound times the draft out.
func (b *Bot) announceHandler(session DiscordSession, message *discordgo.MessageCreate) {
	if !b.requireOperator(session, message) {
		return
	}

	text := strings.TrimSpace(strings.TrimPrefix(message.Content, "$announce"))
	if text == "" {
		session.ChannelMessageSend(message.ChannelID, "Usage: $announce <message>")
		return
	}

	if draft, ok := b.pendingDraft(message.Author.ID); ok && draft.State() == fanout.StateDraft {
		session.ChannelMessageSend(message.ChannelID, "You already have an announcement awaiting $confirm or $cancel")
		return
	}

	draft := fanout.NewConfirmation(text, b.Clock, announceConfirmWait)
	b.setDraft(message.Author.ID, draft)
	session.ChannelMessageSend(message.ChannelID, fmt.Sprintf(
		"About to announce to every registered server:\n> %s\nRun `$confirm` to send or `$cancel` to abandon (expires in %d seconds)",
		text, int(announceConfirmWait.Seconds())))

	go b.resolveDraft(session, message.ChannelID, message.Author.ID, draft)
}

// resolveDraft waits out one draft's confirmation window and acts on the outcome
func (b *Bot) resolveDraft(session DiscordSession, channelID, userID string, draft *fanout.Confirmation) {
	defer b.clearDraft(userID)

	switch draft.Await(context.Background()) {
	case fanout.StateConfirmed:
		result, err := b.APIPtr.AnnounceToAll(context.Background(), draft.Message)
		if err != nil {
			log.Println(err)
			session.ChannelMessageSend(channelID, "An error occured sending the announcement")
			return
		}
		draft.MarkSent()
		session.ChannelMessageSend(channelID, fmt.Sprintf("Announcement sent to %d server(s), %d failed", result.SuccessCount, result.FailureCount))
	case fanout.StateCancelled:
		session.ChannelMessageSend(channelID, "Announcement cancelled")
	case fanout.StateTimedOut:
		session.ChannelMessageSend(channelID, "Announcement expired without confirmation")
	}
}

// confirmHandler handles the $confirm command
func (b *Bot) confirmHandler(session DiscordSession, message *discordgo.MessageCreate) {
	draft, ok := b.pendingDraft(message.Author.ID)
	if !ok || !draft.Confirm() {
		session.ChannelMessageSend(message.ChannelID, "Nothing awaiting confirmation")
	}
}

// cancelHandler handles the $cancel command
func (b *Bot) cancelHandler(session DiscordSession, message *discordgo.MessageCreate) {
	draft, ok := b.pendingDraft(message.Author.ID)
	if !ok || !draft.Cancel() {
		session.ChannelMessageSend(message.ChannelID, "Nothing awaiting cancellation")
	}
}

// requireOperator checks the author can manage the server, replying with a refusal when
// they cannot. Returns true when the command may proceed.
func (b *Bot) requireOperator(session DiscordSession, message *discordgo.MessageCreate) bool {
	perms, err := session.UserChannelPermissions(message.Author.ID, message.ChannelID)
	if err != nil {
		log.Println(err)
		session.ChannelMessageSend(message.ChannelID, "An error occured checking permissions")
		return false
	}
	if perms&discordgo.PermissionManageServer == 0 {
		session.ChannelMessageSend(message.ChannelID, "This command needs the Manage Server permission")
		return false
	}
	return true
}

// errorReply maps domain errors to user-facing replies. Every rejected precondition gets
// its own message; only unrecognised errors fall back to the generic one.
func errorReply(err error, username string) string {
	switch {
	case errors.Is(err, shared.ErrDuplicatePick):
		return fmt.Sprintf("%s already has a pick for this contest. Predictions cannot be changed once made", username)
	case errors.Is(err, shared.ErrContestClosed):
		return "This contest has already started, picks are locked"
	case errors.Is(err, shared.ErrAlreadyCompleted):
		return "This contest already has a result"
	case errors.Is(err, shared.ErrNotFound):
		return "No matching contest found. Use $upcoming to list contest ids"
	case errors.Is(err, shared.ErrInvalidInput):
		return fmt.Sprintf("That did not work: %s", trimErrorDetail(err))
	default:
		log.Println(err)
		return "An unexpected error occured"
	}
}

// trimErrorDetail strips the sentinel prefix so users see only the detail text
func trimErrorDetail(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}

// splitArgs splits a command respecting double-quoted arguments. We use splitter here
// instead of strings.Fields so team names that contain spaces, e.g. "Faze Clan", are
// recognised as one argument not two.
func splitArgs(content string) []string {
	spaceSplitter, _ := splitter.NewSplitter(' ', splitter.DoubleQuotes, splitter.LeftRightDoubleDoubleQuotes)
	args, _ := spaceSplitter.Split(content)

	var cleaned []string
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		arg = strings.Trim(arg, "\"")
		arg = strings.TrimPrefix(arg, "“")
		arg = strings.TrimSuffix(arg, "”")
		cleaned = append(cleaned, arg)
	}
	return cleaned
}

// parseStartTime reads a start time as unix seconds or RFC3339
func parseStartTime(input string) (time.Time, error) {
	if epoch, err := strconv.ParseInt(input, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC(), nil
	}
	return time.Parse(time.RFC3339, input)
}

// startsWith is a helper to check if a message begins with a given command prefix
func startsWith(inputString string, prefix string) bool {
	return strings.HasPrefix(inputString, prefix)
}
