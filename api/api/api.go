/* api.go
 * This file contains the public methods for interacting with this package. For consistent
 * results, functions should only be called from this file, not the store or logic sub
 * packages directly
 * Authors: Zachary Bower
 */

package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pickem-bot/api/fanout"
	"pickem-bot/api/logic"
	"pickem-bot/api/shared"
	"pickem-bot/api/store"

	"github.com/jonboulle/clockwork"
)

// API provides methods for interacting with the pick'em data layer. It composes the
// contest registry plus pick ledger (store), the stats aggregation (logic) and the
// announcement fan-out. All collaborators are passed in; there is no ambient state.
type API struct {
	Store  store.Interface
	Fanout *fanout.Fanout
	Clock  clockwork.Clock
}

// NewAPI creates a new API instance with the provided collaborators
func NewAPI(s store.Interface, f *fanout.Fanout, clock clockwork.Clock) (*API, error) {
	if s == nil || f == nil || clock == nil {
		return nil, fmt.Errorf("store, fanout, and clock are required")
	}
	return &API{Store: s, Fanout: f, Clock: clock}, nil
}

// CreateContest validates and stores a new contest, then announces it to the owning
// community. The announcement is best effort; a delivery failure never fails the create.
func (a *API) CreateContest(ctx context.Context, communityID, participantA, participantB string, scheduledStart time.Time, category, leagueLabel string) (ContestView, error) {
	contest, err := a.Store.CreateContest(ctx, communityID, participantA, participantB, scheduledStart, category, leagueLabel)
	if err != nil {
		return ContestView{}, err
	}

	a.Fanout.Broadcast(ctx, fanout.Event{
		Kind:      fanout.EventContestCreated,
		ContestID: contest.ID,
		Message: fmt.Sprintf("New contest: **%s** vs **%s** starting <t:%d> — pick with `$pick %s <team>`",
			contest.ParticipantA, contest.ParticipantB, contest.ScheduledStart.Unix(), shortRef(contest.ID)),
	}, []string{contest.CommunityID})

	return contestView(contest, a.Clock.Now()), nil
}

// ResolveContest fetches a contest by full id or unique id prefix, scoped to a community
func (a *API) ResolveContest(ctx context.Context, communityID, ref string) (ContestView, error) {
	contest, err := a.resolveContest(ctx, communityID, ref)
	if err != nil {
		return ContestView{}, err
	}
	return contestView(contest, a.Clock.Now()), nil
}

func (a *API) resolveContest(ctx context.Context, communityID, ref string) (store.Contest, error) {
	contest, err := a.Store.GetContest(ctx, ref)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return store.Contest{}, err
		}
		return a.Store.FindContestByIDPrefix(ctx, communityID, ref)
	}
	if contest.CommunityID != communityID {
		return store.Contest{}, fmt.Errorf("%w: contest %s", shared.ErrNotFound, ref)
	}
	return contest, nil
}

// ListUpcoming returns the community's contests starting within the given duration,
// soonest first.
func (a *API) ListUpcoming(ctx context.Context, communityID string, within time.Duration) ([]ContestView, error) {
	contests, err := a.Store.ListUpcoming(ctx, communityID, within)
	if err != nil {
		return nil, err
	}

	now := a.Clock.Now()
	views := make([]ContestView, 0, len(contests))
	for _, c := range contests {
		views = append(views, contestView(c, now))
	}
	return views, nil
}

// UpdateContest applies an authorized edit to a contest that has no result yet. A schedule
// change re-triggers notification to the community; there are no silent reschedules.
func (a *API) UpdateContest(ctx context.Context, communityID, ref string, update ContestUpdate) (ContestView, error) {
	contest, err := a.resolveContest(ctx, communityID, ref)
	if err != nil {
		return ContestView{}, err
	}

	rescheduled := update.ScheduledStart != nil && !update.ScheduledStart.Equal(contest.ScheduledStart)

	updated, err := a.Store.UpdateContest(ctx, contest.ID, store.ContestUpdate{
		ParticipantA:   update.ParticipantA,
		ParticipantB:   update.ParticipantB,
		ScheduledStart: update.ScheduledStart,
		Category:       update.Category,
		LeagueLabel:    update.LeagueLabel,
	})
	if err != nil {
		return ContestView{}, err
	}

	if rescheduled {
		a.Fanout.Broadcast(ctx, fanout.Event{
			Kind:      fanout.EventContestRescheduled,
			ContestID: updated.ID,
			Message: fmt.Sprintf("Rescheduled: **%s** vs **%s** now starts <t:%d>",
				updated.ParticipantA, updated.ParticipantB, updated.ScheduledStart.Unix()),
		}, []string{updated.CommunityID})
	}

	return contestView(updated, a.Clock.Now()), nil
}

// SetResult records the winner of a contest and announces the result with the pick tally.
// The winner argument is matched fuzzily against the contest's participants. Re-submitting
// the same winner succeeds idempotently; a different winner fails with AlreadyCompleted.
func (a *API) SetResult(ctx context.Context, communityID, ref string, winnerInput string) (ContestView, error) {
	contest, err := a.resolveContest(ctx, communityID, ref)
	if err != nil {
		return ContestView{}, err
	}

	winner, err := logic.MatchParticipant(winnerInput, contest)
	if err != nil {
		return ContestView{}, err
	}

	completed, err := a.Store.SetResult(ctx, contest.ID, winner)
	if err != nil {
		return ContestView{}, err
	}

	tally, _ := a.TallyForContest(ctx, completed.ID)
	a.Fanout.Broadcast(ctx, fanout.Event{
		Kind:      fanout.EventResultSet,
		ContestID: completed.ID,
		Message: fmt.Sprintf("Result: **%s** beat %s (picks: %s %d, %s %d)",
			winner, otherParticipant(completed, winner),
			completed.ParticipantA, tally.CountA, completed.ParticipantB, tally.CountB),
	}, []string{completed.CommunityID})

	return contestView(completed, a.Clock.Now()), nil
}

// RecordPick records one user's prediction for a contest in their community. All the
// race-sensitive checking lives in the store; this layer only resolves references and
// participant labels.
func (a *API) RecordPick(ctx context.Context, user shared.User, communityID, ref string, participantInput string) (PickView, error) {
	contest, err := a.resolveContest(ctx, communityID, ref)
	if err != nil {
		return PickView{}, err
	}

	predicted, err := logic.MatchParticipant(participantInput, contest)
	if err != nil {
		return PickView{}, err
	}

	pick, err := a.Store.RecordPick(ctx, user, contest.ID, predicted)
	if err != nil {
		return PickView{}, err
	}
	return pickView(pick), nil
}

// GetPick fetches one user's pick for a contest
func (a *API) GetPick(ctx context.Context, communityID, userID, ref string) (PickView, error) {
	contest, err := a.resolveContest(ctx, communityID, ref)
	if err != nil {
		return PickView{}, err
	}

	pick, err := a.Store.GetPick(ctx, communityID, userID, contest.ID)
	if err != nil {
		return PickView{}, err
	}
	return pickView(pick), nil
}

// ListActivePicks returns a user's picks whose contest has not completed, soonest
// contest first.
func (a *API) ListActivePicks(ctx context.Context, communityID, userID string) ([]PickView, []ContestView, error) {
	picks, err := a.Store.ListUserPicks(ctx, communityID, userID)
	if err != nil {
		return nil, nil, err
	}
	contests, err := a.Store.ListContests(ctx, communityID)
	if err != nil {
		return nil, nil, err
	}

	index := logic.ContestIndex(contests)
	active := logic.FilterActivePicks(picks, index)

	now := a.Clock.Now()
	pickViews := make([]PickView, 0, len(active))
	contestViews := make([]ContestView, 0, len(active))
	for _, p := range active {
		pickViews = append(pickViews, pickView(p))
		contestViews = append(contestViews, contestView(index[p.ContestID], now))
	}
	return pickViews, contestViews, nil
}

// UserSummary computes a user's accuracy bookkeeping over their whole pick history
func (a *API) UserSummary(ctx context.Context, communityID, userID string) (UserSummary, error) {
	picks, err := a.Store.ListUserPicks(ctx, communityID, userID)
	if err != nil {
		return UserSummary{}, err
	}
	contests, err := a.Store.ListContests(ctx, communityID)
	if err != nil {
		return UserSummary{}, err
	}

	summary := logic.ComputeUserSummary(picks, logic.ContestIndex(contests))
	return UserSummary{
		TotalPicks:     summary.TotalPicks,
		CompletedPicks: summary.CompletedPicks,
		CorrectPicks:   summary.CorrectPicks,
		ActivePicks:    summary.ActivePicks,
		Accuracy:       summary.Accuracy,
	}, nil
}

// Leaderboard ranks the community's users over the requested window. An empty slice
// means no data, not an error.
func (a *API) Leaderboard(ctx context.Context, communityID string, window shared.Window) ([]LeaderboardRow, error) {
	picks, err := a.Store.ListCommunityPicks(ctx, communityID)
	if err != nil {
		return nil, err
	}
	contests, err := a.Store.ListContests(ctx, communityID)
	if err != nil {
		return nil, err
	}

	entries := logic.BuildLeaderboard(picks, logic.ContestIndex(contests), window, a.Clock.Now())
	rows := make([]LeaderboardRow, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, LeaderboardRow{
			Rank:           i + 1,
			UserID:         e.UserID,
			Username:       e.Username,
			CorrectCount:   e.CorrectCount,
			CompletedCount: e.CompletedCount,
			Accuracy:       e.Accuracy,
		})
	}
	return rows, nil
}

// TallyForContest counts picks per participant for one contest
func (a *API) TallyForContest(ctx context.Context, contestID string) (Tally, error) {
	contest, err := a.Store.GetContest(ctx, contestID)
	if err != nil {
		return Tally{}, err
	}
	picks, err := a.Store.ListPicksForContest(ctx, contestID)
	if err != nil {
		return Tally{}, err
	}

	var tally Tally
	for _, p := range picks {
		switch p.Predicted {
		case contest.ParticipantA:
			tally.CountA++
		case contest.ParticipantB:
			tally.CountB++
		}
	}
	return tally, nil
}

// RegisterAnnounceChannel binds a community's announcements to a channel
func (a *API) RegisterAnnounceChannel(ctx context.Context, communityID, channelID string) error {
	return a.Store.SetAnnounceChannel(ctx, communityID, channelID)
}

// AnnounceToAll fans an operator-authored message out to every registered community and
// returns the aggregate delivery counts. Call this only after the draft was confirmed.
func (a *API) AnnounceToAll(ctx context.Context, message string) (fanout.Result, error) {
	communities, err := a.Store.ListCommunityIDs(ctx)
	if err != nil {
		return fanout.Result{}, err
	}
	result := a.Fanout.Broadcast(ctx, fanout.Event{
		Kind:    fanout.EventOperatorMessage,
		Message: message,
	}, communities)
	return result, nil
}

// ScanStarts announces contests whose scheduled start fell inside (from, to]. The kick-off
// scanner calls this on a fixed interval with contiguous ranges so each start is announced
// at most once per process. Returns the number of contests announced.
func (a *API) ScanStarts(ctx context.Context, from, to time.Time) (int, error) {
	contests, err := a.Store.ListStartedBetween(ctx, from, to)
	if err != nil {
		return 0, err
	}

	for _, contest := range contests {
		a.Fanout.Broadcast(ctx, fanout.Event{
			Kind:      fanout.EventContestStarted,
			ContestID: contest.ID,
			Message: fmt.Sprintf("**%s** vs **%s** is underway — picks are locked",
				contest.ParticipantA, contest.ParticipantB),
		}, []string{contest.CommunityID})
	}
	return len(contests), nil
}

func otherParticipant(c store.Contest, label string) string {
	if label == c.ParticipantA {
		return c.ParticipantB
	}
	return c.ParticipantA
}
