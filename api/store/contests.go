/* contests.go
 * Contains the methods for interacting with the contests collection. A contest's lifecycle
 * state is never stored; it is derived from the scheduled start time and the winner field,
 * and the winner field is set-once (see SetResult)
 * Authors: Zachary Bower
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"pickem-bot/api/shared"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// clockSkewTolerance is how far in the past a new contest's start time may sit before
// creation is rejected. Covers operators typing a start time that just elapsed.
const clockSkewTolerance = 2 * time.Minute

// filterNoWinner matches a contest only while its winner is unset. Using this as the
// update filter is what makes winner a set-once field: once any write lands a winner,
// no later conditional update can match the document again.
func filterNoWinner(contestID string) bson.M {
	return bson.M{"_id": contestID, "winner": bson.M{"$exists": false}}
}

// CreateContest validates and inserts a new contest in the scheduled state.
// Preconditions: Receives the community id, two participant labels, the scheduled start time and free-text category/league labels
// Postconditions: Returns the stored Contest, shared.ErrInvalidInput for bad arguments, or a wrapped storage error
func (s *Store) CreateContest(ctx context.Context, communityID, participantA, participantB string, scheduledStart time.Time, category, leagueLabel string) (Contest, error) {
	participantA = strings.TrimSpace(participantA)
	participantB = strings.TrimSpace(participantB)

	if communityID == "" {
		return Contest{}, fmt.Errorf("%w: community id cannot be empty", shared.ErrInvalidInput)
	}
	if participantA == "" || participantB == "" {
		return Contest{}, fmt.Errorf("%w: participant labels cannot be empty", shared.ErrInvalidInput)
	}
	if strings.EqualFold(participantA, participantB) {
		return Contest{}, fmt.Errorf("%w: participants must be two different labels", shared.ErrInvalidInput)
	}
	if scheduledStart.Before(s.Clock.Now().Add(-clockSkewTolerance)) {
		return Contest{}, fmt.Errorf("%w: scheduled start %s is in the past", shared.ErrInvalidInput, scheduledStart.UTC().Format(time.RFC3339))
	}

	contest := Contest{
		ID:             uuid.NewString(),
		CommunityID:    communityID,
		ParticipantA:   participantA,
		ParticipantB:   participantB,
		ScheduledStart: scheduledStart.UTC(),
		Category:       category,
		LeagueLabel:    leagueLabel,
		CreatedAt:      s.Clock.Now().UTC(),
	}

	if _, err := s.Collections.Contests.InsertOne(ctx, contest); err != nil {
		return Contest{}, fmt.Errorf("failed to insert contest: %w", err)
	}
	return contest, nil
}

// GetContest fetches one contest by id.
// It returns the Contest, shared.ErrNotFound if no such contest exists, or a wrapped storage error.
func (s *Store) GetContest(ctx context.Context, contestID string) (Contest, error) {
	var contest Contest
	err := s.Collections.Contests.FindOne(ctx, bson.M{"_id": contestID}).Decode(&contest)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Contest{}, fmt.Errorf("%w: contest %s", shared.ErrNotFound, contestID)
		}
		return Contest{}, fmt.Errorf("error fetching contest from db: %w", err)
	}
	return contest, nil
}

// FindContestByIDPrefix resolves a contest from a unique id prefix. Full uuids are painful
// to type in a chat message, so commands accept the first few characters instead.
// It returns shared.ErrNotFound when nothing matches and shared.ErrInvalidInput when the
// prefix is too short or matches more than one contest.
func (s *Store) FindContestByIDPrefix(ctx context.Context, communityID, prefix string) (Contest, error) {
	if len(prefix) < 4 {
		return Contest{}, fmt.Errorf("%w: contest id prefix %q is too short, need at least 4 characters", shared.ErrInvalidInput, prefix)
	}

	filter := bson.M{
		"communityid": communityID,
		"_id":         bson.M{"$regex": "^" + regexQuote(prefix)},
	}
	cursor, err := s.Collections.Contests.Find(ctx, filter, options.Find().SetLimit(2))
	if err != nil {
		return Contest{}, fmt.Errorf("error fetching contests from db: %w", err)
	}

	var matches []Contest
	if err := cursor.All(ctx, &matches); err != nil {
		return Contest{}, fmt.Errorf("error unpacking cursor into slice of contests: %w", err)
	}

	switch len(matches) {
	case 0:
		return Contest{}, fmt.Errorf("%w: no contest matching %q", shared.ErrNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return Contest{}, fmt.Errorf("%w: contest id %q is ambiguous, use more characters", shared.ErrInvalidInput, prefix)
	}
}

// ListUpcoming returns the contests for a community whose start lies within the given
// duration from now, ordered by scheduled start ascending. Recomputed per call.
func (s *Store) ListUpcoming(ctx context.Context, communityID string, within time.Duration) ([]Contest, error) {
	now := s.Clock.Now().UTC()
	filter := bson.M{
		"communityid":    communityID,
		"winner":         bson.M{"$exists": false},
		"scheduledstart": bson.M{"$gte": now, "$lte": now.Add(within)},
	}
	opts := options.Find().SetSort(bson.D{{Key: "scheduledstart", Value: 1}})

	cursor, err := s.Collections.Contests.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error fetching upcoming contests from db: %w", err)
	}

	var contests []Contest
	if err := cursor.All(ctx, &contests); err != nil {
		return nil, fmt.Errorf("error unpacking cursor into slice of contests: %w", err)
	}
	return contests, nil
}

// ListContests returns every contest belonging to a community. Used by the stats
// aggregation to join picks against their contests.
func (s *Store) ListContests(ctx context.Context, communityID string) ([]Contest, error) {
	cursor, err := s.Collections.Contests.Find(ctx, bson.M{"communityid": communityID})
	if err != nil {
		return nil, fmt.Errorf("error fetching contests from db: %w", err)
	}

	var contests []Contest
	if err := cursor.All(ctx, &contests); err != nil {
		return nil, fmt.Errorf("error unpacking cursor into slice of contests: %w", err)
	}
	return contests, nil
}

// ListStartedBetween returns contests without a result whose scheduled start falls in
// (from, to]. The kick-off scanner uses this to announce contests that just locked;
// it is a pure read, the scanner never writes.
func (s *Store) ListStartedBetween(ctx context.Context, from, to time.Time) ([]Contest, error) {
	filter := bson.M{
		"winner":         bson.M{"$exists": false},
		"scheduledstart": bson.M{"$gt": from.UTC(), "$lte": to.UTC()},
	}
	cursor, err := s.Collections.Contests.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "scheduledstart", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error fetching started contests from db: %w", err)
	}

	var contests []Contest
	if err := cursor.All(ctx, &contests); err != nil {
		return nil, fmt.Errorf("error unpacking cursor into slice of contests: %w", err)
	}
	return contests, nil
}

// UpdateContest applies an update to a contest that has no result yet.
// Winner changes are rejected by construction (ContestUpdate has no winner field);
// participant relabels are rejected once any pick references the contest, because a
// rename would silently re-point immutable predictions.
// It returns the updated Contest, or shared.ErrNotFound / shared.ErrInvalidInput /
// shared.ErrAlreadyCompleted as appropriate.
func (s *Store) UpdateContest(ctx context.Context, contestID string, update ContestUpdate) (Contest, error) {
	if update.IsZero() {
		return Contest{}, fmt.Errorf("%w: nothing to update", shared.ErrInvalidInput)
	}

	set := bson.M{}
	if update.ParticipantA != nil || update.ParticipantB != nil {
		n, err := s.CountPicksForContest(ctx, contestID)
		if err != nil {
			return Contest{}, err
		}
		if n > 0 {
			return Contest{}, fmt.Errorf("%w: participants cannot be renamed once picks exist (%d picks recorded)", shared.ErrInvalidInput, n)
		}
		if update.ParticipantA != nil {
			label := strings.TrimSpace(*update.ParticipantA)
			if label == "" {
				return Contest{}, fmt.Errorf("%w: participant labels cannot be empty", shared.ErrInvalidInput)
			}
			set["participanta"] = label
		}
		if update.ParticipantB != nil {
			label := strings.TrimSpace(*update.ParticipantB)
			if label == "" {
				return Contest{}, fmt.Errorf("%w: participant labels cannot be empty", shared.ErrInvalidInput)
			}
			set["participantb"] = label
		}
	}
	if update.ScheduledStart != nil {
		if update.ScheduledStart.Before(s.Clock.Now().Add(-clockSkewTolerance)) {
			return Contest{}, fmt.Errorf("%w: rescheduled start %s is in the past", shared.ErrInvalidInput, update.ScheduledStart.UTC().Format(time.RFC3339))
		}
		set["scheduledstart"] = update.ScheduledStart.UTC()
	}
	if update.Category != nil {
		set["category"] = *update.Category
	}
	if update.LeagueLabel != nil {
		set["leaguelabel"] = *update.LeagueLabel
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var contest Contest
	err := s.Collections.Contests.FindOneAndUpdate(ctx, filterNoWinner(contestID), bson.M{"$set": set}, opts).Decode(&contest)
	if err == nil {
		return contest, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Contest{}, fmt.Errorf("contest update failed: %w", err)
	}

	// The conditional update matched nothing: either the contest is missing or it
	// already has a winner. Re-read to tell the caller which.
	existing, err := s.GetContest(ctx, contestID)
	if err != nil {
		return Contest{}, err
	}
	return Contest{}, fmt.Errorf("%w: contest %s (winner %s)", shared.ErrAlreadyCompleted, existing.ID, *existing.Winner)
}

// SetResult records the winner of a contest. The winner field is set-once: the write is a
// conditional update that only matches while winner is unset, so concurrent SetResult calls
// on the same contest yield exactly one effective transition. Re-submitting the same winner
// afterwards is treated as an at-least-once redelivery and returns the existing state.
// Preconditions: Receives the contest id and the exact label of one of the contest's participants
// Postconditions: Returns the completed Contest, or shared.ErrNotFound / shared.ErrInvalidInput / shared.ErrAlreadyCompleted
func (s *Store) SetResult(ctx context.Context, contestID string, winnerLabel string) (Contest, error) {
	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return Contest{}, err
	}
	if !contest.HasParticipant(winnerLabel) {
		return Contest{}, fmt.Errorf("%w: %q is not a participant of this contest (%s vs %s)", shared.ErrInvalidInput, winnerLabel, contest.ParticipantA, contest.ParticipantB)
	}

	update := bson.M{"$set": bson.M{
		"winner":      winnerLabel,
		"resultsetat": s.Clock.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var completed Contest
	err = s.Collections.Contests.FindOneAndUpdate(ctx, filterNoWinner(contestID), update, opts).Decode(&completed)
	if err == nil {
		return completed, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return Contest{}, fmt.Errorf("contest result update failed: %w", err)
	}

	// Lost the race or the result was already set earlier. Same winner is benign.
	existing, err := s.GetContest(ctx, contestID)
	if err != nil {
		return Contest{}, err
	}
	if existing.Winner != nil && *existing.Winner == winnerLabel {
		return existing, nil
	}
	return Contest{}, fmt.Errorf("%w: winner is already %s", shared.ErrAlreadyCompleted, *existing.Winner)
}

// regexQuote escapes regex metacharacters in an id prefix. Contest ids are uuids, so
// only the hyphen case ever appears in practice, but user input reaches this path.
func regexQuote(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('\\')
		b.WriteRune(r)
	}
	return b.String()
}
