/* picks.go
 * Contains the methods for interacting with the picks collection. A pick is immutable once
 * recorded; the unique index created in EnsureIndexes is the single mechanism that detects
 * duplicates, there is no check-then-insert read anywhere in this file
 * Authors: Zachary Bower
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"pickem-bot/api/shared"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// RecordPick records one user's prediction for a contest. The contest must still be open
// (strictly before its scheduled start, no winner set) and the predicted label must be one
// of the contest's two participants.
//
// Concurrency: duplicate detection rides entirely on the unique (communityid, userid,
// contestid) index, so of N concurrent calls with the same key exactly one insert lands and
// the rest surface shared.ErrDuplicatePick. Contest openness is clock-derived and monotone,
// but a concurrent SetResult or reschedule can close the contest between our openness check
// and the insert; the post-insert re-read compensates by deleting the fresh pick so a closed
// contest never keeps it.
// Postconditions: Returns the stored Pick, or shared.ErrNotFound / shared.ErrContestClosed /
// shared.ErrInvalidInput / shared.ErrDuplicatePick, or a wrapped storage error
func (s *Store) RecordPick(ctx context.Context, user shared.User, contestID string, predicted string) (Pick, error) {
	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return Pick{}, err
	}
	if contest.Status(s.Clock.Now()) != StatusScheduled {
		return Pick{}, fmt.Errorf("%w: %s vs %s has already started", shared.ErrContestClosed, contest.ParticipantA, contest.ParticipantB)
	}
	if !contest.HasParticipant(predicted) {
		return Pick{}, fmt.Errorf("%w: %q is not a participant of this contest (%s vs %s)", shared.ErrInvalidInput, predicted, contest.ParticipantA, contest.ParticipantB)
	}

	pick := Pick{
		CommunityID: contest.CommunityID,
		UserID:      user.UserID,
		Username:    user.Username,
		ContestID:   contest.ID,
		Predicted:   predicted,
		CreatedAt:   s.Clock.Now().UTC(),
	}

	if _, err := s.Collections.Picks.InsertOne(ctx, pick); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Pick{}, fmt.Errorf("%w: a pick for this contest already exists", shared.ErrDuplicatePick)
		}
		return Pick{}, fmt.Errorf("failed to insert pick: %w", err)
	}

	// Re-check the contest now that the pick is durable. If a result landed or a
	// reschedule moved the start into the past while we were inserting, the pick must
	// not stand.
	contest, err = s.GetContest(ctx, contestID)
	if err == nil && contest.Status(s.Clock.Now()) == StatusScheduled {
		return pick, nil
	}

	filter := bson.M{"communityid": pick.CommunityID, "userid": pick.UserID, "contestid": pick.ContestID}
	if _, delErr := s.Collections.Picks.DeleteOne(ctx, filter); delErr != nil {
		// The pick survives but the contest is closed; stats only count completed
		// contests by their stored winner, so the stale row cannot score.
		log.Printf("failed to roll back pick for closed contest %s: %v", contestID, delErr)
	}
	if err != nil {
		return Pick{}, err
	}
	return Pick{}, fmt.Errorf("%w: contest closed while recording the pick", shared.ErrContestClosed)
}

// GetPick fetches one user's pick for a contest.
// It returns the Pick, shared.ErrNotFound if none exists, or a wrapped storage error.
func (s *Store) GetPick(ctx context.Context, communityID, userID, contestID string) (Pick, error) {
	filter := bson.M{"communityid": communityID, "userid": userID, "contestid": contestID}

	var pick Pick
	err := s.Collections.Picks.FindOne(ctx, filter).Decode(&pick)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Pick{}, fmt.Errorf("%w: no pick recorded for contest %s", shared.ErrNotFound, contestID)
		}
		return Pick{}, fmt.Errorf("error fetching pick from db: %w", err)
	}
	return pick, nil
}

// ListUserPicks returns every pick a user has recorded in a community, ordered by creation
// time ascending. Callers filter by contest state; the store does not join here.
func (s *Store) ListUserPicks(ctx context.Context, communityID, userID string) ([]Pick, error) {
	filter := bson.M{"communityid": communityID, "userid": userID}
	cursor, err := s.Collections.Picks.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error fetching picks from db: %w", err)
	}

	var picks []Pick
	if err := cursor.All(ctx, &picks); err != nil {
		return nil, fmt.Errorf("error unpacking cursor into slice of picks: %w", err)
	}
	return picks, nil
}

// ListCommunityPicks returns every pick recorded in a community. Used by leaderboard
// aggregation, which joins these against ListContests.
func (s *Store) ListCommunityPicks(ctx context.Context, communityID string) ([]Pick, error) {
	cursor, err := s.Collections.Picks.Find(ctx, bson.M{"communityid": communityID})
	if err != nil {
		return nil, fmt.Errorf("error fetching picks from db: %w", err)
	}

	var picks []Pick
	if err := cursor.All(ctx, &picks); err != nil {
		return nil, fmt.Errorf("error unpacking cursor into slice of picks: %w", err)
	}
	return picks, nil
}

// ListPicksForContest returns every pick referencing a contest, used for result-announcement
// vote tallies and per-contest scoring.
func (s *Store) ListPicksForContest(ctx context.Context, contestID string) ([]Pick, error) {
	cursor, err := s.Collections.Picks.Find(ctx, bson.M{"contestid": contestID})
	if err != nil {
		return nil, fmt.Errorf("error fetching picks from db: %w", err)
	}

	var picks []Pick
	if err := cursor.All(ctx, &picks); err != nil {
		return nil, fmt.Errorf("error unpacking cursor into slice of picks: %w", err)
	}
	return picks, nil
}

// CountPicksForContest counts picks referencing a contest without fetching them
func (s *Store) CountPicksForContest(ctx context.Context, contestID string) (int64, error) {
	n, err := s.Collections.Picks.CountDocuments(ctx, bson.M{"contestid": contestID})
	if err != nil {
		return 0, fmt.Errorf("error counting picks: %w", err)
	}
	return n, nil
}
