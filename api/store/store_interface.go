/* store_interface.go
 * Contains the Store interface for dependency injection and testing
 * Authors: Zachary Bower
 */

package store

import (
	"context"
	"time"

	"pickem-bot/api/shared"
)

// Interface defines the methods that Store implements.
// This allows for mocking in tests.
type Interface interface {
	EnsureIndexes(ctx context.Context) error

	// Contests
	CreateContest(ctx context.Context, communityID, participantA, participantB string, scheduledStart time.Time, category, leagueLabel string) (Contest, error)
	GetContest(ctx context.Context, contestID string) (Contest, error)
	FindContestByIDPrefix(ctx context.Context, communityID, prefix string) (Contest, error)
	ListUpcoming(ctx context.Context, communityID string, within time.Duration) ([]Contest, error)
	ListContests(ctx context.Context, communityID string) ([]Contest, error)
	ListStartedBetween(ctx context.Context, from, to time.Time) ([]Contest, error)
	UpdateContest(ctx context.Context, contestID string, update ContestUpdate) (Contest, error)
	SetResult(ctx context.Context, contestID string, winnerLabel string) (Contest, error)

	// Picks
	RecordPick(ctx context.Context, user shared.User, contestID string, predicted string) (Pick, error)
	GetPick(ctx context.Context, communityID, userID, contestID string) (Pick, error)
	ListUserPicks(ctx context.Context, communityID, userID string) ([]Pick, error)
	ListCommunityPicks(ctx context.Context, communityID string) ([]Pick, error)
	ListPicksForContest(ctx context.Context, contestID string) ([]Pick, error)
	CountPicksForContest(ctx context.Context, contestID string) (int64, error)

	// Communities
	SetAnnounceChannel(ctx context.Context, communityID, channelID string) error
	GetAnnounceChannel(ctx context.Context, communityID string) (string, error)
	ListCommunityIDs(ctx context.Context) ([]string, error)

	// Getter methods for accessing fields
	GetDatabase() interface{ Name() string }
	GetClient() interface{ Disconnect(context.Context) error }
}

// Ensure Store implements Interface
var _ Interface = (*Store)(nil)

// GetDatabase returns the database instance
func (s *Store) GetDatabase() interface{ Name() string } {
	return s.Database
}

// GetClient returns the MongoDB client
func (s *Store) GetClient() interface{ Disconnect(context.Context) error } {
	return s.Client
}
