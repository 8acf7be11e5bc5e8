/* test_helpers.go
 * Contains test helper functions for store package tests
 * Authors: Zachary Bower
 */

package store

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/mongo"
)

// testClockEpoch is the instant fake clocks in store tests start from
var testClockEpoch = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

// NewTestClock returns a fake clock pinned to a known instant so contest-start
// boundaries are deterministic in tests.
func NewTestClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(testClockEpoch)
}

// NewMockStore builds a Store around an mtest mock client's collections. The caller
// passes the collections the test exercises; untouched ones may be nil.
func NewMockStore(client *mongo.Client, db *mongo.Database, contests, picks, communities *mongo.Collection, clock clockwork.Clock) *Store {
	s := &Store{
		Client:   client,
		Database: db,
		Clock:    clock,
	}
	s.Collections.Contests = contests
	s.Collections.Picks = picks
	s.Collections.Communities = communities
	return s
}

// CreateTestStore creates a Store connected to a real test database.
// Returns the store and a cleanup function.
func CreateTestStore(mongoURI string) (*Store, func(), error) {
	store, err := NewStore("test_pickem", mongoURI, clockwork.NewRealClock())
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if store.Client != nil {
			store.Database.Drop(context.TODO())
			store.Client.Disconnect(context.TODO())
		}
	}

	return store, cleanup, nil
}

// SampleContest returns a contest an hour away from the test clock epoch
func SampleContest() Contest {
	return Contest{
		ID:             "11111111-2222-3333-4444-555555555555",
		CommunityID:    "guild1",
		ParticipantA:   "Red",
		ParticipantB:   "Blue",
		ScheduledStart: testClockEpoch.Add(time.Hour),
		Category:       "Groups",
		LeagueLabel:    "Test League",
		CreatedAt:      testClockEpoch,
	}
}
