/* picks_test.go
 * Contains unit tests for picks.go
 * Authors: Zachary Bower
 */

package store

import (
	"context"
	"testing"
	"time"

	"pickem-bot/api/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestRecordPick_Success(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("records a pick while the contest is open", func(mt *mtest.T) {
		contests := mt.DB.Collection("contests")
		s := NewMockStore(mt.Client, mt.DB, contests, mt.Coll, nil, NewTestClock())

		open := SampleContest()
		mt.AddMockResponses(
			// Openness check
			mtest.CreateCursorResponse(0, "test.contests", mtest.FirstBatch, contestDoc(open)),
			// Insert rides the unique index
			mtest.CreateSuccessResponse(),
			// Post-insert re-read still shows the contest open
			mtest.CreateCursorResponse(0, "test.contests", mtest.FirstBatch, contestDoc(open)),
		)

		user := shared.User{UserID: "u1", Username: "alice"}
		pick, err := s.RecordPick(context.Background(), user, open.ID, "Red")
		require.NoError(t, err)
		assert.Equal(t, "Red", pick.Predicted)
		assert.Equal(t, open.CommunityID, pick.CommunityID)
		assert.Equal(t, "u1", pick.UserID)
	})
}

func TestRecordPick_DuplicateKey(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate key error maps to ErrDuplicatePick", func(mt *mtest.T) {
		contests := mt.DB.Collection("contests")
		s := NewMockStore(mt.Client, mt.DB, contests, mt.Coll, nil, NewTestClock())

		open := SampleContest()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "test.contests", mtest.FirstBatch, contestDoc(open)),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{
				Index:   0,
				Code:    11000,
				Message: "E11000 duplicate key error collection: test.picks index: uniq_community_user_contest",
			}),
		)

		user := shared.User{UserID: "u1", Username: "alice"}
		_, err := s.RecordPick(context.Background(), user, open.ID, "Red")
		assert.ErrorIs(t, err, shared.ErrDuplicatePick)
	})
}

func TestRecordPick_ContestClosed(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("pick after scheduled start fails before touching the ledger", func(mt *mtest.T) {
		contests := mt.DB.Collection("contests")
		clock := NewTestClock()
		s := NewMockStore(mt.Client, mt.DB, contests, mt.Coll, nil, clock)

		started := SampleContest()
		started.ScheduledStart = testClockEpoch.Add(-time.Minute)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.contests", mtest.FirstBatch, contestDoc(started)))

		user := shared.User{UserID: "u1", Username: "alice"}
		_, err := s.RecordPick(context.Background(), user, started.ID, "Red")
		assert.ErrorIs(t, err, shared.ErrContestClosed)
	})
}

func TestRecordPick_CompletedContestClosed(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("a winner set before start still closes the contest", func(mt *mtest.T) {
		contests := mt.DB.Collection("contests")
		s := NewMockStore(mt.Client, mt.DB, contests, mt.Coll, nil, NewTestClock())

		winner := "Blue"
		completed := SampleContest()
		completed.Winner = &winner
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.contests", mtest.FirstBatch, contestDoc(completed)))

		user := shared.User{UserID: "u1", Username: "alice"}
		_, err := s.RecordPick(context.Background(), user, completed.ID, "Red")
		assert.ErrorIs(t, err, shared.ErrContestClosed)
	})
}

func TestRecordPick_UnknownParticipant(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("prediction must name one of the two participants", func(mt *mtest.T) {
		contests := mt.DB.Collection("contests")
		s := NewMockStore(mt.Client, mt.DB, contests, mt.Coll, nil, NewTestClock())

		open := SampleContest()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.contests", mtest.FirstBatch, contestDoc(open)))

		user := shared.User{UserID: "u1", Username: "alice"}
		_, err := s.RecordPick(context.Background(), user, open.ID, "Green")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestRecordPick_CompensatesWhenContestClosesMidInsert(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("pick is rolled back when a result lands during the insert", func(mt *mtest.T) {
		contests := mt.DB.Collection("contests")
		s := NewMockStore(mt.Client, mt.DB, contests, mt.Coll, nil, NewTestClock())

		open := SampleContest()
		winner := "Blue"
		completed := open
		completed.Winner = &winner

		mt.AddMockResponses(
			// Openness check passes
			mtest.CreateCursorResponse(0, "test.contests", mtest.FirstBatch, contestDoc(open)),
			// Insert lands
			mtest.CreateSuccessResponse(),
			// But the re-read shows a winner arrived concurrently
			mtest.CreateCursorResponse(0, "test.contests", mtest.FirstBatch, contestDoc(completed)),
			// Compensating delete
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		user := shared.User{UserID: "u1", Username: "alice"}
		_, err := s.RecordPick(context.Background(), user, open.ID, "Red")
		assert.ErrorIs(t, err, shared.ErrContestClosed)
	})
}

func TestGetPick_NotFound(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("missing pick maps to ErrNotFound", func(mt *mtest.T) {
		s := NewMockStore(mt.Client, mt.DB, nil, mt.Coll, nil, NewTestClock())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.picks", mtest.FirstBatch))

		_, err := s.GetPick(context.Background(), "guild1", "u1", "contest1")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
