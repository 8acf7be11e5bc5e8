/* store.go
 * Contains the Store struct and NewStore function. The methods for this package are split across
 * three files: contests.go, picks.go and communities.go. Each of these files contains the methods
 * for interacting with that collection
 * Authors: Zachary Bower
 */

package store

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	Client      *mongo.Client
	Database    *mongo.Database
	Clock       clockwork.Clock
	Collections struct {
		Contests    *mongo.Collection
		Picks       *mongo.Collection
		Communities *mongo.Collection
	}
}

// NewStore initialises the db connection and returns a Store ready for use.
// It receives the database name, a mongo URI and the clock all time comparisons go through.
// It returns a pointer to the Store object, or an error if the connection fails.
func NewStore(dbName string, mongoURI string, clock clockwork.Clock) (*Store, error) {
	if dbName == "" {
		return nil, fmt.Errorf("dbName cannot be empty")
	}

	client, err := mongo.Connect(context.TODO(), options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, err
	}
	db := client.Database(dbName)

	s := &Store{
		Client:   client,
		Database: db,
		Clock:    clock,
	}
	s.Collections.Contests = db.Collection("contests")
	s.Collections.Picks = db.Collection("picks")
	s.Collections.Communities = db.Collection("communities")
	return s, nil
}

// EnsureIndexes creates the indexes the store's correctness depends on. The unique compound
// index on picks is the mechanism that makes recordPick race-safe: two concurrent inserts
// for the same (community, user, contest) key can never both land, the loser gets a
// duplicate key error. Must be called once at startup before the store serves traffic.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.Collections.Picks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "communityid", Value: 1},
			{Key: "userid", Value: 1},
			{Key: "contestid", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_community_user_contest"),
	})
	if err != nil {
		return fmt.Errorf("failed to create pick uniqueness index: %w", err)
	}

	_, err = s.Collections.Contests.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "communityid", Value: 1},
			{Key: "scheduledstart", Value: 1},
		},
		Options: options.Index().SetName("community_start"),
	})
	if err != nil {
		return fmt.Errorf("failed to create contest schedule index: %w", err)
	}
	return nil
}
