/* communities.go
 * Contains the methods for interacting with the communities collection, the registry of
 * announcement destinations the fan-out resolves targets from
 * Authors: Zachary Bower
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"pickem-bot/api/shared"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SetAnnounceChannel registers or moves a community's announcement channel. Upsert, so
// re-running $announcehere in a different channel just repoints the registration.
func (s *Store) SetAnnounceChannel(ctx context.Context, communityID, channelID string) error {
	if communityID == "" || channelID == "" {
		return fmt.Errorf("%w: community and channel ids cannot be empty", shared.ErrInvalidInput)
	}

	update := bson.M{"$set": bson.M{
		"announcechannelid": channelID,
		"updatedat":         s.Clock.Now().UTC(),
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := s.Collections.Communities.UpdateOne(ctx, bson.M{"_id": communityID}, update, opts); err != nil {
		return fmt.Errorf("failed to store announce channel: %w", err)
	}
	return nil
}

// GetAnnounceChannel resolves a community's announcement channel.
// It returns the channel id, shared.ErrNotFound if the community never registered one,
// or a wrapped storage error.
func (s *Store) GetAnnounceChannel(ctx context.Context, communityID string) (string, error) {
	var community Community
	err := s.Collections.Communities.FindOne(ctx, bson.M{"_id": communityID}).Decode(&community)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", fmt.Errorf("%w: no announce channel registered for community %s", shared.ErrNotFound, communityID)
		}
		return "", fmt.Errorf("error fetching community from db: %w", err)
	}
	return community.AnnounceChannelID, nil
}

// ListCommunityIDs returns every community with a registered announcement channel. This is
// the recipient set lifecycle broadcasts fan out over.
func (s *Store) ListCommunityIDs(ctx context.Context) ([]string, error) {
	cursor, err := s.Collections.Communities.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error fetching communities from db: %w", err)
	}

	var communities []Community
	if err := cursor.All(ctx, &communities); err != nil {
		return nil, fmt.Errorf("error unpacking cursor into slice of communities: %w", err)
	}

	ids := make([]string, 0, len(communities))
	for _, c := range communities {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
