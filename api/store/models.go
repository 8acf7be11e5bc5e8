/* models.go
 * This file contains the structs and helper functions that relate to DB objects
 * Authors: Zachary Bower
 */

package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContestStatus is derived from (now, scheduledstart, winner). It is never stored,
// so the clock-driven and data-driven views of a contest cannot drift apart.
type ContestStatus string

const (
	StatusScheduled ContestStatus = "scheduled"
	StatusOngoing   ContestStatus = "ongoing"
	StatusCompleted ContestStatus = "completed"
)

type Contest struct {
	ID             string     `bson:"_id"`
	CommunityID    string     `bson:"communityid"`
	ParticipantA   string     `bson:"participanta"`
	ParticipantB   string     `bson:"participantb"`
	ScheduledStart time.Time  `bson:"scheduledstart"`
	Category       string     `bson:"category,omitempty"`
	LeagueLabel    string     `bson:"leaguelabel,omitempty"`
	Winner         *string    `bson:"winner,omitempty"`
	ResultSetAt    *time.Time `bson:"resultsetat,omitempty"`
	CreatedAt      time.Time  `bson:"createdat"`
}

// Status derives the lifecycle state at the given instant. A set winner always
// means completed, regardless of where the clock sits relative to the start time.
func (c Contest) Status(now time.Time) ContestStatus {
	if c.Winner != nil {
		return StatusCompleted
	}
	if !now.Before(c.ScheduledStart) {
		return StatusOngoing
	}
	return StatusScheduled
}

// HasParticipant reports whether label exactly matches one of the two participants
func (c Contest) HasParticipant(label string) bool {
	return label == c.ParticipantA || label == c.ParticipantB
}

type Pick struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	CommunityID string             `bson:"communityid"`
	UserID      string             `bson:"userid"`
	Username    string             `bson:"username,omitempty"`
	ContestID   string             `bson:"contestid"`
	Predicted   string             `bson:"predicted"`
	CreatedAt   time.Time          `bson:"createdat"`
}

// Community is one announcement registration: a guild and the channel it wants
// lifecycle announcements delivered to
type Community struct {
	ID                string    `bson:"_id"`
	AnnounceChannelID string    `bson:"announcechannelid"`
	UpdatedAt         time.Time `bson:"updatedat"`
}

// ContestUpdate carries the mutable contest fields for UpdateContest. Nil pointers
// leave the field untouched. Winner is deliberately absent; it is only settable
// through SetResult.
type ContestUpdate struct {
	ParticipantA   *string
	ParticipantB   *string
	ScheduledStart *time.Time
	Category       *string
	LeagueLabel    *string
}

// IsZero reports whether the update would change nothing
func (u ContestUpdate) IsZero() bool {
	return u.ParticipantA == nil && u.ParticipantB == nil && u.ScheduledStart == nil &&
		u.Category == nil && u.LeagueLabel == nil
}
