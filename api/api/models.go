/* models.go
 * This file contains the view structs returned to api consumers. These are plain
 * serializable values; storage documents never cross this boundary
 * Authors: Zachary Bower
 */

package api

import (
	"time"

	"pickem-bot/api/store"
)

// ContestView is the read model of one contest
type ContestView struct {
	ID             string
	ShortID        string
	CommunityID    string
	ParticipantA   string
	ParticipantB   string
	ScheduledStart time.Time
	Category       string
	LeagueLabel    string
	Status         string
	Winner         string
	ResultSetAt    *time.Time
}

// PickView is the read model of one pick
type PickView struct {
	CommunityID string
	UserID      string
	Username    string
	ContestID   string
	Predicted   string
	CreatedAt   time.Time
}

// UserSummary is one user's accuracy read model
type UserSummary struct {
	TotalPicks     int
	CompletedPicks int
	CorrectPicks   int
	ActivePicks    int
	Accuracy       float64
}

// LeaderboardRow is one ranked leaderboard entry
type LeaderboardRow struct {
	Rank           int
	UserID         string
	Username       string
	CorrectCount   int
	CompletedCount int
	Accuracy       float64
}

// Tally is the per-participant pick count for one contest, used in result announcements
type Tally struct {
	CountA int
	CountB int
}

// ContestUpdate mirrors the mutable contest fields for UpdateContest. Nil means unchanged.
type ContestUpdate struct {
	ParticipantA   *string
	ParticipantB   *string
	ScheduledStart *time.Time
	Category       *string
	LeagueLabel    *string
}

// shortIDLen is how many id characters views expose for humans to type back in
const shortIDLen = 8

func shortRef(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func contestView(c store.Contest, now time.Time) ContestView {
	view := ContestView{
		ID:             c.ID,
		ShortID:        shortRef(c.ID),
		CommunityID:    c.CommunityID,
		ParticipantA:   c.ParticipantA,
		ParticipantB:   c.ParticipantB,
		ScheduledStart: c.ScheduledStart,
		Category:       c.Category,
		LeagueLabel:    c.LeagueLabel,
		Status:         string(c.Status(now)),
		ResultSetAt:    c.ResultSetAt,
	}
	if c.Winner != nil {
		view.Winner = *c.Winner
	}
	return view
}

func pickView(p store.Pick) PickView {
	return PickView{
		CommunityID: p.CommunityID,
		UserID:      p.UserID,
		Username:    p.Username,
		ContestID:   p.ContestID,
		Predicted:   p.Predicted,
		CreatedAt:   p.CreatedAt,
	}
}
