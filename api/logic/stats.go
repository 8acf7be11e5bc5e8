/* stats.go
 * Contains the leaderboard and per-user accuracy computation. Everything in this file is a
 * pure function over a (picks, contests) snapshot fetched by the api package; this package
 * never touches storage
 * Authors: Zachary Bower
 */

package logic

import (
	"sort"
	"time"

	"pickem-bot/api/shared"
	"pickem-bot/api/store"
)

// minCompletedForAllTime is the sample-size floor for the all-time leaderboard. Users with
// fewer completed picks are excluded entirely rather than shown with a misleading accuracy.
const minCompletedForAllTime = 10

// Summary is one user's accuracy bookkeeping
type Summary struct {
	TotalPicks     int
	CompletedPicks int
	CorrectPicks   int
	ActivePicks    int
	Accuracy       float64
}

// LeaderboardEntry is one ranked row of a leaderboard
type LeaderboardEntry struct {
	UserID         string
	Username       string
	CompletedCount int
	CorrectCount   int
	Accuracy       float64

	// earliest resultsetat among the user's counted picks; the daily/weekly tie breaker
	earliestCompleted time.Time
}

// ContestIndex builds a lookup table from contest id to contest
func ContestIndex(contests []store.Contest) map[string]store.Contest {
	index := make(map[string]store.Contest, len(contests))
	for _, c := range contests {
		index[c.ID] = c
	}
	return index
}

// ComputeUserSummary aggregates one user's picks against their contests. A pick counts as
// completed only when its contest has a winner; correctness compares the predicted label
// against that winner. Picks referencing unknown contests are skipped.
func ComputeUserSummary(picks []store.Pick, contests map[string]store.Contest) Summary {
	var summary Summary
	for _, pick := range picks {
		contest, ok := contests[pick.ContestID]
		if !ok {
			continue
		}
		summary.TotalPicks++
		if contest.Winner == nil {
			continue
		}
		summary.CompletedPicks++
		if pick.Predicted == *contest.Winner {
			summary.CorrectPicks++
		}
	}
	summary.ActivePicks = summary.TotalPicks - summary.CompletedPicks
	if summary.CompletedPicks > 0 {
		summary.Accuracy = float64(summary.CorrectPicks) / float64(summary.CompletedPicks)
	}
	return summary
}

// FilterActivePicks returns the picks whose contest has not yet completed, ordered by the
// contest's scheduled start ascending.
func FilterActivePicks(picks []store.Pick, contests map[string]store.Contest) []store.Pick {
	var active []store.Pick
	for _, pick := range picks {
		contest, ok := contests[pick.ContestID]
		if !ok || contest.Winner != nil {
			continue
		}
		active = append(active, pick)
	}
	sort.SliceStable(active, func(i, j int) bool {
		return contests[active[i].ContestID].ScheduledStart.Before(contests[active[j].ContestID].ScheduledStart)
	})
	return active
}

// BuildLeaderboard ranks a community's users over the requested window.
//
// daily/weekly count only picks whose contest's result landed inside a rolling 24h/168h
// window ending at now, ranked by correct count descending with ties broken by the earlier
// earliest-completed-pick timestamp. all_time ranks by accuracy descending and excludes
// users below the minCompletedForAllTime sample floor. Every ordering falls back to user id
// so repeated calls with no intervening writes return identical output.
// An empty result is not an error; the caller decides how to present no data.
func BuildLeaderboard(picks []store.Pick, contests map[string]store.Contest, window shared.Window, now time.Time) []LeaderboardEntry {
	var cutoff time.Time
	switch window {
	case shared.WindowDaily:
		cutoff = now.Add(-24 * time.Hour)
	case shared.WindowWeekly:
		cutoff = now.Add(-7 * 24 * time.Hour)
	}

	byUser := make(map[string]*LeaderboardEntry)
	for _, pick := range picks {
		contest, ok := contests[pick.ContestID]
		if !ok || contest.Winner == nil || contest.ResultSetAt == nil {
			continue
		}
		if !cutoff.IsZero() && (contest.ResultSetAt.Before(cutoff) || contest.ResultSetAt.After(now)) {
			continue
		}

		entry, ok := byUser[pick.UserID]
		if !ok {
			entry = &LeaderboardEntry{UserID: pick.UserID, Username: pick.Username}
			byUser[pick.UserID] = entry
		}
		entry.CompletedCount++
		if pick.Predicted == *contest.Winner {
			entry.CorrectCount++
		}
		if entry.earliestCompleted.IsZero() || contest.ResultSetAt.Before(entry.earliestCompleted) {
			entry.earliestCompleted = *contest.ResultSetAt
		}
	}

	entries := make([]LeaderboardEntry, 0, len(byUser))
	for _, entry := range byUser {
		if window == shared.WindowAllTime && entry.CompletedCount < minCompletedForAllTime {
			continue
		}
		entry.Accuracy = float64(entry.CorrectCount) / float64(entry.CompletedCount)
		entries = append(entries, *entry)
	}

	if window == shared.WindowAllTime {
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Accuracy != entries[j].Accuracy {
				return entries[i].Accuracy > entries[j].Accuracy
			}
			if entries[i].CompletedCount != entries[j].CompletedCount {
				return entries[i].CompletedCount > entries[j].CompletedCount
			}
			return entries[i].UserID < entries[j].UserID
		})
	} else {
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].CorrectCount != entries[j].CorrectCount {
				return entries[i].CorrectCount > entries[j].CorrectCount
			}
			if !entries[i].earliestCompleted.Equal(entries[j].earliestCompleted) {
				return entries[i].earliestCompleted.Before(entries[j].earliestCompleted)
			}
			return entries[i].UserID < entries[j].UserID
		})
	}
	return entries
}
