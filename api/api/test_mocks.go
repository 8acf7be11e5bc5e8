/* test_mocks.go
 * Contains mock structures and interfaces for testing the API package. MockStore keeps its
 * data in maps behind one mutex, so the pick-uniqueness check-and-insert is atomic the same
 * way the real store's unique index makes it atomic
 * Authors: Zachary Bower
 */

package api

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pickem-bot/api/fanout"
	"pickem-bot/api/shared"
	"pickem-bot/api/store"

	"github.com/jonboulle/clockwork"
)

// MockStore implements the store Interface for testing
type MockStore struct {
	mu          sync.Mutex
	Contests    map[string]store.Contest
	Picks       map[string]store.Pick
	Communities map[string]string
	Clock       clockwork.Clock

	// Error injection for testing error paths
	GetContestError   error
	RecordPickError   error
	ListContestsError error
	BroadcastTargets  []string

	DatabaseName string
}

// mockDatabase implements the minimal Database interface needed for tests
type mockDatabase struct {
	name string
}

func (m *mockDatabase) Name() string {
	return m.name
}

type mockClient struct{}

func (mockClient) Disconnect(context.Context) error { return nil }

// NewMockAPIStore creates a MockStore with a fake clock pinned to a known instant
func NewMockAPIStore(clock clockwork.Clock) *MockStore {
	return &MockStore{
		Contests:     make(map[string]store.Contest),
		Picks:        make(map[string]store.Pick),
		Communities:  make(map[string]string),
		Clock:        clock,
		DatabaseName: "test_db",
	}
}

func pickKey(communityID, userID, contestID string) string {
	return communityID + "|" + userID + "|" + contestID
}

func (m *MockStore) EnsureIndexes(ctx context.Context) error { return nil }

func (m *MockStore) CreateContest(ctx context.Context, communityID, participantA, participantB string, scheduledStart time.Time, category, leagueLabel string) (store.Contest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contest := store.Contest{
		ID:             fmt.Sprintf("mock-contest-%d", len(m.Contests)+1),
		CommunityID:    communityID,
		ParticipantA:   participantA,
		ParticipantB:   participantB,
		ScheduledStart: scheduledStart,
		Category:       category,
		LeagueLabel:    leagueLabel,
		CreatedAt:      m.Clock.Now(),
	}
	m.Contests[contest.ID] = contest
	return contest, nil
}

func (m *MockStore) GetContest(ctx context.Context, contestID string) (store.Contest, error) {
	if m.GetContestError != nil {
		return store.Contest{}, m.GetContestError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	contest, ok := m.Contests[contestID]
	if !ok {
		return store.Contest{}, fmt.Errorf("%w: contest %s", shared.ErrNotFound, contestID)
	}
	return contest, nil
}

func (m *MockStore) FindContestByIDPrefix(ctx context.Context, communityID, prefix string) (store.Contest, error) {
	if len(prefix) < 4 {
		return store.Contest{}, fmt.Errorf("%w: contest id prefix %q is too short", shared.ErrInvalidInput, prefix)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []store.Contest
	for _, c := range m.Contests {
		if c.CommunityID == communityID && strings.HasPrefix(c.ID, prefix) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return store.Contest{}, fmt.Errorf("%w: no contest matching %q", shared.ErrNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return store.Contest{}, fmt.Errorf("%w: contest id %q is ambiguous", shared.ErrInvalidInput, prefix)
	}
}

func (m *MockStore) ListUpcoming(ctx context.Context, communityID string, within time.Duration) ([]store.Contest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Clock.Now()
	var contests []store.Contest
	for _, c := range m.Contests {
		if c.CommunityID != communityID || c.Winner != nil {
			continue
		}
		if c.ScheduledStart.Before(now) || c.ScheduledStart.After(now.Add(within)) {
			continue
		}
		contests = append(contests, c)
	}
	sort.Slice(contests, func(i, j int) bool {
		return contests[i].ScheduledStart.Before(contests[j].ScheduledStart)
	})
	return contests, nil
}

func (m *MockStore) ListContests(ctx context.Context, communityID string) ([]store.Contest, error) {
	if m.ListContestsError != nil {
		return nil, m.ListContestsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var contests []store.Contest
	for _, c := range m.Contests {
		if c.CommunityID == communityID {
			contests = append(contests, c)
		}
	}
	return contests, nil
}

func (m *MockStore) ListStartedBetween(ctx context.Context, from, to time.Time) ([]store.Contest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var contests []store.Contest
	for _, c := range m.Contests {
		if c.Winner != nil {
			continue
		}
		if c.ScheduledStart.After(from) && !c.ScheduledStart.After(to) {
			contests = append(contests, c)
		}
	}
	sort.Slice(contests, func(i, j int) bool {
		return contests[i].ScheduledStart.Before(contests[j].ScheduledStart)
	})
	return contests, nil
}

func (m *MockStore) UpdateContest(ctx context.Context, contestID string, update store.ContestUpdate) (store.Contest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contest, ok := m.Contests[contestID]
	if !ok {
		return store.Contest{}, fmt.Errorf("%w: contest %s", shared.ErrNotFound, contestID)
	}
	if contest.Winner != nil {
		return store.Contest{}, fmt.Errorf("%w: contest %s", shared.ErrAlreadyCompleted, contestID)
	}
	if update.ParticipantA != nil || update.ParticipantB != nil {
		for _, p := range m.Picks {
			if p.ContestID == contestID {
				return store.Contest{}, fmt.Errorf("%w: participants cannot be renamed once picks exist", shared.ErrInvalidInput)
			}
		}
		if update.ParticipantA != nil {
			contest.ParticipantA = *update.ParticipantA
		}
		if update.ParticipantB != nil {
			contest.ParticipantB = *update.ParticipantB
		}
	}
	if update.ScheduledStart != nil {
		contest.ScheduledStart = *update.ScheduledStart
	}
	if update.Category != nil {
		contest.Category = *update.Category
	}
	if update.LeagueLabel != nil {
		contest.LeagueLabel = *update.LeagueLabel
	}
	m.Contests[contestID] = contest
	return contest, nil
}

func (m *MockStore) SetResult(ctx context.Context, contestID string, winnerLabel string) (store.Contest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contest, ok := m.Contests[contestID]
	if !ok {
		return store.Contest{}, fmt.Errorf("%w: contest %s", shared.ErrNotFound, contestID)
	}
	if !contest.HasParticipant(winnerLabel) {
		return store.Contest{}, fmt.Errorf("%w: %q is not a participant", shared.ErrInvalidInput, winnerLabel)
	}
	if contest.Winner != nil {
		if *contest.Winner == winnerLabel {
			return contest, nil
		}
		return store.Contest{}, fmt.Errorf("%w: winner is already %s", shared.ErrAlreadyCompleted, *contest.Winner)
	}
	now := m.Clock.Now()
	contest.Winner = &winnerLabel
	contest.ResultSetAt = &now
	m.Contests[contestID] = contest
	return contest, nil
}

// RecordPick mirrors the real store's semantics: the existence check and insert happen
// under one lock, so concurrent calls for the same key see exactly one winner.
func (m *MockStore) RecordPick(ctx context.Context, user shared.User, contestID string, predicted string) (store.Pick, error) {
	if m.RecordPickError != nil {
		return store.Pick{}, m.RecordPickError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	contest, ok := m.Contests[contestID]
	if !ok {
		return store.Pick{}, fmt.Errorf("%w: contest %s", shared.ErrNotFound, contestID)
	}
	if contest.Status(m.Clock.Now()) != store.StatusScheduled {
		return store.Pick{}, fmt.Errorf("%w: contest has already started", shared.ErrContestClosed)
	}
	if !contest.HasParticipant(predicted) {
		return store.Pick{}, fmt.Errorf("%w: %q is not a participant", shared.ErrInvalidInput, predicted)
	}
	key := pickKey(contest.CommunityID, user.UserID, contestID)
	if _, exists := m.Picks[key]; exists {
		return store.Pick{}, fmt.Errorf("%w: a pick for this contest already exists", shared.ErrDuplicatePick)
	}
	pick := store.Pick{
		CommunityID: contest.CommunityID,
		UserID:      user.UserID,
		Username:    user.Username,
		ContestID:   contestID,
		Predicted:   predicted,
		CreatedAt:   m.Clock.Now(),
	}
	m.Picks[key] = pick
	return pick, nil
}

func (m *MockStore) GetPick(ctx context.Context, communityID, userID, contestID string) (store.Pick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pick, ok := m.Picks[pickKey(communityID, userID, contestID)]
	if !ok {
		return store.Pick{}, fmt.Errorf("%w: no pick recorded for contest %s", shared.ErrNotFound, contestID)
	}
	return pick, nil
}

func (m *MockStore) ListUserPicks(ctx context.Context, communityID, userID string) ([]store.Pick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var picks []store.Pick
	for _, p := range m.Picks {
		if p.CommunityID == communityID && p.UserID == userID {
			picks = append(picks, p)
		}
	}
	sort.Slice(picks, func(i, j int) bool { return picks[i].CreatedAt.Before(picks[j].CreatedAt) })
	return picks, nil
}

func (m *MockStore) ListCommunityPicks(ctx context.Context, communityID string) ([]store.Pick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var picks []store.Pick
	for _, p := range m.Picks {
		if p.CommunityID == communityID {
			picks = append(picks, p)
		}
	}
	return picks, nil
}

func (m *MockStore) ListPicksForContest(ctx context.Context, contestID string) ([]store.Pick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var picks []store.Pick
	for _, p := range m.Picks {
		if p.ContestID == contestID {
			picks = append(picks, p)
		}
	}
	return picks, nil
}

func (m *MockStore) CountPicksForContest(ctx context.Context, contestID string) (int64, error) {
	picks, _ := m.ListPicksForContest(ctx, contestID)
	return int64(len(picks)), nil
}

func (m *MockStore) SetAnnounceChannel(ctx context.Context, communityID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Communities[communityID] = channelID
	return nil
}

func (m *MockStore) GetAnnounceChannel(ctx context.Context, communityID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channelID, ok := m.Communities[communityID]
	if !ok {
		return "", fmt.Errorf("%w: no announce channel registered for community %s", shared.ErrNotFound, communityID)
	}
	return channelID, nil
}

func (m *MockStore) ListCommunityIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.Communities))
	for id := range m.Communities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockStore) GetDatabase() interface{ Name() string } {
	return &mockDatabase{name: m.DatabaseName}
}

func (m *MockStore) GetClient() interface{ Disconnect(context.Context) error } {
	return mockClient{}
}

// Ensure MockStore implements the store interface
var _ store.Interface = (*MockStore)(nil)

// RecordingMessenger is a fanout.Messenger that records deliveries in memory
type RecordingMessenger struct {
	mu        sync.Mutex
	Delivered []string
}

func (r *RecordingMessenger) ResolveTarget(ctx context.Context, communityID string) (fanout.Target, bool, error) {
	return fanout.Target{CommunityID: communityID, ChannelID: "chan-" + communityID}, true, nil
}

func (r *RecordingMessenger) Deliver(ctx context.Context, target fanout.Target, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Delivered = append(r.Delivered, target.CommunityID+": "+message)
	return nil
}

// Messages returns a copy of everything delivered so far
func (r *RecordingMessenger) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Delivered...)
}
