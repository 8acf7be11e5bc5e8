/* bot_test.go
 * Contains unit tests for bot construction and the kick-off scanner
 * Authors: Zachary Bower
 */

package bot

import (
	"context"
	"testing"
	"time"

	"pickem-bot/api/api"
	"pickem-bot/api/fanout"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewBot_RequiresAPI(t *testing.T) {
	_, err := NewBot(nil, nil)
	if err == nil {
		t.Error("Expected error when api pointer is nil, got nil")
	}
}

func TestNewBot_DefaultsClock(t *testing.T) {
	_, a, _ := newTestBot(t)

	b, err := NewBot(a, nil)
	require.NoError(t, err)
	assert.NotNil(t, b.Clock)
}

func TestKickoffScanner_AnnouncesEachStartOnce(t *testing.T) {
	clock := clockwork.NewFakeClockAt(botTestEpoch)
	ms := api.NewMockAPIStore(clock)
	messenger := &api.RecordingMessenger{}
	f := fanout.New(messenger, rate.Inf, 1, time.Second)
	a, err := api.NewAPI(ms, f, clock)
	require.NoError(t, err)

	scanner := NewKickoffScanner(a, clock, time.Minute)
	scanner.mu.Lock()
	scanner.lastScan = clock.Now()
	scanner.mu.Unlock()

	_, err = a.CreateContest(context.Background(), "guild1", "Red", "Blue", botTestEpoch.Add(30*time.Minute), "", "")
	require.NoError(t, err)
	baseline := len(messenger.Messages())

	// Tick before the start announces nothing
	clock.Advance(29 * time.Minute)
	require.NoError(t, scanner.Scan(context.Background()))
	assert.Len(t, messenger.Messages(), baseline)

	// Tick past the start announces exactly once
	clock.Advance(2 * time.Minute)
	require.NoError(t, scanner.Scan(context.Background()))
	assert.Len(t, messenger.Messages(), baseline+1)
	assert.Contains(t, messenger.Messages()[baseline], "picks are locked")

	// Subsequent ticks never repeat an announcement
	clock.Advance(time.Minute)
	require.NoError(t, scanner.Scan(context.Background()))
	assert.Len(t, messenger.Messages(), baseline+1)
}

func TestKickoffScanner_DefaultsInterval(t *testing.T) {
	_, a, clock := newTestBot(t)
	scanner := NewKickoffScanner(a, clock, 0)
	assert.Equal(t, time.Minute, scanner.Interval)
}
