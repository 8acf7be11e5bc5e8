/* scheduler.go
 * Contains the kick-off scanner: a periodic, read-only background job that announces
 * contests whose scheduled start has just passed. Each tick scans the time range since
 * the previous tick, so a start is announced at most once per process lifetime
 * Authors: Zachary Bower
 */

package bot

import (
	"context"
	"log"
	"sync"
	"time"

	"pickem-bot/api/api"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

type KickoffScanner struct {
	APIPtr   *api.API
	Clock    clockwork.Clock
	Interval time.Duration

	sched gocron.Scheduler

	mu       sync.Mutex
	lastScan time.Time
}

func NewKickoffScanner(apiPtr *api.API, clock clockwork.Clock, interval time.Duration) *KickoffScanner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &KickoffScanner{
		APIPtr:   apiPtr,
		Clock:    clock,
		Interval: interval,
	}
}

// Start begins the periodic scan. The first tick covers the range from Start onwards;
// contests that started before the process came up are never re-announced.
func (k *KickoffScanner) Start() error {
	k.mu.Lock()
	k.lastScan = k.Clock.Now()
	k.mu.Unlock()

	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(k.Interval),
		gocron.NewTask(func() {
			if err := k.Scan(context.Background()); err != nil {
				log.Printf("kick-off scan failed: %v", err)
			}
		}),
	)
	if err != nil {
		return err
	}

	sched.Start()
	k.sched = sched
	return nil
}

// Scan announces contests whose start fell inside (lastScan, now]. Exported so tests can
// drive ticks directly without the scheduler.
func (k *KickoffScanner) Scan(ctx context.Context) error {
	now := k.Clock.Now()

	k.mu.Lock()
	from := k.lastScan
	k.lastScan = now
	k.mu.Unlock()

	n, err := k.APIPtr.ScanStarts(ctx, from, now)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("announced %d contest starts", n)
	}
	return nil
}

// Stop shuts the scheduler down and waits for a running tick to finish
func (k *KickoffScanner) Stop() error {
	if k.sched == nil {
		return nil
	}
	return k.sched.Shutdown()
}
