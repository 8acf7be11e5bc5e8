/* fanout.go
 * Contains the announcement fan-out: delivering one lifecycle event to every registered
 * community with per-target failure isolation. A failed delivery to one community must
 * never stop delivery to the rest; the aggregate counts are the only observable result
 * Authors: Zachary Bower
 */

package fanout

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// EventKind labels the lifecycle moment an announcement describes
type EventKind string

const (
	EventContestCreated     EventKind = "contest_created"
	EventContestRescheduled EventKind = "contest_rescheduled"
	EventContestStarted     EventKind = "contest_started"
	EventResultSet          EventKind = "result_set"
	EventOperatorMessage    EventKind = "operator_message"
)

// Event is one logical announcement. ContestID identifies the underlying event so a
// consumer that cares can detect a re-sent broadcast; deduplication is the consumer's
// responsibility, not this package's.
type Event struct {
	Kind      EventKind
	ContestID string
	Message   string
}

// Target is one resolved delivery destination: a channel within a community
type Target struct {
	CommunityID string
	ChannelID   string
}

// Messenger is the external messaging adapter. ResolveTarget yields zero or one target
// per community; Deliver attempts one send. Any error from either is a per-target
// failure, never an aborting fault.
type Messenger interface {
	ResolveTarget(ctx context.Context, communityID string) (Target, bool, error)
	Deliver(ctx context.Context, target Target, message string) error
}

// Result aggregates one broadcast attempt
type Result struct {
	SuccessCount int
	FailureCount int
}

// Fanout performs rate-limited, timeout-bounded broadcasts through a Messenger
type Fanout struct {
	messenger       Messenger
	limiter         *rate.Limiter
	deliveryTimeout time.Duration
}

// DefaultDeliveryTimeout bounds each delivery attempt so one wedged target cannot
// stall the whole broadcast
const DefaultDeliveryTimeout = 10 * time.Second

// New creates a Fanout. perSecond/burst feed the outbound rate limiter; Discord starts
// rejecting around 5 messages per 5 seconds per channel, so the caller should stay well
// under that.
func New(messenger Messenger, perSecond rate.Limit, burst int, deliveryTimeout time.Duration) *Fanout {
	if deliveryTimeout <= 0 {
		deliveryTimeout = DefaultDeliveryTimeout
	}
	return &Fanout{
		messenger:       messenger,
		limiter:         rate.NewLimiter(perSecond, burst),
		deliveryTimeout: deliveryTimeout,
	}
}

// Broadcast delivers an event to every community in the list, independently per target.
// Communities that resolve to no target are skipped and count as neither success nor
// failure. Delivery is at-most-once per target per call; callers may safely re-invoke
// Broadcast for the same logical event.
func (f *Fanout) Broadcast(ctx context.Context, event Event, communityIDs []string) Result {
	var result Result
	for _, communityID := range communityIDs {
		delivered, err := f.deliverOne(ctx, event, communityID)
		if err != nil {
			log.Printf("announcement %s delivery to community %s failed: %v", event.Kind, communityID, err)
			result.FailureCount++
			continue
		}
		if delivered {
			result.SuccessCount++
		}
	}
	return result
}

func (f *Fanout) deliverOne(ctx context.Context, event Event, communityID string) (bool, error) {
	deliveryCtx, cancel := context.WithTimeout(ctx, f.deliveryTimeout)
	defer cancel()

	target, ok, err := f.messenger.ResolveTarget(deliveryCtx, communityID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := f.limiter.Wait(deliveryCtx); err != nil {
		return false, err
	}
	if err := f.messenger.Deliver(deliveryCtx, target, event.Message); err != nil {
		return false, err
	}
	return true, nil
}
