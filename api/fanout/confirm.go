/* confirm.go
 * Contains the confirmation state machine for operator-authored announcements. A draft
 * waits for an explicit confirm or cancel within a bounded window; no action forces a
 * timeout, which is terminal and distinct from a cancel for audit purposes
 * Authors: Zachary Bower
 */

package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ConfirmState is the lifecycle of one draft announcement
type ConfirmState string

const (
	StateDraft     ConfirmState = "draft"
	StateConfirmed ConfirmState = "confirmed"
	StateCancelled ConfirmState = "cancelled"
	StateTimedOut  ConfirmState = "timed_out"
	StateSent      ConfirmState = "sent"
)

// Confirmation tracks one draft announcement awaiting an operator decision. All state
// transitions are one-way: once resolved (any state past Draft), further operator
// actions have no effect.
type Confirmation struct {
	Message string

	mu       sync.Mutex
	state    ConfirmState
	resolved chan struct{}
	clock    clockwork.Clock
	timeout  time.Duration
}

// NewConfirmation creates a draft holding the operator's message, with a bounded wait
// measured on the given clock.
func NewConfirmation(message string, clock clockwork.Clock, timeout time.Duration) *Confirmation {
	return &Confirmation{
		Message:  message,
		state:    StateDraft,
		resolved: make(chan struct{}),
		clock:    clock,
		timeout:  timeout,
	}
}

// resolve moves Draft to the given terminal-ish state. Returns false if the draft was
// already resolved by another path (operator action, timeout, context cancel).
func (c *Confirmation) resolve(to ConfirmState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDraft {
		return false
	}
	c.state = to
	close(c.resolved)
	return true
}

// Confirm records the operator approving the draft. Returns false if it was no longer pending.
func (c *Confirmation) Confirm() bool {
	return c.resolve(StateConfirmed)
}

// Cancel records the operator abandoning the draft. Returns false if it was no longer pending.
func (c *Confirmation) Cancel() bool {
	return c.resolve(StateCancelled)
}

// MarkSent moves a confirmed draft to sent after delivery. Returns false unless the
// draft was in the confirmed state.
func (c *Confirmation) MarkSent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConfirmed {
		return false
	}
	c.state = StateSent
	return true
}

// State returns the current state
func (c *Confirmation) State() ConfirmState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Await blocks until the draft is resolved or the wait bound elapses, whichever comes
// first, and returns the resulting state. Absence of any operator action within the
// bound forces TimedOut; a cancelled context resolves the draft as Cancelled so the
// waiting goroutine never leaks.
func (c *Confirmation) Await(ctx context.Context) ConfirmState {
	timer := c.clock.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-c.resolved:
	case <-timer.Chan():
		c.resolve(StateTimedOut)
	case <-ctx.Done():
		c.resolve(StateCancelled)
	}
	return c.State()
}
