/* bot.go
 * Contains logic used for creating the bot. Requires an api pointer and a clock, both of
 * which are passed in from main.go
 * Authors: Zachary Bower
 */

package bot

import (
	"fmt"
	"sync"
	"time"

	"pickem-bot/api/api"
	"pickem-bot/api/fanout"

	"github.com/jonboulle/clockwork"
)

// announceConfirmWait bounds how long a drafted announcement waits for $confirm or
// $cancel before it times out
const announceConfirmWait = 60 * time.Second

type Bot struct {
	APIPtr *api.API
	Clock  clockwork.Clock

	// drafts holds at most one pending announcement per operator
	draftMu sync.Mutex
	drafts  map[string]*fanout.Confirmation
}

func NewBot(apiPtr *api.API, clock clockwork.Clock) (*Bot, error) {
	if apiPtr == nil {
		return nil, fmt.Errorf("api pointer is required but none was provided")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Bot{
		APIPtr: apiPtr,
		Clock:  clock,
		drafts: make(map[string]*fanout.Confirmation),
	}, nil
}

// pendingDraft returns the operator's unresolved draft, if any
func (b *Bot) pendingDraft(userID string) (*fanout.Confirmation, bool) {
	b.draftMu.Lock()
	defer b.draftMu.Unlock()
	draft, ok := b.drafts[userID]
	return draft, ok
}

func (b *Bot) setDraft(userID string, draft *fanout.Confirmation) {
	b.draftMu.Lock()
	defer b.draftMu.Unlock()
	b.drafts[userID] = draft
}

func (b *Bot) clearDraft(userID string) {
	b.draftMu.Lock()
	defer b.draftMu.Unlock()
	delete(b.drafts, userID)
}
