/* messenger.go
 * Contains the Discord implementation of the fanout Messenger: targets resolve through the
 * communities registry and deliveries go out as plain channel messages
 * Authors: Zachary Bower
 */

package bot

import (
	"context"
	"errors"

	"pickem-bot/api/fanout"
	"pickem-bot/api/shared"
	"pickem-bot/api/store"
)

// Messenger adapts a DiscordSession to the fanout Messenger interface
type Messenger struct {
	Session DiscordSession
	Store   store.Interface
}

func NewMessenger(session DiscordSession, s store.Interface) *Messenger {
	return &Messenger{Session: session, Store: s}
}

// ResolveTarget looks up the community's registered announcement channel. A community
// that never ran $announcehere resolves to no target, which is not an error.
func (m *Messenger) ResolveTarget(ctx context.Context, communityID string) (fanout.Target, bool, error) {
	channelID, err := m.Store.GetAnnounceChannel(ctx, communityID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fanout.Target{}, false, nil
		}
		return fanout.Target{}, false, err
	}
	return fanout.Target{CommunityID: communityID, ChannelID: channelID}, true, nil
}

// Deliver sends one message to the target channel. Any Discord error (missing
// permissions, deleted channel, transport failure) surfaces as a per-target failure.
func (m *Messenger) Deliver(ctx context.Context, target fanout.Target, message string) error {
	_, err := m.Session.ChannelMessageSend(target.ChannelID, message)
	return err
}

// Ensure Messenger implements the fanout interface
var _ fanout.Messenger = (*Messenger)(nil)
