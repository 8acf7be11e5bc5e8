/* mock_session.go
 * Contains mock implementation of DiscordSession for testing
 * Authors: Zachary Bower
 */

package bot

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// MockDiscordSession implements DiscordSession for testing purposes
type MockDiscordSession struct {
	mu sync.Mutex
	// SentMessages stores all messages sent during tests
	SentMessages []MockMessage
	// ErrorToReturn allows tests to simulate send errors
	ErrorToReturn error
	// Permissions is returned from UserChannelPermissions for every user
	Permissions int64
	// PermissionsError allows tests to simulate permission lookup failures
	PermissionsError error
}

// MockMessage represents a message sent to a channel
type MockMessage struct {
	ChannelID string
	Content   string
}

// ChannelMessageSend implements DiscordSession.ChannelMessageSend
func (m *MockDiscordSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ErrorToReturn != nil {
		return nil, m.ErrorToReturn
	}

	m.SentMessages = append(m.SentMessages, MockMessage{
		ChannelID: channelID,
		Content:   content,
	})

	return &discordgo.Message{
		ID:        "mock_message_id",
		ChannelID: channelID,
		Content:   content,
	}, nil
}

// UserChannelPermissions implements DiscordSession.UserChannelPermissions
func (m *MockDiscordSession) UserChannelPermissions(userID string, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error) {
	if m.PermissionsError != nil {
		return 0, m.PermissionsError
	}
	return m.Permissions, nil
}

// GetLastMessage returns the last message sent, or empty MockMessage if none
func (m *MockDiscordSession) GetLastMessage() MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SentMessages) == 0 {
		return MockMessage{}
	}
	return m.SentMessages[len(m.SentMessages)-1]
}

// MessageCount returns how many messages have been sent
func (m *MockDiscordSession) MessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SentMessages)
}
