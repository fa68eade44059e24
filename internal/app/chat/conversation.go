package chat

import (
	"slices"
	"strings"
	"time"

	"campusconnect/internal/app/user"
)

// conversationIDPrefix is shared by every derived conversation id.
const conversationIDPrefix = "conv_"

// ConnectedGreeting is the content of the system message that opens a materialized conversation.
const ConnectedGreeting = "You are now connected."

// Message is a single direct message. Only Read changes after creation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Read           bool      `json:"isRead"`
}

// Conversation is a two-party thread as seen by the viewer.
type Conversation struct {
	ID string `json:"id"`

	// Participants holds the counterpart; the viewer is implicit.
	Participants []user.Summary `json:"participants"`

	LastMessage *Message `json:"lastMessage,omitempty"`
	UnreadCount int      `json:"unreadCount"`

	// Messages is the accepted history in arrival order.
	Messages []Message `json:"messages,omitempty"`
}

// ConversationID derives the id of the conversation between a and b.
// The result does not depend on argument order.
func ConversationID(a, b string) string {
	pair := []string{a, b}
	slices.Sort(pair)
	return conversationIDPrefix + strings.Join(pair, "_")
}

// Counterpart returns the other participant, or false when the conversation has none.
func (c *Conversation) Counterpart() (user.Summary, bool) {
	if len(c.Participants) == 0 {
		return user.Summary{}, false
	}
	return c.Participants[0], true
}

// lastActivity is the timestamp used for ordering; conversations without messages sort last.
func (c *Conversation) lastActivity() time.Time {
	if c.LastMessage == nil {
		return time.Time{}
	}
	return c.LastMessage.Timestamp
}

// clone returns a deep copy safe to hand out of the reconciler.
func (c *Conversation) clone() Conversation {
	out := Conversation{
		ID:           c.ID,
		Participants: slices.Clone(c.Participants),
		UnreadCount:  c.UnreadCount,
		Messages:     slices.Clone(c.Messages),
	}
	if c.LastMessage != nil {
		last := *c.LastMessage
		out.LastMessage = &last
	}
	return out
}
