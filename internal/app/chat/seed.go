package chat

import (
	"context"
	"time"

	"campusconnect/internal/app/user"
	"campusconnect/internal/pkg/randx"
)

// demoOpener is the unread message of the starter conversation.
const demoOpener = "Hey, are you interested in the EcoTrack project?"

// DemoConversation builds the starter conversation a fresh viewer sees: one unread message from
// counterpart, an hour before now.
func DemoConversation(viewerID string, counterpart user.Summary, now time.Time) Conversation {
	id := ConversationID(viewerID, counterpart.ID)
	opener := Message{
		ID:             randx.MessageID(),
		ConversationID: id,
		SenderID:       counterpart.ID,
		Content:        demoOpener,
		Timestamp:      now.Add(-time.Hour).UTC(),
	}

	return Conversation{
		ID:           id,
		Participants: []user.Summary{counterpart},
		LastMessage:  &opener,
		UnreadCount:  1,
		Messages:     []Message{opener},
	}
}

// demoConversations seeds a conversation with the first directory user other than the viewer.
func demoConversations(ctx context.Context, viewerID string, directory user.Directory) ([]Conversation, error) {
	users, err := directory.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if u.ID != viewerID {
			return []Conversation{DemoConversation(viewerID, u.Summary(), time.Now())}, nil
		}
	}
	return nil, nil
}
