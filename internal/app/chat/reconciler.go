/*
Package chat contains the realtime coordination core of Campus Connect.

This file defines Reconciler, which folds inbound messages and accepted connections into the
viewer's ordered conversation list and unread counters.
*/
package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"campusconnect/internal/app/user"
	"campusconnect/internal/pkg/randx"
)

const (
	// MaxHistory is the number of messages retained per conversation; older ones are trimmed.
	MaxHistory = 200

	// resolveTimeout bounds directory lookups made while applying events.
	resolveTimeout = 2 * time.Second
)

// MessageOutcome describes what OnMessage did with a message.
type MessageOutcome int

const (
	// OutcomeDropped means the message was not applied.
	OutcomeDropped MessageOutcome = iota

	// OutcomeApplied means the message was appended to a known conversation.
	OutcomeApplied

	// OutcomeDiscovered means a new conversation was created for the message.
	OutcomeDiscovered
)

// Reconciler owns the conversation list of one viewer.
type Reconciler struct {
	viewerID   string
	directory  user.Directory
	dispatcher IntentDispatcher

	// mu protects conversations, byID and active.
	mu sync.RWMutex

	// conversations is kept ordered by last activity, most recent first.
	conversations []*Conversation
	byID          map[string]*Conversation

	// active is the conversation currently open in the presentation layer.
	active string

	logger zerolog.Logger
}

// NewReconciler creates an empty reconciler for viewerID.
func NewReconciler(viewerID string, directory user.Directory, dispatcher IntentDispatcher, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		viewerID:   viewerID,
		directory:  directory,
		dispatcher: dispatcher,
		byID:       make(map[string]*Conversation),
		logger:     logger,
	}
}

// OnMessage applies an inbound message.
//
// A message for an unknown conversation is only accepted when its id is the one derived from
// the viewer and the sender and the sender resolves in the directory; a new conversation is then
// created for it. Otherwise it is dropped.
func (r *Reconciler) OnMessage(msg Message) (MessageOutcome, Conversation) {
	r.mu.RLock()
	_, known := r.byID[msg.ConversationID]
	r.mu.RUnlock()

	var counterpart user.Summary
	if !known {
		var ok bool
		if counterpart, ok = r.discover(msg); !ok {
			return OutcomeDropped, Conversation{}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	outcome := OutcomeApplied
	conv, ok := r.byID[msg.ConversationID]
	if !ok {
		conv = &Conversation{
			ID:           msg.ConversationID,
			Participants: []user.Summary{counterpart},
		}
		r.byID[conv.ID] = conv
		r.conversations = append(r.conversations, conv)
		outcome = OutcomeDiscovered

		r.logger.Info().
			Str("conversation_id", conv.ID).
			Str("sender_id", msg.SenderID).
			Msg("Conversation discovered from inbound message.")
	}

	if slices.ContainsFunc(conv.Messages, func(m Message) bool { return m.ID == msg.ID }) {
		r.logger.Debug().Str("message_id", msg.ID).Msg("Duplicate message ignored.")
		return OutcomeDropped, Conversation{}
	}

	conv.Messages = append(conv.Messages, msg)
	if over := len(conv.Messages) - MaxHistory; over > 0 {
		conv.Messages = slices.Delete(conv.Messages, 0, over)
	}
	last := msg
	conv.LastMessage = &last
	if msg.SenderID != r.viewerID {
		conv.UnreadCount++
	}

	r.sortLocked()

	return outcome, conv.clone()
}

// discover checks whether msg may open a new conversation and resolves its counterpart.
func (r *Reconciler) discover(msg Message) (user.Summary, bool) {
	if msg.SenderID == r.viewerID || msg.ConversationID != ConversationID(r.viewerID, msg.SenderID) {
		r.logger.Warn().
			Str("conversation_id", msg.ConversationID).
			Str("sender_id", msg.SenderID).
			Msg("Message for unknown conversation dropped.")
		return user.Summary{}, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	sender, err := r.directory.Resolve(ctx, msg.SenderID)
	if err != nil {
		ev := r.logger.Warn()
		if !errors.Is(err, user.ErrUserNotFound) {
			ev = r.logger.Error()
		}
		ev.Err(err).
			Str("conversation_id", msg.ConversationID).
			Str("sender_id", msg.SenderID).
			Msg("Sender of unknown conversation could not be resolved, message dropped.")
		return user.Summary{}, false
	}

	return sender.Summary(), true
}

// OnConnectionAccepted creates the conversation with counterpart, opened by a system greeting,
// at the front of the list. It reports false when the conversation already exists.
func (r *Reconciler) OnConnectionAccepted(counterpart user.Summary) bool {
	id := ConversationID(r.viewerID, counterpart.ID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; ok {
		r.logger.Debug().Str("conversation_id", id).Msg("Conversation already exists, nothing to materialize.")
		return false
	}

	greeting := Message{
		ID:             randx.SystemMessageID(),
		ConversationID: id,
		SenderID:       user.SystemID,
		Content:        ConnectedGreeting,
		Timestamp:      time.Now().UTC(),
		Read:           true,
	}
	last := greeting
	conv := &Conversation{
		ID:           id,
		Participants: []user.Summary{counterpart},
		LastMessage:  &last,
		Messages:     []Message{greeting},
	}

	r.byID[id] = conv
	r.conversations = slices.Insert(r.conversations, 0, conv)

	r.logger.Info().Str("conversation_id", id).Str("counterpart_id", counterpart.ID).Msg("Conversation materialized.")
	return true
}

// SendMessage dispatches content to the counterpart of conversationID.
// Nothing is added locally; the message appears when the server delivers it back.
func (r *Reconciler) SendMessage(conversationID, content string) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}

	r.mu.RLock()
	conv, ok := r.byID[conversationID]
	var counterpart user.Summary
	if ok {
		counterpart, ok = conv.Counterpart()
	}
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn().Str("conversation_id", conversationID).Msg("Send to unknown conversation ignored.")
		return false
	}

	return r.dispatcher.Dispatch(IntentSendMessage, SendMessagePayload{
		ConversationID: conversationID,
		Content:        content,
		RecipientID:    counterpart.ID,
	})
}

// SetActiveConversation opens conversationID and marks it read. An empty id clears the selection.
func (r *Reconciler) SetActiveConversation(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conversationID == "" {
		r.active = ""
		return true
	}

	if _, ok := r.byID[conversationID]; !ok {
		return false
	}
	r.active = conversationID
	r.markReadLocked(conversationID)
	return true
}

// ActiveConversation returns the open conversation id, or "".
func (r *Reconciler) ActiveConversation() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// MarkRead zeroes the unread counter of conversationID and flags its messages read.
func (r *Reconciler) MarkRead(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[conversationID]; !ok {
		return false
	}
	r.markReadLocked(conversationID)
	return true
}

func (r *Reconciler) markReadLocked(conversationID string) {
	conv := r.byID[conversationID]
	conv.UnreadCount = 0
	for i := range conv.Messages {
		conv.Messages[i].Read = true
	}
	if conv.LastMessage != nil {
		conv.LastMessage.Read = true
	}
}

// Seed adds conversations that are not yet known and restores ordering.
func (r *Reconciler) Seed(convs ...Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range convs {
		if _, ok := r.byID[c.ID]; ok {
			continue
		}
		conv := c.clone()
		r.byID[conv.ID] = &conv
		r.conversations = append(r.conversations, &conv)
	}
	r.sortLocked()
}

// Conversations returns a snapshot of the list, most recent first.
func (r *Reconciler) Conversations() []Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Map(r.conversations, func(c *Conversation, _ int) Conversation {
		return c.clone()
	})
}

// Conversation returns a snapshot of one conversation.
func (r *Reconciler) Conversation(id string) (Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.byID[id]
	if !ok {
		return Conversation{}, false
	}
	return conv.clone(), true
}

// TotalUnread is the sum of all unread counters.
func (r *Reconciler) TotalUnread() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.SumBy(r.conversations, func(c *Conversation) int {
		return c.UnreadCount
	})
}

// Reset forgets every conversation.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conversations = nil
	clear(r.byID)
	r.active = ""
}

// sortLocked orders conversations by last activity, most recent first; ties keep their order.
func (r *Reconciler) sortLocked() {
	slices.SortStableFunc(r.conversations, func(a, b *Conversation) int {
		return b.lastActivity().Compare(a.lastActivity())
	})
}
