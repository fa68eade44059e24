package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"campusconnect/internal/app/user"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newReconciler(accept bool) (*Reconciler, *stubDispatcher) {
	d := &stubDispatcher{accept: accept}
	return NewReconciler("u1", testDirectory(), d, zerolog.Nop()), d
}

func seeded(id, counterpart string, at time.Time) Conversation {
	last := Message{ID: id + "_m0", ConversationID: id, SenderID: counterpart, Content: "hey", Timestamp: at}
	return Conversation{
		ID:           id,
		Participants: []user.Summary{{ID: counterpart}},
		LastMessage:  &last,
		Messages:     []Message{last},
	}
}

func ids(convs []Conversation) []string {
	out := make([]string, 0, len(convs))
	for _, c := range convs {
		out = append(out, c.ID)
	}
	return out
}

func TestReconciler_InboundMessageIncrementsUnreadAndReorders(t *testing.T) {
	r, _ := newReconciler(true)
	r.Seed(seeded("C1", "u2", base.Add(-2*time.Hour)), seeded("C2", "u3", base.Add(-time.Hour)))
	require.Equal(t, []string{"C2", "C1"}, ids(r.Conversations()))

	outcome, conv := r.OnMessage(Message{ID: "x", ConversationID: "C1", SenderID: "u2", Content: "ping", Timestamp: base})
	require.Equal(t, OutcomeApplied, outcome)
	require.Equal(t, "x", conv.LastMessage.ID)

	convs := r.Conversations()
	require.Equal(t, []string{"C1", "C2"}, ids(convs))
	require.Equal(t, 1, convs[0].UnreadCount)
	require.Equal(t, "ping", convs[0].LastMessage.Content)
	require.Equal(t, 1, r.TotalUnread())
}

func TestReconciler_OwnMessageDoesNotCountAsUnread(t *testing.T) {
	r, _ := newReconciler(true)
	r.Seed(seeded("conv_1", "u2", base.Add(-time.Hour)))

	r.OnMessage(Message{ID: "m1", ConversationID: "conv_1", SenderID: "u1", Content: "hello", Timestamp: base})

	conv, ok := r.Conversation("conv_1")
	require.True(t, ok)
	require.Zero(t, conv.UnreadCount)
	require.Equal(t, "hello", conv.LastMessage.Content)
	require.Len(t, conv.Messages, 2)
}

func TestReconciler_UnreadGrowsByOnePerInbound(t *testing.T) {
	r, _ := newReconciler(true)
	r.Seed(seeded("conv_1", "u2", base.Add(-time.Hour)))

	for i := range 5 {
		r.OnMessage(Message{
			ID:             fmt.Sprintf("m%d", i),
			ConversationID: "conv_1",
			SenderID:       "u2",
			Timestamp:      base.Add(time.Duration(i) * time.Second),
		})
		conv, _ := r.Conversation("conv_1")
		require.Equal(t, i+1, conv.UnreadCount)
	}
}

func TestReconciler_DuplicateMessageIgnored(t *testing.T) {
	r, _ := newReconciler(true)
	r.Seed(seeded("conv_1", "u2", base.Add(-time.Hour)))

	msg := Message{ID: "m1", ConversationID: "conv_1", SenderID: "u2", Timestamp: base}
	r.OnMessage(msg)
	outcome, _ := r.OnMessage(msg)

	require.Equal(t, OutcomeDropped, outcome)
	conv, _ := r.Conversation("conv_1")
	require.Equal(t, 1, conv.UnreadCount)
	require.Len(t, conv.Messages, 2)
}

func TestReconciler_UnknownConversationFromKnownSenderIsDiscovered(t *testing.T) {
	r, _ := newReconciler(true)

	id := ConversationID("u1", "u4")
	outcome, conv := r.OnMessage(Message{ID: "m1", ConversationID: id, SenderID: "u4", Content: "hi", Timestamp: base})

	require.Equal(t, OutcomeDiscovered, outcome)
	require.Equal(t, id, conv.ID)
	require.Equal(t, "u4", conv.Participants[0].ID)
	require.NotEmpty(t, conv.Participants[0].Name)
	require.Equal(t, 1, conv.UnreadCount)
	require.Equal(t, 1, r.TotalUnread())
}

func TestReconciler_UnknownConversationDropped(t *testing.T) {
	cases := map[string]Message{
		"mismatched id":  {ID: "m1", ConversationID: "conv_99", SenderID: "u4"},
		"own message":    {ID: "m2", ConversationID: ConversationID("u1", "u1"), SenderID: "u1"},
		"unknown sender": {ID: "m3", ConversationID: ConversationID("u1", "ghost"), SenderID: "ghost"},
	}

	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			r, _ := newReconciler(true)

			outcome, _ := r.OnMessage(msg)
			require.Equal(t, OutcomeDropped, outcome)
			require.Empty(t, r.Conversations())
			require.Zero(t, r.TotalUnread())
		})
	}
}

func TestReconciler_ConnectionAcceptedPrependsOnce(t *testing.T) {
	r, _ := newReconciler(true)
	r.Seed(seeded("C1", "u2", base))

	u3 := user.Summary{ID: "u3", Name: "Jordan"}
	require.True(t, r.OnConnectionAccepted(u3))
	require.False(t, r.OnConnectionAccepted(u3))

	convs := r.Conversations()
	require.Equal(t, []string{ConversationID("u1", "u3"), "C1"}, ids(convs))

	created := convs[0]
	require.Zero(t, created.UnreadCount)
	require.Len(t, created.Messages, 1)
	require.Equal(t, user.SystemID, created.LastMessage.SenderID)
	require.Equal(t, ConnectedGreeting, created.LastMessage.Content)
	require.True(t, created.LastMessage.Read)
}

func TestReconciler_AcceptedMatchesSeededConversation(t *testing.T) {
	r, _ := newReconciler(true)
	r.Seed(DemoConversation("u1", user.Summary{ID: "u2"}, base))

	require.False(t, r.OnConnectionAccepted(user.Summary{ID: "u2"}))
	require.Len(t, r.Conversations(), 1)
}

func TestReconciler_SendMessageDispatchesWithoutLocalAppend(t *testing.T) {
	r, d := newReconciler(true)
	r.Seed(seeded("conv_1", "u2", base))

	require.True(t, r.SendMessage("conv_1", "hello"))
	require.Equal(t, []Intent{{
		Type:    IntentSendMessage,
		Payload: SendMessagePayload{ConversationID: "conv_1", Content: "hello", RecipientID: "u2"},
	}}, d.sent())

	conv, _ := r.Conversation("conv_1")
	require.Len(t, conv.Messages, 1)

	require.False(t, r.SendMessage("conv_1", "   "))
	require.False(t, r.SendMessage("conv_404", "hello"))
	require.Len(t, d.sent(), 1)
}

func TestReconciler_SetActiveMarksOnlyThatConversationRead(t *testing.T) {
	r, _ := newReconciler(true)
	r.Seed(seeded("C1", "u2", base.Add(-time.Hour)), seeded("C2", "u3", base.Add(-2*time.Hour)))
	r.OnMessage(Message{ID: "a", ConversationID: "C1", SenderID: "u2", Timestamp: base})
	r.OnMessage(Message{ID: "b", ConversationID: "C2", SenderID: "u3", Timestamp: base.Add(time.Second)})
	require.Equal(t, 2, r.TotalUnread())

	require.True(t, r.SetActiveConversation("C1"))
	require.Equal(t, "C1", r.ActiveConversation())

	c1, _ := r.Conversation("C1")
	c2, _ := r.Conversation("C2")
	require.Zero(t, c1.UnreadCount)
	require.True(t, c1.LastMessage.Read)
	require.Equal(t, 1, c2.UnreadCount)
	require.False(t, c2.LastMessage.Read)
	require.Equal(t, 1, r.TotalUnread())

	require.False(t, r.SetActiveConversation("nope"))
	require.Equal(t, "C1", r.ActiveConversation())
	require.True(t, r.SetActiveConversation(""))
	require.Empty(t, r.ActiveConversation())
}

func TestReconciler_MarkRead(t *testing.T) {
	r, _ := newReconciler(true)
	r.Seed(DemoConversation("u1", user.Summary{ID: "u2"}, base))
	id := ConversationID("u1", "u2")
	require.Equal(t, 1, r.TotalUnread())

	require.True(t, r.MarkRead(id))
	require.Zero(t, r.TotalUnread())
	require.False(t, r.MarkRead("missing"))
}

func TestReconciler_HistoryIsCapped(t *testing.T) {
	r, _ := newReconciler(true)
	r.Seed(Conversation{ID: "conv_1", Participants: []user.Summary{{ID: "u2"}}})

	for i := range MaxHistory + 10 {
		r.OnMessage(Message{ID: fmt.Sprintf("m%d", i), ConversationID: "conv_1", SenderID: "u2", Timestamp: base.Add(time.Duration(i) * time.Second)})
	}

	conv, _ := r.Conversation("conv_1")
	require.Len(t, conv.Messages, MaxHistory)
	require.Equal(t, "m10", conv.Messages[0].ID)
	require.Equal(t, MaxHistory+10, conv.UnreadCount)
}

func TestReconciler_NilLastMessageSortsLast(t *testing.T) {
	r, _ := newReconciler(true)
	r.Seed(Conversation{ID: "empty", Participants: []user.Summary{{ID: "u4"}}}, seeded("C1", "u2", base))

	require.Equal(t, []string{"C1", "empty"}, ids(r.Conversations()))
}

func TestReconciler_Reset(t *testing.T) {
	r, _ := newReconciler(true)
	r.Seed(seeded("C1", "u2", base))
	r.SetActiveConversation("C1")

	r.Reset()
	require.Empty(t, r.Conversations())
	require.Empty(t, r.ActiveConversation())
	require.Zero(t, r.TotalUnread())
}
