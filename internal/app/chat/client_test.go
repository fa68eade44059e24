package chat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"campusconnect/internal/pkg/auth/jwt"
	"campusconnect/internal/pkg/errs"
)

type wireFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dialClient(t *testing.T, s *Session) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(s, conn, time.Now().Add(time.Hour), "secret", nil)
		c.Start()
		go c.WritePump()
		c.ReadPump()
	}))
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readUntil reads frames until one of type want arrives.
func readUntil(t *testing.T, ws *websocket.Conn, want string) json.RawMessage {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(waitFor)))
	for {
		var f wireFrame
		require.NoError(t, ws.ReadJSON(&f))
		if f.Type == want {
			return f.Payload
		}
	}
}

func TestClient_InitDataCarriesSnapshot(t *testing.T) {
	s := startSession(t, fastSimulator())
	seedConv1(s)

	ws := dialClient(t, s)

	var init InitDataPayload
	require.NoError(t, json.Unmarshal(readUntil(t, ws, string(FrameInitData)), &init))
	require.Equal(t, "u1", init.Viewer.ID)
	require.Equal(t, "CONNECTED", init.State.Connection)
	require.Len(t, init.State.Conversations, 1)
	require.Equal(t, 1, init.State.TotalUnread)
}

func TestClient_SendMessageStreamsEventAndState(t *testing.T) {
	s := startSession(t, fastSimulator())
	seedConv1(s)

	ws := dialClient(t, s)
	readUntil(t, ws, string(FrameInitData))

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type":    "send_message",
		"payload": map[string]string{"conversationId": "conv_1", "content": "hello"},
	}))

	var msg Message
	require.NoError(t, json.Unmarshal(readUntil(t, ws, string(EventNewMessage)), &msg))
	require.Equal(t, "hello", msg.Content)
	require.Equal(t, "u1", msg.SenderID)

	var state Snapshot
	require.NoError(t, json.Unmarshal(readUntil(t, ws, string(FrameState)), &state))
	require.Equal(t, "hello", state.Conversations[0].LastMessage.Content)
}

func TestClient_MarkReadAndErrors(t *testing.T) {
	s := startSession(t, fastSimulator())
	seedConv1(s)

	ws := dialClient(t, s)
	readUntil(t, ws, string(FrameInitData))

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type":    "mark_read",
		"payload": map[string]string{"conversationId": "conv_1"},
	}))
	var state Snapshot
	require.NoError(t, json.Unmarshal(readUntil(t, ws, string(FrameState)), &state))
	require.Zero(t, state.TotalUnread)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var cErr errs.CustomError
	require.NoError(t, json.Unmarshal(readUntil(t, ws, string(FrameError)), &cErr))
	require.Equal(t, errs.ErrInvalidJSONFormat, cErr.Code)

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type":    "send_message",
		"payload": map[string]string{"conversationId": "conv_404", "content": "hi"},
	}))
	require.NoError(t, json.Unmarshal(readUntil(t, ws, string(FrameError)), &cErr))
	require.Equal(t, errs.ErrConversationNotFound, cErr.Code)
}

func TestClient_ClosedWhenSessionEnds(t *testing.T) {
	s := startSession(t, fastSimulator())

	ws := dialClient(t, s)
	readUntil(t, ws, string(FrameInitData))

	s.Logout()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(waitFor)))
	for {
		_, _, err := ws.ReadMessage()
		if err != nil {
			require.True(t, websocket.IsCloseError(err, WsCloseCodeSessionEnded))
			return
		}
	}
}

func TestClient_TokenRefresh(t *testing.T) {
	s := startSession(t, fastSimulator())

	c := NewClient(s, nil, time.Now(), "secret", nil)
	c.checkAndRefreshToken()

	var f wireFrame
	require.NoError(t, json.Unmarshal(<-c.send, &f))
	require.Equal(t, string(FrameTokenUpdate), f.Type)

	var update TokenUpdatePayload
	require.NoError(t, json.Unmarshal(f.Payload, &update))

	payload, err := jwt.ParseToken(update.Token, "secret")
	require.NoError(t, err)
	require.Equal(t, "u1", payload.ID)
	require.Equal(t, s.ID, payload.SessionID)
	require.True(t, c.tokenExpiry.After(time.Now().Add(time.Hour)))
}

func TestClient_InitDataPrecedesForwardedEvents(t *testing.T) {
	s := startSession(t, fastSimulator())
	seedConv1(s)

	c := NewClient(s, nil, time.Now().Add(time.Hour), "secret", nil)
	c.subscribe()

	require.True(t, s.bus.Publish(EventNewMessage, Message{ID: "early", ConversationID: "conv_1", SenderID: "u2", Content: "early", Timestamp: time.Now()}))
	flushed := make(chan bool, 1)
	go func() { flushed <- s.Flush() }()

	select {
	case <-flushed:
		t.Fatal("event forwarded before the initial snapshot was queued")
	case <-time.After(20 * time.Millisecond):
	}
	require.Empty(t, c.send)

	c.sendInitData()
	require.True(t, <-flushed)

	var types []string
	for len(c.send) > 0 {
		var f wireFrame
		require.NoError(t, json.Unmarshal(<-c.send, &f))
		types = append(types, f.Type)
	}
	require.Equal(t, []string{string(FrameInitData), string(EventNewMessage), string(FrameState)}, types)
}
