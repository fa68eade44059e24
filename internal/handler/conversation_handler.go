/*
Package handler provides HTTP handler functions for the viewer's conversations.

Sending is asynchronous: a successful send only means the message was dispatched. It shows up in
the conversation once the server delivers it back, which the WebSocket stream reports.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"campusconnect/internal/pkg/errs"
	"campusconnect/internal/pkg/req"
	"campusconnect/internal/pkg/resp"
)

type SendMessageInput struct {
	Content string `json:"content"`
}

type ActiveConversationInput struct {
	ConversationID string `json:"conversationId"`
}

// HandleListConversations returns the ordered conversation list and the unread total.
func HandleListConversations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, customErr := deps.currentSession(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"conversations":        session.Conversations(),
			"totalUnread":          session.TotalUnread(),
			"activeConversationId": session.Snapshot().ActiveConversationID,
		})
	}
}

// HandleGetConversation returns one conversation with its history.
func HandleGetConversation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, customErr := deps.currentSession(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		conv, ok := session.Conversation(chi.URLParam(r, "id"))
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrConversationNotFound))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"conversation": conv,
		})
	}
}

// HandleSetActiveConversation opens a conversation, marking it read. An empty id clears the selection.
func HandleSetActiveConversation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, customErr := deps.currentSession(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input ActiveConversationInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := session.HandleSetActiveConversation(input.ConversationID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"activeConversationId": input.ConversationID,
			"totalUnread":          session.TotalUnread(),
		})
	}
}

// HandleSendMessage dispatches a message into a conversation.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, customErr := deps.currentSession(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input SendMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		conversationID := chi.URLParam(r, "id")
		if customErr := session.HandleSendMessage(conversationID, input.Content); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondJSON(w, r, http.StatusAccepted, resp.JSONResponse{
			Code:    0,
			Message: "dispatched",
			Data: map[string]any{
				"conversationId": conversationID,
			},
		})
	}
}

// HandleMarkRead clears the unread counter of a conversation.
func HandleMarkRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, customErr := deps.currentSession(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := session.HandleMarkRead(chi.URLParam(r, "id")); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"totalUnread": session.TotalUnread(),
		})
	}
}
