package handler

import (
	"net/http"

	"campusconnect/internal/pkg/req"
	"campusconnect/internal/pkg/resp"
)

type ConnectionRequestInput struct {
	RecipientID string `json:"recipientId"`
}

// HandleListConnections returns the caller's connection status per user.
func HandleListConnections(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, customErr := deps.currentSession(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"connections": session.Snapshot().Connections,
		})
	}
}

// HandleRequestConnection sends a connection request. The status is PENDING until the server answers.
func HandleRequestConnection(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, customErr := deps.currentSession(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input ConnectionRequestInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := session.HandleConnectionRequest(r.Context(), input.RecipientID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"recipientId": input.RecipientID,
			"status":      session.ConnectionStatus(input.RecipientID),
		})
	}
}
