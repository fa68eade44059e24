/*
Package handler provides HTTP handler functions for signing viewers in and out.

Identity verification belongs to the campus directory; login here only selects a directory profile
and starts its realtime session, returning a token bound to that session.
*/
package handler

import (
	"errors"
	"net/http"
	"time"

	"campusconnect/internal/app/user"
	"campusconnect/internal/pkg/auth/jwt"
	"campusconnect/internal/pkg/errs"
	"campusconnect/internal/pkg/logx"
	"campusconnect/internal/pkg/randx"
	"campusconnect/internal/pkg/req"
	"campusconnect/internal/pkg/resp"
)

type LoginInput struct {
	UserID string `json:"userId"`
}

// HandleLogin starts a session for the selected profile. A previous session of the same viewer is replaced.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !randx.IsValidUserID(input.UserID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		session, err := deps.Manager.Login(r.Context(), input.UserID)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				logx.Warn("login rejected: unknown user", "user_id", input.UserID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}

			logx.Error(err, "login: directory lookup failed", "user_id", input.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrDirectoryUnavailable))
			return
		}

		payload := &jwt.Payload{
			ID:        session.Viewer.ID,
			Name:      session.Viewer.Name,
			SessionID: session.ID,
		}

		tokenString, err := jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.SessionExpiration)
		if err != nil {
			logx.Error(err, "failed to generate token after login", "user_id", session.Viewer.ID)
			deps.Manager.Logout(session.Viewer.ID, session.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token":     tokenString,
			"expiresAt": payload.Expiry().Format(time.RFC3339),
			"sessionId": session.ID,
			"user":      deps.presentUser(r, session.Viewer),
		})
	}
}

// HandleLogout ends the session the token is bound to.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if !deps.Manager.Logout(identity.ID, identity.SessionID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrSessionNotFound))
			return
		}

		logx.Info("viewer logged out", "user_id", identity.ID, "session_id", identity.SessionID)
		resp.RespondSuccess(w, r, nil)
	}
}

// HandleGetSession returns the presentation state of the caller's session.
func HandleGetSession(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, customErr := deps.currentSession(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user":  deps.presentUser(r, session.Viewer),
			"state": session.Snapshot(),
		})
	}
}
