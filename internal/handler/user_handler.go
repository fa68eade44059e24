/*
Package handler provides HTTP handler functions for browsing the campus directory.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"campusconnect/internal/app/chat"
	"campusconnect/internal/app/user"
	"campusconnect/internal/pkg/auth/jwt"
	"campusconnect/internal/pkg/errs"
	"campusconnect/internal/pkg/logx"
	"campusconnect/internal/pkg/resp"
)

// UserView is a directory profile as returned by the API.
type UserView struct {
	user.User

	// ConnectionStatus is the caller's status with this user, present only for signed-in callers.
	ConnectionStatus chat.ConnectionStatus `json:"connectionStatus,omitempty"`
}

// presentUser resolves the avatar reference of u into a loadable URL.
func (deps *AppDeps) presentUser(r *http.Request, u user.User) user.User {
	avatar, err := deps.Avatars.Resolve(r.Context(), u.Avatar)
	if err != nil {
		logx.Warn("avatar presign failed, omitting avatar", "user_id", u.ID, "error", err.Error())
	}
	u.Avatar = avatar
	return u
}

// viewerSession returns the caller's session, or nil for anonymous or stale tokens.
func (deps *AppDeps) viewerSession(r *http.Request) *chat.Session {
	identity := jwt.GetPayloadFromContext(r)
	if identity == nil {
		return nil
	}
	return deps.Manager.GetSession(identity.ID, identity.SessionID)
}

func (deps *AppDeps) userView(r *http.Request, session *chat.Session, u user.User) UserView {
	view := UserView{User: deps.presentUser(r, u)}
	if session != nil && u.ID != session.Viewer.ID {
		view.ConnectionStatus = session.ConnectionStatus(u.ID)
	}
	return view
}

// HandleListUsers returns every directory profile.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := deps.Directory.List(r.Context())
		if err != nil {
			logx.Error(err, "failed to list directory users")
			resp.RespondError(w, r, errs.NewError(errs.ErrDirectoryUnavailable))
			return
		}

		session := deps.viewerSession(r)
		views := make([]UserView, 0, len(users))
		for _, u := range users {
			views = append(views, deps.userView(r, session, u))
		}

		resp.RespondSuccess(w, r, map[string]any{
			"users": views,
		})
	}
}

// HandleGetUser returns one directory profile.
func HandleGetUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		u, err := deps.Directory.Resolve(r.Context(), id)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			logx.Error(err, "failed to resolve directory user", "user_id", id)
			resp.RespondError(w, r, errs.NewError(errs.ErrDirectoryUnavailable))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user": deps.userView(r, deps.viewerSession(r), u),
		})
	}
}
