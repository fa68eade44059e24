package handler

import (
	"net/http"

	"golang.org/x/time/rate"

	"campusconnect/internal/app/chat"
	"campusconnect/internal/app/storage"
	"campusconnect/internal/app/user"
	"campusconnect/internal/configs"
	"campusconnect/internal/pkg/auth/jwt"
	"campusconnect/internal/pkg/errs"
	"campusconnect/internal/pkg/limiter"
)

type AppDeps struct {
	Manager   *chat.Manager
	Config    *configs.AppConfig
	Directory user.Directory
	Avatars   *storage.AvatarResolver
	Limits    *RateLimits
}

// RateLimits holds the keyed limiters shared by every router built from the same deps.
type RateLimits struct {
	Login   *limiter.KeyedRateLimiter
	Upgrade *limiter.KeyedRateLimiter
	Intent  *limiter.KeyedRateLimiter
}

// NewRateLimits starts the login, upgrade and intent limiters. Call Stop at shutdown.
func NewRateLimits() *RateLimits {
	return &RateLimits{
		Login:   limiter.New(rate.Limit(LoginRate), LoginBurst),
		Upgrade: limiter.New(rate.Limit(UpgradeRate), UpgradeBurst),
		Intent:  limiter.New(rate.Limit(IntentRate), IntentBurst),
	}
}

// Stop terminates the sweepers of every limiter.
func (l *RateLimits) Stop() {
	l.Login.Stop()
	l.Upgrade.Stop()
	l.Intent.Stop()
}

// currentSession returns the live session the request's token is bound to.
func (deps *AppDeps) currentSession(r *http.Request) (*chat.Session, *errs.CustomError) {
	identity := jwt.GetPayloadFromContext(r)
	if identity == nil {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	session := deps.Manager.GetSession(identity.ID, identity.SessionID)
	if session == nil {
		return nil, errs.NewError(errs.ErrSessionNotFound)
	}
	return session, nil
}
