/*
Package handler provides the HTTP handlers and routing setup for the Campus Connect server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and keyed rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"campusconnect/internal/pkg/auth/jwt"
	"campusconnect/internal/pkg/limiter"
	"campusconnect/internal/pkg/logx"
	"campusconnect/internal/pkg/resp"
)

const (
	LoginRate    = 0.2
	LoginBurst   = 5
	UpgradeRate  = 0.2
	UpgradeBurst = 5
	IntentRate   = 5
	IntentBurst  = 10
)

// viewerKey keys intent limits by the authenticated viewer, falling back to the client IP.
func viewerKey(r *http.Request) string {
	if identity := jwt.GetPayloadFromContext(r); identity != nil {
		return identity.ID
	}
	return limiter.ClientIP(r)
}

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It configures CORS and applies global and per-route middleware, rate limiting with deps.Limits.
func Router(deps *AppDeps) http.Handler {
	loginLimiter := deps.Limits.Login
	upgradeLimiter := deps.Limits.Upgrade
	intentLimiter := deps.Limits.Intent

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		logx.Debug("Health check endpoint hit")

		data := map[string]any{
			"status":   "ok",
			"service":  "Campus Connect Server",
			"sessions": deps.Manager.Count(),
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/session", func(session chi.Router) {
			session.With(loginLimiter.Middleware(limiter.ClientIP)).Post("/login", HandleLogin(deps))

			session.Group(func(authed chi.Router) {
				authed.Use(jwt.RequireIdentity)
				authed.Post("/logout", HandleLogout(deps))
				authed.Get("/", HandleGetSession(deps))
			})
		})

		api.Route("/users", func(users chi.Router) {
			users.Get("/", HandleListUsers(deps))
			users.Get("/{id}", HandleGetUser(deps))
		})

		api.Group(func(authed chi.Router) {
			authed.Use(jwt.RequireIdentity)

			authed.Route("/conversations", func(convs chi.Router) {
				convs.Get("/", HandleListConversations(deps))
				convs.Post("/active", HandleSetActiveConversation(deps))
				convs.Get("/{id}", HandleGetConversation(deps))
				convs.With(intentLimiter.Middleware(viewerKey)).Post("/{id}/messages", HandleSendMessage(deps))
				convs.Post("/{id}/read", HandleMarkRead(deps))
			})

			authed.Route("/connections", func(conns chi.Router) {
				conns.Get("/", HandleListConnections(deps))
				conns.With(intentLimiter.Middleware(viewerKey)).Post("/", HandleRequestConnection(deps))
			})
		})
	})

	r.With(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret)).
		Get("/ws", HandleWebSocket(wsUpgrader, upgradeLimiter, intentLimiter, deps))

	return r
}
