/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, resolving
the caller's session from its token, upgrading the HTTP connection to WebSocket, and initiating the
client lifecycle.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"campusconnect/internal/app/chat"
	"campusconnect/internal/pkg/auth/jwt"
	"campusconnect/internal/pkg/errs"
	"campusconnect/internal/pkg/limiter"
	"campusconnect/internal/pkg/logx"
	"campusconnect/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// upgradeLimiter is keyed by client IP; intentLimiter throttles inbound frames per viewer.
func HandleWebSocket(upgrader websocket.Upgrader, upgradeLimiter, intentLimiter *limiter.KeyedRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)
		if !upgradeLimiter.Allow(ip) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		session, customErr := deps.currentSession(r)
		if customErr != nil {
			logx.Info("WebSocket connection rejected: no live session.", "code", customErr.Code)
			resp.RespondError(w, r, customErr)
			return
		}
		identity := jwt.GetPayloadFromContext(r)

		logx.Info("Attempting to upgrade connection", "viewer_id", session.Viewer.ID, "session_id", session.ID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(session, conn, identity.Expiry(), deps.Config.JWTSecret, intentLimiter)
		client.Start()

		go client.WritePump()

		logx.Info("WebSocket connection established and client subscribed", "viewer_id", session.Viewer.ID)

		client.ReadPump()
	}
}
