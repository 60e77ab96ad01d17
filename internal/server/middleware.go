// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/doorkeep/doorkeep/internal/auth"
)

// Context keys for values the middleware chain hands to handlers.
const (
	ctxKeySession = "doorkeep.session"
	ctxKeyPayload = "doorkeep.payload"
)

// Messages owned by the HTTP boundary rather than the core.
const (
	msgInvalidContentType = "Invalid content type. Please send JSON."
	msgInvalidJSONPrefix  = "Invalid JSON: "
)

// requireJSON rejects non-JSON requests and decodes the body into a
// generic payload map. An explicit JSON null decodes to a nil map,
// which the core reports as missing data.
func (s *Server) requireJSON(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		mediaType, _, err := mime.ParseMediaType(c.Request().Header.Get(echo.HeaderContentType))
		if err != nil || mediaType != echo.MIMEApplicationJSON {
			return s.renderRejection(c, http.StatusBadRequest, msgInvalidContentType)
		}

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return s.renderRejection(c, http.StatusBadRequest, msgInvalidJSONPrefix+err.Error())
		}

		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			return s.renderRejection(c, http.StatusBadRequest, msgInvalidJSONPrefix+err.Error())
		}

		c.Set(ctxKeyPayload, payload)
		return next(c)
	}
}

// loadSession resolves the signed cookie to a live server-side
// session. A missing, invalid, or expired token leaves the request
// unauthenticated and evicts the stale cookie.
func (s *Server) loadSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := s.sessionStore.Get(c.Request(), s.cookieName)
		if err != nil {
			// Tampered or unparsable cookie: treat as anonymous.
			s.dropCookie(c)
			return next(c)
		}

		token, _ := cookie.Values[sessionKeyToken].(string)
		if token == "" {
			return next(c)
		}

		sess, err := s.auth.ValidateSession(c.Request().Context(), token)
		if err != nil {
			s.dropCookie(c)
			return next(c)
		}

		c.Set(ctxKeySession, sess)
		return next(c)
	}
}

// requireAuth guards routes that need a resolved session.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentSession(c) == nil {
			return s.renderRejection(c, http.StatusUnauthorized, auth.MsgLoginRequired)
		}
		return next(c)
	}
}

// currentSession returns the session loadSession resolved, or nil.
func currentSession(c echo.Context) *auth.Session {
	sess, _ := c.Get(ctxKeySession).(*auth.Session)
	return sess
}

// payload returns the decoded JSON body requireJSON stored.
func payload(c echo.Context) map[string]any {
	p, _ := c.Get(ctxKeyPayload).(map[string]any)
	return p
}

// dropCookie expires the session cookie on the client. Best effort:
// the server-side session row is the source of truth either way.
func (s *Server) dropCookie(c echo.Context) {
	// New still returns a usable session when the inbound cookie
	// fails to decode.
	cookie, _ := s.sessionStore.New(c.Request(), s.cookieName)
	cookie.Options.MaxAge = -1
	if err := cookie.Save(c.Request(), c.Response().Writer); err != nil {
		s.logger.Warn("failed to expire session cookie", "error", err)
	}
}
