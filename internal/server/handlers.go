// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/doorkeep/doorkeep/internal/auth"
	"github.com/doorkeep/doorkeep/internal/observability"
)

// Operation labels for the auth request counter.
const (
	opRegister = "register"
	opLogin    = "login"
	opLogout   = "logout"
)

func (s *Server) handleRegister(c echo.Context) error {
	err := s.auth.Register(c.Request().Context(), currentSession(c), payload(c))
	if err != nil {
		return s.renderError(c, opRegister, err)
	}

	s.recordResult(opRegister, observability.ResultSuccess)
	return c.JSON(http.StatusCreated, map[string]any{
		"status":  http.StatusCreated,
		"message": auth.MsgRegistered,
	})
}

func (s *Server) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	sess, token, user, err := s.auth.Login(ctx, currentSession(c), payload(c),
		c.Request().UserAgent(), c.RealIP())
	if err != nil {
		return s.renderError(c, opLogin, err)
	}

	cookie, _ := s.sessionStore.New(c.Request(), s.cookieName)
	cookie.Values[sessionKeyToken] = token
	if err := cookie.Save(c.Request(), c.Response().Writer); err != nil {
		// The session row exists but the client never got the token;
		// drop the orphan so it does not linger until the sweep.
		if delErr := s.auth.Logout(ctx, sess); delErr != nil {
			s.logger.Warn("failed to clean up orphaned session", "error", delErr)
		}
		s.logger.Error("failed to write session cookie", "error", err)
		s.recordResult(opLogin, observability.ResultError)
		return s.renderRejection(c, http.StatusInternalServerError, auth.InternalMessage)
	}

	s.recordResult(opLogin, observability.ResultSuccess)
	if s.metrics != nil {
		s.metrics.SessionsCreatedTotal.Inc()
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":  http.StatusOK,
		"message": auth.MsgLoginSuccessful,
		"user": userPayload{
			Username: user.Username,
			Email:    user.Email,
		},
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	if err := s.auth.Logout(c.Request().Context(), currentSession(c)); err != nil {
		return s.renderError(c, opLogout, err)
	}

	s.dropCookie(c)
	s.recordResult(opLogout, observability.ResultSuccess)
	return c.JSON(http.StatusOK, map[string]any{
		"status":  http.StatusOK,
		"message": auth.MsgLoggedOut,
	})
}
