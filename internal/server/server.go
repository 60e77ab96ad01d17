// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/oops"

	"github.com/doorkeep/doorkeep/internal/auth"
	"github.com/doorkeep/doorkeep/internal/config"
	"github.com/doorkeep/doorkeep/internal/observability"
)

// sessionKeyToken is the cookie value slot holding the opaque session
// token. The token itself is random; the cookie is signed so a client
// cannot forge or splice values, but the server-side lookup is what
// actually authenticates.
const sessionKeyToken = "token"

// Server wires the auth service into an echo HTTP server.
type Server struct {
	echo         *echo.Echo
	addr         string
	auth         *auth.Service
	metrics      *observability.Metrics
	sessionStore *sessions.CookieStore
	cookieName   string
	logger       *slog.Logger
}

// New builds the HTTP server. The session cookie secret must be
// non-empty: an unsigned cookie would let clients tamper with the
// token slot undetected.
func New(cfg *config.Config, svc *auth.Service, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	if cfg.Session.Secret == "" {
		return nil, oops.Code("SERVER_CONFIG_INVALID").Errorf("session cookie secret is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	store := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(auth.SessionTokenExpiry.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Session.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	srv := &Server{
		echo:         e,
		addr:         cfg.Server.Addr,
		auth:         svc,
		metrics:      metrics,
		sessionStore: store,
		cookieName:   cfg.Session.CookieName,
		logger:       logger,
	}

	e.HTTPErrorHandler = srv.httpErrorHandler
	e.Use(srv.requestLogger)
	srv.registerRoutes()

	return srv, nil
}

func (s *Server) registerRoutes() {
	g := s.echo.Group("/auth", s.loadSession)
	g.POST("/register", s.handleRegister, s.requireJSON)
	g.POST("/login", s.handleLogin, s.requireJSON)
	g.GET("/logout", s.handleLogout, s.requireAuth)
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.addr)
	err := s.echo.Start(s.addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return oops.Code("SERVER_START_FAILED").With("addr", s.addr).Wrap(err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// httpErrorHandler shapes framework-level failures (unknown route,
// wrong method, panics surfaced by Recover) into the standard
// envelope so clients never see echo's default error body.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := auth.InternalMessage

	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch status {
		case http.StatusNotFound:
			message = "The requested resource was not found."
		case http.StatusMethodNotAllowed:
			message = "The method is not allowed for the requested URL."
		default:
			message = auth.InternalMessage
		}
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("unhandled server error", "error", err)
	}

	if err := s.renderRejection(c, status, message); err != nil {
		s.logger.Warn("failed to write error response", "error", err)
	}
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		s.logger.Info("request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"remote", c.RealIP(),
		)
		return err
	}
}
