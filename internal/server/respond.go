// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"

	"github.com/doorkeep/doorkeep/internal/auth"
	"github.com/doorkeep/doorkeep/internal/observability"
	"github.com/doorkeep/doorkeep/pkg/errutil"
)

// errorEnvelope is the shape of every failure response.
type errorEnvelope struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// userPayload is the public view of a user returned on login.
type userPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// renderRejection writes the failure envelope for boundary-level
// rejections that never reached the core.
func (s *Server) renderRejection(c echo.Context, status int, message string) error {
	return c.JSON(status, errorEnvelope{
		Status:  status,
		Error:   http.StatusText(status),
		Message: message,
	})
}

// renderError maps a core error to its HTTP response and records the
// outcome. Internal failures keep their cause in the server log and
// surface only a generic message.
func (s *Server) renderError(c echo.Context, operation string, err error) error {
	status := http.StatusInternalServerError
	message := auth.InternalMessage

	if oopsErr, ok := oops.AsOops(err); ok {
		status = auth.StatusForCode(oopsErr.Code())
		if status != http.StatusInternalServerError {
			message = oopsErr.Error()
		}
	}

	if status == http.StatusInternalServerError {
		errutil.LogError(s.logger, "auth operation failed", err)
		s.recordResult(operation, observability.ResultError)
	} else {
		s.recordResult(operation, observability.ResultRejected)
	}

	return s.renderRejection(c, status, message)
}

func (s *Server) recordResult(operation, result string) {
	if s.metrics != nil {
		s.metrics.RecordAuthRequest(operation, result)
	}
}
