// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by all endpoints: the error
// envelope, fail/ok/noContent, and the mapping from service errors to
// statuses and codes.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-persian-chat/internal/http/middleware"
	"github.com/tbourn/go-persian-chat/internal/llm"
	"github.com/tbourn/go-persian-chat/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"unauthorized"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"کاربر شناسایی نشد"`
}

// fail aborts the request with a structured error. 5xx responses are logged
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// NotFound and MethodNotAllowed are the router fallbacks.
func NotFound(c *gin.Context) { fail(c, http.StatusNotFound, ErrCodeNotFound, msgNotFound) }

func MethodNotAllowed(c *gin.Context) {
	fail(c, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, msgMethodNotAllowed)
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// errorInfo is the HTTP rendering of a service error.
type errorInfo struct {
	status int
	code   string
	msg    string
}

// classify maps service and provider errors to status, code and message.
// Order matters: specific sentinels wrap ErrInvalidInput and must be checked
// before it.
func classify(err error) errorInfo {
	switch {
	case errors.Is(err, services.ErrInvalidToken):
		return errorInfo{http.StatusBadRequest, ErrCodeInvalidToken, msgInvalidToken}
	case errors.Is(err, services.ErrEmptyMessage):
		return errorInfo{http.StatusBadRequest, ErrCodeBadRequest, msgEmptyMessage}
	case errors.Is(err, services.ErrTooLong):
		return errorInfo{http.StatusBadRequest, ErrCodeBadRequest, msgTooLong}
	case errors.Is(err, services.ErrInvalidEmail):
		return errorInfo{http.StatusBadRequest, ErrCodeBadRequest, msgInvalidEmail}
	case errors.Is(err, services.ErrWeakPassword):
		return errorInfo{http.StatusBadRequest, ErrCodeBadRequest, msgWeakPassword}
	case errors.Is(err, services.ErrInvalidAvatar):
		return errorInfo{http.StatusBadRequest, ErrCodeBadRequest, msgInvalidAvatar}
	case errors.Is(err, services.ErrInvalidInput):
		return errorInfo{http.StatusBadRequest, ErrCodeBadRequest, msgBadRequest}

	case errors.Is(err, services.ErrUnauthorized):
		return errorInfo{http.StatusUnauthorized, ErrCodeUnauthorized, msgUnauthorized}
	case errors.Is(err, services.ErrInvalidCredentials):
		return errorInfo{http.StatusUnauthorized, ErrCodeInvalidCredentials, msgInvalidCredentials}
	case errors.Is(err, services.ErrNotVerified):
		return errorInfo{http.StatusForbidden, ErrCodeNotVerified, msgNotVerified}
	case errors.Is(err, services.ErrEmailAlreadyUsed):
		return errorInfo{http.StatusConflict, ErrCodeConflict, msgEmailAlreadyUsed}
	case errors.Is(err, services.ErrIdempotencyMismatch):
		return errorInfo{http.StatusUnprocessableEntity, ErrCodeIdempotencyMismatch, msgIdempotencyMismatch}

	case errors.Is(err, services.ErrUpstreamUnavailable):
		status := http.StatusBadGateway
		if errors.Is(err, llm.ErrMissingCredential) || errors.Is(err, llm.ErrCircuitOpen) {
			status = http.StatusServiceUnavailable
		}
		return errorInfo{status, ErrCodeUpstreamUnavailable, msgUpstreamUnavailable}
	case errors.Is(err, services.ErrStreamInterrupted):
		return errorInfo{http.StatusBadGateway, ErrCodeStreamInterrupted, msgStreamInterrupted}
	case errors.Is(err, context.DeadlineExceeded):
		return errorInfo{http.StatusGatewayTimeout, ErrCodeUpstreamUnavailable, msgTimeout}
	}
	return errorInfo{http.StatusInternalServerError, ErrCodeInternal, msgInternal}
}

// failWith renders err. A cancelled request context means the client is
// gone, so nothing is written.
func failWith(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) && c.Request.Context().Err() != nil {
		middleware.LoggerFrom(c).Info().Err(err).Msg("client went away")
		c.Abort()
		return
	}
	info := classify(err)
	if info.status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("request failed")
	}
	if info.status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "30")
	}
	fail(c, info.status, info.code, info.msg)
}
